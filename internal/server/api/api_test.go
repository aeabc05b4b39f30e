package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/signify/internal/inference"
	"github.com/ayusman/signify/internal/labels"
	"github.com/ayusman/signify/internal/landmark"
	"github.com/ayusman/signify/internal/session"
	"github.com/ayusman/signify/internal/store"
)

type fakeController struct {
	mu       sync.Mutex
	state    session.State
	table    labels.Table
	startErr error
	saveErr  error
	starts   int
	stops    int
}

func newFake() *fakeController {
	return &fakeController{
		state: session.State{SequenceLength: landmark.SequenceLength},
		table: labels.Table{0: "Hello", 1: "Thank you"},
	}
}

func (f *fakeController) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeController) Start() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.starts++
	f.state.Running = true
	f.state.SessionID = "sess-1"
	return f.state.SessionID, nil
}

func (f *fakeController) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	f.state = session.State{SequenceLength: landmark.SequenceLength}
	return nil
}

func (f *fakeController) Labels() labels.Table {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.table
}

func (f *fakeController) SetLabels(t labels.Table) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.table = t
	return nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSessionHandler(t *testing.T) {
	t.Run("get returns idle state", func(t *testing.T) {
		h := NewSessionHandler(newFake())
		rec := do(t, h, http.MethodGet, "/api/session", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		var st session.State
		if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if st.Running || st.SequenceLength != landmark.SequenceLength || st.Result != nil {
			t.Errorf("state = %+v", st)
		}
	})

	t.Run("start then stop", func(t *testing.T) {
		app := newFake()
		h := NewSessionHandler(app)

		rec := do(t, h, http.MethodPost, "/api/session/start", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("start status = %d", rec.Code)
		}
		var started startResponse
		json.NewDecoder(rec.Body).Decode(&started)
		if started.SessionID != "sess-1" {
			t.Errorf("session_id = %q", started.SessionID)
		}

		rec = do(t, h, http.MethodPost, "/api/session/stop", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("stop status = %d", rec.Code)
		}
		if app.starts != 1 || app.stops != 1 {
			t.Errorf("starts = %d, stops = %d", app.starts, app.stops)
		}
	})

	t.Run("start conflict", func(t *testing.T) {
		app := newFake()
		app.startErr = session.ErrAlreadyRunning
		rec := do(t, NewSessionHandler(app), http.MethodPost, "/api/session/start", "")
		if rec.Code != http.StatusConflict {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
		}
	})

	t.Run("start failure", func(t *testing.T) {
		app := newFake()
		app.startErr = errors.New("camera unavailable")
		rec := do(t, NewSessionHandler(app), http.MethodPost, "/api/session/start", "")
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
		}
	})

	t.Run("method checks", func(t *testing.T) {
		h := NewSessionHandler(newFake())
		tests := []struct {
			method, path string
		}{
			{http.MethodPost, "/api/session"},
			{http.MethodGet, "/api/session/start"},
			{http.MethodGet, "/api/session/stop"},
		}
		for _, tt := range tests {
			if rec := do(t, h, tt.method, tt.path, ""); rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("%s %s: status = %d", tt.method, tt.path, rec.Code)
			}
		}
		if rec := do(t, h, http.MethodPost, "/api/session/pause", ""); rec.Code != http.StatusNotFound {
			t.Errorf("unknown action status = %d", rec.Code)
		}
	})
}

func TestLabelsHandler(t *testing.T) {
	t.Run("get lists sorted labels", func(t *testing.T) {
		rec := do(t, NewLabelsHandler(newFake()), http.MethodGet, "/api/labels", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		var resp listLabelsResponse
		json.NewDecoder(rec.Body).Decode(&resp)
		if len(resp.Labels) != 2 || resp.Labels[0].Label != "Hello" || resp.Labels[1].ClassIndex != 1 {
			t.Errorf("labels = %+v", resp.Labels)
		}
	})

	tests := []struct {
		name       string
		body       string
		saveErr    error
		wantStatus int
	}{
		{"replaces table", `{"labels":{"0":"Yes","3":" No "}}`, nil, http.StatusOK},
		{"invalid json", `{`, nil, http.StatusBadRequest},
		{"empty table", `{"labels":{}}`, nil, http.StatusBadRequest},
		{"non-numeric key", `{"labels":{"first":"Yes"}}`, nil, http.StatusBadRequest},
		{"negative key", `{"labels":{"-1":"Yes"}}`, nil, http.StatusBadRequest},
		{"blank label", `{"labels":{"0":"  "}}`, nil, http.StatusBadRequest},
		{"store failure", `{"labels":{"0":"Yes"}}`, errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newFake()
			app.saveErr = tt.saveErr
			rec := do(t, NewLabelsHandler(app), http.MethodPut, "/api/labels", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				if app.table.Lookup(3) != "No" || app.table.Lookup(1) != labels.Unknown {
					t.Errorf("table = %v", app.table)
				}
			}
		})
	}

	t.Run("rejects delete", func(t *testing.T) {
		if rec := do(t, NewLabelsHandler(newFake()), http.MethodDelete, "/api/labels", ""); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d", rec.Code)
		}
	})
}

func TestConfigHandler(t *testing.T) {
	rec := do(t, NewConfigHandler("demo"), http.MethodGet, "/api/config", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp configResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SequenceLength != 30 || resp.InputDim != 171 || resp.ConfidenceThreshold != 0.82 {
		t.Errorf("config = %+v", resp)
	}
	if len(resp.FaceIndices) != 9 || len(resp.PoseIndices) != 6 || resp.Classifier != "demo" {
		t.Errorf("config = %+v", resp)
	}
}

func TestDetectionsHandler(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	defer s.Close()

	for _, id := range []string{"a", "b"} {
		if err := s.Sessions().Create(&store.Session{ID: id, StartedAt: time.Now()}); err != nil {
			t.Fatalf("create session: %v", err)
		}
	}
	for i, r := range []inference.Result{
		{Label: "Hello", ClassIndex: 0, Confidence: 0.9},
		{Label: "Yes", ClassIndex: 4, Confidence: 0.8},
		{Label: "No", ClassIndex: 5, Confidence: 0.7},
	} {
		sid := "a"
		if i == 2 {
			sid = "b"
		}
		d := &store.Detection{SessionID: sid, Label: r.Label, ClassIndex: r.ClassIndex, Confidence: r.Confidence}
		if err := s.Detections().Create(d); err != nil {
			t.Fatalf("create detection: %v", err)
		}
	}

	h := NewDetectionsHandler(s)

	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLabels []string
	}{
		{"recent", "", http.StatusOK, []string{"No", "Yes", "Hello"}},
		{"recent limited", "?limit=1", http.StatusOK, []string{"No"}},
		{"by session", "?session=a", http.StatusOK, []string{"Hello", "Yes"}},
		{"by session limited keeps newest", "?session=a&limit=1", http.StatusOK, []string{"Yes"}},
		{"unknown session", "?session=zzz", http.StatusOK, []string{}},
		{"bad limit", "?limit=ten", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/detections"+tt.query, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantLabels == nil {
				return
			}

			var resp listDetectionsResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Detections == nil {
				t.Fatal("detections should encode as an empty array, not null")
			}
			if len(resp.Detections) != len(tt.wantLabels) {
				t.Fatalf("got %d detections, want %d", len(resp.Detections), len(tt.wantLabels))
			}
			for i, want := range tt.wantLabels {
				if resp.Detections[i].Label != want {
					t.Errorf("detection %d label = %q, want %q", i, resp.Detections[i].Label, want)
				}
			}
		})
	}
}

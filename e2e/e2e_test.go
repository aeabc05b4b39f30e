package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/signify/internal/app"
	"github.com/ayusman/signify/internal/classifier"
	"github.com/ayusman/signify/internal/config"
	"github.com/ayusman/signify/internal/landmark"
	"github.com/ayusman/signify/internal/logging"
	"github.com/ayusman/signify/internal/server"
	"github.com/ayusman/signify/internal/session"
	"github.com/ayusman/signify/internal/source"
	"github.com/ayusman/signify/internal/store"
)

type service struct {
	store *store.Store
	app   *app.App
	ts    *httptest.Server
	once  sync.Once
}

func startService(t *testing.T, cfg *config.Config, src source.Source) *service {
	t.Helper()
	log := logging.Discard()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		t.Fatalf("mkdir data dir: %v", err)
	}
	s, err := store.New(cfg.DBPath())
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}

	table, err := app.ResolveLabels(s, cfg.LabelsPath, log)
	if err != nil {
		t.Fatalf("ResolveLabels() error = %v", err)
	}

	clf, err := classifier.New(classifier.Config{
		Kind:    classifier.Kind(cfg.Classifier),
		Classes: table.Len(),
		Seed:    cfg.Seed,
		Command: cfg.ModelCommand,
		Timeout: cfg.InferenceTimeout,
	}, log)
	if err != nil {
		t.Fatalf("classifier.New() error = %v", err)
	}

	a := app.New(app.Config{
		Store:        s,
		Source:       src,
		Classifier:   clf,
		Labels:       table,
		TickInterval: cfg.TickInterval,
		Log:          log,
	})
	ts := httptest.NewServer(server.New(server.Config{Store: s, App: a, Classifier: cfg.Classifier, Log: log}))

	svc := &service{store: s, app: a, ts: ts}
	t.Cleanup(svc.close)
	return svc
}

func (s *service) close() {
	s.once.Do(func() {
		s.ts.Close()
		s.app.Close()
		s.store.Close()
	})
}

func (s *service) post(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := s.ts.Client().Post(s.ts.URL+path, "application/json", nil)
	if err != nil {
		t.Fatalf("POST %s error = %v", path, err)
	}
	resp.Body.Close()
	return resp
}

func (s *service) get(t *testing.T, path string, v any) {
	t.Helper()
	resp, err := s.ts.Client().Get(s.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s error = %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
}

func (s *service) waitForResult(t *testing.T) session.State {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		var st session.State
		s.get(t, "/api/session", &st)
		if st.Result != nil {
			return st
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("no result within deadline")
	return session.State{}
}

func baseEnv(dir string) map[string]string {
	return map[string]string{
		"SIGNIFY_DATA_DIR":      dir,
		"SIGNIFY_SOURCE":        "simulated",
		"SIGNIFY_TICK_INTERVAL": "10ms",
		"SIGNIFY_SEED":          "17",
	}
}

func loadConfig(t *testing.T, vars map[string]string) *config.Config {
	t.Helper()
	cfg, err := config.FromEnv(func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	})
	if err != nil {
		t.Fatalf("config.FromEnv() error = %v", err)
	}
	return cfg
}

func TestE2E_CompleteWorkflow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	cfg := loadConfig(t, baseEnv(t.TempDir()))
	svc := startService(t, cfg, source.NewSimulated(cfg.Seed, cfg.DropRate))

	var boundary struct {
		SequenceLength int `json:"sequence_length"`
		InputDim       int `json:"input_dim"`
	}
	svc.get(t, "/api/config", &boundary)
	if boundary.SequenceLength != landmark.SequenceLength || boundary.InputDim != landmark.InputDim {
		t.Errorf("config = %+v", boundary)
	}

	if resp := svc.post(t, "/api/session/start"); resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d", resp.StatusCode)
	}

	st := svc.waitForResult(t)
	if !st.Running || st.FrameCount != landmark.SequenceLength {
		t.Errorf("state = %+v", st)
	}
	if st.Result.Confidence < 0 || st.Result.Confidence > 1 {
		t.Errorf("confidence out of range: %f", st.Result.Confidence)
	}

	if resp := svc.post(t, "/api/session/stop"); resp.StatusCode != http.StatusOK {
		t.Fatalf("stop status = %d", resp.StatusCode)
	}

	var after session.State
	svc.get(t, "/api/session", &after)
	if after.Running || after.Result != nil || after.FrameCount != 0 {
		t.Errorf("state after stop = %+v", after)
	}

	var history struct {
		Detections []store.Detection `json:"detections"`
	}
	svc.get(t, "/api/detections?session="+st.SessionID, &history)
	if len(history.Detections) == 0 {
		t.Error("no detections recorded for the session")
	}
}

func TestE2E_ProcessClassifierWithLabelMapping(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}

	dir := t.TempDir()

	model := filepath.Join(dir, "model.sh")
	script := "#!/bin/sh\ncat > /dev/null\necho '{\"probabilities\":[0.05,0.9,0.05]}'\n"
	if err := os.WriteFile(model, []byte(script), 0755); err != nil {
		t.Fatalf("write model: %v", err)
	}

	mapping := filepath.Join(dir, "label_mapping.txt")
	if err := os.WriteFile(mapping, []byte("Wave,0\nGood morning,1\nBye,2\n"), 0644); err != nil {
		t.Fatalf("write mapping: %v", err)
	}

	vars := baseEnv(filepath.Join(dir, "data"))
	vars["SIGNIFY_SOURCE"] = "replay"
	vars["SIGNIFY_REPLAY_PATH"] = filepath.Join(dir, "unused.json")
	vars["SIGNIFY_CLASSIFIER"] = "process"
	vars["SIGNIFY_MODEL_COMMAND"] = model
	vars["SIGNIFY_LABELS_PATH"] = mapping
	cfg := loadConfig(t, vars)

	replay := source.NewReplay([]landmark.Frame{landmark.SigningFrame(), {}}, true)
	svc := startService(t, cfg, replay)

	svc.post(t, "/api/session/start")
	st := svc.waitForResult(t)
	svc.post(t, "/api/session/stop")

	if st.Result.Label != "Good morning" || st.Result.ClassIndex != 1 {
		t.Errorf("result = %+v, want class 1 Good morning", st.Result)
	}
	if !st.Result.Confident(landmark.ConfidenceThreshold) {
		t.Errorf("confidence %f should meet the threshold", st.Result.Confidence)
	}

	var labelsResp struct {
		Labels []struct {
			ClassIndex int    `json:"class_index"`
			Label      string `json:"label"`
		} `json:"labels"`
	}
	svc.get(t, "/api/labels", &labelsResp)
	if len(labelsResp.Labels) != 3 || labelsResp.Labels[2].Label != "Bye" {
		t.Errorf("labels = %+v", labelsResp.Labels)
	}
}

func TestE2E_HistorySurvivesRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test")
	}

	dir := t.TempDir()
	cfg := loadConfig(t, baseEnv(dir))

	first := startService(t, cfg, source.NewSimulated(cfg.Seed, 0))
	first.post(t, "/api/session/start")
	st := first.waitForResult(t)
	first.post(t, "/api/session/stop")
	first.close()

	second := startService(t, cfg, source.NewSimulated(cfg.Seed, 0))

	rec, err := second.store.Sessions().GetByID(st.SessionID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if rec.StoppedAt == nil || rec.Admitted < landmark.SequenceLength {
		t.Errorf("stored session = %+v", rec)
	}

	var history struct {
		Detections []store.Detection `json:"detections"`
	}
	second.get(t, "/api/detections", &history)
	if len(history.Detections) == 0 {
		t.Error("detections lost across restart")
	}
}

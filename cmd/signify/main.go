package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/signify/internal/app"
	"github.com/ayusman/signify/internal/capture"
	"github.com/ayusman/signify/internal/classifier"
	"github.com/ayusman/signify/internal/config"
	"github.com/ayusman/signify/internal/detector"
	"github.com/ayusman/signify/internal/inference"
	"github.com/ayusman/signify/internal/labels"
	"github.com/ayusman/signify/internal/landmark"
	"github.com/ayusman/signify/internal/logging"
	"github.com/ayusman/signify/internal/server"
	"github.com/ayusman/signify/internal/sink"
	"github.com/ayusman/signify/internal/source"
	"github.com/ayusman/signify/internal/store"
	"github.com/ayusman/signify/internal/tray"
)

func main() {
	envFile := flag.String("env", "", "path to a .env file (default .env)")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "signify: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Dir: cfg.LogDir})
	if err != nil {
		fmt.Fprintf(os.Stderr, "signify: %v\n", err)
		os.Exit(1)
	}

	log.Info("Signify - real-time sign detection")

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}

	st, err := store.New(cfg.DBPath())
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	table, err := app.ResolveLabels(st, cfg.LabelsPath, log)
	if err != nil {
		log.Fatalf("Failed to load labels: %v", err)
	}

	clf, err := classifier.New(classifier.Config{
		Kind:        classifier.Kind(cfg.Classifier),
		Classes:     classCount(cfg, table),
		Seed:        cfg.Seed,
		ModelPath:   cfg.ModelPath,
		LibraryPath: cfg.ONNXLibrary,
		InputName:   cfg.ModelInput,
		OutputName:  cfg.ModelOutput,
		Command:     cfg.ModelCommand,
		URL:         cfg.ModelURL,
		Timeout:     cfg.InferenceTimeout,
	}, log)
	if err != nil {
		log.Fatalf("Failed to create classifier: %v", err)
	}

	src, preview, err := newSource(cfg, log)
	if err != nil {
		log.Fatalf("Failed to create frame source: %v", err)
	}

	application := app.New(app.Config{
		Store:            st,
		Source:           src,
		Classifier:       clf,
		Labels:           table,
		TickInterval:     cfg.TickInterval,
		HealthInterval:   cfg.HealthInterval,
		MaxInferenceRate: cfg.MaxInferenceRate,
		Log:              log,
	})
	defer application.Close()

	application.OnResult(func(sessionID string, r inference.Result) {
		log.WithFields(logrus.Fields{
			"session":    sessionID,
			"label":      r.Label,
			"confidence": fmt.Sprintf("%.2f", r.Confidence),
		}).Debug("sign detected")
	})

	if cfg.RedisAddress != "" {
		rs := sink.NewRedis(sink.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, log)
		defer rs.Close()
		application.OnResult(rs.Handle(landmark.ConfidenceThreshold))
	}

	webDir := cfg.WebDir
	if webDir == "" {
		webDir = findWebDir(cfg.DataDir)
	}
	if webDir != "" {
		log.Infof("Serving static files from: %s", webDir)
	}

	srv := server.New(server.Config{
		StaticDir:     webDir,
		Store:         st,
		App:           application,
		Classifier:    cfg.Classifier,
		Preview:       preview,
		StateInterval: cfg.TickInterval,
		Log:           log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Infof("Starting server on %s", cfg.Addr)
		if err := srv.ListenAndServe(cfg.Addr); err != nil {
			log.Errorf("Server failed: %v", err)
			stop()
		}
	}()

	if cfg.AutoStart || application.ResumeRequested() {
		if _, err := application.Start(); err != nil {
			log.Errorf("Failed to start detection: %v", err)
		}
	}

	if cfg.Tray {
		runTray(ctx, stop, application, dashboardURL(cfg.Addr), log)
	} else {
		<-ctx.Done()
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
}

// newSource builds the configured frame source. A camera source falls back
// to simulated frames when the holistic helper is unavailable. The returned
// cache is non-nil only for a camera source.
func newSource(cfg *config.Config, log logrus.FieldLogger) (source.Source, *capture.JPEGCache, error) {
	switch cfg.Source {
	case config.SourceReplay:
		r, err := source.LoadReplay(cfg.ReplayPath, true)
		if err != nil {
			return nil, nil, err
		}
		log.WithField("path", cfg.ReplayPath).Info("Replaying recorded frames")
		return r, nil, nil

	case config.SourceSimulated:
		log.Warn("Using simulated landmarks")
		return source.NewSimulated(cfg.Seed, cfg.DropRate), nil, nil
	}

	dcfg := detector.DefaultConfig()
	dcfg.ScriptPath = cfg.HolisticScript
	dcfg.PythonPath = cfg.HolisticPython

	det, err := detector.NewMediaPipeDetector(dcfg, log)
	if err != nil {
		log.Warnf("MediaPipe not available (%v), using simulated landmarks", err)
		return source.NewSimulated(cfg.Seed, cfg.DropRate), nil, nil
	}
	log.Info("Using MediaPipe holistic detection")

	cache := &capture.JPEGCache{}
	cam := capture.NewCamera(capture.Options{DeviceID: cfg.CameraID})
	return source.NewCamera(cam, det, cache), cache, nil
}

// classCount is the class range handed to the classifier. An explicit
// SIGNIFY_MODEL_CLASSES wins; otherwise the label table decides.
func classCount(cfg *config.Config, table labels.Table) int {
	if cfg.ModelClasses > 0 {
		return cfg.ModelClasses
	}
	return table.Span()
}

// runTray blocks on the system tray until Quit is clicked or ctx ends.
func runTray(ctx context.Context, quit context.CancelFunc, a *app.App, url string, log logrus.FieldLogger) {
	t := tray.New(landmark.ConfidenceThreshold)
	t.SetRunning(a.Running())

	t.OnToggle(func(running bool) {
		if running {
			if _, err := a.Start(); err != nil {
				log.Errorf("Failed to start detection: %v", err)
				t.SetRunning(a.Running())
			}
			return
		}
		a.Stop()
	})
	t.OnSettings(func() {
		if err := openBrowser(url); err != nil {
			log.WithError(err).Warn("could not open browser")
		}
	})
	t.OnQuit(quit)

	a.OnResult(func(_ string, r inference.Result) {
		t.SetLastResult(r.Label, r.Confidence)
	})

	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	t.Run()
}

func dashboardURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://localhost:8080/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	candidates := []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}
	return ""
}

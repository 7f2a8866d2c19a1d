// Command handsign runs real-time sign language recognition from a camera and
// serves its state over a local HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ayusman/handsign/internal/app"
	"github.com/ayusman/handsign/internal/capture"
	"github.com/ayusman/handsign/internal/classifier"
	"github.com/ayusman/handsign/internal/config"
	"github.com/ayusman/handsign/internal/detector"
	"github.com/ayusman/handsign/internal/learning"
	"github.com/ayusman/handsign/internal/plugin"
	"github.com/ayusman/handsign/internal/recognition"
	"github.com/ayusman/handsign/internal/server"
	"github.com/ayusman/handsign/internal/store"
	"github.com/ayusman/handsign/internal/tray"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (default ~/.handsign/config.yaml if present)")
	headless := flag.Bool("headless", false, "run without the system tray")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	if *headless {
		cfg.Headless = true
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("handsign stopped", "error", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	def := config.Default()
	candidate := filepath.Join(def.DataDir, "config.yaml")
	if _, err := os.Stat(candidate); err == nil {
		return config.LoadFile(candidate)
	}
	return &def, nil
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	engine := classifier.Load(classifier.Config{
		ONNX: classifier.ONNXConfig{
			ModelPath:         cfg.Model.ModelPath,
			SharedLibraryPath: cfg.Model.ONNXRuntimeLib,
			InputName:         cfg.Model.InputName,
			OutputName:        cfg.Model.OutputName,
		},
		LabelsPath: cfg.Model.LabelsPath,
		Timeout:    cfg.Model.Timeout,
	}, logger)
	defer engine.Close()
	if !engine.Available() {
		logger.Warn("classifier unavailable, frames will report failures", "error", engine.Err())
	}

	samples := learning.New(cfg.TrainingDataDir(),
		learning.WithMaxPerLabel(cfg.Learning.MaxSamplesPerLabel),
		learning.WithLogger(logger),
	)
	submitter := learning.NewSubmitter(samples, cfg.Learning.QueueSize, logger)
	defer submitter.Close()

	settings, err := app.NewRuntimeSettings(st.Settings(), app.Preferences{
		SequenceMode:     cfg.Recognition.SequenceMode,
		MinConfidence:    cfg.Recognition.MinConfidence,
		AdaptiveLearning: cfg.Recognition.AdaptiveLearning,
		WindowSize:       cfg.Recognition.WindowSize,
		ResetOnHandLoss:  cfg.Recognition.ResetOnHandLoss,
		EnableSound:      cfg.Recognition.EnableSound,
	}, logger)
	if err != nil {
		return err
	}

	plugins := plugin.NewManager(cfg.Plugins.Dir, logger)
	if err := plugins.Discover(); err != nil {
		logger.Warn("discover plugins", "dir", cfg.Plugins.Dir, "error", err)
	}
	feedback := app.NewFeedback(app.FeedbackConfig{
		Actions: st.Actions(),
		Plugins: plugins,
		Runner:  plugin.NewExecutor(cfg.Plugins.Timeout),
		Sound:   settings.SoundEnabled,
		Logger:  logger,
	})
	defer feedback.Close()

	hub := server.NewHub(logger)

	var menu *tray.Tray
	if !cfg.Headless {
		menu = tray.New(settings.Preferences().SequenceMode)
	}

	orch := recognition.New(engine, recognition.Options{
		Settings: settings,
		Sink:     submitter,
		Logger:   logger,
		OnEvent: func(ev recognition.Event) {
			hub.Publish(ev)
			feedback.Handle(ev)
			if menu != nil && ev.Kind == recognition.EventDetected {
				menu.SetLastSign(ev.Status())
			}
		},
	})
	defer orch.Close()

	var det detector.Detector
	detCfg := detector.DefaultConfig()
	detCfg.MinConfidence = cfg.Detector.MinConfidence
	detCfg.ScriptPath = cfg.Detector.ScriptPath
	detCfg.IdleShutdown = cfg.Detector.IdleShutdown
	if mp, err := detector.NewMediaPipeDetector(detCfg, logger); err == nil {
		det = mp
		logger.Info("using MediaPipe hand detection")
	} else {
		logger.Warn("MediaPipe not available, using mock detector", "error", err)
		det = detector.NewMockDetector()
	}

	camCfg := capture.DefaultConfig()
	camCfg.DeviceID = cfg.Camera.DeviceID
	frames := app.New(app.Config{
		Camera:    capture.NewCamera(camCfg),
		Detector:  det,
		Motion:    capture.NewMotionDetector(cfg.Camera.MotionThreshold),
		Sink:      orch,
		IdleFPS:   cfg.Camera.IdleFPS,
		ActiveFPS: cfg.Camera.ActiveFPS,
		Logger:    logger,
	})
	frames.SetEnabled(true)
	if err := frames.Start(); err != nil {
		logger.Warn("camera unavailable, serving API only", "device", cfg.Camera.DeviceID, "error", err)
	}
	defer frames.Stop()

	srv := server.New(server.Config{
		Store:      st,
		Plugins:    plugins,
		Recognizer: orch,
		Engine:     engine,
		Enabled:    frames.IsEnabled,
		Settings:   settings,
		Transcript: app.NewTranscript(orch, st.History()),
		Learning:   samples,
		Queue:      submitter,
		Hub:        hub,
		StaticDir:  findWebDir(cfg.DataDir),
		Logger:     logger,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.ListenAddr)
	}()

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", "error", err)
		}
	}()

	if menu == nil {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return nil
		case err := <-errCh:
			return err
		}
	}

	menu.OnToggle(frames.SetEnabled)
	menu.OnSequence(func(sequence bool) {
		if _, err := settings.Update(app.Patch{SequenceMode: &sequence}); err != nil {
			logger.Error("update sequence mode", "error", err)
		}
	})
	settings.OnChange(func(p app.Preferences) { menu.SetSequence(p.SequenceMode) })
	menu.OnSettings(func() { openBrowser(settingsURL(cfg.ListenAddr), logger) })
	menu.OnQuit(stop)

	quit := make(chan error, 1)
	go func() {
		select {
		case <-ctx.Done():
			quit <- nil
		case err := <-errCh:
			quit <- err
		}
		menu.Quit()
	}()

	// The tray owns the main goroutine until Quit.
	menu.Run()
	stop()
	logger.Info("shutting down")
	return <-quit
}

func settingsURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string, logger *slog.Logger) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		logger.Warn("open browser", "url", url, "error", err)
		return
	}
	go cmd.Wait()
}

// findWebDir returns the first existing web directory among ./web, ../web,
// ../../web and <data_dir>/web, or "" when none exists.
func findWebDir(dataDir string) string {
	for _, p := range []string{"web", "../web", "../../web", filepath.Join(dataDir, "web")} {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			return abs
		}
		return p
	}
	return ""
}


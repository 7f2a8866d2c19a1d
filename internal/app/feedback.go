package app

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/handsign/internal/plugin"
	"github.com/ayusman/handsign/internal/recognition"
	"github.com/ayusman/handsign/internal/store"
)

// SpeakPlugin is the plugin silenced when sound is disabled.
const SpeakPlugin = "speak"

// DefaultRepeatInterval suppresses re-running actions for the same label.
const DefaultRepeatInterval = 2 * time.Second

// ActionSource lists the actions bound to a label.
type ActionSource interface {
	ForLabel(label string) ([]*store.Action, error)
}

// PluginSource resolves plugins by name.
type PluginSource interface {
	Get(name string) (*plugin.Plugin, error)
}

// Runner executes one plugin request.
type Runner interface {
	Execute(ctx context.Context, p *plugin.Plugin, req *plugin.Request) (*plugin.Response, error)
}

// FeedbackConfig wires a Feedback dispatcher.
type FeedbackConfig struct {
	Actions ActionSource
	Plugins PluginSource
	Runner  Runner

	// Sound gates the speak plugin. Nil means always on.
	Sound func() bool

	RepeatInterval time.Duration
	Logger         *slog.Logger
}

// Feedback runs the actions bound to detected labels. At most one batch runs
// at a time; detections that arrive meanwhile are skipped.
type Feedback struct {
	actions ActionSource
	plugins PluginSource
	runner  Runner
	sound   func() bool
	repeat  time.Duration
	logger  *slog.Logger

	busy atomic.Bool
	wg   sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	lastLabel string
	lastRun   time.Time
	now       func() time.Time
}

// NewFeedback creates a dispatcher.
func NewFeedback(cfg FeedbackConfig) *Feedback {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	repeat := cfg.RepeatInterval
	if repeat <= 0 {
		repeat = DefaultRepeatInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Feedback{
		actions: cfg.Actions,
		plugins: cfg.Plugins,
		runner:  cfg.Runner,
		sound:   cfg.Sound,
		repeat:  repeat,
		logger:  logger.With("component", "feedback"),
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
	}
}

// Handle is an event listener. It returns true when a batch was started.
func (f *Feedback) Handle(ev recognition.Event) bool {
	if ev.Kind != recognition.EventDetected || ev.Label == "" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ctx.Err() != nil {
		return false
	}
	now := f.now()
	if ev.Label == f.lastLabel && now.Sub(f.lastRun) < f.repeat {
		return false
	}
	if !f.busy.CompareAndSwap(false, true) {
		return false
	}
	f.lastLabel = ev.Label
	f.lastRun = now

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer f.busy.Store(false)
		f.run(ev.Label, ev.Confidence)
	}()
	return true
}

func (f *Feedback) run(label string, confidence float32) {
	actions, err := f.actions.ForLabel(label)
	if err != nil {
		f.logger.Error("load actions", "label", label, "error", err)
		return
	}

	for _, a := range actions {
		if a.PluginName == SpeakPlugin && f.sound != nil && !f.sound() {
			continue
		}

		p, err := f.plugins.Get(a.PluginName)
		if err != nil {
			f.logger.Warn("plugin unavailable", "plugin", a.PluginName, "error", err)
			continue
		}
		if !p.Supports(a.ActionName) {
			f.logger.Warn("unsupported action", "plugin", a.PluginName, "action", a.ActionName)
			continue
		}

		req := &plugin.Request{
			Action:     a.ActionName,
			Label:      label,
			Confidence: confidence,
			Config:     a.Config,
		}
		resp, err := f.runner.Execute(f.ctx, p, req)
		switch {
		case err != nil:
			f.logger.Warn("action failed", "plugin", a.PluginName, "action", a.ActionName, "error", err)
		case !resp.Success:
			f.logger.Warn("action failed", "plugin", a.PluginName, "action", a.ActionName, "error", resp.Error)
		default:
			f.logger.Debug("action done", "plugin", a.PluginName, "action", a.ActionName, "label", label)
		}
	}
}

// Close cancels a running batch and waits for it.
func (f *Feedback) Close() {
	f.mu.Lock()
	f.cancel()
	f.mu.Unlock()
	f.wg.Wait()
}

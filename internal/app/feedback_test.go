package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/handsign/internal/plugin"
	"github.com/ayusman/handsign/internal/recognition"
	"github.com/ayusman/handsign/internal/store"
)

type fakeActions map[string][]*store.Action

func (f fakeActions) ForLabel(label string) ([]*store.Action, error) {
	return append(f[label], f[store.AnyLabel]...), nil
}

type fakePlugins map[string]*plugin.Plugin

func (f fakePlugins) Get(name string) (*plugin.Plugin, error) {
	if p, ok := f[name]; ok {
		return p, nil
	}
	return nil, errors.New("plugin not found")
}

type fakeRunner struct {
	mu    sync.Mutex
	reqs  []string
	block chan struct{}
}

func (r *fakeRunner) Execute(ctx context.Context, p *plugin.Plugin, req *plugin.Request) (*plugin.Response, error) {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	r.reqs = append(r.reqs, p.Manifest.Name+"/"+req.Action+":"+req.Label)
	r.mu.Unlock()
	return &plugin.Response{Success: true}, nil
}

func (r *fakeRunner) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reqs...)
}

func newPlugin(name string, actions ...string) *plugin.Plugin {
	return &plugin.Plugin{Manifest: plugin.Manifest{Name: name, Actions: actions}}
}

func detected(label string) recognition.Event {
	return recognition.Event{Kind: recognition.EventDetected, Label: label, Confidence: 0.9}
}

func newFeedback(runner *fakeRunner, sound *bool) *Feedback {
	actions := fakeActions{
		"hello": {
			{PluginName: "keyboard", ActionName: "type", Enabled: true},
		},
		store.AnyLabel: {
			{PluginName: "speak", ActionName: "say", Enabled: true},
			{PluginName: "missing", ActionName: "x", Enabled: true},
			{PluginName: "keyboard", ActionName: "unsupported", Enabled: true},
		},
	}
	plugins := fakePlugins{
		"speak":    newPlugin("speak", "say", "beep"),
		"keyboard": newPlugin("keyboard", "type"),
	}
	cfg := FeedbackConfig{Actions: actions, Plugins: plugins, Runner: runner}
	if sound != nil {
		cfg.Sound = func() bool { return *sound }
	}
	return NewFeedback(cfg)
}

func TestFeedback_RunsBoundActions(t *testing.T) {
	runner := &fakeRunner{}
	fb := newFeedback(runner, nil)

	if !fb.Handle(detected("hello")) {
		t.Fatal("Handle() should start a batch")
	}
	fb.Close()

	got := runner.calls()
	want := []string{"keyboard/type:hello", "speak/say:hello"}
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFeedback_IgnoresOtherEvents(t *testing.T) {
	fb := newFeedback(&fakeRunner{}, nil)
	defer fb.Close()

	for _, ev := range []recognition.Event{
		{Kind: recognition.EventNoHand},
		{Kind: recognition.EventAccumulating},
		{Kind: recognition.EventRejected, Confidence: 0.3},
		{Kind: recognition.EventFailed},
	} {
		if fb.Handle(ev) {
			t.Errorf("Handle(%v) started a batch", ev.Kind)
		}
	}
}

func TestFeedback_SoundGate(t *testing.T) {
	sound := false
	runner := &fakeRunner{}
	fb := newFeedback(runner, &sound)

	fb.Handle(detected("bye"))
	fb.Close()

	if got := runner.calls(); len(got) != 0 {
		t.Errorf("speak ran with sound off: %v", got)
	}
}

func TestFeedback_OneInFlight(t *testing.T) {
	runner := &fakeRunner{block: make(chan struct{})}
	fb := newFeedback(runner, nil)

	if !fb.Handle(detected("hello")) {
		t.Fatal("first Handle() should start")
	}
	if fb.Handle(detected("thanks")) {
		t.Error("second Handle() should be skipped while busy")
	}

	close(runner.block)
	fb.Close()

	for _, c := range runner.calls() {
		if c == "speak/say:thanks" {
			t.Error("skipped detection ran")
		}
	}
}

func TestFeedback_RepeatInterval(t *testing.T) {
	runner := &fakeRunner{}
	fb := newFeedback(runner, nil)
	defer fb.Close()

	now := time.Unix(1000, 0)
	fb.now = func() time.Time { return now }

	waitIdle := func() {
		deadline := time.Now().Add(2 * time.Second)
		for fb.busy.Load() && time.Now().Before(deadline) {
			time.Sleep(time.Millisecond)
		}
	}

	if !fb.Handle(detected("hello")) {
		t.Fatal("first Handle() should start")
	}
	waitIdle()

	now = now.Add(time.Second)
	if fb.Handle(detected("hello")) {
		t.Error("repeat within interval should be skipped")
	}
	if !fb.Handle(detected("thanks")) {
		t.Error("a different label should run")
	}
	waitIdle()

	now = now.Add(3 * time.Second)
	if !fb.Handle(detected("thanks")) {
		t.Error("repeat after the interval should run")
	}
}

func TestFeedback_Closed(t *testing.T) {
	fb := newFeedback(&fakeRunner{}, nil)
	fb.Close()

	if fb.Handle(detected("hello")) {
		t.Error("Handle() after Close() should do nothing")
	}
}

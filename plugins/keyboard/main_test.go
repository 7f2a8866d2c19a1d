package main

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"
)

func TestCommand(t *testing.T) {
	tests := []struct {
		name    string
		goos    string
		req     Request
		want    []string
		wantErr bool
	}{
		{
			name: "type label on linux",
			goos: "linux",
			req:  Request{Action: "type", Label: "hello"},
			want: []string{"xdotool", "type", "--", "hello "},
		},
		{
			name: "type without separator",
			goos: "linux",
			req:  Request{Action: "type", Label: "hello", Params: json.RawMessage(`{"no_separator":true}`)},
			want: []string{"xdotool", "type", "--", "hello"},
		},
		{
			name: "type explicit text on macOS",
			goos: "darwin",
			req:  Request{Action: "type", Label: "hello", Params: json.RawMessage(`{"text":"say \"hi\""}`)},
			want: []string{"osascript", "-e", `tell application "System Events" to keystroke "say \"hi\""`},
		},
		{
			name: "shortcut on linux",
			goos: "linux",
			req:  Request{Action: "shortcut", Params: json.RawMessage(`{"key":"z","modifiers":["Command","shift"]}`)},
			want: []string{"xdotool", "key", "super+shift+z"},
		},
		{
			name: "keystroke on macOS",
			goos: "darwin",
			req:  Request{Action: "keystroke", Params: json.RawMessage(`{"key":"v","modifiers":["cmd","hyper"]}`)},
			want: []string{"osascript", "-e", `tell application "System Events" to keystroke "v" using {command down}`},
		},
		{
			name:    "keystroke without key",
			goos:    "linux",
			req:     Request{Action: "keystroke", Params: json.RawMessage(`{}`)},
			wantErr: true,
		},
		{
			name:    "unknown action",
			goos:    "linux",
			req:     Request{Action: "dance"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := command(tt.goos, tt.req)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("command() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("command() error = %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("command() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommand_NothingToType(t *testing.T) {
	_, err := command("linux", Request{Action: "type", Params: json.RawMessage(`{"text":""}`)})
	if !errors.Is(err, errNoText) {
		t.Errorf("error = %v, want errNoText", err)
	}
}

func TestXdotoolCombo(t *testing.T) {
	if got := xdotoolCombo("x", []string{"hyper"}); got != "x" {
		t.Errorf("unknown modifier kept: %q", got)
	}
	if got := xdotoolCombo("c", []string{"ctrl"}); got != "ctrl+c" {
		t.Errorf("xdotoolCombo() = %q", got)
	}
}

func TestEscapeAppleScript(t *testing.T) {
	if got := escapeAppleScript(`say "hi" \ bye`); got != `say \"hi\" \\ bye` {
		t.Errorf("escapeAppleScript() = %s", got)
	}
}

// Package main provides a keyboard plugin. It types recognized signs into the
// focused application and sends shortcuts, via AppleScript on macOS and
// xdotool elsewhere.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// Request is the executor's input.
type Request struct {
	Action     string          `json:"action"`
	Label      string          `json:"label"`
	Confidence float32         `json:"confidence"`
	Config     json.RawMessage `json:"config"`
	Params     json.RawMessage `json:"params"`
}

// Response is written to stdout as a single JSON object.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// KeyParams names a key and optional modifiers (command, option, control,
// shift and their short forms).
type KeyParams struct {
	Key       string   `json:"key"`
	Modifiers []string `json:"modifiers"`
}

// TypeParams overrides the typed text. Without text the label is typed,
// followed by a space so consecutive signs form words.
type TypeParams struct {
	Text        string `json:"text"`
	NoSeparator bool   `json:"no_separator"`
}

var errNoText = errors.New("text is required")

// modifier names per platform.
var (
	appleModifiers = map[string]string{
		"command": "command down", "cmd": "command down",
		"option": "option down", "alt": "option down",
		"control": "control down", "ctrl": "control down",
		"shift": "shift down",
	}
	xdoModifiers = map[string]string{
		"command": "super", "cmd": "super",
		"option": "alt", "alt": "alt",
		"control": "ctrl", "ctrl": "ctrl",
		"shift": "shift",
	}
)

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		respond(fmt.Errorf("decode request: %w", err))
		return
	}

	argv, err := command(runtime.GOOS, req)
	if err != nil {
		respond(err)
		return
	}
	if out, err := exec.Command(argv[0], argv[1:]...).CombinedOutput(); err != nil {
		respond(fmt.Errorf("action %s: %w: %s", req.Action, err, strings.TrimSpace(string(out))))
		return
	}
	respond(nil)
}

// command returns the argv that performs req on goos.
func command(goos string, req Request) ([]string, error) {
	mac := goos == "darwin"

	switch req.Action {
	case "type":
		text, err := typedText(req)
		if err != nil {
			return nil, err
		}
		if mac {
			return osascript(keystroke(text, nil)), nil
		}
		return []string{"xdotool", "type", "--", text}, nil

	case "keystroke", "shortcut":
		var p KeyParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, fmt.Errorf("parse params: %w", err)
		}
		if p.Key == "" {
			return nil, errors.New("key is required")
		}
		if mac {
			return osascript(keystroke(p.Key, p.Modifiers)), nil
		}
		return []string{"xdotool", "key", xdotoolCombo(p.Key, p.Modifiers)}, nil
	}
	return nil, fmt.Errorf("unknown action: %s", req.Action)
}

func typedText(req Request) (string, error) {
	var p TypeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return "", fmt.Errorf("parse params: %w", err)
		}
	}
	if p.Text != "" {
		return p.Text, nil
	}
	if req.Label == "" {
		return "", errNoText
	}
	if p.NoSeparator {
		return req.Label, nil
	}
	return req.Label + " ", nil
}

func osascript(script string) []string {
	return []string{"osascript", "-e", script}
}

// keystroke builds a System Events keystroke line. Unknown modifiers are
// ignored.
func keystroke(text string, modifiers []string) string {
	line := fmt.Sprintf(`tell application "System Events" to keystroke "%s"`, escapeAppleScript(text))
	var mods []string
	for _, m := range modifiers {
		if am, ok := appleModifiers[strings.ToLower(m)]; ok {
			mods = append(mods, am)
		}
	}
	if len(mods) == 0 {
		return line
	}
	return line + " using {" + strings.Join(mods, ", ") + "}"
}

// xdotoolCombo builds a key combination such as "ctrl+shift+a".
func xdotoolCombo(key string, modifiers []string) string {
	parts := make([]string, 0, len(modifiers)+1)
	for _, m := range modifiers {
		if name, ok := xdoModifiers[strings.ToLower(m)]; ok {
			parts = append(parts, name)
		}
	}
	return strings.Join(append(parts, key), "+")
}

// escapeAppleScript quotes text for an AppleScript string literal.
func escapeAppleScript(text string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(text)
}

func respond(err error) {
	resp := Response{Success: err == nil}
	if err != nil {
		resp.Error = err.Error()
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

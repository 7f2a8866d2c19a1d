// Package main provides a speech plugin. It reads recognized labels aloud
// with the platform text-to-speech command (say on macOS, espeak elsewhere).
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
)

// Request represents the input from the plugin executor.
type Request struct {
	Action     string          `json:"action"`
	Label      string          `json:"label"`
	Confidence float32         `json:"confidence"`
	Config     json.RawMessage `json:"config"`
	Params     json.RawMessage `json:"params"`
}

// Response represents the output to the plugin executor.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// SpeechConfig is the per-action configuration stored with the binding.
type SpeechConfig struct {
	Voice string `json:"voice"`
	Rate  int    `json:"rate"` // words per minute
}

// SayParams overrides the spoken text.
type SayParams struct {
	Text string `json:"text"`
}

// actionHandler defines a function type for handling specific actions.
type actionHandler func(req Request, cfg SpeechConfig) error

// actionHandlers maps action names to their handler functions.
var actionHandlers = map[string]actionHandler{
	"say":  say,
	"beep": beep,
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
		writeErrorResponse(fmt.Sprintf("failed to decode request: %v", err))
		return
	}

	handler, ok := actionHandlers[req.Action]
	if !ok {
		writeErrorResponse(fmt.Sprintf("unknown action: %s", req.Action))
		return
	}

	var cfg SpeechConfig
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &cfg); err != nil {
			writeErrorResponse(fmt.Sprintf("invalid config: %v", err))
			return
		}
	}

	if err := handler(req, cfg); err != nil {
		writeErrorResponse(fmt.Sprintf("action %s failed: %v", req.Action, err))
		return
	}

	writeSuccessResponse()
}

// say speaks params.text, or the recognized label when no text is given.
func say(req Request, cfg SpeechConfig) error {
	text := req.Label
	if len(req.Params) > 0 {
		var p SayParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return fmt.Errorf("failed to parse params: %w", err)
		}
		if p.Text != "" {
			text = p.Text
		}
	}
	if text == "" {
		return errors.New("nothing to say")
	}

	name, args := speechCommand(cfg)
	return run(name, append(args, text)...)
}

// speechCommand builds the platform speech command without the text argument.
func speechCommand(cfg SpeechConfig) (string, []string) {
	if runtime.GOOS == "darwin" {
		var args []string
		if cfg.Voice != "" {
			args = append(args, "-v", cfg.Voice)
		}
		if cfg.Rate > 0 {
			args = append(args, "-r", strconv.Itoa(cfg.Rate))
		}
		return "say", args
	}

	var args []string
	if cfg.Voice != "" {
		args = append(args, "-v", cfg.Voice)
	}
	if cfg.Rate > 0 {
		args = append(args, "-s", strconv.Itoa(cfg.Rate))
	}
	return "espeak", args
}

const bellSound = "/usr/share/sounds/freedesktop/stereo/bell.oga"

// beep plays a short confirmation sound.
func beep(Request, SpeechConfig) error {
	if runtime.GOOS == "darwin" {
		return run("osascript", "-e", "beep")
	}
	return run("paplay", bellSound)
}

// writeErrorResponse writes an error response to stdout.
func writeErrorResponse(errMsg string) {
	resp := Response{
		Success: false,
		Error:   errMsg,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// writeSuccessResponse writes a success response to stdout.
func writeSuccessResponse() {
	resp := Response{
		Success: true,
	}
	json.NewEncoder(os.Stdout).Encode(resp)
}

// run executes a command and returns any error with its output.
func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%w: %s", err, string(output))
	}
	return nil
}

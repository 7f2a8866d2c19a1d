package detector

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte{0xff, 0xd8, 0x01, 0x02, 0xff, 0xd9}

	if err := writeFrame(&buf, payload); err != nil {
		t.Fatalf("writeFrame() error = %v", err)
	}

	out := buf.Bytes()
	if n := binary.BigEndian.Uint32(out[:4]); n != uint32(len(payload)) {
		t.Errorf("header length = %d, want %d", n, len(payload))
	}
	if !bytes.Equal(out[4:], payload) {
		t.Errorf("payload = %x", out[4:])
	}
}

func TestReadHands(t *testing.T) {
	point := `{"x":0.5,"y":0.5,"z":0}`
	full := "[" + strings.TrimSuffix(strings.Repeat(point+",", NumLandmarks), ",") + "]"

	tests := []struct {
		name      string
		reply     string
		wantHands int
		wantErr   error
	}{
		{"no hands", `{"hands":[]}` + "\n", 0, nil},
		{"one hand", `{"hands":[{"points":` + full + `,"handedness":"Right","score":0.9}]}` + "\n", 1, nil},
		{"not json", "ready\n", 0, ErrServiceReply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hands, err := readHands(bufio.NewReader(strings.NewReader(tt.reply)))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("readHands() error = %v", err)
			}
			if len(hands) != tt.wantHands {
				t.Errorf("got %d hands, want %d", len(hands), tt.wantHands)
			}
		})
	}

	t.Run("service error", func(t *testing.T) {
		_, err := readHands(bufio.NewReader(strings.NewReader(`{"error":"bad jpeg"}` + "\n")))
		if err == nil || !strings.Contains(err.Error(), "bad jpeg") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("eof", func(t *testing.T) {
		if _, err := readHands(bufio.NewReader(strings.NewReader(""))); err == nil {
			t.Error("expected error on closed stream")
		}
	})
}

func TestNewMediaPipeDetector(t *testing.T) {
	script := filepath.Join(t.TempDir(), mediaPipeScript)
	if err := os.WriteFile(script, []byte("# stub\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.ScriptPath = script
	cfg.IdleShutdown = 0

	d, err := NewMediaPipeDetector(cfg, nil)
	if err != nil {
		t.Fatalf("NewMediaPipeDetector() error = %v", err)
	}
	if d.config.IdleShutdown != DefaultConfig().IdleShutdown {
		t.Errorf("IdleShutdown = %v, want default", d.config.IdleShutdown)
	}

	hands, err := d.Detect(nil)
	if err != nil || hands != nil {
		t.Errorf("Detect(nil) = %v, %v", hands, err)
	}
	if d.svc != nil {
		t.Error("service started for an empty frame")
	}
	if err := d.Close(); err != nil {
		t.Errorf("Close() before start = %v", err)
	}
}

func TestFirstExisting(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "python")
	if err := os.WriteFile(present, nil, 0o755); err != nil {
		t.Fatal(err)
	}

	if got := firstExisting([]string{filepath.Join(dir, "missing"), present}); got != present {
		t.Errorf("firstExisting() = %q, want %q", got, present)
	}
	if got := firstExisting([]string{filepath.Join(dir, "missing")}); got != "" {
		t.Errorf("firstExisting() = %q, want empty", got)
	}
}

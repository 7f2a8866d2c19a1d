package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const mediaPipeScript = "mediapipe_service.py"

// ErrServiceReply is returned when the landmark service answers with
// something other than a JSON hands line.
var ErrServiceReply = errors.New("malformed landmark service reply")

// MediaPipeDetector implements Detector by piping frames through a Python
// MediaPipe process. The process starts on the first Detect and exits after
// Config.IdleShutdown without frames.
type MediaPipeDetector struct {
	config Config
	script string
	logger *slog.Logger

	mu   sync.Mutex
	svc  *landmarkService
	idle *time.Timer
}

// NewMediaPipeDetector locates the service script. It does not start Python.
func NewMediaPipeDetector(config Config, logger *slog.Logger) (*MediaPipeDetector, error) {
	if logger == nil {
		logger = slog.Default()
	}

	script := config.ScriptPath
	if script == "" {
		script = firstExisting(scriptCandidates())
	}
	if script == "" {
		return nil, fmt.Errorf("%s not found", mediaPipeScript)
	}
	if config.IdleShutdown <= 0 {
		config.IdleShutdown = DefaultConfig().IdleShutdown
	}

	return &MediaPipeDetector{
		config: config,
		script: script,
		logger: logger.With("component", "mediapipe"),
	}, nil
}

// Detect sends one frame to the service and returns the hands it reports.
// Hands without exactly 21 landmarks are dropped.
func (d *MediaPipeDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	if frame == nil || frame.Empty() {
		return nil, nil
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.svc == nil {
		svc, err := startLandmarkService(d.config, d.script)
		if err != nil {
			return nil, err
		}
		d.svc = svc
		d.logger.Info("mediapipe service started", "python", svc.python, "script", d.script)
	}

	if err := writeFrame(d.svc.stdin, buf.GetBytes()); err != nil {
		d.stopLocked()
		return nil, err
	}
	raw, err := readHands(d.svc.stdout)
	if err != nil {
		d.stopLocked()
		return nil, err
	}
	d.armIdle()

	hands := make([]HandLandmarks, 0, len(raw))
	for _, h := range raw {
		hand, err := h.toHandLandmarks()
		if err != nil {
			d.logger.Warn("dropping hand", "error", err)
			continue
		}
		hands = append(hands, hand)
	}
	return hands, nil
}

// Close stops the Python process if it is running.
func (d *MediaPipeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopLocked()
}

func (d *MediaPipeDetector) stopLocked() error {
	if d.idle != nil {
		d.idle.Stop()
		d.idle = nil
	}
	if d.svc == nil {
		return nil
	}
	err := d.svc.stop()
	d.svc = nil
	d.logger.Info("mediapipe service stopped")
	return err
}

func (d *MediaPipeDetector) armIdle() {
	if d.idle != nil {
		d.idle.Reset(d.config.IdleShutdown)
		return
	}
	d.idle = time.AfterFunc(d.config.IdleShutdown, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.idle = nil
		if err := d.stopLocked(); err != nil {
			d.logger.Warn("idle shutdown", "error", err)
		}
	})
}

// landmarkService is one running Python process.
type landmarkService struct {
	python string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

func startLandmarkService(cfg Config, script string) (*landmarkService, error) {
	python := firstExisting(venvCandidates())
	if python == "" {
		python = "python3"
	}

	cmd := exec.Command(python, script,
		"--max-hands", strconv.Itoa(cfg.MaxHands),
		"--min-detection-confidence", strconv.FormatFloat(cfg.MinConfidence, 'f', -1, 64),
		"--min-tracking-confidence", strconv.FormatFloat(cfg.MinTrackingConf, 'f', -1, 64),
	)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start mediapipe service: %w", err)
	}

	return &landmarkService{
		python: python,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}, nil
}

// stop closes stdin, which the service treats as end of input, and waits.
func (s *landmarkService) stop() error {
	s.stdin.Close()
	return s.cmd.Wait()
}

// writeFrame frames a JPEG as a 4-byte big-endian length followed by the bytes.
func writeFrame(w io.Writer, jpeg []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(jpeg)))
	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}
	if _, err := w.Write(jpeg); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// readHands reads one JSON reply line.
func readHands(r *bufio.Reader) ([]jsonHand, error) {
	line, err := r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	var reply struct {
		Hands []jsonHand `json:"hands"`
		Error string     `json:"error"`
	}
	if err := json.Unmarshal(line, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServiceReply, err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("landmark service: %s", reply.Error)
	}
	return reply.Hands, nil
}

func executableDir() string {
	p, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(p)
}

func scriptCandidates() []string {
	return []string{
		filepath.Join("scripts", mediaPipeScript),
		filepath.Join("..", "scripts", mediaPipeScript),
		filepath.Join(executableDir(), "scripts", mediaPipeScript),
		filepath.Join(os.Getenv("HOME"), ".handsign", "scripts", mediaPipeScript),
	}
}

func venvCandidates() []string {
	return []string{
		filepath.Join("venv", "bin", "python"),
		filepath.Join("..", "venv", "bin", "python"),
		filepath.Join(executableDir(), "venv", "bin", "python"),
		filepath.Join(os.Getenv("HOME"), ".handsign", "venv", "bin", "python"),
	}
}

func firstExisting(candidates []string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}

// jsonHand is one hand in a service reply.
type jsonHand struct {
	Points     []Point3D `json:"points"`
	Handedness string    `json:"handedness"`
	Score      float64   `json:"score"`
}

func (h jsonHand) toHandLandmarks() (HandLandmarks, error) {
	return FromPoints(h.Points, h.Handedness, h.Score)
}

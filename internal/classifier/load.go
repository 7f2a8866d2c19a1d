package classifier

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ayusman/handsign/internal/labels"
)

// modelData holds model bytes that are either memory-mapped or read into memory.
type modelData struct {
	Bytes   []byte
	Mapped  bool
	release func() error
}

// Release unmaps or drops the bytes. Safe on a zero modelData.
func (d *modelData) Release() error {
	if d == nil || d.release == nil {
		return nil
	}
	err := d.release()
	d.release = nil
	d.Bytes = nil
	return err
}

// loadModelData maps the model file read-only, falling back to reading it
// whole when mapping is not possible (empty file, unsupported filesystem or
// platform).
func loadModelData(path string, logger *slog.Logger) (*modelData, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no model path configured", ErrUnavailable)
	}

	data, err := mapFile(path)
	if err == nil {
		return data, nil
	}
	logger.Warn("memory-mapping model failed, reading into memory", "path", path, "error", err)

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return &modelData{
		Bytes:   b,
		release: func() error { return nil },
	}, nil
}

// Config describes the model and label assets for Load.
type Config struct {
	ONNX       ONNXConfig
	LabelsPath string
	Timeout    time.Duration
}

// Load builds an engine from the label file and ONNX model. It never fails:
// when an asset is missing or invalid the returned engine is unavailable and
// reports why through Err.
func Load(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	names, err := labels.LoadFile(cfg.LabelsPath)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		logger.Error("labels not loaded, classifier disabled", "path", cfg.LabelsPath, "error", err)
		return Unavailable(err, logger)
	}

	model, err := OpenONNX(cfg.ONNX, logger)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrUnavailable, err)
		logger.Error("model not loaded, classifier disabled", "path", cfg.ONNX.ModelPath, "error", err)
		return Unavailable(err, logger)
	}

	logger.Info("classifier ready", "labels", len(names))
	return New(model, labels.NewCodec(names), Options{Logger: logger, Timeout: cfg.Timeout})
}

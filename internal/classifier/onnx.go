package classifier

import (
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXConfig locates an ONNX model and names its tensors.
type ONNXConfig struct {
	ModelPath string

	// SharedLibraryPath points at libonnxruntime. Empty uses the platform default.
	SharedLibraryPath string

	InputName  string
	OutputName string
}

// destroyEnvironment is swapped in tests.
var destroyEnvironment = ort.DestroyEnvironment

var ortInit struct {
	sync.Mutex
	refs int
}

// acquireEnvironment initializes the process-wide onnxruntime environment on
// first use. Every successful call must be paired with releaseEnvironment.
func acquireEnvironment(libPath string) error {
	ortInit.Lock()
	defer ortInit.Unlock()

	if ortInit.refs == 0 {
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}
	ortInit.refs++
	return nil
}

func releaseEnvironment() error {
	ortInit.Lock()
	defer ortInit.Unlock()

	ortInit.refs--
	if ortInit.refs > 0 {
		return nil
	}
	ortInit.refs = 0
	return destroyEnvironment()
}

// releaseEnvironmentLogged releases on a failed open, where the open error
// is the one returned.
func releaseEnvironmentLogged(logger *slog.Logger) {
	if err := releaseEnvironment(); err != nil {
		logger.Warn("destroy onnxruntime environment", "error", err)
	}
}

// ONNXModel runs a dynamic-shape onnxruntime session. Input tensors are built
// per call so the same type serves dense [1,63] and sequence [1,T,63] models.
type ONNXModel struct {
	session    *ort.DynamicAdvancedSession
	outputSize int64
	closeOnce  sync.Once
}

// OpenONNX loads the model file (memory-mapped when possible) and creates a session.
func OpenONNX(cfg ONNXConfig, logger *slog.Logger) (*ONNXModel, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.InputName == "" {
		cfg.InputName = "input"
	}
	if cfg.OutputName == "" {
		cfg.OutputName = "output"
	}

	data, err := loadModelData(cfg.ModelPath, logger)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := data.Release(); err != nil {
			logger.Warn("release model data", "error", err)
		}
	}()

	if err := acquireEnvironment(cfg.SharedLibraryPath); err != nil {
		return nil, err
	}

	outputSize, err := outputSizeOf(data.Bytes, cfg.OutputName)
	if err != nil {
		releaseEnvironmentLogged(logger)
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSessionWithONNXData(data.Bytes,
		[]string{cfg.InputName}, []string{cfg.OutputName}, nil)
	if err != nil {
		releaseEnvironmentLogged(logger)
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	logger.Info("model loaded",
		"path", cfg.ModelPath,
		"mapped", data.Mapped,
		"bytes", len(data.Bytes),
		"outputs", outputSize,
	)

	return &ONNXModel{
		session:    session,
		outputSize: outputSize,
	}, nil
}

// outputSizeOf reads the declared output dimensions. Dynamic (negative)
// dimensions are treated as a batch of one.
func outputSizeOf(data []byte, name string) (int64, error) {
	_, outputs, err := ort.GetInputOutputInfoWithONNXData(data)
	if err != nil {
		return 0, fmt.Errorf("read model outputs: %w", err)
	}

	for _, info := range outputs {
		if info.Name != name {
			continue
		}
		size := int64(1)
		for _, d := range info.Dimensions {
			if d > 0 {
				size *= d
			}
		}
		return size, nil
	}
	return 0, fmt.Errorf("model has no output named %q", name)
}

// Run executes the session on one input tensor.
func (m *ONNXModel) Run(input []float32, shape []int64) ([]float32, error) {
	in, err := ort.NewTensor(ort.NewShape(shape...), input)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, m.outputSize))
	if err != nil {
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	defer out.Destroy()

	if err := m.session.Run([]ort.ArbitraryTensor{in}, []ort.ArbitraryTensor{out}); err != nil {
		return nil, err
	}

	probs := make([]float32, m.outputSize)
	copy(probs, out.GetData())
	return probs, nil
}

// Close destroys the session and, with the last model, the environment.
func (m *ONNXModel) Close() error {
	var err error
	m.closeOnce.Do(func() {
		if destroyErr := m.session.Destroy(); destroyErr != nil {
			err = fmt.Errorf("destroy session: %w", destroyErr)
		}
		if envErr := releaseEnvironment(); envErr != nil && err == nil {
			err = fmt.Errorf("destroy environment: %w", envErr)
		}
	})
	return err
}

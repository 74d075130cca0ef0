//go:build onnx

package wake

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortOnce    sync.Once
	ortInitErr error
)

// ensureOrtEnv initializes the ONNX runtime once per process.
func ensureOrtEnv(libPath string) error {
	ortOnce.Do(func() {
		if libPath == "" {
			libPath = os.Getenv("ONNXRUNTIME_LIB")
		}
		if libPath != "" {
			ort.SetSharedLibraryPath(libPath)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	return ortInitErr
}

// ONNXSpotter scores a sliding window of audio with a keyword model.
type ONNXSpotter struct {
	cfg     SpotterConfig
	window  *window
	session *ort.Session[float32]
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func NewONNXSpotter(cfg SpotterConfig) (*ONNXSpotter, error) {
	cfg = cfg.withDefaults()
	if cfg.ModelPath == "" {
		return nil, ErrNoModel
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("keyword model: %w", err)
	}
	if err := ensureOrtEnv(cfg.LibraryPath); err != nil {
		return nil, fmt.Errorf("initializing onnx runtime: %w", err)
	}

	size := cfg.windowSamples()
	input, err := ort.NewTensor(ort.NewShape(1, int64(size)), make([]float32, size))
	if err != nil {
		return nil, fmt.Errorf("creating input tensor: %w", err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 1))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("creating output tensor: %w", err)
	}

	session, err := ort.NewSession[float32](
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]*ort.Tensor[float32]{input},
		[]*ort.Tensor[float32]{output},
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("creating onnx session: %w", err)
	}

	return &ONNXSpotter{
		cfg:     cfg,
		window:  newWindow(size, cfg.hopSamples()),
		session: session,
		input:   input,
		output:  output,
	}, nil
}

func (s *ONNXSpotter) Detect(pcm []int16) (bool, error) {
	if !s.window.push(pcm, s.cfg.Channels) {
		return false, nil
	}

	copy(s.input.GetData(), s.window.data)
	if err := s.session.Run(); err != nil {
		return false, fmt.Errorf("running keyword model: %w", err)
	}

	score := s.output.GetData()[0]
	if score < s.cfg.Threshold {
		return false, nil
	}
	s.window.reset()
	return true, nil
}

func (s *ONNXSpotter) Close() error {
	var err error
	if s.session != nil {
		err = s.session.Destroy()
	}
	if s.input != nil {
		s.input.Destroy()
	}
	if s.output != nil {
		s.output.Destroy()
	}
	return err
}

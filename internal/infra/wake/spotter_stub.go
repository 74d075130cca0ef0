//go:build !onnx

package wake

// ONNXSpotter is unavailable without the onnx build tag.
type ONNXSpotter struct{}

func NewONNXSpotter(cfg SpotterConfig) (*ONNXSpotter, error) {
	return nil, ErrSpotterUnavailable
}

func (s *ONNXSpotter) Detect(pcm []int16) (bool, error) { return false, nil }
func (s *ONNXSpotter) Close() error                     { return nil }

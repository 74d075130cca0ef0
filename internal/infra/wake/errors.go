package wake

import "errors"

var (
	ErrSpotterUnavailable = errors.New("keyword spotter not built in, rebuild with -tags onnx")
	ErrNoModel            = errors.New("no keyword model configured")
)

package detector

import (
	"go.uber.org/zap"

	"github.com/edge-ml/go-detect/inference"
)

// Option configures a Detector before its engine is opened.
type Option func(*Detector)

// WithEngine runs the detector on e instead of opening the default TFLite
// engine. The detector takes ownership of e and releases it on Close.
func WithEngine(e inference.Engine) Option {
	return func(d *Detector) { d.engine = e }
}

// WithLogger routes the detector's logs to log.
func WithLogger(log *zap.Logger) Option {
	return func(d *Detector) {
		if log != nil {
			d.log = log
		}
	}
}

// WithAccelerator toggles the XNNPack delegate on the default engine.
func WithAccelerator(enabled bool) Option {
	return func(d *Detector) { d.accelerator = enabled }
}

// WithThreads caps the default engine's CPU thread count.
func WithThreads(n int) Option {
	return func(d *Detector) { d.threads = n }
}

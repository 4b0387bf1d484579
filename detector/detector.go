// Package detector - the end-to-end detection facade: load a model, feed it
// frames, get back detections in the frame's own coordinate space.
package detector

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/edge-ml/go-detect/images"
	"github.com/edge-ml/go-detect/inference"
	"github.com/edge-ml/go-detect/inference/tflite"
	"github.com/edge-ml/go-detect/postprocess"
)

// Params are the per-call decoding thresholds.
type Params struct {
	// BoxThreshold is the minimum confidence a candidate needs to enter
	// suppression. Scores below it are skipped outright.
	BoxThreshold float32
	// NMSThreshold is the IoU above which the weaker of two same-class
	// boxes is suppressed.
	NMSThreshold float32
}

// DefaultParams returns the stock thresholds: 0.5 confidence, 0.45 IoU.
func DefaultParams() Params {
	return Params{BoxThreshold: 0.5, NMSThreshold: 0.45}
}

// Detector runs frames through an inference engine and decodes the output
// tensors into detections. It is not safe for concurrent use; callers that
// share one across goroutines must serialize Detect themselves.
type Detector struct {
	engine    inference.Engine
	log       *zap.Logger
	geometry  inference.Geometry
	quantized bool

	accelerator bool
	threads     int
}

// New loads the model at modelPath on the default TFLite engine and resolves
// its input geometry once. WithEngine substitutes any other backend, in which
// case modelPath is ignored.
//
// Arguments:
//   - modelPath: Path to a .tflite model file.
//   - opts: Engine, logging, and threading overrides.
//
// Returns:
//   - *Detector: A ready detector. The caller owns Close.
//   - error: A ConfigurationError when the model cannot be loaded or its
//     input tensor does not describe a 3-channel image.
func New(modelPath string, opts ...Option) (*Detector, error) {
	d := &Detector{
		log:         zap.NewNop(),
		accelerator: true,
		threads:     4,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.engine == nil {
		engine, err := tflite.Open(modelPath, tflite.Options{
			Accelerator: d.accelerator,
			Threads:     d.threads,
			Logger:      d.log,
		})
		if err != nil {
			return nil, &ConfigurationError{Err: err}
		}
		d.engine = engine
	}

	input, err := d.engine.InputTensor(0)
	if err != nil {
		d.Close()
		return nil, &ConfigurationError{Err: err}
	}
	geometry, err := inference.ImageDims(input.Dims())
	if err != nil {
		d.Close()
		return nil, &ConfigurationError{Err: err}
	}
	if geometry.Channels != 3 {
		d.Close()
		return nil, &ConfigurationError{Err: errors.Errorf(
			"model wants %d input channels, the pipeline feeds 3", geometry.Channels)}
	}

	d.geometry = geometry
	d.quantized = input.Kind() == inference.KindUInt8
	d.log.Info("model ready",
		zap.Int("width", geometry.Width),
		zap.Int("height", geometry.Height),
		zap.Bool("quantized", d.quantized))
	return d, nil
}

// Detect runs one frame through the model and returns the surviving
// detections, strongest first.
//
// The frame must be packed 3-channel. BGR frames are converted to RGB. When
// the frame's size differs from the model input, the frame is letterboxed
// onto a square canvas and the raw boxes are projected back, so results are
// always in the frame's own pixel coordinates.
func (d *Detector) Detect(frame *images.Frame, p Params) ([]postprocess.Detection, error) {
	if err := frame.Validate(); err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	if frame.Channels != 3 {
		return nil, &ConfigurationError{Err: errors.Errorf(
			"frame has %d channels, want 3", frame.Channels)}
	}
	if d.engine == nil {
		return nil, &ConfigurationError{Err: errors.New("detector is closed")}
	}

	input, err := d.engine.InputTensor(0)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	prepStart := time.Now()
	img := frame.RGBA()
	placement := images.IdentityPlacement(frame.Width, frame.Height)
	if frame.Width != d.geometry.Width || frame.Height != d.geometry.Height {
		if d.geometry.Width != d.geometry.Height {
			return nil, &ConfigurationError{Err: errors.Errorf(
				"frame is %dx%d but the model takes exactly %dx%d",
				frame.Width, frame.Height, d.geometry.Width, d.geometry.Height)}
		}
		img, placement = images.Letterbox(img, d.geometry.Width)
	}
	if err := fillInput(input, img); err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	prep := time.Since(prepStart)

	inferStart := time.Now()
	if err := d.engine.Invoke(); err != nil {
		return nil, &InferenceError{Err: err}
	}
	infer := time.Since(inferStart)

	postStart := time.Now()
	boxes, err := d.engine.OutputTensor(0)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	scores, err := d.engine.OutputTensor(1)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	classes, err := d.engine.OutputTensor(2)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	candidates, err := postprocess.BuildCandidates(boxes, scores, classes, p.BoxThreshold, placement)
	if err != nil {
		return nil, &ConfigurationError{Err: err}
	}
	detections := postprocess.NMS(candidates, p.NMSThreshold)
	post := time.Since(postStart)

	d.log.Debug("frame processed",
		zap.Duration("preprocess", prep),
		zap.Duration("inference", infer),
		zap.Duration("postprocess", post),
		zap.Int("candidates", len(candidates)),
		zap.Int("detections", len(detections)))
	return detections, nil
}

// IsQuantized reports whether the model takes uint8 input.
func (d *Detector) IsQuantized() bool { return d.quantized }

// InputShape returns the model's input geometry as (height, width, channels).
func (d *Detector) InputShape() (height, width, channels int) {
	return d.geometry.Height, d.geometry.Width, d.geometry.Channels
}

// Close releases the engine. Safe to call more than once.
func (d *Detector) Close() error {
	if d.engine == nil {
		return nil
	}
	err := d.engine.Close()
	d.engine = nil
	return err
}

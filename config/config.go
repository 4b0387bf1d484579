// Package config - file-backed settings for the detection commands.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/edge-ml/go-detect/detector"
)

// Config carries everything the commands need to stand up a detector.
type Config struct {
	// Model is the path to the model file. A .onnx extension selects the
	// ONNX Runtime engine; anything else is loaded as TFLite.
	Model string `yaml:"model"`
	// Labels optionally names a label file, one class name per line.
	// When empty the built-in COCO set is used.
	Labels string `yaml:"labels"`
	// Accelerator enables the XNNPack delegate.
	Accelerator bool `yaml:"accelerator"`
	// Threads caps the engine's CPU thread count.
	Threads int `yaml:"threads"`
	// BoxThreshold is the minimum confidence a candidate needs to keep.
	BoxThreshold float32 `yaml:"box_threshold"`
	// NMSThreshold is the suppression IoU.
	NMSThreshold float32 `yaml:"nms_threshold"`

	Server ServerConfig `yaml:"server"`
	ONNX   ONNXConfig   `yaml:"onnx"`
}

// ServerConfig defines the HTTP server settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// Detectors is the size of the detector pool. Each entry owns its own
	// interpreter, so concurrent requests never share one.
	Detectors int `yaml:"detectors"`
}

// ONNXConfig is the session geometry an ONNX model needs spelled out: graphs
// do not carry the TFLite-style output convention, so names and shapes come
// from configuration.
type ONNXConfig struct {
	// Library overrides the onnxruntime shared library location.
	Library string `yaml:"library"`
	// Input is the graph input name, e.g. "images".
	Input string `yaml:"input"`
	// InputShape is the input tensor shape, e.g. [1, 640, 640, 3].
	InputShape []int64 `yaml:"input_shape"`
	// Outputs names the graph outputs in boxes/scores/classes order.
	Outputs []string `yaml:"outputs"`
	// OutputShapes are the matching output shapes.
	OutputShapes [][]int64 `yaml:"output_shapes"`
	// Provider selects the execution provider: cpu, cuda, coreml, openvino.
	// Empty means cpu.
	Provider string `yaml:"provider"`
}

// UsesONNX reports whether the configured model runs on the ONNX engine.
func (c Config) UsesONNX() bool {
	return strings.EqualFold(filepath.Ext(c.Model), ".onnx")
}

// Default returns the settings used when no file overrides them.
func Default() Config {
	return Config{
		Accelerator:  true,
		Threads:      4,
		BoxThreshold: 0.5,
		NMSThreshold: 0.45,
		Server: ServerConfig{
			Addr:      ":8080",
			Detectors: 2,
		},
	}
}

// Load reads the YAML file at path and overlays it on Default. Keys the file
// omits keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Model == "" {
		return errors.New("config: model path is required")
	}
	if c.BoxThreshold < 0 || c.BoxThreshold > 1 {
		return errors.Errorf("config: box_threshold %v is outside [0, 1]", c.BoxThreshold)
	}
	if c.NMSThreshold < 0 || c.NMSThreshold > 1 {
		return errors.Errorf("config: nms_threshold %v is outside [0, 1]", c.NMSThreshold)
	}
	if c.Threads < 0 {
		return errors.Errorf("config: threads %d is negative", c.Threads)
	}
	if c.Server.Detectors < 1 {
		return errors.Errorf("config: server.detectors is %d, need at least one", c.Server.Detectors)
	}
	if c.UsesONNX() {
		if c.ONNX.Input == "" || len(c.ONNX.InputShape) == 0 {
			return errors.New("config: onnx.input and onnx.input_shape are required for .onnx models")
		}
		if len(c.ONNX.Outputs) != 3 || len(c.ONNX.OutputShapes) != 3 {
			return errors.New("config: onnx.outputs and onnx.output_shapes must list the three detection heads")
		}
	}
	return nil
}

// Params returns the configured thresholds as detector parameters.
func (c Config) Params() detector.Params {
	return detector.Params{BoxThreshold: c.BoxThreshold, NMSThreshold: c.NMSThreshold}
}

// Package ort - execution provider selection.
//
// See:
// https://onnxruntime.ai/docs/execution-providers/
package ort

import (
	"strconv"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Provider names the hardware path an ONNX Runtime session executes on.
type Provider string

const (
	// ProviderCPU is the default CPU execution path.
	ProviderCPU Provider = "cpu"
	// ProviderCUDA uses NVIDIA CUDA for inference.
	ProviderCUDA Provider = "cuda"
	// ProviderCoreML uses Apple CoreML for macOS/iOS acceleration.
	ProviderCoreML Provider = "coreml"
	// ProviderOpenVINO uses OpenVINO on Intel CPUs and GPUs.
	ProviderOpenVINO Provider = "openvino"
)

// CUDAOptions contains the CUDA provider arguments detection workloads use.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	// The device ID.
	DeviceID int
	// The size limit of the device memory arena in bytes. Zero keeps the
	// runtime default.
	GPUMemLimit int64
}

// OpenVINOOptions contains the OpenVINO provider arguments.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// DeviceType picks the target, e.g. "CPU" or "GPU".
	DeviceType string
	// NumOfThreads caps the provider's threads. Zero keeps the default.
	NumOfThreads int
}

// applyProvider appends the configured execution provider to the session
// options. The CPU provider is the runtime default and needs no appending.
func applyProvider(options *ort.SessionOptions, opts Options) error {
	switch opts.Provider {
	case "", ProviderCPU:
		return nil

	case ProviderCoreML:
		if err := options.AppendExecutionProviderCoreML(0); err != nil {
			return errors.Wrap(err, "enable CoreML")
		}

	case ProviderCUDA:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "create CUDA provider options")
		}
		defer cuda.Destroy()

		settings := map[string]string{
			"device_id": strconv.Itoa(opts.CUDA.DeviceID),
		}
		if opts.CUDA.GPUMemLimit > 0 {
			settings["gpu_mem_limit"] = strconv.FormatInt(opts.CUDA.GPUMemLimit, 10)
		}
		if err := cuda.Update(settings); err != nil {
			return errors.Wrap(err, "set CUDA provider options")
		}
		if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
			return errors.Wrap(err, "enable CUDA")
		}

	case ProviderOpenVINO:
		settings := map[string]string{}
		if opts.OpenVINO.DeviceType != "" {
			settings["device_type"] = opts.OpenVINO.DeviceType
		}
		if opts.OpenVINO.NumOfThreads > 0 {
			settings["num_of_threads"] = strconv.Itoa(opts.OpenVINO.NumOfThreads)
		}
		if err := options.AppendExecutionProviderOpenVINO(settings); err != nil {
			return errors.Wrap(err, "enable OpenVINO")
		}

	default:
		return errors.Errorf("unknown execution provider %q", opts.Provider)
	}
	return nil
}

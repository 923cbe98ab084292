package encoder

import (
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

// sessionOptions builds SessionOptions for the requested execution provider.
// Returns nil for CPU or when options cannot be constructed; session creation
// falls back to the default CPU provider in that case.
func sessionOptions(ep string, deviceID int) *ort.SessionOptions {
	ep = strings.ToLower(strings.TrimSpace(ep))
	if ep == "" || ep == "cpu" {
		return nil
	}
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil
	}
	_ = opts.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableAll)
	_ = opts.SetIntraOpNumThreads(0)
	_ = opts.SetInterOpNumThreads(0)
	switch ep {
	case "cuda":
		if cu, err := ort.NewCUDAProviderOptions(); err == nil {
			_ = opts.AppendExecutionProviderCUDA(cu)
			_ = cu.Destroy()
		}
	case "tensorrt":
		if trt, err := ort.NewTensorRTProviderOptions(); err == nil {
			_ = opts.AppendExecutionProviderTensorRT(trt)
			_ = trt.Destroy()
		}
	case "coreml":
		_ = opts.AppendExecutionProviderCoreMLV2(map[string]string{})
	case "dml":
		_ = opts.AppendExecutionProviderDirectML(deviceID)
	}
	return opts
}

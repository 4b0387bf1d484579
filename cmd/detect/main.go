// Command detect runs an object detection model over image files and prints
// one JSON line per image.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"

	"github.com/edge-ml/go-detect/config"
	"github.com/edge-ml/go-detect/detector"
	"github.com/edge-ml/go-detect/images"
	"github.com/edge-ml/go-detect/inference/ort"
	"github.com/edge-ml/go-detect/labels"
	"github.com/edge-ml/go-detect/postprocess"
	"github.com/edge-ml/go-detect/util"
)

type detectionJSON struct {
	postprocess.Detection
	Label string `json:"label"`
}

type imageResult struct {
	Path       string          `json:"path"`
	Count      int             `json:"count"`
	Detections []detectionJSON `json:"detections"`
}

func main() {
	var (
		configPath   string
		modelPath    string
		labelsPath   string
		imagePath    string
		dirPath      string
		outPath      string
		boxThreshold float64
		nmsThreshold float64
		accelerator  bool
		threads      int
		debug        bool
	)
	def := config.Default()
	flag.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flag.StringVar(&modelPath, "model", "", "Path to a .tflite model file")
	flag.StringVar(&labelsPath, "labels", "", "Path to a label file, one name per line")
	flag.StringVar(&imagePath, "image", "", "Path to a single image file")
	flag.StringVar(&dirPath, "dir", "", "Directory of image files to process in frame order")
	flag.StringVar(&outPath, "out", "", "Where to write annotated copies (file for -image, directory for -dir)")
	flag.Float64Var(&boxThreshold, "box-threshold", float64(def.BoxThreshold), "Minimum candidate confidence")
	flag.Float64Var(&nmsThreshold, "nms-threshold", float64(def.NMSThreshold), "Suppression IoU threshold")
	flag.BoolVar(&accelerator, "accelerator", def.Accelerator, "Use the XNNPack delegate")
	flag.IntVar(&threads, "threads", def.Threads, "Engine CPU threads")
	flag.BoolVar(&debug, "debug", false, "Log per-frame timings")
	flag.Parse()

	log := newLogger(debug)
	defer log.Sync()

	cfg := def
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			log.Fatal("load config", zap.Error(err))
		}
		cfg = loaded
	}
	// Explicit flags win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "model":
			cfg.Model = modelPath
		case "labels":
			cfg.Labels = labelsPath
		case "box-threshold":
			cfg.BoxThreshold = float32(boxThreshold)
		case "nms-threshold":
			cfg.NMSThreshold = float32(nmsThreshold)
		case "accelerator":
			cfg.Accelerator = accelerator
		case "threads":
			cfg.Threads = threads
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	if (imagePath == "") == (dirPath == "") {
		log.Fatal("exactly one of -image or -dir is required")
	}

	names := labels.COCO
	if cfg.Labels != "" {
		loaded, err := labels.Load(cfg.Labels)
		if err != nil {
			log.Fatal("load labels", zap.Error(err))
		}
		names = loaded
	}

	d, err := newDetector(cfg, log)
	if err != nil {
		log.Fatal("load model", zap.Error(err))
	}
	defer d.Close()

	files, err := collectInputs(imagePath, dirPath)
	if err != nil {
		log.Fatal("collect inputs", zap.Error(err))
	}
	if dirPath != "" && outPath != "" {
		if err := os.MkdirAll(outPath, 0o755); err != nil {
			log.Fatal("create output directory", zap.Error(err))
		}
	}

	start := time.Now()
	out := json.NewEncoder(os.Stdout)
	var total, failures int
	for _, file := range files {
		img, err := file.Decode()
		if err != nil {
			log.Error("decode image", zap.String("path", file.Path), zap.Error(err))
			failures++
			continue
		}

		frame := images.FrameFromImage(img, images.OrderRGB)
		dets, err := d.Detect(frame, cfg.Params())
		if err != nil {
			log.Error("detect", zap.String("path", file.Path), zap.Error(err))
			failures++
			continue
		}
		total += len(dets)

		result := imageResult{
			Path:       file.Path,
			Count:      len(dets),
			Detections: make([]detectionJSON, 0, len(dets)),
		}
		for _, det := range dets {
			result.Detections = append(result.Detections, detectionJSON{
				Detection: det,
				Label:     names.Name(det.Class),
			})
		}
		if err := out.Encode(result); err != nil {
			log.Fatal("write result", zap.Error(err))
		}

		if outPath != "" {
			target := outPath
			if dirPath != "" {
				target = filepath.Join(outPath, "processed_"+filepath.Base(file.Path))
			}
			if err := saveAnnotated(target, img, dets, names); err != nil {
				log.Error("save annotated image", zap.String("path", target), zap.Error(err))
				failures++
			}
		}
	}

	log.Info("done",
		zap.Int("images", len(files)),
		zap.Int("detections", total),
		zap.Int("failures", failures),
		zap.Duration("elapsed", time.Since(start)))
}

func newLogger(debug bool) *zap.Logger {
	if debug {
		log, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		return log
	}
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	log, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return log
}

// newDetector opens the engine the model file calls for. ONNX models run on
// onnxruntime with the session geometry from the config; everything else
// goes through the default TFLite path.
func newDetector(cfg config.Config, log *zap.Logger) (*detector.Detector, error) {
	if cfg.UsesONNX() {
		engine, err := ort.Open(cfg.Model, ort.Options{
			LibraryPath:  cfg.ONNX.Library,
			InputName:    cfg.ONNX.Input,
			InputShape:   cfg.ONNX.InputShape,
			OutputNames:  cfg.ONNX.Outputs,
			OutputShapes: cfg.ONNX.OutputShapes,
			Threads:      cfg.Threads,
			Provider:     ort.Provider(cfg.ONNX.Provider),
		})
		if err != nil {
			return nil, err
		}
		return detector.New(cfg.Model, detector.WithEngine(engine), detector.WithLogger(log))
	}
	return detector.New(cfg.Model,
		detector.WithLogger(log),
		detector.WithAccelerator(cfg.Accelerator),
		detector.WithThreads(cfg.Threads))
}

func collectInputs(imagePath, dirPath string) ([]util.ImageFile, error) {
	if dirPath != "" {
		return util.LoadDirectoryImageFiles(dirPath)
	}
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, err
	}
	return []util.ImageFile{{Path: imagePath, Data: data, Frame: -1}}, nil
}

func saveAnnotated(path string, img image.Image, dets []postprocess.Detection, names labels.Labels) error {
	anns := make([]images.Annotation, 0, len(dets))
	for _, det := range dets {
		anns = append(anns, images.Annotation{
			Box:   det.Box,
			Label: fmt.Sprintf("%s %.2f", names.Name(det.Class), det.Confidence),
		})
	}
	annotated := images.Annotate(img, anns)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return jpeg.Encode(f, annotated, &jpeg.Options{Quality: 90})
	case ".webp":
		return webp.Encode(f, annotated, &webp.Options{Quality: 90})
	default:
		return png.Encode(f, annotated)
	}
}

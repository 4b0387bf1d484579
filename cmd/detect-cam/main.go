// Command detect-cam runs the detector against a live camera feed or a video
// file and prints what it sees, frame by frame.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/edge-ml/go-detect/config"
	"github.com/edge-ml/go-detect/detector"
	"github.com/edge-ml/go-detect/images"
	"github.com/edge-ml/go-detect/labels"
)

func main() {
	var (
		source       string
		modelPath    string
		labelsPath   string
		show         bool
		boxThreshold float64
		nmsThreshold float64
		debug        bool
	)
	def := config.Default()
	flag.StringVar(&source, "source", "0", "Capture device ID or video file path")
	flag.StringVar(&modelPath, "model", "", "Path to a .tflite model file")
	flag.StringVar(&labelsPath, "labels", "", "Path to a label file, one name per line")
	flag.BoolVar(&show, "show", false, "Show an annotated preview window")
	flag.Float64Var(&boxThreshold, "box-threshold", float64(def.BoxThreshold), "Minimum candidate confidence")
	flag.Float64Var(&nmsThreshold, "nms-threshold", float64(def.NMSThreshold), "Suppression IoU threshold")
	flag.BoolVar(&debug, "debug", false, "Log per-frame timings")
	flag.Parse()

	log := newLogger(debug)
	defer log.Sync()

	if modelPath == "" {
		log.Fatal("-model is required")
	}

	names := labels.COCO
	if labelsPath != "" {
		loaded, err := labels.Load(labelsPath)
		if err != nil {
			log.Fatal("load labels", zap.Error(err))
		}
		names = loaded
	}

	d, err := detector.New(modelPath, detector.WithLogger(log))
	if err != nil {
		log.Fatal("load model", zap.Error(err))
	}
	defer d.Close()

	// open webcam or video file
	webcam, err := gocv.OpenVideoCapture(source)
	if err != nil {
		log.Fatal("open capture source", zap.String("source", source), zap.Error(err))
	}
	defer webcam.Close()

	// open display window
	var window *gocv.Window
	if show {
		window = gocv.NewWindow("detect-cam")
		defer window.Close()
	}

	// prepare image matrix
	img := gocv.NewMat()
	defer img.Close()

	// color for the rect and label of each detection
	green := color.RGBA{R: 0x32, G: 0xcd, B: 0x32}

	params := detector.Params{
		BoxThreshold: float32(boxThreshold),
		NMSThreshold: float32(nmsThreshold),
	}

	// FPS tracking variables
	fps := 0.0
	frameCount := 0
	lastTime := time.Now()

	log.Info("start reading", zap.String("source", source))
	for {
		if ok := webcam.Read(&img); !ok {
			log.Info("capture source closed", zap.String("source", source))
			return
		}
		if img.Empty() {
			continue
		}

		// Update FPS calculation every second.
		frameCount++
		if elapsed := time.Since(lastTime).Seconds(); elapsed >= 1.0 {
			fps = float64(frameCount) / elapsed
			frameCount = 0
			lastTime = time.Now()
		}

		// gocv Mats come out of the camera as packed BGR.
		frame := images.NewFrame(img.ToBytes(), img.Cols(), img.Rows(), img.Channels(), images.OrderBGR)
		dets, err := d.Detect(frame, params)
		if err != nil {
			log.Error("detect", zap.Error(err))
			continue
		}

		fmt.Printf("found %d objects | FPS: %.2f\n", len(dets), fps)

		// draw a rectangle and label around each detection
		for _, det := range dets {
			rect := image.Rect(det.Box.Left, det.Box.Top, det.Box.Right, det.Box.Bottom)
			gocv.Rectangle(&img, rect, green, 2)
			label := fmt.Sprintf("%s %.2f", names.Name(det.Class), det.Confidence)
			gocv.PutText(&img, label, image.Pt(det.Box.Left, det.Box.Top-5), gocv.FontHersheyPlain, 1.2, green, 2)
		}

		// show the image in the window, and wait 1 millisecond
		if show {
			window.IMShow(img)
			if window.WaitKey(1) == 27 {
				return
			}
		}
	}
}

func newLogger(debug bool) *zap.Logger {
	if debug {
		log, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		return log
	}
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return log
}

// Command detect-server exposes the detection pipeline over HTTP. Images go
// in as request bodies, detections come back as JSON.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"image"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "image/jpeg"
	_ "image/png"

	_ "github.com/chai2010/webp"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"

	"github.com/edge-ml/go-detect/config"
	"github.com/edge-ml/go-detect/detector"
	"github.com/edge-ml/go-detect/images"
	"github.com/edge-ml/go-detect/inference/ort"
	"github.com/edge-ml/go-detect/labels"
	"github.com/edge-ml/go-detect/postprocess"
)

const maxBodyBytes = 20 << 20

type modelInfo struct {
	Path      string `json:"model"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Channels  int    `json:"channels"`
	Quantized bool   `json:"quantized"`
	PoolSize  int    `json:"pool_size"`
}

type server struct {
	cfg   config.Config
	pool  *DetectorPool
	names labels.Labels
	info  modelInfo
	log   *zap.Logger
}

type detectionJSON struct {
	postprocess.Detection
	Label string `json:"label"`
}

type detectResponse struct {
	Detections []detectionJSON `json:"detections"`
	Count      int             `json:"count"`
	ElapsedMS  float64         `json:"elapsed_ms"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func main() {
	var (
		configPath string
		modelPath  string
		addr       string
		debug      bool
	)
	flag.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flag.StringVar(&modelPath, "model", "", "Path to a .tflite model file (overrides the config)")
	flag.StringVar(&addr, "addr", "", "Listen address (overrides the config)")
	flag.BoolVar(&debug, "debug", false, "Log per-frame timings")
	flag.Parse()

	log := newLogger(debug)
	defer log.Sync()

	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			log.Fatal("load config", zap.Error(err))
		}
		cfg = loaded
	}
	if modelPath != "" {
		cfg.Model = modelPath
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	names := labels.COCO
	if cfg.Labels != "" {
		loaded, err := labels.Load(cfg.Labels)
		if err != nil {
			log.Fatal("load labels", zap.Error(err))
		}
		names = loaded
	}

	pool, err := NewDetectorPool(cfg.Server.Detectors, func() (*detector.Detector, error) {
		return newDetector(cfg, log)
	})
	if err != nil {
		log.Fatal("build detector pool", zap.Error(err))
	}
	defer pool.Destroy()

	s, err := newServer(cfg, pool, names, log)
	if err != nil {
		log.Fatal("probe model", zap.Error(err))
	}

	srv := &http.Server{
		Handler:      s.routes(),
		Addr:         cfg.Server.Addr,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.Info("listening",
		zap.String("addr", cfg.Server.Addr),
		zap.String("model", cfg.Model),
		zap.Int("detectors", pool.Size()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		log.Fatal("server stopped", zap.Error(err))
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("shutdown", zap.Error(err))
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

// newServer probes one pooled detector for the model info the read-only
// endpoints report.
func newServer(cfg config.Config, pool *DetectorPool, names labels.Labels, log *zap.Logger) (*server, error) {
	d, err := pool.Acquire(context.Background())
	if err != nil {
		return nil, err
	}
	h, w, c := d.InputShape()
	info := modelInfo{
		Path:      cfg.Model,
		Width:     w,
		Height:    h,
		Channels:  c,
		Quantized: d.IsQuantized(),
		PoolSize:  pool.Size(),
	}
	pool.Release(d)

	return &server{cfg: cfg, pool: pool, names: names, info: info, log: log}, nil
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/v1/detect", s.handleDetect).Methods(http.MethodPost)
	r.HandleFunc("/v1/model", s.handleModel).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	return r
}

func (s *server) handleDetect(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	data, err := readImageBody(w, r)
	if err != nil {
		writeError(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		writeError(w, "invalid_image", "could not decode image", http.StatusBadRequest)
		return
	}

	params, err := s.requestParams(r)
	if err != nil {
		writeError(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}
	filter, err := classFilter(r.URL.Query().Get("classes"), s.names)
	if err != nil {
		writeError(w, "invalid_request", err.Error(), http.StatusBadRequest)
		return
	}

	d, err := s.pool.Acquire(r.Context())
	if err != nil {
		writeError(w, "busy", err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer s.pool.Release(d)

	frame := images.FrameFromImage(img, images.OrderRGB)
	dets, err := d.Detect(frame, params)
	switch {
	case detector.IsInference(err):
		s.log.Error("inference failed", zap.Error(err))
		writeError(w, "inference_failed", err.Error(), http.StatusBadGateway)
		return
	case detector.IsConfiguration(err):
		writeError(w, "bad_input", err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		s.log.Error("detect failed", zap.Error(err))
		writeError(w, "internal", err.Error(), http.StatusInternalServerError)
		return
	}
	if filter != nil {
		dets = filter(dets)
	}

	resp := detectResponse{
		Detections: make([]detectionJSON, 0, len(dets)),
		Count:      len(dets),
		ElapsedMS:  float64(time.Since(start).Microseconds()) / 1000.0,
	}
	for _, det := range dets {
		resp.Detections = append(resp.Detections, detectionJSON{
			Detection: det,
			Label:     s.names.Name(det.Class),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleModel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.info)
}

func (s *server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		PoolSize int `json:"pool_size"`
		PoolMetrics
	}{PoolSize: s.pool.Size(), PoolMetrics: s.pool.Snapshot()})
}

func (s *server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// requestParams starts from the configured thresholds and overlays any query
// overrides.
func (s *server) requestParams(r *http.Request) (detector.Params, error) {
	params := s.cfg.Params()
	q := r.URL.Query()
	if v := q.Get("box_threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil || f < 0 || f > 1 {
			return params, errors.Errorf("box_threshold %q is not in [0, 1]", v)
		}
		params.BoxThreshold = float32(f)
	}
	if v := q.Get("nms_threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil || f < 0 || f > 1 {
			return params, errors.Errorf("nms_threshold %q is not in [0, 1]", v)
		}
		params.NMSThreshold = float32(f)
	}
	return params, nil
}

// classFilter turns ?classes=person,car or ?classes=0,2 into a detection
// filter. Tokens may be indices or label names.
func classFilter(raw string, names labels.Labels) (postprocess.Filter, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []int
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if id, err := strconv.Atoi(token); err == nil {
			ids = append(ids, id)
			continue
		}
		id := -1
		for i := range names {
			if strings.EqualFold(names[i], token) {
				id = i
				break
			}
		}
		if id < 0 {
			return nil, errors.Errorf("unknown class %q", token)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return postprocess.Classes(ids...), nil
}

func readImageBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return nil, err
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(file)
	}
	return io.ReadAll(r.Body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code, message string, status int) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

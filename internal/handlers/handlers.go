package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Brownie44l1/plantdoc-api/internal/metadata"
	"github.com/Brownie44l1/plantdoc-api/internal/metrics"
	"github.com/Brownie44l1/plantdoc-api/internal/prediction"
	"github.com/Brownie44l1/plantdoc-api/internal/preprocess"
	"github.com/Brownie44l1/plantdoc-api/internal/result"
)

// DefaultMaxUpload caps multipart bodies at 10MB.
const DefaultMaxUpload = 10 << 20

type Handler struct {
	predictor *prediction.Service
	store     result.Lookuper
	logger    *zap.Logger
	metrics   *metrics.Metrics
	maxUpload int64
}

type Options struct {
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
	MaxUpload int64
}

func NewHandler(predictor *prediction.Service, store result.Lookuper, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = DefaultMaxUpload
	}
	return &Handler{
		predictor: predictor,
		store:     store,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		maxUpload: opts.MaxUpload,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (h *Handler) countPrediction(outcome string) {
	if h.metrics != nil {
		h.metrics.Predictions.WithLabelValues(outcome).Inc()
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"classes": h.predictor.NumClasses(),
	})
}

// Submit serves the upload form on GET and classifies the "image" field on
// POST.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.submitForm(w, r)
	case http.MethodPost:
		h.submitImage(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	}
}

func (h *Handler) submitImage(w http.ResponseWriter, r *http.Request) {
	logger := LoggerFrom(r.Context(), h.logger)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		logger.Warn("failed to parse upload form", zap.Error(err))
		h.countPrediction(metrics.OutcomeBadRequest)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to parse form: " + err.Error()})
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("image")
	if err != nil {
		logger.Warn("upload has no image field", zap.Error(err))
		h.countPrediction(metrics.OutcomeBadRequest)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "no image file provided, use 'image' as the form field name"})
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		logger.Warn("failed to read upload", zap.Error(err))
		h.countPrediction(metrics.OutcomeBadRequest)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read image"})
		return
	}

	logger = logger.With(zap.String("filename", header.Filename), zap.Int64("size", header.Size))

	res := h.predictor.Predict(r.Context(), buf.Bytes())
	if h.metrics != nil && res.Inference > 0 {
		h.metrics.Inference.Observe(res.Inference.Seconds())
	}
	if !res.OK() {
		var decodeErr *preprocess.ImageDecodeError
		if errors.As(res.Failure, &decodeErr) {
			logger.Warn("rejected upload", zap.Error(res.Failure))
			h.countPrediction(metrics.OutcomeBadImage)
		} else {
			logger.Error("prediction failed", zap.String("stage", string(res.Failure.Stage)), zap.Error(res.Failure))
			h.countPrediction(metrics.OutcomeFailure)
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: res.Failure.Error()})
		return
	}

	payload, err := result.Assemble(res.Index, h.store)
	if err != nil {
		var oor *metadata.IndexOutOfRangeError
		if errors.As(err, &oor) {
			logger.Error("class index has no metadata row",
				zap.String("event", "metadata_misalignment"),
				zap.Int("index", oor.Index),
				zap.Int("rows", oor.N))
			h.countPrediction(metrics.OutcomeMisaligned)
		} else {
			logger.Error("failed to assemble result", zap.Error(err))
			h.countPrediction(metrics.OutcomeFailure)
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	if h.metrics != nil {
		h.metrics.Classes.WithLabelValues(strconv.Itoa(res.Index)).Inc()
	}
	h.countPrediction(metrics.OutcomeSuccess)
	logger.Info("prediction served",
		zap.String("format", res.Format),
		zap.Int("pred", res.Index),
		zap.String("title", payload.Title),
		zap.Float32("score", res.Score),
		zap.Duration("inference", res.Inference))

	writeJSON(w, http.StatusOK, payload)
}

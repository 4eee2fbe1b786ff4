package ingestion

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/your-org/fieldcam/pkg/metrics"
)

// HTTPHandler exposes the REST surface of the ingestion service.
type HTTPHandler struct {
	service      *Service
	logger       *zap.Logger
	metrics      *metrics.Metrics
	token        string
	maxSizeBytes int64
	formMemBytes int64
	configErr    error
	router       chi.Router
}

type HandlerParams struct {
	Service *Service
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	// Token enables the bearer check on /ingest when non-empty.
	Token        string
	MaxSizeBytes int64
	FormMemBytes int64
	// ConfigErr marks the service degraded: /healthz keeps serving while
	// /ingest fails with a configuration error until restart.
	ConfigErr error
}

// NewHTTPHandler constructs the HTTP handler and wires routes.
func NewHTTPHandler(p HandlerParams) *HTTPHandler {
	h := &HTTPHandler{
		service:      p.Service,
		logger:       p.Logger,
		metrics:      p.Metrics,
		token:        p.Token,
		maxSizeBytes: p.MaxSizeBytes,
		formMemBytes: p.FormMemBytes,
		configErr:    p.ConfigErr,
	}
	h.buildRouter()
	return h
}

func (h *HTTPHandler) buildRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Get("/healthz", h.handleHealth)
	r.Post("/ingest", h.handleIngest)

	h.router = r
}

// Router exposes the configured chi router.
func (h *HTTPHandler) Router() http.Handler {
	return h.router
}

// handleHealth never touches configuration or external collaborators.
func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *HTTPHandler) handleIngest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	result, err := h.ingest(w, r)
	if err != nil {
		ie := AsError(err)
		if ie.HTTPStatus() >= http.StatusInternalServerError {
			h.logger.Error("ingest failed", zap.String("kind", string(ie.Kind)), zap.Error(err))
		} else {
			h.logger.Debug("ingest rejected", zap.String("kind", string(ie.Kind)), zap.String("message", ie.Message))
		}
		h.metrics.ObserveIngest(string(ie.Kind), 0, time.Since(start))
		writeError(w, ie)
		return
	}

	h.metrics.ObserveIngest("success", result.SizeBytes, time.Since(start))
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"storage_key":  result.StorageKey,
		"record_id":    result.RecordID,
		"content_hash": result.ContentHash,
	})
}

// ingest runs the request-scoped pipeline: auth, multipart extraction, then
// the service call. Validation short-circuits before any external write.
func (h *HTTPHandler) ingest(w http.ResponseWriter, r *http.Request) (*IngestResult, error) {
	if err := h.authorize(r); err != nil {
		return nil, err
	}
	if h.configErr != nil {
		return nil, WrapError(KindConfiguration, "service is not configured for ingestion", h.configErr)
	}

	if r.ContentLength > 0 && r.ContentLength > h.maxSizeBytes {
		return nil, NewError(KindPayloadTooLarge, "request body exceeds the configured maximum")
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxSizeBytes)

	if err := r.ParseMultipartForm(h.formMemBytes); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, NewError(KindPayloadTooLarge, "request body exceeds the configured maximum")
		}
		return nil, WrapError(KindMalformedInput, "body is not a valid multipart form", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, WrapError(KindMalformedInput, "file part is required", err)
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		return nil, WrapError(KindMalformedInput, "reading file part failed", err)
	}

	return h.service.Ingest(r.Context(), IngestInput{
		ContentType: header.Header.Get("Content-Type"),
		Meta:        []byte(r.FormValue("meta")),
		Payload:     payload,
	})
}

// authorize enforces the static bearer token when one is configured. A
// missing or non-Bearer header is an authentication failure; a present but
// mismatched token is an authorization failure.
func (h *HTTPHandler) authorize(r *http.Request) error {
	if h.token == "" {
		return nil
	}

	auth := r.Header.Get("Authorization")
	supplied, ok := strings.CutPrefix(auth, "Bearer ")
	if auth == "" || !ok {
		return NewError(KindAuthentication, "bearer token is required")
	}
	if supplied != h.token {
		return NewError(KindAuthorization, "bearer token is not valid")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, ie *Error) {
	writeJSON(w, ie.HTTPStatus(), map[string]any{
		"ok": false,
		"error": map[string]string{
			"kind":    string(ie.Kind),
			"message": ie.Message,
		},
	})
}

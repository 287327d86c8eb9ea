// Package httpapi serves the cancellation handler over plain HTTP for
// deployments without an API gateway.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/fiscaldocs/dce-cancel/internal/access"
	"github.com/fiscaldocs/dce-cancel/internal/apperrors"
	"github.com/fiscaldocs/dce-cancel/internal/handler"
	"github.com/fiscaldocs/dce-cancel/internal/models"
)

// MaxBodyBytes bounds the accepted request body.
const MaxBodyBytes = 1 << 20

// RequestHandler processes one cancellation request.
type RequestHandler interface {
	Handle(ctx context.Context, req handler.Request) handler.Response
}

// StatusReader reads back the live status record of a document.
type StatusReader interface {
	Get(ctx context.Context, documentID string) (models.StatusRecord, bool, error)
}

// Config holds the settings shared with the cancellation handler.
type Config struct {
	AuthToken string
	// Ready reports backend readiness for /healthz; nil means always ready.
	Ready func() bool
}

// StatusView is the read-back representation of a status record.
type StatusView struct {
	DceID string `json:"dceId"`
	models.StatusRecord
}

type api struct {
	cfg     Config
	handler RequestHandler
	status  StatusReader
	logger  zerolog.Logger
}

// NewRouter registers the cancellation routes. A nil status reader disables
// the read-back route.
func NewRouter(cfg Config, h RequestHandler, status StatusReader, logger zerolog.Logger) http.Handler {
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}
	a := &api{cfg: cfg, handler: h, status: status, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.logRequests)

	r.Get("/healthz", a.healthz)
	r.Route("/v1/dce/cancellations", func(r chi.Router) {
		r.Post("/", a.cancel)
		if status != nil {
			r.Get("/{dceId}", a.getStatus)
		}
	})
	return r
}

func (a *api) healthz(w http.ResponseWriter, _ *http.Request) {
	if a.cfg.Ready != nil && !a.cfg.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) cancel(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, handler.ErrorBody{Error: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, handler.ErrorBody{Error: "failed to read request body"})
		return
	}

	resp := a.handler.Handle(r.Context(), handler.Request{
		Body:    body,
		Headers: flattenHeaders(r.Header),
	})

	for name, value := range resp.Headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}

// getStatus returns the live record of a document to the client that filed
// it. Records of other clients are reported as missing.
func (a *api) getStatus(w http.ResponseWriter, r *http.Request) {
	headers := flattenHeaders(r.Header)
	if err := access.Authenticate(headers, a.cfg.AuthToken); err != nil {
		a.writeError(w, err)
		return
	}
	clientID, err := access.ExtractClientID(headers)
	if err != nil {
		a.writeError(w, err)
		return
	}

	dceID := chi.URLParam(r, "dceId")
	rec, found, err := a.status.Get(r.Context(), dceID)
	if err != nil {
		a.logger.Error().Err(err).Str("dceId", dceID).Str("clientId", clientID).Msg("status lookup failed")
		a.writeError(w, apperrors.Transport("status lookup failed", err))
		return
	}
	if !found || rec.ClientID != clientID {
		writeJSON(w, http.StatusNotFound, handler.ErrorBody{Error: "cancellation not found"})
		return
	}
	writeJSON(w, http.StatusOK, StatusView{DceID: dceID, StatusRecord: rec})
}

func (a *api) writeError(w http.ResponseWriter, err error) {
	status := apperrors.StatusCode(apperrors.KindOf(err))
	writeJSON(w, status, handler.ErrorBody{Error: apperrors.MessageOf(err)})
}

func (a *api) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		evt := a.logger.Info()
		if status >= http.StatusInternalServerError {
			evt = a.logger.Error()
		}
		evt.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("statusCode", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("requestId", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

// flattenHeaders keeps the first value of every header.
func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			out[name] = values[0]
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

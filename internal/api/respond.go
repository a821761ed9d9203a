package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"lyrahub/internal/ask"
	"lyrahub/internal/auth"
	"lyrahub/internal/digest"
	"lyrahub/internal/domain"
	"lyrahub/internal/validation"

	"github.com/goccy/go-json"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondJSON(ctx context.Context, w http.ResponseWriter, log *slog.Logger, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.ErrorContext(ctx, "Failed to marshal response",
			"error", err)

		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if _, err = w.Write(data); err != nil {
		log.WarnContext(ctx, "Failed to write response",
			"error", err)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, log *slog.Logger, status int, msg string) {
	respondJSON(ctx, w, log, status, errorResponse{Error: msg})
}

// respondErr maps err onto a status. Anything unrecognised is logged and
// answered with a generic 500.
func respondErr(ctx context.Context, w http.ResponseWriter, log *slog.Logger, err error) {
	var verr *validation.Error

	switch {
	case errors.As(err, &verr):
		respondJSON(ctx, w, log, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, domain.ErrInvalidInput):
		respondError(ctx, w, log, http.StatusBadRequest, publicMessage(err))
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken):
		respondError(ctx, w, log, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		respondError(ctx, w, log, http.StatusForbidden, "you can only change your own content")
	case errors.Is(err, domain.ErrNotFound):
		respondError(ctx, w, log, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrConflict):
		respondError(ctx, w, log, http.StatusConflict, "already exists")
	case errors.Is(err, digest.ErrAlreadyRunning):
		respondError(ctx, w, log, http.StatusConflict, "digest run already in progress")
	case errors.Is(err, ask.ErrUnavailable):
		respondError(ctx, w, log, http.StatusServiceUnavailable, "question answering is not configured")
	default:
		log.ErrorContext(ctx, "Failed to handle request",
			"error", err)

		respondError(ctx, w, log, http.StatusInternalServerError, "internal error")
	}
}

// publicMessage strips the sentinel prefix from an ErrInvalidInput chain so
// the client sees only the detail.
func publicMessage(err error) string {
	msg := err.Error()
	prefix := domain.ErrInvalidInput.Error() + ": "

	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}

	return msg
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body required", domain.ErrInvalidInput)
		}

		return fmt.Errorf("%w: malformed json body", domain.ErrInvalidInput)
	}

	return nil
}

func queryInt(r *http.Request, key string, def int, lo int, hi int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}

	return min(max(v, lo), hi)
}

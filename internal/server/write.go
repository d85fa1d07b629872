package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/ting-rn/ting-sync/internal/blob"
	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/feed"
	"github.com/ting-rn/ting-sync/internal/live"
	"github.com/ting-rn/ting-sync/internal/optimistic"
	"github.com/ting-rn/ting-sync/internal/service"
)

var errInvalidRequest = errors.New("invalid request")

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("failed to write response")
	}
}

func writeOK(w http.ResponseWriter, v interface{}) {
	writeJSON(w, http.StatusOK, v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Error{Error: message})
}

func writeInternalError(w http.ResponseWriter, err error) {
	log.WithError(err).Error("internal error")
	writeError(w, http.StatusInternalServerError, "internal error")
}

// statusOf maps domain errors to http status codes. Zero means internal error.
func statusOf(err error) int {
	switch {
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, service.ErrInvalidArgument),
		errors.Is(err, docstore.ErrInvalidQuery),
		errors.Is(err, feed.ErrUnknownKind),
		errors.Is(err, blob.ErrUnsupportedType),
		errors.Is(err, blob.ErrForeignURL):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, feed.ErrNoViewer):
		return http.StatusUnauthorized
	case errors.Is(err, docstore.ErrPermissionDenied),
		errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrBlocked):
		return http.StatusForbidden
	case errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, optimistic.ErrInFlight),
		errors.Is(err, live.ErrLoading),
		errors.Is(err, docstore.ErrAborted):
		return http.StatusConflict
	case errors.Is(err, service.ErrSelfAction), errors.Is(err, live.ErrNotToggleable):
		return http.StatusUnprocessableEntity
	default:
		return 0
	}
}

func writeErr(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == 0 {
		writeInternalError(w, err)
		return
	}

	writeError(w, status, err.Error())
}

// decode reads json body into v and validates it.
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid body: %s", errInvalidRequest, err.Error())
	}

	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %s", errInvalidRequest, err.Error())
	}

	return nil
}

// getLimit returns limit query parameter, def when it is absent.
func getLimit(r *http.Request, def int) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return def, nil
	}

	limit, err := strconv.Atoi(s)
	if err != nil || limit <= 0 || limit > maxLimit {
		return 0, fmt.Errorf("%w: limit should be in [1, %d]", errInvalidRequest, maxLimit)
	}

	return limit, nil
}

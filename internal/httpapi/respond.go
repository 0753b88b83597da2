package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/UkralStul/discussion-forum/internal/domain"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("httpapi: encode response: %v", err)
	}
}

// writeError переводит ошибку в ответ клиенту. Детали сбоев хранилища и проверки
// токенов остаются в логе.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		log.Printf("httpapi: [%s] %s %s: %v", middleware.GetReqID(r.Context()), r.Method, r.URL.Path, err)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, body)
}

func classify(err error) (int, errorBody) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, errorBody{"validation_error", err.Error()}
	case errors.Is(err, domain.ErrMissingToken):
		return http.StatusUnauthorized, errorBody{"missing_token", "authorization token required"}
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, errorBody{"invalid_token", "invalid or expired token"}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, errorBody{"invalid_credentials", "invalid credentials"}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorBody{"not_found", "resource not found"}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, errorBody{"conflict", "resource already exists"}
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable, errorBody{"unavailable", "storage temporarily unavailable, retry later"}
	default:
		return http.StatusInternalServerError, errorBody{"internal", "internal error"}
	}
}

// decodeJSON читает тело запроса в dst. Битый JSON - ошибка валидации.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("malformed request body: %w", domain.ErrValidation)
	}
	return nil
}

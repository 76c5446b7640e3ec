package utils

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
)

// Sentinel errors returned by the store layer. Handlers never pick HTTP
// statuses themselves; they hand the error to WriteError.
var (
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
)

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

// WriteError maps a store error onto its HTTP status and a JSON body with a
// human-readable message. Unexpected errors become a generic 500 unless the
// server runs in development mode.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrConflict):
		status = http.StatusConflict
	}

	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		if os.Getenv("APP_ENV") != "development" {
			message = "internal server error"
		}
	}

	WriteJSON(w, status, map[string]string{"message": message})
}

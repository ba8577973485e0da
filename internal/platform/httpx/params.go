package httpx

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/inkpress/inkpress/internal/shared"
)

// IDParam reads a positive integer URL parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewValidationError(name, "must be a positive integer")
	}
	return id, nil
}

// FormFile reads the multipart file in field. The request body is capped
// at maxBytes; the caller closes the returned file.
func FormFile(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (multipart.File, *multipart.FileHeader, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, shared.NewValidationError(field, "exceeds the upload size limit")
		}
		return nil, nil, shared.NewValidationError(field, "must be sent as multipart/form-data")
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, shared.NewValidationError(field, "is required")
	}
	return file, header, nil
}

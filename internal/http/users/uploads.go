package users

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"vidtube/internal/lib/api"
)

// parseMultipart reads a bounded multipart form.
func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadSize)

	if err := r.ParseMultipartForm(h.opts.MaxUploadSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return api.NewError(http.StatusRequestEntityTooLarge, "upload is too large")
		}
		return api.BadRequest("invalid multipart form")
	}

	return nil
}

// saveUpload copies the file in field to the upload dir and returns its
// path. A missing field yields "" and no error.
func (h *Handler) saveUpload(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", api.BadRequest("invalid " + field + " file")
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(filepath.Base(header.Filename)))
	dst, err := os.CreateTemp(h.opts.UploadDir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(dst, file); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}

	return dst.Name(), nil
}

func removeUpload(path string) {
	if path != "" {
		_ = os.Remove(path)
	}
}

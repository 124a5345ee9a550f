package handlers

import (
	"bufio"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/petroasset/apiserver/internal/apperr"
	"github.com/petroasset/apiserver/internal/services"
	"github.com/petroasset/apiserver/internal/storage"
	"go.uber.org/zap"
)

const (
	formFieldImage  = "image"
	formFieldAvatar = "avatar"

	// multipartOverhead leaves room for boundaries and other form fields.
	multipartOverhead = 1 << 20
)

// readImageUpload opens the image part named field. The caller closes the
// returned closer once the upload is stored.
func readImageUpload(w http.ResponseWriter, r *http.Request, field string) (services.ImageUpload, io.Closer, error) {
	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxImageSize+multipartOverhead)
	if err := r.ParseMultipartForm(storage.MaxImageSize + multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.ImageUpload{}, nil, apperr.BadRequest("Image must be at most 5MB")
		}
		return services.ImageUpload{}, nil, apperr.BadRequest("Invalid multipart form")
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return services.ImageUpload{}, nil, apperr.BadRequest("%s file is required", field)
	}

	contentType := header.Header.Get("Content-Type")
	reader := bufio.NewReader(file)
	if contentType == "" || contentType == "application/octet-stream" {
		sniff, _ := reader.Peek(512)
		contentType = http.DetectContentType(sniff)
	}

	return services.ImageUpload{
		Body:        reader,
		Size:        header.Size,
		ContentType: contentType,
	}, file, nil
}

// writeObject streams a stored object to the client.
func writeObject(w http.ResponseWriter, r *http.Request, obj storage.Object) {
	defer obj.Body.Close()

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		zap.L().Warn("stream object", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

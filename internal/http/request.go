package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"pricewatch/internal/resolver"
	"pricewatch/internal/services"
)

// HeaderAccount names the identity partition of a request.
const HeaderAccount = "X-Account-ID"

// accountFrom resolves and validates the partition: header, then query,
// then the shared guest partition.
func accountFrom(r *http.Request) (string, error) {
	account := strings.TrimSpace(r.Header.Get(HeaderAccount))
	if account == "" {
		account = strings.TrimSpace(r.URL.Query().Get("account"))
	}
	if account == "" {
		account = services.DefaultAccount
	}
	if err := services.ValidateAccount(account); err != nil {
		return "", err
	}
	return account, nil
}

func monthFrom(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("month"))
}

var errTooManyFiles = errors.New("too many files in one request")

// readUploads collects every "file" part in form order. Each file is read
// up to one byte past the limit so oversized files fail validation.
func readUploads(form *multipart.Form, maxBytes int64, maxFiles int) ([]resolver.Upload, error) {
	headers := form.File["file"]
	if len(headers) == 0 {
		return nil, services.ErrNoFiles
	}
	if len(headers) > maxFiles {
		return nil, fmt.Errorf("%w: %d (max %d)", errTooManyFiles, len(headers), maxFiles)
	}

	uploads := make([]resolver.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, maxBytes+1))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		uploads = append(uploads, resolver.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return uploads, nil
}

func parseFloatParam(r *http.Request, key string) (float64, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid %s %q", key, raw)
	}
	return v, true, nil
}

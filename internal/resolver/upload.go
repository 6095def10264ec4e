package resolver

import (
	"errors"
	"fmt"
	"mime"
	"regexp"
	"strings"
)

// DefaultMaxUploadBytes matches the synchronous limit of the analysis backend.
const DefaultMaxUploadBytes = 5 * 1024 * 1024

var (
	ErrMissingFilename = errors.New("missing filename")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("empty file")
	ErrFileTooLarge    = errors.New("file too large")
)

var supportedExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".heic": true,
	".heif": true,
}

// Browsers sometimes send application/octet-stream for images.
var supportedContentTypes = map[string]bool{
	"application/pdf":          true,
	"image/png":                true,
	"image/jpeg":               true,
	"image/jpg":                true,
	"image/heic":               true,
	"image/heif":               true,
	"application/octet-stream": true,
}

var extPattern = regexp.MustCompile(`(\.[a-z0-9]+)$`)

// Upload is one invoice file as received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Size is the payload length in bytes.
func (u Upload) Size() int {
	return len(u.Data)
}

// Extension returns the lower-cased extension including the dot, or "".
func (u Upload) Extension() string {
	return extPattern.FindString(strings.ToLower(strings.TrimSpace(u.Filename)))
}

// MediaType returns the content type without parameters, lower-cased.
func (u Upload) MediaType() string {
	ct := strings.ToLower(strings.TrimSpace(u.ContentType))
	if ct == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	return ct
}

// ValidateUpload rejects uploads the analysis backend would refuse. Either
// the extension or the content type may be missing, but whichever is
// present must be supported. maxBytes <= 0 uses DefaultMaxUploadBytes.
func ValidateUpload(u Upload, maxBytes int64) error {
	if strings.TrimSpace(u.Filename) == "" {
		return ErrMissingFilename
	}
	if ext := u.Extension(); ext != "" && !supportedExtensions[ext] {
		return fmt.Errorf("%w: extension %q", ErrUnsupportedType, ext)
	}
	if mt := u.MediaType(); mt != "" && !supportedContentTypes[mt] {
		return fmt.Errorf("%w: content type %q", ErrUnsupportedType, mt)
	}
	if len(u.Data) == 0 {
		return ErrEmptyFile
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	if int64(len(u.Data)) > maxBytes {
		return fmt.Errorf("%w: %d bytes, max %d", ErrFileTooLarge, len(u.Data), maxBytes)
	}
	return nil
}

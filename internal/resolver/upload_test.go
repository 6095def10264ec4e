package resolver

import (
	"bytes"
	"errors"
	"testing"
)

func TestValidateUpload(t *testing.T) {
	data := []byte("%PDF-1.7")
	cases := []struct {
		name string
		u    Upload
		max  int64
		want error
	}{
		{"ok pdf", Upload{Filename: "a.pdf", ContentType: "application/pdf", Data: data}, 0, nil},
		{"ok upper ext", Upload{Filename: "SCAN.JPG", Data: data}, 0, nil},
		{"ok no ext", Upload{Filename: "scan", ContentType: "image/png", Data: data}, 0, nil},
		{"ok octet stream", Upload{Filename: "a.heic", ContentType: "application/octet-stream", Data: data}, 0, nil},
		{"ok content type params", Upload{Filename: "a.png", ContentType: "image/png; charset=binary", Data: data}, 0, nil},
		{"missing filename", Upload{Filename: "  ", Data: data}, 0, ErrMissingFilename},
		{"bad ext", Upload{Filename: "a.docx", Data: data}, 0, ErrUnsupportedType},
		{"bad content type", Upload{Filename: "a.pdf", ContentType: "text/plain", Data: data}, 0, ErrUnsupportedType},
		{"empty", Upload{Filename: "a.pdf"}, 0, ErrEmptyFile},
		{"too large", Upload{Filename: "a.pdf", Data: bytes.Repeat([]byte("x"), 11)}, 10, ErrFileTooLarge},
		{"at limit", Upload{Filename: "a.pdf", Data: bytes.Repeat([]byte("x"), 10)}, 10, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateUpload(tc.u, tc.max)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestUploadExtension(t *testing.T) {
	if ext := (Upload{Filename: "Invoice.Final.PDF"}).Extension(); ext != ".pdf" {
		t.Fatalf("unexpected extension %q", ext)
	}
	if ext := (Upload{Filename: "noext"}).Extension(); ext != "" {
		t.Fatalf("unexpected extension %q", ext)
	}
}

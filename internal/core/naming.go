package core

import (
	"path"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UnknownSubject is used when no name can be derived from a filename.
const UnknownSubject = "Unknown Subject"

const maxSubjectWords = 3

// InferSubjectName derives a supplier name from an uploaded filename:
// directory and extension are dropped, separators become spaces, words are
// title-cased and only the first three are kept.
//
//	InferSubjectName("acme_foods-invoice_2024.pdf") -> "Acme Foods Invoice"
func InferSubjectName(filename string) string {
	name := strings.ReplaceAll(strings.TrimSpace(filename), `\`, "/")
	name = path.Base(name)
	if ext := path.Ext(name); ext != "" && ext != name {
		name = strings.TrimSuffix(name, ext)
	}

	name = strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', '.', '+':
			return ' '
		}
		return r
	}, name)

	words := strings.Fields(name)
	if len(words) == 0 || name == "/" {
		return UnknownSubject
	}
	if len(words) > maxSubjectWords {
		words = words[:maxSubjectWords]
	}

	// A Caser is stateful and must not be shared.
	caser := cases.Title(language.English)
	return caser.String(strings.Join(words, " "))
}

// SubjectKey normalizes a supplier name for matching: trimmed, inner
// whitespace collapsed, case-folded.
func SubjectKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// CleanSubject trims a display name and collapses inner whitespace.
func CleanSubject(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

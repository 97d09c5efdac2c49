// Package validator checks raw corpus documents before they are analyzed.
// It enforces identifier and size constraints and returns per-field error
// details.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

const maxIDLength = 255

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	DocID  string
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, e.Fields[field]))
	}
	return fmt.Sprintf("document %q: %s", e.DocID, strings.Join(parts, "; "))
}

// ValidateDocument checks the external identifier and body of a document.
// A maxBytes of zero disables the size limit. Empty bodies are allowed and
// index as zero-length documents.
func ValidateDocument(externalID, text string, maxBytes int) error {
	errs := make(map[string]string)

	if strings.TrimSpace(externalID) == "" {
		errs["id"] = "id is required"
	} else if len(externalID) > maxIDLength {
		errs["id"] = fmt.Sprintf("id must be at most %d bytes", maxIDLength)
	} else if !utf8.ValidString(externalID) {
		errs["id"] = "id must be valid UTF-8"
	}
	if maxBytes > 0 && len(text) > maxBytes {
		errs["text"] = fmt.Sprintf("text must be at most %d bytes", maxBytes)
	} else if !utf8.ValidString(text) {
		errs["text"] = "text must be valid UTF-8"
	}
	if len(errs) > 0 {
		return &ValidationError{DocID: externalID, Fields: errs}
	}
	return nil
}

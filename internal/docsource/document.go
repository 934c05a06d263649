package docsource

import (
	"path/filepath"
	"strings"
	"time"
)

// Document is the processed form of an imported file: extracted text plus
// the metadata the upstream processing stage produced. The engine never
// reads raw files itself; adapters in this package (or external
// collaborators) build Documents from whatever source they own.
type Document struct {
	Path      string `json:"path"`
	Text      string `json:"text"`
	PageCount int    `json:"page_count"`
	WordCount int    `json:"word_count"`

	// Core metadata extracted by the document processor
	Author       string     `json:"author,omitempty"`
	Creator      string     `json:"creator,omitempty"`
	Title        string     `json:"title,omitempty"`
	Subject      string     `json:"subject,omitempty"`
	DocumentDate *time.Time `json:"document_date,omitempty"`
	CreatedDate  *time.Time `json:"created_date,omitempty"`

	// Free-form property maps
	CustomProperties    map[string]string `json:"custom_properties,omitempty"`
	ExtractedProperties map[string]string `json:"extracted_properties,omitempty"`
	ProcessingMetadata  map[string]string `json:"processing_metadata,omitempty"`
}

// Format returns the document format derived from the file extension,
// lowercased without the leading dot ("pdf", "docx", ...)
func (d *Document) Format() string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(d.Path)), ".")
	if ext == "" {
		return "unknown"
	}
	return ext
}

// Filename returns the base name of the document path
func (d *Document) Filename() string {
	return filepath.Base(d.Path)
}

// Flag reads a boolean processing-metadata flag such as "has_images"
// or "is_scanned"
func (d *Document) Flag(name string) bool {
	if d.ProcessingMetadata == nil {
		return false
	}
	v := strings.ToLower(d.ProcessingMetadata[name])
	return v == "true" || v == "1" || v == "yes"
}

// NewFromText builds a Document from already-extracted plain text.
// Word and page counts are derived when the caller passes zero.
func NewFromText(path, text string, pageCount int) *Document {
	if pageCount <= 0 {
		pageCount = 1
	}
	return &Document{
		Path:      path,
		Text:      text,
		PageCount: pageCount,
		WordCount: len(strings.Fields(text)),
	}
}

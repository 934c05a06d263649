package docsource

import (
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFLoader builds Documents from PDF files. It is a convenience adapter
// for the CLI and tests; production pipelines typically hand the engine
// Documents produced by their own processing stage.
type PDFLoader struct {
	conf *model.Configuration
}

// NewPDFLoader creates a PDF loader with relaxed validation, matching the
// tolerance of the rest of the import pipeline
func NewPDFLoader() *PDFLoader {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFLoader{conf: conf}
}

// Load reads a PDF file into a Document. pdfcpu validates the file and
// supplies the page count; ledongthuc/pdf extracts the plain text.
func (l *PDFLoader) Load(path string) (*Document, error) {
	if err := api.ValidateFile(path, l.conf); err != nil {
		return nil, fmt.Errorf("invalid PDF %s: %w", path, err)
	}

	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read page count of %s: %w", path, err)
	}

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	defer f.Close()

	textReader, err := reader.GetPlainText()
	if err != nil {
		return nil, fmt.Errorf("failed to extract text from %s: %w", path, err)
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, textReader); err != nil {
		return nil, fmt.Errorf("failed to read text from %s: %w", path, err)
	}

	doc := NewFromText(path, sb.String(), pageCount)
	doc.ProcessingMetadata = map[string]string{
		"source": "pdf_loader",
	}
	return doc, nil
}

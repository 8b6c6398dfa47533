package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/perbu/docqa/pkg/docqa"
)

// Loader reads a document from a path.
type Loader interface {
	Load(path string) (docqa.Document, error)
}

// TextLoader reads UTF-8 text files. Markup-heavy files (HTML, README
// badges) are cleaned so tags do not end up in chunks.
type TextLoader struct{}

// Load reads path as UTF-8 text.
func (TextLoader) Load(path string) (docqa.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return docqa.Document{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return docqa.Document{}, fmt.Errorf("reading %s: not valid UTF-8", path)
	}

	return docqa.Document{
		Source: path,
		Text:   docqa.CleanHTML(string(data)),
	}, nil
}

// PDFLoader extracts the plain text layer of a PDF file.
type PDFLoader struct{}

// Load extracts the text of every page in path.
func (PDFLoader) Load(path string) (docqa.Document, error) {
	f, rdr, err := pdf.Open(path)
	if err != nil {
		return docqa.Document{}, fmt.Errorf("opening pdf %s: %w", path, err)
	}
	defer f.Close()

	b, err := rdr.GetPlainText()
	if err != nil {
		return docqa.Document{}, fmt.Errorf("reading pdf text %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return docqa.Document{}, fmt.Errorf("reading pdf buffer %s: %w", path, err)
	}

	text := strings.ToValidUTF8(buf.String(), "")
	if strings.TrimSpace(text) == "" {
		return docqa.Document{}, fmt.Errorf("no text extracted from pdf %s", path)
	}

	return docqa.Document{Source: path, Text: text}, nil
}

// Registry picks a Loader by file extension.
type Registry struct {
	byExt    map[string]Loader
	fallback Loader
}

// NewRegistry returns a registry with the text and PDF loaders registered.
// Unknown extensions are read as text.
func NewRegistry() *Registry {
	r := &Registry{
		byExt:    make(map[string]Loader),
		fallback: TextLoader{},
	}
	r.Register(".pdf", PDFLoader{})
	for _, ext := range []string{".txt", ".md", ".html", ".htm"} {
		r.Register(ext, TextLoader{})
	}
	return r
}

// Register sets the loader used for ext (".pdf", ".md", ...).
func (r *Registry) Register(ext string, l Loader) {
	r.byExt[strings.ToLower(ext)] = l
}

// For returns the loader handling path.
func (r *Registry) For(path string) Loader {
	if l, ok := r.byExt[strings.ToLower(filepath.Ext(path))]; ok {
		return l
	}
	return r.fallback
}

// Load reads path with the loader registered for its extension.
func (r *Registry) Load(path string) (docqa.Document, error) {
	return r.For(path).Load(path)
}

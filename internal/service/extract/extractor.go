// Package extract turns a staged resume file into plain text.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"

	"skillsync/internal/apperr"
)

const emptyTextMessage = "Could not extract text from file. Please ensure the file contains readable text."

// Extractor dispatches on the file extension: .pdf and .docx get their own
// parsers, everything else is read as UTF-8 text.
type Extractor struct {
	loader *file.FileLoader
}

func New(ctx context.Context) (*Extractor, error) {
	ext, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		Parsers: map[string]parser.Parser{
			".pdf":  PDFParser{},
			".docx": DocxParser{},
		},
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init ext parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      ext,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}
	return &Extractor{loader: loader}, nil
}

// Extract returns the trimmed text of the file at path. The path must carry
// the normalized (lower-case) extension. The file is left in place.
func (e *Extractor) Extract(ctx context.Context, path string) (string, error) {
	docs, err := e.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return "", apperr.Extraction(emptyTextMessage, err)
	}
	var b strings.Builder
	for _, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(content)
	}
	if b.Len() == 0 {
		return "", apperr.Extraction(emptyTextMessage, nil)
	}
	return b.String(), nil
}

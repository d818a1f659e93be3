package rag

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// LoadPDFDirectory loads every .pdf file under dir, recursively and in lexical order.
func LoadPDFDirectory(dir string) ([]Document, error) {
	var docs []Document
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}

		pages, err := LoadPDF(path)
		if err != nil {
			return err
		}
		docs = append(docs, pages...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load documents from %s: %w", dir, err)
	}
	return docs, nil
}

// rebaseSources rewrites each document source from a path under dir to name followed by the
// slash-separated path relative to dir. Files fetched into a scratch directory then keep the
// identity of where they came from, and their chunk IDs stay stable across runs.
func rebaseSources(docs []Document, dir, name string) error {
	for i := range docs {
		rel, err := filepath.Rel(dir, docs[i].Source)
		if err != nil || !filepath.IsLocal(rel) {
			return fmt.Errorf("source %s is not under %s", docs[i].Source, dir)
		}
		docs[i].Source = strings.TrimSuffix(name, "/") + "/" + filepath.ToSlash(rel)
	}
	return nil
}

// LoadPDF returns one Document per page that has text.
func LoadPDF(path string) (docs []Document, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("failed to parse %s: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d of %s: %w", i, path, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, Document{
			Content: text,
			Source:  path,
			Page:    i - 1,
		})
	}
	return docs, nil
}

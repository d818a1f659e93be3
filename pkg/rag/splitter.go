package rag

import (
	"fmt"
	"strconv"

	"github.com/tmc/langchaingo/textsplitter"
)

// Splitter splits page text recursively on paragraph, line and word boundaries into chunks
// of at most size characters, with overlap characters shared between neighbours.
type Splitter struct {
	ts textsplitter.RecursiveCharacter
}

func NewSplitter(size, overlap int) *Splitter {
	return &Splitter{
		ts: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		),
	}
}

// SplitDocuments splits every document, carrying its source and page onto the chunks.
// Chunk IDs are left empty, see AssignChunkIDs.
func (s *Splitter) SplitDocuments(docs []Document) ([]Chunk, error) {
	var chunks []Chunk
	for _, doc := range docs {
		parts, err := s.ts.SplitText(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to split %s page %d: %w", doc.Source, doc.Page, err)
		}
		for _, part := range parts {
			chunks = append(chunks, Chunk{
				Content: part,
				Source:  doc.Source,
				Page:    doc.Page,
			})
		}
	}
	return chunks, nil
}

// AssignChunkIDs sets IDs like "data/manual.pdf:6:2", the third chunk of page 6. The index
// restarts whenever the source:page pair differs from the previous chunk.
func AssignChunkIDs(chunks []Chunk) {
	var lastPageID string
	index := 0
	for i := range chunks {
		pageID := chunks[i].Source + ":" + strconv.Itoa(chunks[i].Page)
		if i > 0 && pageID == lastPageID {
			index++
		} else {
			index = 0
		}
		chunks[i].ID = pageID + ":" + strconv.Itoa(index)
		lastPageID = pageID
	}
}

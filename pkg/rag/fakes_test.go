package rag

import (
	"context"
	"sort"
	"sync"

	"github.com/edgeflare/ragapi/pkg/vectorstore"
)

// memStore is an in-memory vectorstore.Store. Distances come from distanceFn.
type memStore struct {
	records    map[string]vectorstore.Record
	distanceFn func(query, stored []float32) float64
	searchErr  error
	resets     int
	mu         sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{
		records: map[string]vectorstore.Record{},
		distanceFn: func(q, s []float32) float64 {
			// first component carries the distance in these tests
			d := float64(s[0] - q[0])
			if d < 0 {
				d = -d
			}
			return d
		},
	}
}

func (m *memStore) Add(_ context.Context, records []vectorstore.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.ID] = r
	}
	return nil
}

func (m *memStore) ExistingIDs(_ context.Context, ids []string) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]struct{}{}
	for _, id := range ids {
		if _, ok := m.records[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out, nil
}

func (m *memStore) Count(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func (m *memStore) Search(_ context.Context, embedding []float32, k int) ([]vectorstore.Match, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []vectorstore.Match
	for _, r := range m.records {
		matches = append(matches, vectorstore.Match{
			ID:       r.ID,
			Content:  r.Content,
			Source:   r.Source,
			Page:     r.Page,
			Distance: m.distanceFn(embedding, r.Embedding),
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func (m *memStore) Reset(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = map[string]vectorstore.Record{}
	m.resets++
	return nil
}

func (m *memStore) Close() error { return nil }

// fakeEmbedder maps a text to a one-dimensional vector via vectors, defaulting to 0.
type fakeEmbedder struct {
	vectors map[string]float32
	err     error
	batches [][]string
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.batches = append(f.batches, texts)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{f.vectors[t]}
	}
	return out, nil
}

type fakeChat struct {
	answer  string
	err     error
	prompts []string
}

func (f *fakeChat) Invoke(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.answer, f.err
}

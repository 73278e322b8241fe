package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Document is one entry in a named collection. A document without an
// embedding is invisible to similarity search but still reachable
// through keyword search.
type Document struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"embedding,omitempty"`
}

// SearchResult pairs a document with its similarity score
type SearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// CollectionStats summarizes one collection
type CollectionStats struct {
	Documents int `json:"documents"`
	Embedded  int `json:"embedded"`
}

// Store is a file-persisted vector document store with named
// collections. Every mutation rewrites the whole snapshot through a
// temp file and atomic rename, so a crash never leaves a truncated
// store behind.
type Store struct {
	mu          sync.RWMutex
	path        string
	embedder    Embedder
	collections map[string]map[string]Document
}

// New opens (or creates) a store backed by the given file
func New(path string, embedder Embedder) (*Store, error) {
	s := &Store{
		path:        path,
		embedder:    embedder,
		collections: make(map[string]map[string]Document),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}

	if err := json.Unmarshal(data, &s.collections); err != nil {
		return nil, fmt.Errorf("failed to parse store file %s: %w", path, err)
	}

	total := 0
	for _, docs := range s.collections {
		total += len(docs)
	}
	log.Printf("📚 Vector store loaded: %d collections, %d documents", len(s.collections), total)

	return s, nil
}

// AddDocuments upserts documents by id into a collection and persists
// synchronously. Documents without an embedding are embedded first;
// an embedding failure keeps the document (keyword search still
// works) rather than dropping it.
func (s *Store) AddDocuments(ctx context.Context, collection string, docs []Document) error {
	if collection == "" {
		return fmt.Errorf("collection name is required")
	}
	// Reject the whole batch up front so a bad document cannot leave
	// earlier batch entries applied without being persisted
	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document in collection %s has no id", collection)
		}
	}

	// Embed outside the lock
	var pending []int
	var texts []string
	for i, doc := range docs {
		if len(doc.Embedding) == 0 && doc.Content != "" {
			pending = append(pending, i)
			texts = append(texts, doc.Content)
		}
	}
	if len(pending) > 0 && s.embedder != nil {
		embeddings, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			log.Printf("⚠️  Embedding failed for %d documents, storing without vectors: %v", len(pending), err)
		} else {
			for j, idx := range pending {
				if j < len(embeddings) {
					docs[idx].Embedding = embeddings[j]
				}
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]Document)
		s.collections[collection] = coll
	}
	for _, doc := range docs {
		coll[doc.ID] = doc
	}

	return s.persistLocked()
}

// Search embeds the query and returns the top-K most similar embedded
// documents at or above minScore, best first.
func (s *Store) Search(ctx context.Context, collection, query string, topK int, minScore float64) ([]SearchResult, error) {
	if s.embedder == nil {
		return s.SearchByKeywords(collection, query, topK), nil
	}

	embeddings, err := s.embedder.Embed(ctx, []string{query})
	if err != nil || len(embeddings) == 0 {
		log.Printf("⚠️  Query embedding failed, using keyword search: %v", err)
		return s.SearchByKeywords(collection, query, topK), nil
	}
	queryVec := embeddings[0]

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	for _, doc := range s.collections[collection] {
		if len(doc.Embedding) == 0 {
			continue
		}
		score := cosine(queryVec, doc.Embedding)
		if score >= minScore {
			results = append(results, SearchResult{Document: doc, Score: score})
		}
	}

	sortResults(results)
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// SearchByKeywords is the no-embedding fallback: term-frequency
// scoring of query terms over content and metadata text.
func (s *Store) SearchByKeywords(collection, query string, topK int) []SearchResult {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	for _, doc := range s.collections[collection] {
		text := strings.ToLower(doc.Content)
		for _, v := range doc.Metadata {
			text += " " + strings.ToLower(v)
		}

		hits := 0
		for _, term := range terms {
			hits += strings.Count(text, term)
		}
		if hits > 0 {
			results = append(results, SearchResult{
				Document: doc,
				Score:    float64(hits) / float64(len(terms)),
			})
		}
	}

	sortResults(results)
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}

// GetDocument fetches a single document by id
func (s *Store) GetDocument(collection, id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[collection][id]
	return doc, ok
}

// GetStats reports document counts per collection
func (s *Store) GetStats() map[string]CollectionStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]CollectionStats, len(s.collections))
	for name, docs := range s.collections {
		cs := CollectionStats{Documents: len(docs)}
		for _, doc := range docs {
			if len(doc.Embedding) > 0 {
				cs.Embedded++
			}
		}
		stats[name] = cs
	}
	return stats
}

// ClearCollection removes a collection and persists the change
func (s *Store) ClearCollection(collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.collections, collection)
	return s.persistLocked()
}

// BuildContext assembles a bounded-size context block from the best
// matches for a query, for use in AI prompts.
func (s *Store) BuildContext(ctx context.Context, collection, query string, maxChars int) (string, error) {
	results, err := s.Search(ctx, collection, query, 10, 0.1)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, res := range results {
		if b.Len()+len(res.Document.Content)+1 > maxChars {
			break
		}
		b.WriteString(res.Document.Content)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// persistLocked writes the full snapshot. Caller holds the write lock.
func (s *Store) persistLocked() error {
	data, err := json.Marshal(s.collections)
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".store-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}

// cosine computes cosine similarity between two vectors
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func sortResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		// Map iteration order leaks in otherwise; id keeps it stable
		return results[i].Document.ID < results[j].Document.ID
	})
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r >= 0x80)
	})
	var out []string
	for _, f := range fields {
		if len(f) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

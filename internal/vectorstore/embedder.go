package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"time"
)

// Embedder produces embedding vectors for texts
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
}

// --- API embedder ---

// APIEmbedder calls an OpenAI-compatible /embeddings endpoint
type APIEmbedder struct {
	apiKey     string
	apiBase    string
	model      string
	dimensions int
	batchSize  int
	httpClient *http.Client
}

// NewAPIEmbedder creates an embedder backed by a remote model
func NewAPIEmbedder(apiKey, apiBase, model string, dimensions, batchSize int) *APIEmbedder {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &APIEmbedder{
		apiKey:     apiKey,
		apiBase:    apiBase,
		model:      model,
		dimensions: dimensions,
		batchSize:  batchSize,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (e *APIEmbedder) Dimensions() int { return e.dimensions }

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed processes texts in batches with a short inter-batch pause to
// stay under upstream rate limits
func (e *APIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := i + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch %d: %w", i/e.batchSize, err)
		}
		all = append(all, batch...)

		if end < len(texts) {
			select {
			case <-time.After(100 * time.Millisecond):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return all, nil
}

func (e *APIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody, err := json.Marshal(embeddingRequest{
		Model:      e.model,
		Input:      texts,
		Dimensions: e.dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/embeddings", e.apiBase)
	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", e.apiKey))

	resp, err := e.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result embeddingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	embeddings := make([][]float32, len(texts))
	for _, item := range result.Data {
		if item.Index < len(embeddings) {
			embeddings[item.Index] = item.Embedding
		}
	}
	return embeddings, nil
}

// --- local embedder ---

// Domain vocabulary for the no-API embedding path. Each term owns one
// vector dimension; everything else folds into hashed overflow
// buckets. Order is part of the format: changing it invalidates
// persisted vectors.
var domainVocabulary = []string{
	"apartment", "apartamento", "flat", "house", "moradia", "casa", "villa",
	"land", "terreno", "plot", "lote", "farm", "quinta", "ruin", "ruina",
	"urban", "urbano", "urbanizável", "rural", "rústico", "agrícola",
	"construção", "construction", "buildable", "renovated", "restore",
	"sale", "venda", "rent", "arrendamento", "price", "cheap", "luxury",
	"bedroom", "quarto", "bathroom", "garden", "jardim", "pool", "piscina",
	"garage", "garagem", "terrace", "balcony", "view", "sea", "mar",
	"beach", "praia", "river", "rio", "mountain", "serra", "center",
	"centro", "quiet", "sunny", "south", "north", "porto", "lisboa",
	"algarve", "faro", "braga", "coimbra",
}

const overflowBuckets = 32

// LocalEmbedder is the deterministic fallback used when no embedding
// API is configured. Identical text always produces bit-identical
// vectors, so similarity search stays testable offline.
type LocalEmbedder struct {
	index map[string]int
	dims  int
}

// NewLocalEmbedder creates the vocabulary-based embedder
func NewLocalEmbedder() *LocalEmbedder {
	index := make(map[string]int, len(domainVocabulary))
	for i, term := range domainVocabulary {
		index[term] = i
	}
	return &LocalEmbedder{
		index: index,
		dims:  len(domainVocabulary) + overflowBuckets,
	}
}

func (e *LocalEmbedder) Dimensions() int { return e.dims }

// Embed builds a term-frequency vector per text and L2-normalizes it
func (e *LocalEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *LocalEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dims)
	for _, term := range tokenize(text) {
		if idx, ok := e.index[term]; ok {
			vec[idx]++
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(term))
		vec[len(domainVocabulary)+int(h.Sum32()%overflowBuckets)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

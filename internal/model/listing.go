package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/pgvector/pgvector-go"
)

// Listing represents a property listing collected from one of the
// registered sources. Once it leaves the aggregator it is immutable;
// ranking only annotates the card that wraps it.
type Listing struct {
	ID           string          `json:"id" db:"id"`
	Source       string          `json:"source" db:"source"`
	SourceURL    string          `json:"source_url" db:"source_url"`
	Title        string          `json:"title" db:"title"`
	PriceEUR     float64         `json:"price_eur" db:"price_eur"`
	Bedrooms     *int            `json:"bedrooms,omitempty" db:"bedrooms"`
	Bathrooms    *int            `json:"bathrooms,omitempty" db:"bathrooms"`
	AreaSqm      *float64        `json:"area_sqm,omitempty" db:"area_sqm"`
	Latitude     *float64        `json:"latitude,omitempty" db:"latitude"`
	Longitude    *float64        `json:"longitude,omitempty" db:"longitude"`
	PropertyType *string         `json:"property_type,omitempty" db:"property_type"`
	ListingType  *string         `json:"listing_type,omitempty" db:"listing_type"` // sale or rent
	Location     *string         `json:"location,omitempty" db:"location"`
	Description  string          `json:"description,omitempty" db:"description"`
	Photos       JSONArray       `json:"photos,omitempty" db:"photos"`
	Embedding    pgvector.Vector `json:"-" db:"embedding"`
	LastSeen     time.Time       `json:"last_seen" db:"last_seen"`
}

// ListingCard is a listing annotated with per-search metadata.
type ListingCard struct {
	Listing
	RelevanceScore  int      `json:"relevance_score"`
	RelevanceReason string   `json:"relevance_reason,omitempty"`
	DistanceKm      *float64 `json:"distance_km,omitempty"`
}

// RelevanceResult is the per-listing verdict of the ranking engine.
// Produced fresh per search; only ever lives attached to a card.
type RelevanceResult struct {
	ID         string `json:"id"`
	IsRelevant bool   `json:"is_relevant"`
	Score      int    `json:"score"` // 0-100
	Reasoning  string `json:"reasoning,omitempty"`
}

// ProviderInfo describes one AI backend as seen by admin routes.
type ProviderInfo struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Available bool     `json:"available"`
	Models    []string `json:"models,omitempty"`
	IsCloud   bool     `json:"is_cloud"`
}

// JSONArray represents a JSON array field
type JSONArray []string

// Value implements driver.Valuer interface
func (j JSONArray) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return json.Unmarshal([]byte(value.(string)), j)
	}
	return json.Unmarshal(bytes, j)
}

// JSONMap represents a JSON object field
type JSONMap map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONMap) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return json.Unmarshal([]byte(value.(string)), j)
	}
	return json.Unmarshal(bytes, j)
}

// ListingEmbedding pairs a listing id with its embedding vector
type ListingEmbedding struct {
	ID        string    `json:"id" binding:"required"`
	Embedding []float32 `json:"embedding" binding:"required"`
}

// EmbeddingBatchRequest carries embeddings computed offline
type EmbeddingBatchRequest struct {
	Embeddings []ListingEmbedding `json:"embeddings" binding:"required"`
}

// EmbeddingBatchResponse reports per-batch update results
type EmbeddingBatchResponse struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

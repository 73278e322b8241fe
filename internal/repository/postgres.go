package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"propfinder/internal/model"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// PostgresRepository persists previously seen listings plus search
// and feedback logs. It doubles as a listing source: indexed listings
// from earlier searches are queryable like any external adapter.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository connects and verifies the database
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	// Disable prepared statement caching to avoid "unnamed prepared statement does not exist" errors
	if !strings.Contains(dsn, "?") {
		dsn += "?prefer_simple_protocol=true"
	} else {
		dsn += "&prefer_simple_protocol=true"
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// InitSchema creates the tables if they do not exist yet
func (r *PostgresRepository) InitSchema(ctx context.Context) error {
	schema := `
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS listings (
		id            TEXT PRIMARY KEY,
		source        TEXT NOT NULL,
		source_url    TEXT NOT NULL,
		title         TEXT NOT NULL,
		price_eur     DOUBLE PRECISION NOT NULL,
		bedrooms      INTEGER,
		bathrooms     INTEGER,
		area_sqm      DOUBLE PRECISION,
		latitude      DOUBLE PRECISION,
		longitude     DOUBLE PRECISION,
		property_type TEXT,
		listing_type  TEXT,
		location      TEXT,
		description   TEXT NOT NULL DEFAULT '',
		photos        JSONB,
		embedding     vector(256),
		last_seen     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_listings_price ON listings (price_eur);
	CREATE INDEX IF NOT EXISTS idx_listings_type ON listings (property_type);

	CREATE TABLE IF NOT EXISTS search_log (
		search_id  TEXT PRIMARY KEY,
		query      TEXT NOT NULL,
		match_type TEXT NOT NULL,
		results    INTEGER NOT NULL,
		took_ms    BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS feedback_log (
		id         BIGSERIAL PRIMARY KEY,
		search_id  TEXT NOT NULL,
		listing_id TEXT NOT NULL,
		action     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

// ListingFilters narrows SearchListings
type ListingFilters struct {
	MinPriceEUR  *float64
	MaxPriceEUR  *float64
	PropertyType *string
	ListingType  *string
	Location     *string
	Limit        int
}

const listingColumns = `id, source, source_url, title, price_eur, bedrooms, bathrooms,
	area_sqm, latitude, longitude, property_type, listing_type, location,
	description, photos, last_seen`

// SearchListings returns indexed listings matching the filters,
// freshest first
func (r *PostgresRepository) SearchListings(ctx context.Context, filters ListingFilters) ([]model.Listing, error) {
	whereClauses := []string{"1=1"}
	args := []interface{}{}
	argIndex := 1

	if filters.MinPriceEUR != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("price_eur >= $%d", argIndex))
		args = append(args, *filters.MinPriceEUR)
		argIndex++
	}
	if filters.MaxPriceEUR != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("price_eur <= $%d", argIndex))
		args = append(args, *filters.MaxPriceEUR)
		argIndex++
	}
	if filters.PropertyType != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("property_type ILIKE $%d", argIndex))
		args = append(args, "%"+*filters.PropertyType+"%")
		argIndex++
	}
	if filters.ListingType != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("listing_type = $%d", argIndex))
		args = append(args, *filters.ListingType)
		argIndex++
	}
	if filters.Location != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("location ILIKE $%d", argIndex))
		args = append(args, "%"+*filters.Location+"%")
		argIndex++
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM listings WHERE %s ORDER BY last_seen DESC LIMIT $%d`,
		listingColumns, strings.Join(whereClauses, " AND "), argIndex)
	args = append(args, limit)

	var listings []model.Listing
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}
	return listings, nil
}

// GetListingByID fetches one listing, nil when absent
func (r *PostgresRepository) GetListingByID(ctx context.Context, id string) (*model.Listing, error) {
	var listing model.Listing
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE id = $1`, listingColumns)
	err := r.db.GetContext(ctx, &listing, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &listing, nil
}

// UpsertListing inserts or refreshes one listing by id
func (r *PostgresRepository) UpsertListing(ctx context.Context, l model.Listing) error {
	query := `
	INSERT INTO listings (id, source, source_url, title, price_eur, bedrooms, bathrooms,
		area_sqm, latitude, longitude, property_type, listing_type, location,
		description, photos, last_seen)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		price_eur = EXCLUDED.price_eur,
		bedrooms = EXCLUDED.bedrooms,
		bathrooms = EXCLUDED.bathrooms,
		area_sqm = EXCLUDED.area_sqm,
		latitude = EXCLUDED.latitude,
		longitude = EXCLUDED.longitude,
		property_type = EXCLUDED.property_type,
		listing_type = EXCLUDED.listing_type,
		location = EXCLUDED.location,
		description = EXCLUDED.description,
		photos = EXCLUDED.photos,
		last_seen = EXCLUDED.last_seen
	`
	_, err := r.db.ExecContext(ctx, query,
		l.ID, l.Source, l.SourceURL, l.Title, l.PriceEUR, l.Bedrooms, l.Bathrooms,
		l.AreaSqm, l.Latitude, l.Longitude, l.PropertyType, l.ListingType, l.Location,
		l.Description, l.Photos, l.LastSeen)
	if err != nil {
		return fmt.Errorf("failed to upsert listing: %w", err)
	}
	return nil
}

// BatchUpdateEmbeddings stores embeddings for many listings in one
// transaction. Returns how many succeeded plus per-listing errors.
func (r *PostgresRepository) BatchUpdateEmbeddings(ctx context.Context, embeddings map[string][]float32) (int, []string) {
	success := 0
	var errs []string

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		errs = append(errs, fmt.Sprintf("failed to start transaction: %v", err))
		return success, errs
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `UPDATE listings SET embedding = $1 WHERE id = $2`)
	if err != nil {
		errs = append(errs, fmt.Sprintf("failed to prepare statement: %v", err))
		return success, errs
	}
	defer stmt.Close()

	for id, embedding := range embeddings {
		if _, err := stmt.ExecContext(ctx, pgvector.NewVector(embedding), id); err != nil {
			errs = append(errs, fmt.Sprintf("listing %s: %v", id, err))
			continue
		}
		success++
	}

	if err := tx.Commit(); err != nil {
		errs = append(errs, fmt.Sprintf("failed to commit: %v", err))
		return 0, errs
	}
	return success, errs
}

// VectorSearch returns the listings nearest to the query embedding
func (r *PostgresRepository) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]model.Listing, error) {
	if limit <= 0 {
		limit = 10
	}
	vec := pgvector.NewVector(embedding)
	query := fmt.Sprintf(`
		SELECT %s FROM listings
		WHERE embedding IS NOT NULL
		ORDER BY embedding <=> $1
		LIMIT $2
	`, listingColumns)

	var listings []model.Listing
	if err := r.db.SelectContext(ctx, &listings, query, vec, limit); err != nil {
		return nil, fmt.Errorf("failed to run vector search: %w", err)
	}
	return listings, nil
}

// SimilarListings returns the listings nearest to the stored
// embedding of the given listing, excluding the listing itself.
// Returns an empty slice when the listing has no embedding yet.
func (r *PostgresRepository) SimilarListings(ctx context.Context, id string, limit int) ([]model.Listing, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`
		SELECT %s FROM listings
		WHERE embedding IS NOT NULL AND id <> $1
			AND (SELECT embedding FROM listings WHERE id = $1) IS NOT NULL
		ORDER BY embedding <=> (SELECT embedding FROM listings WHERE id = $1)
		LIMIT $2
	`, listingColumns)

	var listings []model.Listing
	if err := r.db.SelectContext(ctx, &listings, query, id, limit); err != nil {
		return nil, fmt.Errorf("failed to find similar listings: %w", err)
	}
	return listings, nil
}

// LogSearch records one completed search
func (r *PostgresRepository) LogSearch(ctx context.Context, searchID, query, matchType string, results int, tookMs int64) error {
	q := `INSERT INTO search_log (search_id, query, match_type, results, took_ms)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (search_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, q, searchID, query, matchType, results, tookMs); err != nil {
		return fmt.Errorf("failed to log search: %w", err)
	}
	return nil
}

// LogFeedback records a user action on a listing card
func (r *PostgresRepository) LogFeedback(ctx context.Context, searchID, listingID, action string) error {
	q := `INSERT INTO feedback_log (search_id, listing_id, action) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, q, searchID, listingID, action); err != nil {
		return fmt.Errorf("failed to log feedback: %w", err)
	}
	return nil
}

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"househunters/models"
)

// Store is the local sqlite file backing the enrichment caches, saved
// searches, and user preferences.
type Store struct {
	db *sql.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS school_cache (
		zpid TEXT PRIMARY KEY,
		data JSON NOT NULL,
		fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS crime_cache (
		zipcode TEXT PRIMARY KEY,
		data JSON NOT NULL,
		fetched_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS saved_searches (
		id INTEGER PRIMARY KEY,
		kind TEXT NOT NULL,
		source_url TEXT,
		criteria JSON,
		results JSON,
		result_count INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS preferences (
		key TEXT PRIMARY KEY,
		value JSON NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SchoolRatings returns the cached ratings for a zpid, or nil on a miss.
func (s *Store) SchoolRatings(ctx context.Context, zpid string) (*models.SchoolRatings, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM school_cache WHERE zpid = ?`, zpid).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var r models.SchoolRatings
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) PutSchoolRatings(ctx context.Context, zpid string, r *models.SchoolRatings) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO school_cache (zpid, data, fetched_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(zpid) DO UPDATE SET data = excluded.data, fetched_at = CURRENT_TIMESTAMP`,
		zpid, data)
	return err
}

// CrimeGrade returns the cached grade for a zipcode, or nil on a miss.
func (s *Store) CrimeGrade(ctx context.Context, zipcode string) (*models.CrimeGrade, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM crime_cache WHERE zipcode = ?`, zipcode).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var g models.CrimeGrade
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) PutCrimeGrade(ctx context.Context, zipcode string, g *models.CrimeGrade) error {
	data, err := json.Marshal(g)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO crime_cache (zipcode, data, fetched_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(zipcode) DO UPDATE SET data = excluded.data, fetched_at = CURRENT_TIMESTAMP`,
		zipcode, data)
	return err
}

// PruneCrimeCache drops grades fetched before the TTL so stale neighborhoods
// are refetched eventually.
func (s *Store) PruneCrimeCache(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl).UTC().Format("2006-01-02 15:04:05")
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM crime_cache WHERE fetched_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Only the most recent snapshots are kept; older rows are pruned on insert.
const savedSearchKeep = 20

// SavedSearch is one archived result snapshot.
type SavedSearch struct {
	ID          int64           `json:"id"`
	Kind        string          `json:"kind"`
	SourceURL   string          `json:"source_url"`
	Criteria    json.RawMessage `json:"criteria,omitempty"`
	Results     json.RawMessage `json:"results,omitempty"`
	ResultCount int             `json:"result_count"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (s *Store) SaveSearch(ctx context.Context, kind, sourceURL string, criteria models.SearchCriteria, results []*models.Property) (int64, error) {
	critJSON, err := json.Marshal(criteria)
	if err != nil {
		return 0, err
	}
	resJSON, err := json.Marshal(results)
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO saved_searches (kind, source_url, criteria, results, result_count)
		VALUES (?, ?, ?, ?, ?)`,
		kind, sourceURL, critJSON, resJSON, len(results))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM saved_searches WHERE id NOT IN (
			SELECT id FROM saved_searches ORDER BY created_at DESC, id DESC LIMIT ?)`,
		savedSearchKeep); err != nil {
		return id, err
	}
	return id, nil
}

// ListSavedSearches returns the most recent snapshots without their result
// payloads.
func (s *Store) ListSavedSearches(ctx context.Context, limit int) ([]SavedSearch, error) {
	if limit <= 0 {
		limit = savedSearchKeep
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, source_url, result_count, created_at
		FROM saved_searches ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SavedSearch
	for rows.Next() {
		var ss SavedSearch
		if err := rows.Scan(&ss.ID, &ss.Kind, &ss.SourceURL, &ss.ResultCount, &ss.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, ss)
	}
	return out, rows.Err()
}

func (s *Store) GetSavedSearch(ctx context.Context, id int64) (*SavedSearch, error) {
	var ss SavedSearch
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, source_url, criteria, results, result_count, created_at
		FROM saved_searches WHERE id = ?`, id).
		Scan(&ss.ID, &ss.Kind, &ss.SourceURL, &ss.Criteria, &ss.Results, &ss.ResultCount, &ss.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ss, nil
}

// Preference reads a preference value into dst; ok=false when unset.
func (s *Store) Preference(ctx context.Context, key string, dst any) (bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(data, dst)
}

func (s *Store) SetPreference(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, data)
	return err
}

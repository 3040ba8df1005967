// Package sources keeps the roster of watched publishers in SQLite: which
// homepages to poll, how often, per-site scrape profiles, and the running
// fetch status the watcher uses to decide when a source has gone bad.
package sources

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound     = errors.New("source not found")
	ErrDuplicateURL = errors.New("source with this URL already exists")
	ErrInvalidURL   = errors.New("source URL must be absolute http or https")
)

// Store manages the source roster and a small settings table.
type Store struct {
	db *sql.DB
}

// Source is one watched publisher.
type Source struct {
	SourceID        uuid.UUID      `json:"source_id"`
	URL             string         `json:"url"`
	Name            string         `json:"name"`
	EnabledAt       *time.Time     `json:"enabled_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	PollInterval    *string        `json:"poll_interval,omitempty"`
	LastFetchedAt   *time.Time     `json:"last_fetched_at,omitempty"`
	LastMethod      *string        `json:"last_method,omitempty"`
	FetchErrorCount int            `json:"fetch_error_count"`
	LastError       *string        `json:"last_error,omitempty"`
	Profile         *ScrapeProfile `json:"profile,omitempty"`
}

// IsEnabled reports whether the source is currently enabled.
func (s *Source) IsEnabled() bool {
	return s.EnabledAt != nil
}

// Update holds the fields an Update call may change. Nil pointer fields are
// left untouched; the Clear flags set their column to NULL.
type Update struct {
	Name            *string
	URL             *string
	EnabledAt       *time.Time
	ClearEnabledAt  bool
	PollInterval    *string
	Profile         *ScrapeProfile
	LastFetchedAt   *time.Time
	LastMethod      *string
	FetchErrorCount *int
	LastError       *string
	ClearLastError  bool
}

// Filter selects which sources List returns.
type Filter struct {
	Enabled *bool
	Limit   int
	Offset  int
}

// Settings is the roster-wide configuration kept in the settings table.
type Settings struct {
	DefaultPollInterval string `json:"default_poll_interval"`
}

// DefaultPollInterval applies when neither the source nor the settings table
// names one.
const DefaultPollInterval = "1h"

// Open opens (creating if necessary) the roster database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening roster database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing roster schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sources (
		source_id TEXT PRIMARY KEY,
		url TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		enabled_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		poll_interval TEXT,
		last_fetched_at TEXT,
		last_method TEXT,
		fetch_error_count INTEGER DEFAULT 0,
		last_error TEXT,
		profile TEXT
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create adds a new source. A nil enabledAt creates the source disabled.
func (s *Store) Create(rawURL, name string, profile *ScrapeProfile, enabledAt *time.Time) (*Source, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidURL
	}

	now := time.Now()
	source := &Source{
		SourceID:  uuid.New(),
		URL:       rawURL,
		Name:      name,
		EnabledAt: enabledAt,
		CreatedAt: now,
		UpdatedAt: now,
		Profile:   profile,
	}

	profileJSON, err := marshalProfile(profile)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO sources (
			source_id, url, name, enabled_at, created_at, updated_at, profile
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.Exec(query,
		source.SourceID.String(),
		source.URL,
		source.Name,
		formatTime(source.EnabledAt),
		formatTime(&source.CreatedAt),
		formatTime(&source.UpdatedAt),
		profileJSON,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateURL
		}
		return nil, fmt.Errorf("inserting source: %w", err)
	}

	return source, nil
}

const sourceColumns = `source_id, url, name, enabled_at, created_at, updated_at,
	poll_interval, last_fetched_at, last_method, fetch_error_count, last_error, profile`

// Get retrieves a source by ID.
func (s *Store) Get(sourceID uuid.UUID) (*Source, error) {
	query := "SELECT " + sourceColumns + " FROM sources WHERE source_id = ?"

	source, err := scanSource(s.db.QueryRow(query, sourceID.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying source: %w", err)
	}

	return source, nil
}

// List returns sources matching the filter, newest first.
func (s *Store) List(filter Filter) ([]Source, error) {
	query := "SELECT " + sourceColumns + " FROM sources"

	if filter.Enabled != nil {
		if *filter.Enabled {
			query += " WHERE enabled_at IS NOT NULL"
		} else {
			query += " WHERE enabled_at IS NULL"
		}
	}

	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying sources: %w", err)
	}
	defer rows.Close()

	var out []Source
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning source: %w", err)
		}
		out = append(out, *source)
	}

	return out, rows.Err()
}

// Update applies the set fields of update to the source.
func (s *Store) Update(sourceID uuid.UUID, update Update) error {
	setClauses := []string{"updated_at = ?"}
	now := time.Now()
	args := []any{formatTime(&now)}

	set := func(clause string, arg any) {
		setClauses = append(setClauses, clause)
		args = append(args, arg)
	}

	if update.Name != nil {
		set("name = ?", *update.Name)
	}
	if update.URL != nil {
		set("url = ?", *update.URL)
	}
	if update.ClearEnabledAt {
		set("enabled_at = ?", nil)
	} else if update.EnabledAt != nil {
		set("enabled_at = ?", formatTime(update.EnabledAt))
	}
	if update.PollInterval != nil {
		set("poll_interval = ?", *update.PollInterval)
	}
	if update.Profile != nil {
		profileJSON, err := marshalProfile(update.Profile)
		if err != nil {
			return err
		}
		set("profile = ?", profileJSON)
	}
	if update.LastFetchedAt != nil {
		set("last_fetched_at = ?", formatTime(update.LastFetchedAt))
	}
	if update.LastMethod != nil {
		set("last_method = ?", *update.LastMethod)
	}
	if update.FetchErrorCount != nil {
		set("fetch_error_count = ?", *update.FetchErrorCount)
	}
	if update.ClearLastError {
		set("last_error = ?", nil)
	} else if update.LastError != nil {
		set("last_error = ?", *update.LastError)
	}

	args = append(args, sourceID.String())
	query := fmt.Sprintf("UPDATE sources SET %s WHERE source_id = ?",
		strings.Join(setClauses, ", "))

	result, err := s.db.Exec(query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateURL
		}
		return fmt.Errorf("updating source: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a source from the roster.
func (s *Store) Delete(sourceID uuid.UUID) error {
	result, err := s.db.Exec("DELETE FROM sources WHERE source_id = ?", sourceID.String())
	if err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// Settings returns the roster-wide settings, with defaults for keys that
// were never written.
func (s *Store) Settings() (*Settings, error) {
	settings := &Settings{DefaultPollInterval: DefaultPollInterval}

	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", "default_poll_interval").Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying settings: %w", err)
	}

	settings.DefaultPollInterval = value
	return settings, nil
}

// SaveSettings persists the roster-wide settings.
func (s *Store) SaveSettings(settings *Settings) error {
	query := "INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)"
	if _, err := s.db.Exec(query, "default_poll_interval", settings.DefaultPollInterval); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows so Get and List share one scan
// path.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*Source, error) {
	var (
		sourceIDStr, rawURL, name, createdAtStr, updatedAtStr string

		enabledAtStr, pollInterval, lastFetchedAtStr sql.NullString
		lastMethod, lastError, profileJSON           sql.NullString

		fetchErrorCount int
	)

	err := row.Scan(
		&sourceIDStr, &rawURL, &name,
		&enabledAtStr, &createdAtStr, &updatedAtStr,
		&pollInterval, &lastFetchedAtStr, &lastMethod,
		&fetchErrorCount, &lastError, &profileJSON,
	)
	if err != nil {
		return nil, err
	}

	sourceID, err := uuid.Parse(sourceIDStr)
	if err != nil {
		return nil, fmt.Errorf("parsing source ID: %w", err)
	}

	source := &Source{
		SourceID:        sourceID,
		URL:             rawURL,
		Name:            name,
		CreatedAt:       parseTime(createdAtStr),
		UpdatedAt:       parseTime(updatedAtStr),
		FetchErrorCount: fetchErrorCount,
	}

	if enabledAtStr.Valid {
		t := parseTime(enabledAtStr.String)
		source.EnabledAt = &t
	}
	if lastFetchedAtStr.Valid {
		t := parseTime(lastFetchedAtStr.String)
		source.LastFetchedAt = &t
	}
	if pollInterval.Valid {
		source.PollInterval = &pollInterval.String
	}
	if lastMethod.Valid {
		source.LastMethod = &lastMethod.String
	}
	if lastError.Valid {
		source.LastError = &lastError.String
	}
	if profileJSON.Valid {
		var profile ScrapeProfile
		if err := json.Unmarshal([]byte(profileJSON.String), &profile); err != nil {
			return nil, fmt.Errorf("decoding scrape profile: %w", err)
		}
		source.Profile = &profile
	}

	return source, nil
}

func marshalProfile(profile *ScrapeProfile) (*string, error) {
	if profile == nil {
		return nil, nil
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("encoding scrape profile: %w", err)
	}
	s := string(data)
	return &s, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint") ||
		strings.Contains(err.Error(), "unique constraint")
}

// formatTime strips the monotonic clock so stored and reloaded timestamps
// compare equal.
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Truncate(0).Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t.Truncate(0)
}

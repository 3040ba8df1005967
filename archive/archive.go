// Package archive persists accepted articles as one JSON file per record.
//
// Records are keyed by ID and written under a single directory, which keeps
// the archive greppable and trivially portable. Listing tolerates individual
// damaged files and reports them alongside the records that did load.
package archive

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pevans/newshound"
)

// Archive is a directory-backed store of fetch records.
type Archive struct {
	dir string
}

// New returns an Archive rooted at dir, creating it if needed.
func New(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating archive directory: %w", err)
	}

	return &Archive{dir: dir}, nil
}

// Dir returns the directory the archive writes into.
func (a *Archive) Dir() string {
	return a.dir
}

// Add writes rec to the archive and returns it with any generated fields
// filled in. A zero ID is assigned and a zero FetchedAt is stamped with the
// current time.
func (a *Archive) Add(rec newshound.Record) (newshound.Record, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return newshound.Record{}, fmt.Errorf("encoding record: %w", err)
	}

	if err := os.WriteFile(a.path(rec.ID), data, 0o600); err != nil {
		return newshound.Record{}, fmt.Errorf("writing record: %w", err)
	}

	return rec, nil
}

// List returns every readable record, newest first. Files that cannot be
// read or decoded are reported as ReadErrors without failing the listing;
// the returned error is non-nil only when the directory itself is
// unreadable.
func (a *Archive) List() ([]newshound.Record, []newshound.ReadError, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, nil, fmt.Errorf("reading archive directory: %w", err)
	}

	var (
		records  []newshound.Record
		readErrs []newshound.ReadError
	)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(a.dir, entry.Name()))
		if err != nil {
			readErrs = append(readErrs, newshound.ReadError{Filename: entry.Name(), Err: err})
			continue
		}

		var rec newshound.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			readErrs = append(readErrs, newshound.ReadError{Filename: entry.Name(), Err: err})
			continue
		}

		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].FetchedAt.After(records[j].FetchedAt)
	})

	return records, readErrs, nil
}

// HasURL reports whether any archived record holds the given article URL.
func (a *Archive) HasURL(rawURL string) (bool, error) {
	records, _, err := a.List()
	if err != nil {
		return false, err
	}

	for _, rec := range records {
		if rec.Article.URL == rawURL {
			return true, nil
		}
	}

	return false, nil
}

// Get returns the record with the given ID, or nil if no such record exists.
func (a *Archive) Get(id uuid.UUID) (*newshound.Record, error) {
	data, err := os.ReadFile(a.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading record: %w", err)
	}

	var rec newshound.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", id, err)
	}

	return &rec, nil
}

// Delete removes the record with the given ID. Deleting a record that does
// not exist is an error.
func (a *Archive) Delete(id uuid.UUID) error {
	if err := os.Remove(a.path(id)); err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}

	return nil
}

func (a *Archive) path(id uuid.UUID) string {
	return filepath.Join(a.dir, id.String()+".json")
}

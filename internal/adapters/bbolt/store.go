// Package bbolt implements the ports.History interface using bbolt (embedded B+ tree).
// Two top-level buckets hold JSON-serialized records: "imports" keyed by import
// id and "runs" keyed by ULID run id. Writes are transactional; a crash
// mid-write cannot corrupt previously committed data.
package bbolt

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/corey/cpbench/internal/ports"
	bolt "go.etcd.io/bbolt"
)

// Bucket keys
var (
	bucketImports = []byte("imports")
	bucketRuns    = []byte("runs")
)

// Store implements ports.History backed by bbolt.
type Store struct {
	db *bolt.DB
}

var _ ports.History = (*Store)(nil)

// NewStore opens (or creates) a bbolt database at the given path.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketImports, bucketRuns} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bbolt init buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveImport records a terminal import decision.
func (s *Store) SaveImport(rec ports.ImportRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("import record without id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal import: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketImports).Put([]byte(rec.ID), data)
	})
}

// ListImports returns up to limit records, most recently decided first.
// Import ids are random, so the whole bucket is read and sorted.
func (s *Store) ListImports(limit int) ([]ports.ImportRecord, error) {
	var out []ports.ImportRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketImports).ForEach(func(k, v []byte) error {
			var rec ports.ImportRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal import %s: %w", k, err)
			}
			out = append(out, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DecidedAt.After(out[j].DecidedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SaveRun records a run summary. Run ids are ULIDs, so byte order is
// chronological order.
func (s *Store) SaveRun(rec ports.RunRecord) error {
	if rec.RunID == "" {
		return fmt.Errorf("run record without id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRuns).Put([]byte(rec.RunID), data)
	})
}

// ListRuns walks the runs bucket backwards and returns up to limit records.
func (s *Store) ListRuns(limit int) ([]ports.RunRecord, error) {
	var out []ports.RunRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketRuns).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			// json.Unmarshal copies, so v need not outlive the tx.
			var rec ports.RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal run %s: %w", k, err)
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var runsBucket = []byte("runs")

const maxRuns = 200

const (
	KindAgent     = "agent"
	KindDashboard = "dashboard"
)

// Run is one completed agent or dashboard invocation.
type Run struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Client     string    `json:"client,omitempty"`
	Query      string    `json:"query"`
	Result     string    `json:"result"`
	Failed     bool      `json:"failed"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

type Store interface {
	SaveRun(r *Run) error
	GetRun(id string) (*Run, error)
	ListRuns(limit int) ([]Run, error)
	Close() error
}

// BoltStore keeps runs keyed by UUIDv7, so key order is creation order.
type BoltStore struct {
	db   *bolt.DB
	keep int
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating runs bucket: %w", err)
	}

	return &BoltStore{db: db, keep: maxRuns}, nil
}

// SaveRun assigns an ID and timestamp when missing, stores r and drops the
// oldest runs beyond the retention cap.
func (s *BoltStore) SaveRun(r *Run) error {
	if r.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generating run id: %w", err)
		}
		r.ID = id.String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		b := tx.Bucket(runsBucket)
		if err := b.Put([]byte(r.ID), data); err != nil {
			return err
		}

		c := b.Cursor()
		excess := -s.keep
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			excess++
		}
		for k, _ := c.First(); k != nil && excess > 0; k, _ = c.First() {
			if err := c.Delete(); err != nil {
				return err
			}
			excess--
		}
		return nil
	})
}

// GetRun returns nil when no run has the given ID.
func (s *BoltStore) GetRun(id string) (*Run, error) {
	var r *Run
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(runsBucket).Get([]byte(id))
		if v == nil {
			return nil
		}
		r = &Run{}
		return json.Unmarshal(v, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRuns returns up to limit runs, newest first.
func (s *BoltStore) ListRuns(limit int) ([]Run, error) {
	runs := []Run{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(runsBucket).Cursor()
		for k, v := c.Last(); k != nil && (limit <= 0 || len(runs) < limit); k, v = c.Prev() {
			var r Run
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decoding run %s: %w", k, err)
			}
			runs = append(runs, r)
		}
		return nil
	})
	return runs, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

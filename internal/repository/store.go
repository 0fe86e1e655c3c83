package repository

import (
	"context"
	"errors"
	"nearby-guide/internal/category"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Status describes the dataset currently served.
type Status struct {
	Source    string    `json:"source"`
	Places    int       `json:"places"`
	Clinics   int       `json:"clinics"`
	Stats     LoadStats `json:"stats"`
	LoadedAt  time.Time `json:"loaded_at"`
	Banner    string    `json:"banner,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Store holds the current snapshot. Reloads build a complete new snapshot and
// swap it in atomically; readers always see either the old or the new set.
type Store struct {
	current    atomic.Pointer[Snapshot]
	normalizer category.Normalizer
	logr       *zap.Logger

	mu     sync.Mutex // serializes loads and guards status
	status Status
}

func NewStore(normalizer category.Normalizer, logr *zap.Logger) *Store {
	s := &Store{normalizer: normalizer, logr: logr}
	s.current.Store(New(nil, normalizer))
	return s
}

// Snapshot returns the snapshot in service.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// Replace swaps in a prepared snapshot.
func (s *Store) Replace(snap *Snapshot) {
	s.current.Store(snap)
}

// Load fetches and decodes src and swaps the result in. On failure the previous
// snapshot stays in service (empty on first load) and the error is recorded for the banner.
func (s *Store) Load(ctx context.Context, src Source) (LoadStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := src.Fetch(ctx)
	if err != nil {
		return LoadStats{}, s.fail(src, &LoadError{Source: src.Name(), Err: err})
	}

	places, stats, err := Decode(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.Source = src.Name()
		}
		return stats, s.fail(src, err)
	}

	snap := New(places, s.normalizer)
	stats.Duplicates = snap.Duplicates()
	s.current.Store(snap)

	if stats.Malformed > 0 {
		s.logr.Warn("skipped malformed place records",
			zap.String("source", src.Name()),
			zap.Int("malformed", stats.Malformed))
	}
	s.logr.Info("places loaded",
		zap.String("source", src.Name()),
		zap.Int("records", snap.Len()),
		zap.Int("duplicates", stats.Duplicates))

	s.status = Status{
		Source:   src.Name(),
		Places:   len(snap.Places()),
		Clinics:  len(snap.Clinics()),
		Stats:    stats,
		LoadedAt: time.Now().UTC(),
	}
	return stats, nil
}

func (s *Store) fail(src Source, err error) error {
	s.logr.Error("failed to load places", zap.String("source", src.Name()), zap.Error(err))
	s.status.Source = src.Name()
	s.status.LastError = err.Error()
	s.status.Banner = "Could not load the curated places list. Showing the last available data; please try again later."
	if s.current.Load().Len() == 0 {
		s.status.Banner = "Could not load the curated places list. Please make sure the places data is deployed and try again."
	}
	return err
}

// Status returns the load status for display.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

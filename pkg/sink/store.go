package sink

import (
	"context"

	"github.com/elonfeng/dailyscope/internal/store"
)

// Store persists each run into the SQLite store.
type Store struct {
	db store.Store
}

// NewStore creates a sink backed by db.
func NewStore(db store.Store) *Store {
	return &Store{db: db}
}

func (s *Store) Name() string { return "store" }

func (s *Store) Write(ctx context.Context, out Output) error {
	return s.db.SaveRun(ctx, store.Run{
		ID:          out.RunID,
		StartedAt:   out.StartedAt,
		FinishedAt:  out.GeneratedAt,
		FailedUnits: out.FailedUnits,
	}, out.Stories)
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/dailyscope/pkg/source"
	"github.com/elonfeng/dailyscope/pkg/virality"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// Run is one completed pipeline run.
type Run struct {
	ID              string    `db:"id" json:"id"`
	StartedAt       time.Time `db:"started_at" json:"started_at"`
	FinishedAt      time.Time `db:"finished_at" json:"finished_at"`
	StoryCount      int       `db:"story_count" json:"story_count"`
	FailedUnitsJSON string    `db:"failed_units" json:"-"`
	FailedUnits     []string  `db:"-" json:"failed_units"`
}

type storyRow struct {
	RunID         string        `db:"run_id"`
	Rank          int           `db:"rank"`
	Title         string        `db:"title"`
	URL           string        `db:"url"`
	Source        string        `db:"source"`
	Type          string        `db:"type"`
	Position      sql.NullInt64 `db:"position"`
	Upvotes       sql.NullInt64 `db:"upvotes"`
	Sort          string        `db:"sort"`
	ViralityScore int           `db:"virality_score"`
	CollectedAt   time.Time     `db:"collected_at"`
}

// Store is the persistence interface.
type Store interface {
	SaveRun(ctx context.Context, run Run, stories []virality.ScoredStory) error
	GetRun(ctx context.Context, id string) (*Run, error)
	LatestRun(ctx context.Context) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	RunStories(ctx context.Context, runID string) ([]virality.ScoredStory, error)
	PruneRuns(ctx context.Context, keep int) (int64, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun stores a run and its ranked stories in one transaction. Ranks are
// 1-based and follow the order of stories.
func (s *SQLiteStore) SaveRun(ctx context.Context, run Run, stories []virality.ScoredStory) error {
	failed := run.FailedUnits
	if failed == nil {
		failed = []string{}
	}
	failedJSON, _ := json.Marshal(failed)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, story_count, failed_units)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), len(stories), string(failedJSON))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	for i, st := range stories {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO stories (run_id, rank, title, url, source, type, position, upvotes, sort, virality_score, collected_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, i+1, st.Title, st.URL, st.Source, string(st.Type),
			nullInt(st.Position), nullInt(st.Upvotes), string(st.Sort),
			st.ViralityScore, st.CollectedAt.UTC())
		if err != nil {
			return fmt.Errorf("insert story %d of run %s: %w", i+1, run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, "SELECT * FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	decodeRun(&run)
	return &run, nil
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run, "SELECT * FROM runs ORDER BY finished_at DESC, rowid DESC LIMIT 1")
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("latest run: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("latest run: %w", err)
	}
	decodeRun(&run)
	return &run, nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	var runs []Run
	if err := s.db.SelectContext(ctx, &runs,
		"SELECT * FROM runs ORDER BY finished_at DESC, rowid DESC LIMIT ?", limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	for i := range runs {
		decodeRun(&runs[i])
	}
	return runs, nil
}

func (s *SQLiteStore) RunStories(ctx context.Context, runID string) ([]virality.ScoredStory, error) {
	var rows []storyRow
	if err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM stories WHERE run_id = ? ORDER BY rank", runID); err != nil {
		return nil, fmt.Errorf("list stories of run %s: %w", runID, err)
	}

	out := make([]virality.ScoredStory, len(rows))
	for i, r := range rows {
		out[i] = virality.ScoredStory{
			Story: source.Story{
				Title:       r.Title,
				URL:         r.URL,
				Source:      r.Source,
				Type:        source.StoryType(r.Type),
				Position:    intPtr(r.Position),
				Upvotes:     intPtr(r.Upvotes),
				Sort:        source.Sort(r.Sort),
				CollectedAt: r.CollectedAt,
			},
			ViralityScore: r.ViralityScore,
		}
	}
	return out, nil
}

// PruneRuns deletes all but the keep most recent runs and their stories.
// keep <= 0 disables pruning.
func (s *SQLiteStore) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	const stale = `SELECT id FROM runs ORDER BY finished_at DESC, rowid DESC LIMIT -1 OFFSET ?`
	if _, err := tx.ExecContext(ctx, "DELETE FROM stories WHERE run_id IN ("+stale+")", keep); err != nil {
		return 0, fmt.Errorf("prune stories: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id IN ("+stale+")", keep)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}

	n, _ := res.RowsAffected()
	return n, nil
}

func decodeRun(r *Run) {
	json.Unmarshal([]byte(r.FailedUnitsJSON), &r.FailedUnits)
	if r.FailedUnits == nil {
		r.FailedUnits = []string{}
	}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"trustgate/internal/reputation"
	id "trustgate/pkg/domain"
	"trustgate/pkg/platform/sentinel"
)

// Store persists feedback records and aggregates in PostgreSQL. Records go to
// the append-only feedback_records table; reputation_aggregates is upserted in
// the same transaction so the two can never diverge.
type Store struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed feedback store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL with the given DSN.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate creates the ledger tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS feedback_records (
			seq        BIGSERIAL PRIMARY KEY,
			subject    TEXT NOT NULL,
			submitter  TEXT NOT NULL,
			score      SMALLINT NOT NULL CHECK (score IN (-1, 0, 1)),
			weight     DOUBLE PRECISION NOT NULL CHECK (weight >= 0),
			evidence   TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS feedback_records_subject_idx ON feedback_records (subject, seq);

		CREATE TABLE IF NOT EXISTS reputation_aggregates (
			subject         TEXT PRIMARY KEY,
			positive_weight DOUBLE PRECISION NOT NULL DEFAULT 0,
			negative_weight DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_weight    DOUBLE PRECISION NOT NULL DEFAULT 0,
			feedback_count  BIGINT NOT NULL DEFAULT 0,
			last_updated    TIMESTAMPTZ NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("migrate ledger tables: %w", err)
	}
	return nil
}

// Append inserts the record and upserts the aggregate atomically.
func (s *Store) Append(ctx context.Context, rec reputation.FeedbackRecord) (reputation.Aggregate, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return reputation.Aggregate{}, fmt.Errorf("begin append tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO feedback_records (subject, submitter, score, weight, evidence, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.Subject.String(), rec.Submitter.String(), int(rec.Score), rec.Weight, rec.Evidence, rec.Timestamp)
	if err != nil {
		return reputation.Aggregate{}, fmt.Errorf("insert feedback record: %w", err)
	}

	var pos, neg float64
	switch rec.Score {
	case reputation.ScorePositive:
		pos = rec.Weight
	case reputation.ScoreNegative:
		neg = rec.Weight
	}

	row := tx.QueryRowContext(ctx, `
		INSERT INTO reputation_aggregates
			(subject, positive_weight, negative_weight, total_weight, feedback_count, last_updated)
		VALUES ($1, $2, $3, $4, 1, $5)
		ON CONFLICT (subject) DO UPDATE SET
			positive_weight = reputation_aggregates.positive_weight + EXCLUDED.positive_weight,
			negative_weight = reputation_aggregates.negative_weight + EXCLUDED.negative_weight,
			total_weight    = reputation_aggregates.total_weight + EXCLUDED.total_weight,
			feedback_count  = reputation_aggregates.feedback_count + 1,
			last_updated    = EXCLUDED.last_updated
		RETURNING positive_weight, negative_weight, total_weight, feedback_count, last_updated
	`, rec.Subject.String(), pos, neg, rec.Weight, rec.Timestamp)

	agg := reputation.Aggregate{Subject: rec.Subject}
	if err := row.Scan(&agg.PositiveWeight, &agg.NegativeWeight, &agg.TotalWeight, &agg.FeedbackCount, &agg.LastUpdated); err != nil {
		return reputation.Aggregate{}, fmt.Errorf("upsert aggregate: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return reputation.Aggregate{}, fmt.Errorf("commit append tx: %w", err)
	}
	return agg, nil
}

// FindAggregate returns the stored aggregate for a subject.
func (s *Store) FindAggregate(ctx context.Context, subject id.SubjectKey) (reputation.Aggregate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT positive_weight, negative_weight, total_weight, feedback_count, last_updated
		FROM reputation_aggregates
		WHERE subject = $1
	`, subject.String())

	agg := reputation.Aggregate{Subject: subject}
	err := row.Scan(&agg.PositiveWeight, &agg.NegativeWeight, &agg.TotalWeight, &agg.FeedbackCount, &agg.LastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return reputation.Aggregate{}, sentinel.ErrNotFound
	}
	if err != nil {
		return reputation.Aggregate{}, fmt.Errorf("read aggregate: %w", err)
	}
	return agg, nil
}

// ListBySubject returns the subject's records in submission order.
func (s *Store) ListBySubject(ctx context.Context, subject id.SubjectKey) ([]reputation.FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT subject, submitter, score, weight, evidence, created_at
		FROM feedback_records
		WHERE subject = $1
		ORDER BY seq
	`, subject.String())
	if err != nil {
		return nil, fmt.Errorf("list feedback records: %w", err)
	}
	defer rows.Close()

	var out []reputation.FeedbackRecord
	for rows.Next() {
		var rec reputation.FeedbackRecord
		var subj, submitter string
		var score int
		if err := rows.Scan(&subj, &submitter, &score, &rec.Weight, &rec.Evidence, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan feedback record: %w", err)
		}
		rec.Subject = id.SubjectKey(subj)
		rec.Submitter = id.SubjectKey(submitter)
		rec.Score = reputation.FeedbackScore(score)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback records: %w", err)
	}
	return out, nil
}

package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// SubmissionEntry é o registro de uma tentativa de envio
type SubmissionEntry struct {
	ID        string          `json:"id" db:"id"`
	DraftID   string          `json:"draft_id" db:"draft_id"`
	Outcome   string          `json:"outcome" db:"outcome"`
	Message   string          `json:"message" db:"message"`
	LineCount int             `json:"line_count" db:"line_count"`
	Total     decimal.Decimal `json:"total" db:"total"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// NewSubmissionEntry cria uma nova instância de SubmissionEntry
func NewSubmissionEntry(d Draft, outcome, message string) *SubmissionEntry {
	return &SubmissionEntry{
		ID:        uuid.New().String(),
		DraftID:   d.ID.String(),
		Outcome:   outcome,
		Message:   message,
		LineCount: len(d.Lines),
		Total:     d.Total(),
		CreatedAt: time.Now(),
	}
}

// SubmissionJournal define a interface para o histórico de envios
type SubmissionJournal interface {
	// EnsureSchema cria a tabela do histórico se ela não existir
	EnsureSchema(ctx context.Context) error

	// Record grava uma tentativa de envio
	Record(ctx context.Context, entry *SubmissionEntry) error

	// Recent busca as últimas tentativas, mais recentes primeiro
	Recent(ctx context.Context, limit int) ([]SubmissionEntry, error)
}

// PostgresSubmissionJournal implementa SubmissionJournal usando PostgreSQL
type PostgresSubmissionJournal struct {
	db *pgxpool.Pool
}

// NewSubmissionJournal cria uma nova instância de PostgresSubmissionJournal
func NewSubmissionJournal(db *pgxpool.Pool) SubmissionJournal {
	return &PostgresSubmissionJournal{
		db: db,
	}
}

func (r *PostgresSubmissionJournal) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sale_submissions (
			id UUID PRIMARY KEY,
			draft_id UUID NOT NULL,
			outcome TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			line_count INT NOT NULL,
			total NUMERIC(14, 2) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)
	`)
	return err
}

func (r *PostgresSubmissionJournal) Record(ctx context.Context, entry *SubmissionEntry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO sale_submissions (id, draft_id, outcome, message, line_count, total, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.ID, entry.DraftID, entry.Outcome, entry.Message, entry.LineCount, entry.Total.String(), entry.CreatedAt)
	return err
}

func (r *PostgresSubmissionJournal) Recent(ctx context.Context, limit int) ([]SubmissionEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id::text, draft_id::text, outcome, message, line_count, total::text, created_at
		FROM sale_submissions
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []SubmissionEntry{}
	for rows.Next() {
		var entry SubmissionEntry
		var total string
		if err := rows.Scan(&entry.ID, &entry.DraftID, &entry.Outcome, &entry.Message, &entry.LineCount, &total, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Total, err = decimal.NewFromString(total)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// NoopSubmissionJournal é usado quando o histórico está desabilitado
type NoopSubmissionJournal struct{}

func (NoopSubmissionJournal) EnsureSchema(context.Context) error { return nil }

func (NoopSubmissionJournal) Record(context.Context, *SubmissionEntry) error { return nil }

func (NoopSubmissionJournal) Recent(context.Context, int) ([]SubmissionEntry, error) {
	return []SubmissionEntry{}, nil
}

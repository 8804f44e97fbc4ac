package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tamru/tambola-services/internal/quizsvc/models"
)

// QuestionStore keeps the question bank in postgres, one row per board
// number.
type QuestionStore struct {
	db *pgxpool.Pool
}

func NewQuestionStore(db *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{db: db}
}

func (s *QuestionStore) GetByNumber(ctx context.Context, number int) (*models.Question, error) {
	query := `
		SELECT number, text, opt_a, opt_b, opt_c, opt_d, correct_option
		FROM questions
		WHERE number = $1
	`

	q := &models.Question{}
	err := s.db.QueryRow(ctx, query, number).Scan(
		&q.Number,
		&q.Text,
		&q.Options[0],
		&q.Options[1],
		&q.Options[2],
		&q.Options[3],
		&q.CorrectOption,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // no question for this number
		}
		return nil, fmt.Errorf("failed to get question for number %d: %w", number, err)
	}

	return q, nil
}

// UpsertBatch seeds or refreshes the question bank.
func (s *QuestionStore) UpsertBatch(ctx context.Context, questions []*models.Question) error {
	query := `
		INSERT INTO questions (number, text, opt_a, opt_b, opt_c, opt_d, correct_option)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (number) DO UPDATE
		SET text = EXCLUDED.text,
		    opt_a = EXCLUDED.opt_a,
		    opt_b = EXCLUDED.opt_b,
		    opt_c = EXCLUDED.opt_c,
		    opt_d = EXCLUDED.opt_d,
		    correct_option = EXCLUDED.correct_option
	`

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, q := range questions {
		_, err := tx.Exec(ctx, query,
			q.Number, q.Text, q.Options[0], q.Options[1], q.Options[2], q.Options[3], q.CorrectOption)
		if err != nil {
			return fmt.Errorf("upsert question %d: %w", q.Number, err)
		}
	}

	return tx.Commit(ctx)
}

package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"training-quiz-service/internal/domain"
)

// AttemptStore persists attempt records in the attempts table. Answers are
// stored as a JSONB map from question id to answer string.
type AttemptStore struct {
	pool *pgxpool.Pool
}

func NewAttemptStore(pool *pgxpool.Pool) *AttemptStore {
	return &AttemptStore{pool: pool}
}

func (s *AttemptStore) Create(ctx context.Context, userID, quizID string, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO attempts (id, quiz_id, user_id, answers, started_at) VALUES ($1, $2, $3, '{}'::jsonb, $4)`,
		id, quizID, userID, startedAt)
	if err != nil {
		return "", fmt.Errorf("create attempt: %w", err)
	}
	return id, nil
}

func (s *AttemptStore) UpdateAnswers(ctx context.Context, attemptID string, answers map[string]string) error {
	data, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}
	// Finalized attempts are immutable; a racing late write is dropped.
	tag, err := s.pool.Exec(ctx,
		`UPDATE attempts SET answers=$2 WHERE id=$1 AND completed_at IS NULL`,
		attemptID, data)
	if err != nil {
		return fmt.Errorf("update answers: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := s.exists(ctx, attemptID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrAttemptNotFound
		}
	}
	return nil
}

// Finalize applies the terminal write. Retry-safe: the guarded UPDATE only
// fires while completed_at is null, and an already-finalized attempt is read
// back unchanged.
func (s *AttemptStore) Finalize(ctx context.Context, attemptID string, fin domain.Finalization) (domain.Attempt, error) {
	data, err := json.Marshal(fin.Answers)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("marshal answers: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE attempts
		 SET answers=$2, score=$3, completed_at=$4, time_taken_seconds=$5
		 WHERE id=$1 AND completed_at IS NULL`,
		attemptID, data, fin.Score, fin.CompletedAt, fin.TimeTakenSeconds)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("finalize attempt: %w", err)
	}
	return s.get(ctx, attemptID)
}

func (s *AttemptStore) PriorAttempts(ctx context.Context, userID, quizID string) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, quiz_id, user_id, answers, started_at, completed_at, score, time_taken_seconds
		 FROM attempts WHERE user_id=$1 AND quiz_id=$2 ORDER BY started_at`,
		userID, quizID)
	if err != nil {
		return nil, fmt.Errorf("prior attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, attempt)
	}
	return out, rows.Err()
}

func (s *AttemptStore) get(ctx context.Context, attemptID string) (domain.Attempt, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, quiz_id, user_id, answers, started_at, completed_at, score, time_taken_seconds
		 FROM attempts WHERE id=$1`, attemptID)
	attempt, err := scanAttempt(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Attempt{}, domain.ErrAttemptNotFound
	}
	return attempt, err
}

func (s *AttemptStore) exists(ctx context.Context, attemptID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM attempts WHERE id=$1)`, attemptID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("attempt exists: %w", err)
	}
	return exists, nil
}

func scanAttempt(row pgx.Row) (domain.Attempt, error) {
	var (
		attempt domain.Attempt
		raw     []byte
	)
	err := row.Scan(&attempt.ID, &attempt.QuizID, &attempt.UserID, &raw,
		&attempt.StartedAt, &attempt.CompletedAt, &attempt.Score, &attempt.TimeTakenSeconds)
	if err != nil {
		return domain.Attempt{}, err
	}
	attempt.Answers = make(map[string]string)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &attempt.Answers); err != nil {
			return domain.Attempt{}, fmt.Errorf("unmarshal answers: %w", err)
		}
	}
	return attempt, nil
}

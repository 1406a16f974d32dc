package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lsat-session-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// TestStore persists test documents as JSONB rows.
type TestStore struct {
	pool *pgxpool.Pool
}

func NewTestStore(pool *pgxpool.Pool) *TestStore {
	return &TestStore{pool: pool}
}

func (s *TestStore) LoadTest(ctx context.Context, testID string) (domain.Test, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM tests WHERE id=$1`, testID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Test{}, domain.ErrTestNotFound
	}
	if err != nil {
		return domain.Test{}, fmt.Errorf("load test: %w", err)
	}
	var test domain.Test
	if err := json.Unmarshal(raw, &test); err != nil {
		return domain.Test{}, fmt.Errorf("unmarshal test: %w", err)
	}
	return test, nil
}

func (s *TestStore) ListTests(ctx context.Context) ([]domain.Test, error) {
	rows, err := s.pool.Query(ctx, `SELECT data FROM tests ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tests: %w", err)
	}
	defer rows.Close()

	var tests []domain.Test
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan test: %w", err)
		}
		var test domain.Test
		if err := json.Unmarshal(raw, &test); err != nil {
			return nil, fmt.Errorf("unmarshal test: %w", err)
		}
		tests = append(tests, test)
	}
	return tests, rows.Err()
}

func (s *TestStore) StoreTest(ctx context.Context, test domain.Test) error {
	raw, err := json.Marshal(test)
	if err != nil {
		return fmt.Errorf("marshal test: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO tests (id, data) VALUES ($1, $2::jsonb)
		 ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`,
		test.ID, raw)
	if err != nil {
		return fmt.Errorf("store test: %w", err)
	}
	return nil
}

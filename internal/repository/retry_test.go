package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: pgerrcode.SerializationFailure}, want: true},
		{name: "deadlock", err: fmt.Errorf("lock daily budget: %w", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}), want: true},
		{name: "unique violation", err: &pgconn.PgError{Code: pgerrcode.UniqueViolation}, want: false},
		{name: "connection reset", err: errors.New("read tcp: connection reset by peer"), want: false},
		{name: "broken pipe", err: errors.New("write: broken pipe"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestWithRetry_ConnectionErrorRunsOnce(t *testing.T) {
	r := &PostgresRepository{}

	calls := 0
	err := r.withRetry(context.Background(), func() error {
		calls++
		return errors.New("connection reset by peer")
	})

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

package dberr

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
)

func TestWrapClassifiesPgErrors(t *testing.T) {
	unique := Wrap("products.upsert", &pgconn.PgError{Code: "23505"})
	if !errors.Is(unique, apperrors.ErrConflict) {
		t.Fatalf("want conflict, got %v", unique)
	}
	deadlock := Wrap("niches.claim", &pgconn.PgError{Code: "40P01"})
	if !errors.Is(deadlock, apperrors.ErrPersistence) || !IsRetryable(deadlock) {
		t.Fatalf("want retryable persistence, got %v", deadlock)
	}
	other := Wrap("niches.get", errors.New("connection refused"))
	if !errors.Is(other, apperrors.ErrPersistence) || IsRetryable(other) {
		t.Fatalf("want non-retryable persistence, got %v", other)
	}
}

func TestWrapPassesContextErrors(t *testing.T) {
	err := Wrap("op", context.Canceled)
	if !errors.Is(err, context.Canceled) || errors.Is(err, apperrors.ErrPersistence) {
		t.Fatalf("unexpected classification: %v", err)
	}
	if Wrap("op", nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

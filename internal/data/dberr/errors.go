package dberr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
)

// ErrRetryable marks a transient database failure (serialization, deadlock, lock timeout).
var ErrRetryable = errors.New("retryable database failure")

// Wrap classifies a driver error for the layers above the repos.
// Record-not-found never reaches here: repos translate it to (nil, nil).
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apperrors.ErrPersistence) || errors.Is(err, apperrors.ErrConflict) {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return fmt.Errorf("%s: %w: %w", op, apperrors.ErrConflict, err) // unique_violation
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%s: %w: %w: %w", op, apperrors.ErrPersistence, ErrRetryable, err) // serialization/deadlock/lock_not_available
		}
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "duplicate key"):
		return fmt.Errorf("%s: %w: %w", op, apperrors.ErrConflict, err)
	case strings.Contains(msg, "deadlock"), strings.Contains(msg, "serialization"):
		return fmt.Errorf("%s: %w: %w: %w", op, apperrors.ErrPersistence, ErrRetryable, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, apperrors.ErrPersistence, err)
	}
}

// IsRetryable reports whether the operation can be attempted again as-is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}

package lwa

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/httpx"
)

// Authorized runs call with a bearer token. A 401 invalidates the cached token and the call is
// repeated exactly once; a second 401 is reported as ErrUpstreamUnauthorized.
func Authorized(ctx context.Context, ts *TokenSource, call func(ctx context.Context, token string) error) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := ts.Token(ctx)
		if err != nil {
			return err
		}
		err = call(ctx, token)
		if !isUnauthorized(err) {
			return err
		}
		ts.Invalidate()
		ts.log.Warn("access token rejected, refreshing", "attempt", attempt+1)
	}
	return fmt.Errorf("%s: access token rejected twice: %w", ts.service, apperrors.ErrUpstreamUnauthorized)
}

func isUnauthorized(err error) bool {
	var se *httpx.StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusUnauthorized
}

package lwa

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yungbote/commercecrafted-backend/internal/pkg/errors"
	"github.com/yungbote/commercecrafted-backend/internal/pkg/httpx"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

var testCreds = Credentials{ClientID: "cid", ClientSecret: "secret", RefreshToken: "refresh"}

func TestTokenIsCachedUntilSkewedExpiry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		require.Equal(t, "refresh", r.PostForm.Get("refresh_token"))
		require.Equal(t, "cid", r.PostForm.Get("client_id"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ts, err := NewTokenSource(logger.Nop(), "ads", testCreds, WithTokenURL(srv.URL), WithClock(func() time.Time { return now }))
	require.NoError(t, err)

	tok, err := ts.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, "tok", tok)

	now = now.Add(3600*time.Second - 301*time.Second)
	_, err = ts.Token(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))

	now = now.Add(2 * time.Second)
	_, err = ts.Token(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))

	ts.Invalidate()
	_, err = ts.Token(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestTokenRejectedIsUpstreamUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	}))
	defer srv.Close()

	ts, err := NewTokenSource(logger.Nop(), "spapi", testCreds, WithTokenURL(srv.URL))
	require.NoError(t, err)
	_, err = ts.Token(context.Background())
	require.True(t, errors.Is(err, apperrors.ErrUpstreamUnauthorized), "err = %v", err)
}

func TestNewTokenSourceRequiresCredentials(t *testing.T) {
	_, err := NewTokenSource(logger.Nop(), "ads", Credentials{ClientID: "x"})
	require.Error(t, err)
}

func TestAuthorizedRetriesOnceOn401(t *testing.T) {
	var tokenCalls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&tokenCalls, 1)
		_, _ = w.Write([]byte(`{"access_token":"tok` + string(rune('0'+n)) + `","expires_in":3600}`))
	}))
	defer srv.Close()
	ts, err := NewTokenSource(logger.Nop(), "ads", testCreds, WithTokenURL(srv.URL))
	require.NoError(t, err)

	var seen []string
	err = Authorized(context.Background(), ts, func(ctx context.Context, token string) error {
		seen = append(seen, token)
		if len(seen) == 1 {
			return &httpx.StatusError{Service: "ads", StatusCode: http.StatusUnauthorized}
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"tok1", "tok2"}, seen)

	calls := 0
	err = Authorized(context.Background(), ts, func(ctx context.Context, token string) error {
		calls++
		return &httpx.StatusError{Service: "ads", StatusCode: http.StatusUnauthorized}
	})
	require.Equal(t, 2, calls)
	require.ErrorIs(t, err, apperrors.ErrUpstreamUnauthorized)
}

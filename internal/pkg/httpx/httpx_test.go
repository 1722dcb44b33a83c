package httpx

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{context.Canceled, false},
		{context.DeadlineExceeded, true},
		{&StatusError{Service: "keepa", StatusCode: 429}, true},
		{fmt.Errorf("wrapped: %w", &StatusError{Service: "ads", StatusCode: 503}), true},
		{&StatusError{Service: "ads", StatusCode: 400}, false},
		{&StatusError{Service: "ads", StatusCode: 401}, false},
	}
	for _, tc := range cases {
		if got := IsRetryableError(tc.err); got != tc.want {
			t.Fatalf("%v: want=%v got=%v", tc.err, tc.want, got)
		}
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Retry-After", "7")
	if got := RetryAfterDuration(resp, time.Second, 0); got != 7*time.Second {
		t.Fatalf("want=7s got=%s", got)
	}
	if got := RetryAfterDuration(resp, time.Second, 3*time.Second); got != 3*time.Second {
		t.Fatalf("want clamp 3s got=%s", got)
	}
	if got := RetryAfterDuration(nil, 2*time.Second, 0); got != 2*time.Second {
		t.Fatalf("want fallback 2s got=%s", got)
	}
}

func TestJitterSleepBounds(t *testing.T) {
	base := 10 * time.Second
	for i := 0; i < 50; i++ {
		got := JitterSleep(base)
		if got < 8*time.Second || got > 12*time.Second {
			t.Fatalf("jitter out of bounds: %s", got)
		}
	}
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); err == nil {
		t.Fatalf("want ctx error")
	}
}

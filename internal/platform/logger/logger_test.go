package logger

import (
	"strings"
	"testing"
)

func TestSanitizeValueRedactsSecrets(t *testing.T) {
	cases := map[string]interface{}{
		"access_token":  "abc",
		"client_secret": "shh",
		"keepa_api_key": "k",
		"Authorization": "Bearer x",
	}
	for key, val := range cases {
		got := sanitizeValue(strings.ToLower(key), val)
		if got != "[REDACTED]" {
			t.Fatalf("%s: want redacted, got %v", key, got)
		}
	}
}

func TestSanitizeValueHashesUserIDs(t *testing.T) {
	got, ok := sanitizeValue("user_id", "3c7d").(string)
	if !ok || !strings.HasPrefix(got, "hash:") {
		t.Fatalf("want hashed value, got %v", got)
	}
	if again := sanitizeValue("user_id", "3c7d"); again != got {
		t.Fatalf("hash not stable: %v vs %v", again, got)
	}
}

func TestRedactQueryKey(t *testing.T) {
	in := "https://api.keepa.com/product?key=SECRET&domain=1&asin=B000000001"
	got := redactQueryKey(in)
	if strings.Contains(got, "SECRET") {
		t.Fatalf("key leaked: %s", got)
	}
	if !strings.Contains(got, "&domain=1") {
		t.Fatalf("tail lost: %s", got)
	}
	if plain := redactQueryKey("monkey=1"); plain != "monkey=1" {
		t.Fatalf("non-url value modified: %s", plain)
	}
}

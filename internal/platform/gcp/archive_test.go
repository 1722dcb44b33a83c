package gcp

import (
	"testing"
	"time"
)

func TestReportArchiveObjectKey(t *testing.T) {
	a := &ReportArchive{prefix: "sp-api-reports"}
	at := time.Date(2024, 3, 9, 23, 0, 0, 0, time.FixedZone("PST", -8*3600))
	got := a.ObjectKey("SEARCH_TERMS", "rep-42", ".json.gz", at)
	want := "sp-api-reports/search_terms/2024/03/rep-42.json.gz"
	if got != want {
		t.Fatalf("want=%s got=%s", want, got)
	}
}

func TestClientOptionsFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS_JSON", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	if HasCredentials() {
		t.Fatalf("want no credentials")
	}
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", `{"type":"service_account"}`)
	if got := len(ClientOptionsFromEnv()); got != 1 {
		t.Fatalf("want 1 option got %d", got)
	}
}

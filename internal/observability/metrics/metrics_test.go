package metrics

import (
	"strings"
	"testing"
	"time"
)

func TestObserveRequestNormalizesPath(t *testing.T) {
	rec := New()
	rec.ObserveRequest("get", "/42/photos/7", 200, 150*time.Millisecond)
	rec.ObserveRequest("GET", "/13/photos/9", 200, 50*time.Millisecond)

	var out strings.Builder
	rec.Write(&out)
	body := out.String()

	if !strings.Contains(body, `photovault_http_requests_total{method="GET",path="/:id/photos/:id",status="200"} 2`) {
		t.Fatalf("normalized request counter missing:\n%s", body)
	}
	if !strings.Contains(body, `photovault_http_request_duration_seconds_count{method="GET",path="/:id/photos/:id",status="200"} 2`) {
		t.Fatalf("duration count missing:\n%s", body)
	}
}

func TestUploadGaugeNeverNegative(t *testing.T) {
	rec := New()
	rec.UploadStarted()
	rec.UploadCompleted(1024)
	rec.UploadFailed()

	if got := rec.ActiveUploads(); got != 0 {
		t.Fatalf("ActiveUploads = %d, want 0", got)
	}
	events, bytes := rec.UploadCounts()
	if events["start"] != 1 || events["complete"] != 1 || events["fail"] != 1 {
		t.Fatalf("upload events = %+v", events)
	}
	if bytes != 1024 {
		t.Fatalf("upload bytes = %d, want 1024", bytes)
	}
}

func TestAuthEventCounters(t *testing.T) {
	rec := New()
	rec.ObserveAuthEvent("login_success")
	rec.ObserveAuthEvent("LOGIN_FAILURE")
	rec.ObserveAuthEvent(" ")

	counts := rec.AuthCounts()
	if counts["login_success"] != 1 || counts["login_failure"] != 1 || counts["unknown"] != 1 {
		t.Fatalf("auth counts = %+v", counts)
	}
}

func TestResetClearsState(t *testing.T) {
	rec := New()
	rec.ObserveRequest("GET", "/users", 200, time.Millisecond)
	rec.UploadStarted()
	rec.Reset()

	var out strings.Builder
	rec.Write(&out)
	if strings.Contains(out.String(), "/users") {
		t.Fatalf("reset left request counters behind:\n%s", out.String())
	}
	if rec.ActiveUploads() != 0 {
		t.Fatalf("reset left gauge at %d", rec.ActiveUploads())
	}
}

func TestNormalizePath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/", "/"},
		{"/users", "/users"},
		{"/users/17", "/users/:id"},
		{"/photos/9", "/photos/:id"},
		{"/42/albums/3/photos/8", "/:id/albums/:id/photos/:id"},
		{"/42/photos/search", "/:id/photos/search"},
		{"/healthz/", "/healthz"},
	}
	for _, tc := range cases {
		if got := normalizePath(tc.in); got != tc.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/steptrack/steptrack/internal/session"
)

func newTestServer(t *testing.T, authToken string) (*Server, *session.Tracker) {
	t.Helper()
	tracker := session.New(session.Options{ForceSim: true})
	t.Cleanup(tracker.Stop)
	b := NewBroadcaster(tracker, 10*time.Millisecond, time.Hour, 0)
	return NewServer(tracker, b, "", false, nil, nil, authToken), tracker
}

func TestSecurityHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	securityHeaders(inner).ServeHTTP(rec, req)

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"X-XSS-Protection":        "1; mode=block",
		"Content-Security-Policy": "default-src 'self'",
	}

	for header, expected := range want {
		if got := rec.Header().Get(header); got != expected {
			t.Errorf("header %s = %q, want %q", header, got, expected)
		}
	}
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name      string
		authToken string
		setup     func(*http.Request)
		want      bool
	}{
		{
			name:      "no token configured allows all",
			authToken: "",
			setup:     func(*http.Request) {},
			want:      true,
		},
		{
			name:      "missing credentials rejected",
			authToken: "secret",
			setup:     func(*http.Request) {},
			want:      false,
		},
		{
			name:      "query parameter",
			authToken: "secret",
			setup: func(r *http.Request) {
				q := r.URL.Query()
				q.Set("token", "secret")
				r.URL.RawQuery = q.Encode()
			},
			want: true,
		},
		{
			name:      "custom header",
			authToken: "secret",
			setup: func(r *http.Request) {
				r.Header.Set("X-Steptrack-Token", "secret")
			},
			want: true,
		},
		{
			name:      "bearer token",
			authToken: "secret",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer secret")
			},
			want: true,
		},
		{
			name:      "wrong bearer token",
			authToken: "secret",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer nope")
			},
			want: false,
		},
		{
			name:      "wrong query token",
			authToken: "secret",
			setup: func(r *http.Request) {
				q := r.URL.Query()
				q.Set("token", "nope")
				r.URL.RawQuery = q.Encode()
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.authToken)
			req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
			tt.setup(req)
			if got := s.authorize(req); got != tt.want {
				t.Errorf("authorize() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins []string
		origin         string
		host           string
		want           bool
	}{
		{"no origin header", nil, "", "example.com", true},
		{"same host", nil, "http://example.com", "example.com", true},
		{"localhost", nil, "http://localhost:3000", "example.com", true},
		{"loopback", nil, "http://127.0.0.1:8787", "example.com", true},
		{"ipv6 loopback", nil, "http://[::1]:8787", "example.com", true},
		{"foreign host", nil, "http://evil.example.net", "example.com", false},
		{"allowlisted origin", []string{"https://dash.example.com"}, "https://dash.example.com", "example.com", true},
		{"allowlisted host other scheme", []string{"https://dash.example.com"}, "http://dash.example.com", "example.com", true},
		{"allowlist rejects localhost", []string{"https://dash.example.com"}, "http://localhost:3000", "example.com", false},
		{"garbage origin", nil, "::not a url::", "example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := session.New(session.Options{ForceSim: true})
			t.Cleanup(tracker.Stop)
			b := NewBroadcaster(tracker, 10*time.Millisecond, time.Hour, 0)
			s := NewServer(tracker, b, "", false, nil, tt.allowedOrigins, "")

			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			req.Host = tt.host
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}

			if got := s.checkOrigin(req); got != tt.want {
				t.Errorf("checkOrigin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHandleState(t *testing.T) {
	s, tracker := newTestServer(t, "")
	tracker.Start()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	s.handleState(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var st session.State
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("response is not valid state JSON: %v", err)
	}
	if !st.IsTracking {
		t.Error("state.isTracking = false after Start")
	}
	if !st.IsSimulating {
		t.Error("state.isSimulating = false for a forced-sim tracker")
	}
}

func TestCommandEndpoints(t *testing.T) {
	mux := http.NewServeMux()
	s, tracker := newTestServer(t, "")
	s.SetupRoutes(mux)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	postState := func(t *testing.T, path string) session.State {
		t.Helper()
		resp, err := http.Post(srv.URL+path, "application/json", nil)
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("POST %s status = %d, want 200", path, resp.StatusCode)
		}
		var st session.State
		if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
			t.Fatalf("POST %s: bad state JSON: %v", path, err)
		}
		return st
	}

	st := postState(t, "/api/start")
	if !st.IsTracking {
		t.Error("start response isTracking = false, want true")
	}
	firstID := st.SessionID

	st = postState(t, "/api/stop")
	if st.IsTracking {
		t.Error("stop response isTracking = true, want false")
	}

	st = postState(t, "/api/reset")
	if !st.IsTracking {
		t.Error("reset response isTracking = false, want true")
	}
	if st.SessionID == firstID {
		t.Error("reset kept the old session ID, want a fresh session")
	}
	if st.CumulativeSteps != 0 {
		t.Errorf("reset response cumulativeSteps = %d, want 0", st.CumulativeSteps)
	}

	if !tracker.Snapshot().IsTracking {
		t.Error("tracker should be tracking after the reset command")
	}
}

func TestCommandRequiresPOST(t *testing.T) {
	mux := http.NewServeMux()
	s, _ := newTestServer(t, "")
	s.SetupRoutes(mux)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/start")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET /api/start status = %d, want 405", resp.StatusCode)
	}
}

func TestCommandRejectsUnauthorized(t *testing.T) {
	mux := http.NewServeMux()
	s, tracker := newTestServer(t, "secret")
	s.SetupRoutes(mux)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/start", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated POST status = %d, want 401", resp.StatusCode)
	}
	if tracker.Snapshot().IsTracking {
		t.Error("unauthenticated command must not reach the tracker")
	}

	resp, err = http.Post(srv.URL+"/api/start?token=secret", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("authenticated POST status = %d, want 200", resp.StatusCode)
	}
}

func TestHandleConfig(t *testing.T) {
	s, _ := newTestServer(t, "")
	s.SetConfigPayload(ConfigPayload{
		WindowMillis: 1000,
		BaseSpeed:    1.8,
		Milestones:   []int{100, 500},
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	s.handleConfig(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got ConfigPayload
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad config JSON: %v", err)
	}
	if got.WindowMillis != 1000 || got.BaseSpeed != 1.8 {
		t.Errorf("config payload round-trip = %+v", got)
	}
	if len(got.Milestones) != 2 {
		t.Errorf("milestones = %v, want [100 500]", got.Milestones)
	}
}

func TestHandleHealth(t *testing.T) {
	s, tracker := newTestServer(t, "")
	tracker.Start()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	s.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad health JSON: %v", err)
	}
	if got["status"] != "ok" {
		t.Errorf("status field = %v, want ok", got["status"])
	}
	if got["mode"] != "simulated" {
		t.Errorf("mode field = %v, want simulated", got["mode"])
	}
}

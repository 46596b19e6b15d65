package serverapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestOnlineUsers(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/users/online" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		gotAuth.Store(r.Header.Get("X-User-ID"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]OnlineUser{
			{UserID: "u2", Username: "juhyung", Rating: 1430, InGame: false},
			{UserID: "u3", Username: "minji", Rating: 1610, InGame: true},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL,
		WithHeaderProvider(func() map[string]string { return map[string]string{"X-User-ID": "u1"} }))

	users, err := c.OnlineUsers(context.Background())
	if err != nil {
		t.Fatalf("OnlineUsers: %v", err)
	}
	if len(users) != 2 || users[0].UserID != "u2" || users[1].Rating != 1610 {
		t.Fatalf("users = %+v", users)
	}
	if gotAuth.Load() != "u1" {
		t.Fatalf("auth header = %v", gotAuth.Load())
	}
}

func TestCreateChallenge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/challenges" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req ChallengeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.ToUserID != "u2" || req.PlayMode != "classic" {
			t.Errorf("request body = %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ChallengeResponse{ChallengeID: "c1", GameID: "g7"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	resp, err := c.CreateChallenge(context.Background(), ChallengeRequest{
		ToUserID: "u2", PlayMode: "classic", ColorPreference: "white",
	})
	if err != nil {
		t.Fatalf("CreateChallenge: %v", err)
	}
	if resp.ChallengeID != "c1" || resp.GameID != "g7" {
		t.Fatalf("resp = %+v", resp)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetry(3), WithTimeout(2*time.Second))
	if _, err := c.OnlineUsers(context.Background()); err != nil {
		t.Fatalf("OnlineUsers after retries: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"not allowed"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithRetry(3))
	_, err := c.OnlineUsers(context.Background())
	if err == nil {
		t.Fatal("expected error on 403")
	}
	if !strings.Contains(err.Error(), "status=403") {
		t.Fatalf("err = %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1 (4xx must not retry)", calls.Load())
	}
}

func TestBackoffDurationBounded(t *testing.T) {
	if d := backoffDuration(1); d != 100*time.Millisecond {
		t.Fatalf("backoffDuration(1) = %v", d)
	}
	if d := backoffDuration(4); d != 800*time.Millisecond {
		t.Fatalf("backoffDuration(4) = %v", d)
	}
	if d := backoffDuration(50); d != backoffDuration(6) {
		t.Fatalf("backoffDuration not capped: %v", d)
	}
}

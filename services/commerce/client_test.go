package commerce

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckOrderEligibility_Eligible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sites/7/orders/42/card-present-eligibility" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"eligible":true,"currency":"USD"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", "secret", time.Second)
	resp, err := client.CheckOrderEligibility(context.Background(), "7", "42")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Eligible || resp.Currency != "USD" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCheckOrderEligibility_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"unauthorized", http.StatusUnauthorized, func(err error) bool { return errors.Is(err, ErrUnauthorized) }},
		{"forbidden", http.StatusForbidden, func(err error) bool { return errors.Is(err, ErrUnauthorized) }},
		{"server error", http.StatusBadGateway, func(err error) bool {
			var se *StatusError
			return errors.As(err, &se) && se.StatusCode == http.StatusBadGateway
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"message":"nope"}`))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "", time.Second).CheckOrderEligibility(context.Background(), "7", "42")
			if !tt.check(err) {
				t.Fatalf("unexpected error %v", err)
			}
		})
	}
}

func TestCheckOrderEligibility_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "", time.Second).CheckOrderEligibility(context.Background(), "7", "42")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"+55 (11) 98888-7777": "5511988887777",
		"11 9 8888 7777":      "11988887777",
		"5511988887777":       "5511988887777",
	}
	for in, want := range cases {
		if got := NormalizePhone(in); got != want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestZAPISender_Send(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Header.Get("Client-Token") != "ct" {
			t.Errorf("missing client token header")
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewZAPISender(ZAPIConfig{
		BaseURL:     srv.URL,
		InstanceID:  "inst",
		Token:       "tok",
		ClientToken: "ct",
	})
	if err := s.Send(context.Background(), "+55 11 98888-7777", "oi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotPath != "/instances/inst/token/tok/send-text" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotBody["phone"] != "5511988887777" || gotBody["message"] != "oi" {
		t.Fatalf("unexpected body %v", gotBody)
	}
}

func TestZAPISender_SendNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewZAPISender(ZAPIConfig{BaseURL: srv.URL, InstanceID: "i", Token: "t"})
	err := s.Send(context.Background(), "11999998888", "oi")
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestZAPISender_RequiresCredentials(t *testing.T) {
	s := NewZAPISender(ZAPIConfig{})
	if err := s.Send(context.Background(), "11999998888", "oi"); err == nil {
		t.Fatalf("expected error without credentials")
	}
}

package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDeliverSignsPayload(t *testing.T) {
	secret := "top-secret"
	var gotSig string
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-URLLens-Signature")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	event := NewEvent(EventAuditCompleted, "audit-abc123", map[string]int{"total_urls": 3})
	if err := Deliver(context.Background(), server.URL, secret, event); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSig != want {
		t.Errorf("signature = %q, want %q", gotSig, want)
	}

	var decoded Event
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("payload is not valid JSON: %v", err)
	}
	if decoded.Type != EventAuditCompleted {
		t.Errorf("event type = %q, want %q", decoded.Type, EventAuditCompleted)
	}
	if decoded.SessionID != "audit-abc123" {
		t.Errorf("session_id = %q, want %q", decoded.SessionID, "audit-abc123")
	}
}

func TestDeliverNoSecretNoSignature(t *testing.T) {
	var gotSig string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-URLLens-Signature")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	event := NewEvent(EventAuditFailed, "audit-def456", nil)
	if err := Deliver(context.Background(), server.URL, "", event); err != nil {
		t.Fatalf("Deliver() error = %v", err)
	}
	if gotSig != "" {
		t.Errorf("expected no signature header, got %q", gotSig)
	}
}

func TestDeliverEndpointError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	event := NewEvent(EventAuditCompleted, "audit-err", nil)
	if err := Deliver(context.Background(), server.URL, "", event); err == nil {
		t.Fatal("expected error for 500 response, got nil")
	}
}

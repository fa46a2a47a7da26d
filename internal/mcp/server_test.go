package mcp

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/arcline/sheetlog/internal/ledger"
	"github.com/arcline/sheetlog/internal/session"
)

type fakeSessions struct {
	status   session.Status
	flushErr error
	flushed  []string
	ended    []string
	contacts map[string]string
}

func (f *fakeSessions) RecordTurn(_ context.Context, key, role, content string) (session.Status, session.Turn, error) {
	if key == "" {
		key = "generated-key"
	}
	f.status.Key = key
	f.status.Turns++
	f.status.Pending++
	return f.status, session.Turn{Seq: f.status.Turns - 1, Role: role, Content: content, At: time.Now().UTC()}, nil
}

func (f *fakeSessions) SetContact(_ context.Context, key, raw string) (session.Status, string, error) {
	if key == "" {
		key = "generated-key"
	}
	if !strings.ContainsAny(raw, "0123456789") {
		return session.Status{Key: key}, "", errors.New("no digits")
	}
	normalized := strings.Map(func(r rune) rune {
		if r < '0' || r > '9' {
			return -1
		}
		return r
	}, raw)
	if f.contacts == nil {
		f.contacts = make(map[string]string)
	}
	f.contacts[key] = normalized
	f.status.Key = key
	f.status.Contact = normalized
	return f.status, normalized, nil
}

func (f *fakeSessions) Flush(_ context.Context, key string) (ledger.Result, error) {
	if f.flushErr != nil {
		return ledger.Result{}, f.flushErr
	}
	f.flushed = append(f.flushed, key)
	return ledger.Result{Outcome: ledger.OutcomeUpdated, RowNumber: 4}, nil
}

func (f *fakeSessions) Status(_ context.Context, key string) (session.Status, bool) {
	if key != f.status.Key {
		return session.Status{}, false
	}
	return f.status, true
}

func (f *fakeSessions) End(_ context.Context, key string) (ledger.Result, error) {
	if f.flushErr != nil {
		return ledger.Result{}, f.flushErr
	}
	f.ended = append(f.ended, key)
	return ledger.Result{Outcome: ledger.OutcomeCreated, RowNumber: 2}, nil
}

func newTestServer(sessions Sessions) *Server {
	return NewServer(sessions, "test", nil)
}

func TestRecordMessageAssignsSession(t *testing.T) {
	sessions := &fakeSessions{}
	server := newTestServer(sessions)

	_, out, err := server.handleRecordMessage(context.Background(), nil, RecordMessageInput{Content: "hello"})
	if err != nil {
		t.Fatalf("record message: %v", err)
	}
	if out.SessionID != "generated-key" || out.Turn != 0 || out.Pending != 1 {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestRecordMessageValidatesInput(t *testing.T) {
	server := newTestServer(&fakeSessions{})

	if _, _, err := server.handleRecordMessage(context.Background(), nil, RecordMessageInput{Role: "user"}); err == nil {
		t.Fatal("expected error for empty content")
	}
	if _, _, err := server.handleRecordMessage(context.Background(), nil, RecordMessageInput{Role: "narrator", Content: "x"}); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestSetContactReturnsNormalizedNumber(t *testing.T) {
	sessions := &fakeSessions{}
	server := newTestServer(sessions)

	_, out, err := server.handleSetContact(context.Background(), nil, SetContactInput{SessionID: "s1", ContactNumber: "(555) 123-4567"})
	if err != nil {
		t.Fatalf("set contact: %v", err)
	}
	if out.ContactNumber != "5551234567" {
		t.Fatalf("contact not normalized: %q", out.ContactNumber)
	}
}

func TestSaveConversationReportsOutcome(t *testing.T) {
	sessions := &fakeSessions{}
	server := newTestServer(sessions)

	_, out, err := server.handleSaveConversation(context.Background(), nil, SaveConversationInput{SessionID: "s1"})
	if err != nil {
		t.Fatalf("save conversation: %v", err)
	}
	if out.Outcome != string(ledger.OutcomeUpdated) || out.Row != 4 {
		t.Fatalf("unexpected output: %+v", out)
	}
	if len(sessions.flushed) != 1 || sessions.flushed[0] != "s1" {
		t.Fatalf("flush not routed to session: %v", sessions.flushed)
	}
}

func TestSaveConversationExplainsMissingContact(t *testing.T) {
	sessions := &fakeSessions{flushErr: session.ErrNoContact}
	server := newTestServer(sessions)

	_, _, err := server.handleSaveConversation(context.Background(), nil, SaveConversationInput{SessionID: "s1"})
	if !errors.Is(err, session.ErrNoContact) {
		t.Fatalf("expected ErrNoContact, got %v", err)
	}
	if !strings.Contains(err.Error(), "set_contact_number") {
		t.Fatalf("error does not point at the fix: %v", err)
	}
}

func TestSaveConversationRequiresSession(t *testing.T) {
	server := newTestServer(&fakeSessions{})
	if _, _, err := server.handleSaveConversation(context.Background(), nil, SaveConversationInput{}); err == nil {
		t.Fatal("expected error for missing session_id")
	}
}

func TestConversationStatusUnknownSession(t *testing.T) {
	server := newTestServer(&fakeSessions{})
	if _, _, err := server.handleConversationStatus(context.Background(), nil, ConversationStatusInput{SessionID: "nope"}); err == nil {
		t.Fatal("expected error for unknown session")
	}
}

func TestEndConversationFlushesAndCloses(t *testing.T) {
	sessions := &fakeSessions{}
	server := newTestServer(sessions)

	sessions.status.Key = "s1"
	_, out, err := server.handleEndConversation(context.Background(), nil, EndConversationInput{SessionID: "s1"})
	if err != nil {
		t.Fatalf("end conversation: %v", err)
	}
	if out.Outcome != string(ledger.OutcomeCreated) || out.Row != 2 {
		t.Fatalf("unexpected output: %+v", out)
	}
	if len(sessions.ended) != 1 {
		t.Fatalf("end not routed: %v", sessions.ended)
	}
}

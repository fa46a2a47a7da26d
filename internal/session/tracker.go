// Package session tracks live conversations: the per-session turn buffer,
// the working contact key, and the flush high-water mark that keeps the
// spreadsheet ledger free of duplicated history.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/arcline/sheetlog/internal/ledger"
	"github.com/arcline/sheetlog/internal/normalize"
)

// ErrNoContact gates flushing until the user has shared a contact number;
// buffered turns are kept and written once one arrives.
var ErrNoContact = errors.New("no contact number captured for session")

// Reconciler is the slice of the ledger the tracker flushes through.
type Reconciler interface {
	Reconcile(ctx context.Context, emailKey, contactKey string, newLines []string, meta ledger.Meta) (ledger.Result, error)
}

// Identity is the acting user attached to every row the session writes.
type Identity struct {
	Email       string
	UserID      string
	Permissions []string
}

type Turn struct {
	Seq     int
	Role    string
	Content string
	At      time.Time
}

// Status is a point-in-time snapshot for status reporting.
type Status struct {
	Key        string
	Email      string
	Contact    string
	Turns      int
	Pending    int
	StartedAt  time.Time
	LastActive time.Time
}

// Tracker owns one conversation. All methods are safe for concurrent use;
// the internal mutex also serializes flushes, so a session never has two
// find-then-write sequences in flight at once.
type Tracker struct {
	mu sync.Mutex

	key             string
	identity        Identity
	contact         string
	turns           []Turn
	lastFlushed     int
	historyMaxBytes int

	startedAt  time.Time
	lastActive time.Time
}

func newTracker(key string, identity Identity, historyMaxBytes int) *Tracker {
	now := time.Now().UTC()
	return &Tracker{
		key:             key,
		identity:        identity,
		historyMaxBytes: historyMaxBytes,
		startedAt:       now,
		lastActive:      now,
	}
}

func (t *Tracker) Key() string { return t.key }

// RecordTurn buffers one message and returns it with its sequence number
// assigned.
func (t *Tracker) RecordTurn(role, content string) Turn {
	t.mu.Lock()
	defer t.mu.Unlock()

	turn := Turn{
		Seq:     len(t.turns),
		Role:    role,
		Content: content,
		At:      time.Now().UTC(),
	}
	t.turns = append(t.turns, turn)
	t.lastActive = turn.At
	return turn
}

// SetContact normalizes and stores the working contact key. An input that
// strips to nothing is rejected so a flush never runs against an empty key.
func (t *Tracker) SetContact(raw string) (string, error) {
	key := normalize.Phone(raw)
	if key == "" {
		return "", fmt.Errorf("contact number %q has no digits", raw)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.contact = key
	t.lastActive = time.Now().UTC()
	return key, nil
}

func (t *Tracker) Contact() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.contact
}

func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.turns) - t.lastFlushed
}

func (t *Tracker) IdleSince() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastActive
}

func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Status{
		Key:        t.key,
		Email:      t.identity.Email,
		Contact:    t.contact,
		Turns:      len(t.turns),
		Pending:    len(t.turns) - t.lastFlushed,
		StartedAt:  t.startedAt,
		LastActive: t.lastActive,
	}
}

// Flush writes every turn past the high-water mark through the reconciler.
// The mark advances only when the store confirmed an update or create;
// a failed or no-op flush leaves it alone so the same lines are retried on
// the next call, and a flush with nothing pending never touches the store.
func (t *Tracker) Flush(ctx context.Context, rec Reconciler) (ledger.Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pending := t.turns[t.lastFlushed:]
	if len(pending) == 0 {
		return ledger.Result{Outcome: ledger.OutcomeNoOp}, nil
	}
	if t.contact == "" {
		return ledger.Result{}, ErrNoContact
	}

	lines := make([]string, 0, len(pending))
	for _, turn := range pending {
		lines = append(lines, formatTurn(turn))
	}
	lines = capLines(lines, t.historyMaxBytes)

	meta := ledger.Meta{
		Timestamp: time.Now().UTC(),
		Summary:   fmt.Sprintf("%d messages", len(t.turns)),
		UserID:    t.identity.UserID,
	}
	result, err := rec.Reconcile(ctx, t.identity.Email, t.contact, lines, meta)
	if err != nil {
		return ledger.Result{}, err
	}
	if result.Outcome == ledger.OutcomeUpdated || result.Outcome == ledger.OutcomeCreated {
		t.lastFlushed = len(t.turns)
	}
	return result, nil
}

// restore rehydrates a tracker from its durable slot.
func (t *Tracker) restore(contact string, lastFlushed int, turns []Turn, startedAt time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.contact = contact
	t.turns = turns
	t.lastFlushed = lastFlushed
	if t.lastFlushed > len(t.turns) {
		t.lastFlushed = len(t.turns)
	}
	if !startedAt.IsZero() {
		t.startedAt = startedAt
	}
}

func formatTurn(turn Turn) string {
	return fmt.Sprintf("[%s] %s: %s", turn.At.Format(time.RFC3339), strings.ToUpper(turn.Role), turn.Content)
}

// capLines bounds the byte size of one flush batch, dropping the oldest
// lines first. The newest line always survives, truncated if it alone
// exceeds the cap. A cap of zero means unlimited.
func capLines(lines []string, maxBytes int) []string {
	if maxBytes <= 0 {
		return lines
	}
	total := 0
	for _, line := range lines {
		total += len(line) + 1
	}
	for len(lines) > 1 && total > maxBytes {
		total -= len(lines[0]) + 1
		lines = lines[1:]
	}
	if len(lines) == 1 && len(lines[0]) > maxBytes {
		lines = []string{lines[0][:maxBytes]}
	}
	return lines
}

package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arcline/sheetlog/internal/ledger"
	"github.com/arcline/sheetlog/internal/store"
)

// Slots is the durable session store the manager persists through. It is
// best-effort: a slot failure degrades durability across restarts, never
// the live conversation.
type Slots interface {
	UpsertSession(ctx context.Context, slot store.SessionSlot) error
	GetSession(ctx context.Context, key string) (store.SessionSlot, bool, error)
	AppendTurn(ctx context.Context, sessionKey string, turn store.Turn) error
	ListTurns(ctx context.Context, sessionKey string) ([]store.Turn, error)
	SetContact(ctx context.Context, key, contact string) error
	SetLastFlushed(ctx context.Context, key string, lastFlushed int) error
	DeleteSession(ctx context.Context, key string) error
}

type Options struct {
	// FlushEveryTurns triggers an automatic flush once that many turns are
	// pending. Zero disables the threshold.
	FlushEveryTurns int
	// IdleAfter is how long a session may sit untouched before the janitor
	// flushes and evicts it. Zero disables expiry.
	IdleAfter time.Duration
	// HistoryMaxBytes caps the size of one flush batch. Zero is unlimited.
	HistoryMaxBytes int
}

// Manager owns every live session, keyed by session key. It rehydrates
// evicted or restart-lost sessions from the slot store and funnels all
// flush paths (manual, threshold, scheduled, end, janitor) through the
// tracker so the high-water-mark semantics hold everywhere.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Tracker

	reconciler Reconciler
	slots      Slots
	identity   Identity
	options    Options
	logger     *slog.Logger
}

func NewManager(reconciler Reconciler, slots Slots, identity Identity, options Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		sessions:   make(map[string]*Tracker),
		reconciler: reconciler,
		slots:      slots,
		identity:   identity,
		options:    options,
		logger:     logger,
	}
}

// Get returns the tracker for key, creating it when unknown. An empty key
// starts a fresh session with a generated identifier.
func (m *Manager) Get(ctx context.Context, key string) *Tracker {
	if key == "" {
		key = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if tracker, ok := m.sessions[key]; ok {
		return tracker
	}

	tracker := newTracker(key, m.identity, m.options.HistoryMaxBytes)
	m.load(ctx, tracker)
	m.sessions[key] = tracker
	return tracker
}

// load rehydrates the tracker from its slot, or records a fresh slot for
// it. Slot failures are logged and the in-memory session proceeds.
func (m *Manager) load(ctx context.Context, tracker *Tracker) {
	if m.slots == nil {
		return
	}

	slot, found, err := m.slots.GetSession(ctx, tracker.key)
	if err != nil {
		m.logger.Warn("session slot load failed", "session", tracker.key, "error", err)
		return
	}
	if !found {
		slot = store.SessionSlot{Key: tracker.key, Email: m.identity.Email, UserID: m.identity.UserID}
		if err := m.slots.UpsertSession(ctx, slot); err != nil {
			m.logger.Warn("session slot create failed", "session", tracker.key, "error", err)
		}
		return
	}

	stored, err := m.slots.ListTurns(ctx, tracker.key)
	if err != nil {
		m.logger.Warn("session turn load failed", "session", tracker.key, "error", err)
		return
	}
	turns := make([]Turn, 0, len(stored))
	for _, turn := range stored {
		turns = append(turns, Turn{Seq: turn.Seq, Role: turn.Role, Content: turn.Content, At: turn.At})
	}
	tracker.restore(slot.Contact, slot.LastFlushed, turns, slot.StartedAt)
	m.logger.Info("session restored", "session", tracker.key, "turns", len(turns), "flushed", slot.LastFlushed)
}

// RecordTurn buffers one message on the session and applies the
// turn-threshold autosave policy. Threshold flush failures are logged,
// never surfaced: the turn itself was recorded and the lines retry on the
// next flush.
func (m *Manager) RecordTurn(ctx context.Context, key, role, content string) (Status, Turn, error) {
	tracker := m.Get(ctx, key)
	turn := tracker.RecordTurn(role, content)

	if m.slots != nil {
		if err := m.slots.AppendTurn(ctx, tracker.key, store.Turn{Seq: turn.Seq, Role: turn.Role, Content: turn.Content, At: turn.At}); err != nil {
			m.logger.Warn("turn persist failed", "session", tracker.key, "seq", turn.Seq, "error", err)
		}
	}

	if m.options.FlushEveryTurns > 0 && tracker.Pending() >= m.options.FlushEveryTurns {
		if _, err := m.Flush(ctx, tracker.key); err != nil && !errors.Is(err, ErrNoContact) {
			m.logger.Warn("threshold flush failed", "session", tracker.key, "error", err)
		}
	}
	return tracker.Status(), turn, nil
}

// SetContact normalizes and records the session's contact key.
func (m *Manager) SetContact(ctx context.Context, key, raw string) (Status, string, error) {
	tracker := m.Get(ctx, key)
	normalized, err := tracker.SetContact(raw)
	if err != nil {
		return tracker.Status(), "", err
	}
	if m.slots != nil {
		if err := m.slots.SetContact(ctx, tracker.key, normalized); err != nil {
			m.logger.Warn("contact persist failed", "session", tracker.key, "error", err)
		}
	}
	return tracker.Status(), normalized, nil
}

// Flush writes the session's pending turns to the ledger and advances the
// durable high-water mark on success.
func (m *Manager) Flush(ctx context.Context, key string) (ledger.Result, error) {
	tracker := m.Get(ctx, key)
	result, err := tracker.Flush(ctx, m.reconciler)
	if err != nil {
		return ledger.Result{}, err
	}
	if m.slots != nil && result.Outcome != ledger.OutcomeNoOp {
		status := tracker.Status()
		if err := m.slots.SetLastFlushed(ctx, tracker.key, status.Turns-status.Pending); err != nil {
			m.logger.Warn("high-water mark persist failed", "session", tracker.key, "error", err)
		}
	}
	return result, nil
}

// Status reports the session snapshot, or false when the session is not
// live and has no slot.
func (m *Manager) Status(ctx context.Context, key string) (Status, bool) {
	m.mu.Lock()
	tracker, ok := m.sessions[key]
	m.mu.Unlock()
	if ok {
		return tracker.Status(), true
	}

	if m.slots != nil {
		if _, found, err := m.slots.GetSession(ctx, key); err == nil && found {
			return m.Get(ctx, key).Status(), true
		}
	}
	return Status{}, false
}

// End flushes the session and retires it. A session with pending turns and
// no contact key is not retired: returning ErrNoContact here instead of
// dropping the buffer is what keeps an early hang-up recoverable.
func (m *Manager) End(ctx context.Context, key string) (ledger.Result, error) {
	tracker := m.Get(ctx, key)
	result, err := tracker.Flush(ctx, m.reconciler)
	if err != nil {
		return ledger.Result{}, err
	}

	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()

	if m.slots != nil {
		if err := m.slots.DeleteSession(ctx, tracker.key); err != nil {
			m.logger.Warn("session slot delete failed", "session", tracker.key, "error", err)
		}
	}
	m.logger.Info("session ended", "session", tracker.key, "outcome", result.Outcome)
	return result, nil
}

// FlushAll flushes every live session with pending turns. Failures are
// logged per session and do not stop the sweep; the failed session keeps
// its backlog for the next cycle.
func (m *Manager) FlushAll(ctx context.Context) {
	for _, tracker := range m.live() {
		if tracker.Pending() == 0 {
			continue
		}
		result, err := m.Flush(ctx, tracker.key)
		switch {
		case errors.Is(err, ErrNoContact):
			m.logger.Debug("autosave skipped, no contact yet", "session", tracker.key, "pending", tracker.Pending())
		case err != nil:
			m.logger.Warn("autosave failed", "session", tracker.key, "error", err)
		default:
			m.logger.Info("autosave complete", "session", tracker.key, "outcome", result.Outcome, "row", result.RowNumber)
		}
	}
}

// ExpireIdle flushes and evicts sessions idle past the configured window.
// An evicted session's slot stays durable, so a late message revives it
// with its buffer intact.
func (m *Manager) ExpireIdle(ctx context.Context) {
	if m.options.IdleAfter <= 0 {
		return
	}
	cutoff := time.Now().UTC().Add(-m.options.IdleAfter)
	for _, tracker := range m.live() {
		if tracker.IdleSince().After(cutoff) {
			continue
		}
		if _, err := m.Flush(ctx, tracker.key); err != nil && !errors.Is(err, ErrNoContact) {
			m.logger.Warn("idle flush failed, keeping session", "session", tracker.key, "error", err)
			continue
		}
		m.mu.Lock()
		delete(m.sessions, tracker.key)
		m.mu.Unlock()
		m.logger.Info("idle session evicted", "session", tracker.key)
	}
}

func (m *Manager) live() []*Tracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	trackers := make([]*Tracker, 0, len(m.sessions))
	for _, tracker := range m.sessions {
		trackers = append(trackers, tracker)
	}
	return trackers
}

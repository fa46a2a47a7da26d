package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arcline/sheetlog/internal/normalize"
)

type Outcome string

const (
	OutcomeNoOp    Outcome = "noop"
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
)

// Result reports what the reconciler did. RowNumber is 0 when the store
// did not reveal where an appended row landed.
type Result struct {
	Outcome   Outcome
	RowNumber int
}

// Reconciler merges new conversation lines into the identity's existing
// row, or creates a fresh row when none exists. It performs no retries;
// store errors propagate to the caller, who decides retry policy. The
// full find-then-write sequence runs on every call; a row number is
// never cached across calls, keeping the race window against concurrent
// writers to a single read and a single write.
type Reconciler struct {
	locator *Locator
	store   RowStore
	logger  *slog.Logger
}

func NewReconciler(locator *Locator, store RowStore, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{locator: locator, store: store, logger: logger}
}

func (r *Reconciler) Reconcile(ctx context.Context, emailKey, contactKey string, newLines []string, meta Meta) (Result, error) {
	if len(newLines) == 0 {
		return Result{Outcome: OutcomeNoOp}, nil
	}

	emailKey = normalize.Email(emailKey)
	contactKey = normalize.Phone(contactKey)
	timestamp := meta.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}
	joined := strings.Join(newLines, "\n")

	match, found, err := r.locator.Find(ctx, emailKey, contactKey)
	if err != nil {
		return Result{}, err
	}

	if found {
		history := match.Record.History
		if history != "" {
			history += "\n" + joined
		} else {
			history = joined
		}
		// Rebuild every column: the store blanks anything omitted on update.
		updated := Record{
			Timestamp: timestamp.Format(time.RFC3339),
			Email:     emailKey,
			Contact:   contactKey,
			Summary:   meta.Summary,
			History:   history,
			UserID:    meta.UserID,
		}
		if err := r.store.UpdateRow(ctx, match.RowNumber, updated.Row()); err != nil {
			return Result{}, fmt.Errorf("merge into row %d: %w", match.RowNumber, err)
		}
		r.logger.Info("identity row updated", "row", match.RowNumber, "new_lines", len(newLines))
		return Result{Outcome: OutcomeUpdated, RowNumber: match.RowNumber}, nil
	}

	created := Record{
		Timestamp: timestamp.Format(time.RFC3339),
		Email:     emailKey,
		Contact:   contactKey,
		Summary:   meta.Summary,
		History:   joined,
		UserID:    meta.UserID,
	}
	rowNumber, err := r.store.AppendRow(ctx, created.Row())
	if err != nil {
		return Result{}, fmt.Errorf("append identity row: %w", err)
	}
	r.logger.Info("identity row created", "row", rowNumber, "new_lines", len(newLines))
	return Result{Outcome: OutcomeCreated, RowNumber: rowNumber}, nil
}

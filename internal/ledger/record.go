// Package ledger implements the identity-keyed append log on top of the
// spreadsheet row store: locating the row for a (email, contact) identity
// and reconciling new conversation lines into it.
package ledger

import (
	"context"
	"time"

	"github.com/arcline/sheetlog/internal/sheets"
)

// RowStore is the slice of the sheets client the ledger depends on.
type RowStore interface {
	ReadRange(ctx context.Context, rng string) ([][]string, error)
	AppendRow(ctx context.Context, row []string) (int, error)
	UpdateRow(ctx context.Context, rowNumber int, row []string) error
	DataRange() string
}

// Record is one identity row in the store. At most one record should exist
// per (normalized email, normalized contact) pair; the store enforces
// nothing, so the locator and reconciler uphold it by scanning before
// every write.
type Record struct {
	Timestamp string
	Email     string
	Contact   string
	Summary   string
	History   string
	UserID    string
}

// recordFromRow maps a raw store row onto the fixed six-column shape.
// Missing trailing columns default to empty strings here, once, at the
// deserialization boundary.
func recordFromRow(row []string) Record {
	padded := make([]string, sheets.ColumnCount)
	copy(padded, row)
	return Record{
		Timestamp: padded[0],
		Email:     padded[1],
		Contact:   padded[2],
		Summary:   padded[3],
		History:   padded[4],
		UserID:    padded[5],
	}
}

// Row serializes the record in store column order.
func (r Record) Row() []string {
	return []string{r.Timestamp, r.Email, r.Contact, r.Summary, r.History, r.UserID}
}

// Meta carries the per-write metadata the reconciler stamps onto the row.
type Meta struct {
	Timestamp time.Time
	Summary   string
	UserID    string
}

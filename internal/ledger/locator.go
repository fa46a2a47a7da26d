package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/arcline/sheetlog/internal/normalize"
	"github.com/arcline/sheetlog/internal/recerr"
)

// Match is a located identity row: its 1-based sheet row number and the
// record as currently stored.
type Match struct {
	RowNumber int
	Record    Record
}

// Locator scans the data rows for the row whose stored email and contact
// normalize-match a query key.
type Locator struct {
	store  RowStore
	logger *slog.Logger
}

func NewLocator(store RowStore, logger *slog.Logger) *Locator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Locator{store: store, logger: logger}
}

// Find returns the first row matching both keys, in row order. Stored
// values are normalized with the same functions as the query so rows
// written before a formatting change still match. A read failure is an
// error, never "no match": creating a row on a failed lookup would
// duplicate the identity.
func (l *Locator) Find(ctx context.Context, emailKey, contactKey string) (Match, bool, error) {
	emailKey = normalize.Email(emailKey)
	contactKey = normalize.Phone(contactKey)

	rows, err := l.store.ReadRange(ctx, l.store.DataRange())
	if err != nil {
		return Match{}, false, fmt.Errorf("locate identity row: %w", err)
	}

	found := Match{}
	matches := 0
	for index, row := range rows {
		record := recordFromRow(row)
		if normalize.Email(record.Email) != emailKey || normalize.Phone(record.Contact) != contactKey {
			continue
		}
		matches++
		if matches == 1 {
			// Data rows start at sheet row 2, below the header.
			found = Match{RowNumber: index + 2, Record: record}
		}
	}
	if matches == 0 {
		return Match{}, false, nil
	}
	if matches > 1 {
		// Earliest row wins; later duplicates are orphaned until cleaned
		// up manually in the sheet.
		l.logger.Warn("duplicate identity rows detected",
			"error", recerr.ErrAmbiguousIdentity,
			"email", emailKey,
			"rows", matches,
			"winning_row", found.RowNumber,
		)
	}
	return found, true, nil
}

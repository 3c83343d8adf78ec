package ports

import (
	"context"

	"github.com/alejandrodnm/kalshibot/internal/domain"
)

// BookStore persists the paper account: the book document plus the
// append-only trade and equity logs.
type BookStore interface {
	// LoadBook returns the persisted book, or (zero, false) when none
	// has been saved yet.
	LoadBook(ctx context.Context) (domain.PaperBook, bool, error)

	// SaveBook persists the full book state.
	SaveBook(ctx context.Context, book domain.PaperBook) error

	// AppendTradeLog appends one immutable trade row.
	AppendTradeLog(ctx context.Context, row domain.TradeLogRow) error

	// AppendEquityLog appends one equity snapshot.
	AppendEquityLog(ctx context.Context, snap domain.EquitySnapshot) error
}

package domain

// BookLevel is one price level of the Kalshi order book: [price, size].
type BookLevel struct {
	PriceCents int
	Contracts  int
}

// Orderbook is the live book for one market. The "no" side lists NO
// contracts at each no-price (= 100 - yes_price).
type Orderbook struct {
	Yes []BookLevel
	No  []BookLevel
}

// DepthAtPrice returns the number of contracts available at our target
// price for the given action.
//
// Tri-state contract (mirrored in EdgeReport.DepthAtPrice):
//
//	nil  — book is nil: offline / no creds / network error, depth unknown
//	0    — book present but our price level is empty: confirmed zero
//	N>0  — N contracts can be filled at our price
func DepthAtPrice(book *Orderbook, yesPrice int, action Action) *int {
	if book == nil {
		return nil
	}

	target := yesPrice
	levels := book.Yes
	if action == BetNo {
		target = 100 - yesPrice
		levels = book.No
	}

	depth := 0
	for _, lvl := range levels {
		if lvl.PriceCents == target {
			depth = lvl.Contracts
			break
		}
	}
	return &depth
}

// Package notify dispatches price-drop notifications. Dispatch is
// fire-and-forget: the monitor logs and drops failures, no retry queue.
package notify

import (
	"context"
	"log"
)

// PriceDrop is one item whose price fell this tick.
type PriceDrop struct {
	Title    string `json:"title"`
	OldPrice int64  `json:"old_price"` // cents
	NewPrice int64  `json:"new_price"` // cents
}

// Notifier delivers one batched notification per user per monitor tick.
// Batching avoids a notification storm when several items drop at once.
type Notifier interface {
	SendPriceDropBatch(ctx context.Context, userID string, drops []PriceDrop) error
}

// LogNotifier writes notifications to the process log. It stands in for a
// real email/push dispatcher in offline mode.
type LogNotifier struct{}

func (LogNotifier) SendPriceDropBatch(ctx context.Context, userID string, drops []PriceDrop) error {
	for _, d := range drops {
		log.Printf("[notify] user=%s title=%q price %d -> %d", userID, d.Title, d.OldPrice, d.NewPrice)
	}
	return nil
}

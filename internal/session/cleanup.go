package session

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/RMIT-FinTech-Club/history-chess-core/internal/obslog"
)

// TransportCloser closes the persistent server connection. Closing (not
// merely abandoning) it is what lets the server detect departure and
// release its side of the session.
type TransportCloser interface {
	Close(ctx context.Context) error
}

// Cleanup handles an explicit leave/new-game action: it removes the
// persisted handoff and closes the transport before navigating back to the
// find view. Safe with no transport attached. Only the first Leave has any
// effect.
type Cleanup struct {
	store  *Store
	tx     TransportCloser
	nav    Navigator
	done   atomic.Bool
	logger *zap.Logger
}

func NewCleanup(store *Store, tx TransportCloser, nav Navigator) *Cleanup {
	return &Cleanup{store: store, tx: tx, nav: nav, logger: obslog.L()}
}

// Leave tears the session down. Repeat calls are complete no-ops.
func (c *Cleanup) Leave(ctx context.Context) {
	if !c.done.CompareAndSwap(false, true) {
		return
	}

	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("session_clear", zap.Error(err))
	}

	if c.tx != nil {
		if err := c.tx.Close(ctx); err != nil {
			c.logger.Warn("transport_close", zap.Error(err))
		}
	}

	if err := c.nav.GoToFind(ctx); err != nil {
		c.logger.Warn("leave_navigate", zap.Error(err))
	}
	c.logger.Info("session_left")
}

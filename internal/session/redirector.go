package session

import (
	"context"

	"go.uber.org/zap"

	"github.com/RMIT-FinTech-Club/history-chess-core/internal/lobby"
	"github.com/RMIT-FinTech-Club/history-chess-core/internal/obslog"
)

// Navigator is the view-routing collaborator. Implementations queue the
// navigation; they must not block on rendering.
type Navigator interface {
	GoToGame(ctx context.Context, gameID string) error
	GoToFind(ctx context.Context) error
}

// Redirector drains the lobby's redirect slot exactly once per record:
// persist the handoff, then queue navigation to the game view. The take
// clears the slot before anything else runs, so a navigation failure can
// never make the same record drainable twice.
type Redirector struct {
	lobby  *lobby.State
	store  *Store
	nav    Navigator
	logger *zap.Logger
}

func NewRedirector(l *lobby.State, store *Store, nav Navigator) *Redirector {
	return &Redirector{lobby: l, store: store, nav: nav, logger: obslog.L()}
}

// Run observes the redirect slot until ctx is done.
func (r *Redirector) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.lobby.RedirectSignal():
			r.Drain(ctx)
		}
	}
}

// Drain performs one handoff. Observing an empty slot is a pure no-op.
// The take clears the slot up front, before the handoff write or the
// navigation: a failure in either step logs and gives the record up rather
// than leaving it drainable a second time.
func (r *Redirector) Drain(ctx context.Context) {
	rec := r.lobby.TakeRedirect()
	if rec == nil {
		return
	}

	h := Handoff{
		GameID:          rec.GameID,
		GameMode:        rec.PlayMode,
		ColorPreference: rec.ColorPreference,
		UserID:          rec.UserID,
	}
	if err := r.store.WriteHandoff(ctx, h); err != nil {
		// 저장 실패 시에도 슬롯은 이미 비워졌다. 중복 이동보다 낫다.
		r.logger.Warn("handoff_write", zap.String("game_id", rec.GameID), zap.Error(err))
	}

	if err := r.nav.GoToGame(ctx, rec.GameID); err != nil {
		r.logger.Warn("handoff_navigate", zap.String("game_id", rec.GameID), zap.Error(err))
		return
	}
	r.logger.Info("handoff_complete", zap.String("game_id", rec.GameID))
}

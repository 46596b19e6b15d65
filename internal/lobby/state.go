package lobby

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/RMIT-FinTech-Club/history-chess-core/internal/obslog"
)

// State is the single source of truth for one authenticated client's lobby:
// at most one incoming challenge, one outgoing challenge, and one pending
// redirect at a time. Its lifetime is the authenticated session; Reset is
// bound to transport disconnect.
//
// Accept/decline guards are idempotent by construction: a stale or
// mismatched challenge id is a silent no-op, never an error. That makes
// double clicks and lost races safe without any caller-side locking.
type State struct {
	mu     sync.Mutex
	userID string
	tx     Commander
	logger *zap.Logger

	incoming *ChallengeRecord
	outgoing *ChallengeRecord
	redirect *RedirectRecord

	// set while an accept has been taken locally but the server has not
	// assigned the game id yet
	awaitingAssign bool

	// at-least-once delivery dedupe
	seenChallenges map[string]struct{}
	seenGames      map[string]struct{}

	redirectCh chan struct{}
}

func New(userID string, tx Commander) *State {
	return &State{
		userID:         strings.TrimSpace(userID),
		tx:             tx,
		logger:         obslog.L(),
		seenChallenges: make(map[string]struct{}),
		seenGames:      make(map[string]struct{}),
		redirectCh:     make(chan struct{}, 1),
	}
}

// HandleChallengeOffer records an incoming challenge. While one incoming
// challenge is already pending, any newer offer is declined immediately and
// never displayed.
func (s *State) HandleChallengeOffer(ctx context.Context, rec ChallengeRecord) {
	rec.ChallengeID = strings.TrimSpace(rec.ChallengeID)
	if rec.ChallengeID == "" {
		return
	}

	s.mu.Lock()
	if _, dup := s.seenChallenges[rec.ChallengeID]; dup {
		s.mu.Unlock()
		s.logger.Debug("challenge_offer_duplicate", zap.String("challenge_id", rec.ChallengeID))
		return
	}
	s.seenChallenges[rec.ChallengeID] = struct{}{}

	if s.incoming != nil && s.incoming.Status == StatusPending {
		s.mu.Unlock()
		// 이미 대기 중인 도전이 있으면 새 도전은 즉시 거절
		s.logger.Info("challenge_offer_rejected_busy",
			zap.String("challenge_id", rec.ChallengeID),
			zap.String("from_user_id", rec.FromUserID))
		if err := s.tx.DeclineChallenge(ctx, rec.ChallengeID); err != nil {
			s.logger.Warn("challenge_decline_send", zap.String("challenge_id", rec.ChallengeID), zap.Error(err))
		}
		return
	}

	rec.Status = StatusPending
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.incoming = &rec
	s.mu.Unlock()

	s.logger.Info("challenge_offer",
		zap.String("challenge_id", rec.ChallengeID),
		zap.String("from_user_id", rec.FromUserID),
		zap.String("play_mode", rec.PlayMode))
}

// Accept transitions the displayed incoming challenge to Accepted, emits the
// accept command once, and produces the RedirectRecord from the challenge's
// negotiated parameters. Invalid against a non-Pending or mismatched id: no-op.
func (s *State) Accept(ctx context.Context, challengeID string) {
	challengeID = strings.TrimSpace(challengeID)

	s.mu.Lock()
	if s.incoming == nil || s.incoming.Status != StatusPending || s.incoming.ChallengeID != challengeID {
		s.mu.Unlock()
		s.logger.Debug("challenge_accept_stale", zap.String("challenge_id", challengeID))
		return
	}
	s.incoming.Status = StatusAccepted
	rec := *s.incoming
	if rec.GameID == "" {
		s.awaitingAssign = true
	}
	s.mu.Unlock()

	if err := s.tx.AcceptChallenge(ctx, challengeID); err != nil {
		s.logger.Warn("challenge_accept_send", zap.String("challenge_id", challengeID), zap.Error(err))
	}
	s.logger.Info("challenge_accepted",
		zap.String("challenge_id", challengeID),
		zap.String("game_id", rec.GameID))

	if rec.GameID != "" {
		s.setRedirect(RedirectRecord{
			GameID:          rec.GameID,
			PlayMode:        rec.PlayMode,
			ColorPreference: rec.ColorPreference,
			UserID:          s.userID,
		})
	}
}

// Decline transitions the displayed incoming challenge to Declined, emits
// the decline command, and closes the modal. Stale ids are a no-op.
func (s *State) Decline(ctx context.Context, challengeID string) {
	challengeID = strings.TrimSpace(challengeID)

	s.mu.Lock()
	if s.incoming == nil || s.incoming.Status != StatusPending || s.incoming.ChallengeID != challengeID {
		s.mu.Unlock()
		s.logger.Debug("challenge_decline_stale", zap.String("challenge_id", challengeID))
		return
	}
	s.incoming.Status = StatusDeclined
	s.incoming = nil
	s.mu.Unlock()

	if err := s.tx.DeclineChallenge(ctx, challengeID); err != nil {
		s.logger.Warn("challenge_decline_send", zap.String("challenge_id", challengeID), zap.Error(err))
	}
	s.logger.Info("challenge_declined", zap.String("challenge_id", challengeID))
}

// Dismiss routes any UI dismissal of a still-pending challenge through the
// decline path so no Pending record is left without an observer.
func (s *State) Dismiss(ctx context.Context) {
	s.mu.Lock()
	var id string
	if s.incoming != nil && s.incoming.Status == StatusPending {
		id = s.incoming.ChallengeID
	}
	s.mu.Unlock()

	if id != "" {
		s.Decline(ctx, id)
	}
}

// SendChallenge creates one outgoing challenge and emits it. Only one
// outgoing challenge may be pending at a time.
func (s *State) SendChallenge(ctx context.Context, toUserID, playMode, colorPreference string) (*ChallengeRecord, error) {
	toUserID = strings.TrimSpace(toUserID)
	if toUserID == "" {
		return nil, ErrInvalidArgs
	}

	s.mu.Lock()
	if s.outgoing != nil && s.outgoing.Status == StatusPending {
		s.mu.Unlock()
		return nil, ErrOutgoingPending
	}
	rec := ChallengeRecord{
		ChallengeID:     uuid.NewString(),
		FromUserID:      s.userID,
		ToUserID:        toUserID,
		PlayMode:        playMode,
		ColorPreference: colorPreference,
		CreatedAt:       time.Now(),
		Status:          StatusPending,
	}
	s.outgoing = &rec
	s.mu.Unlock()

	if err := s.tx.SendChallenge(ctx, rec); err != nil {
		s.mu.Lock()
		if s.outgoing != nil && s.outgoing.ChallengeID == rec.ChallengeID {
			s.outgoing.Status = StatusCancelled
			s.outgoing = nil
		}
		s.mu.Unlock()
		return nil, err
	}

	s.logger.Info("challenge_sent",
		zap.String("challenge_id", rec.ChallengeID),
		zap.String("to_user_id", toUserID))
	out := rec
	return &out, nil
}

// HandleChallengeDeclined marks the outgoing challenge declined.
func (s *State) HandleChallengeDeclined(challengeID string) {
	challengeID = strings.TrimSpace(challengeID)

	s.mu.Lock()
	if s.outgoing == nil || s.outgoing.Status != StatusPending || s.outgoing.ChallengeID != challengeID {
		s.mu.Unlock()
		s.logger.Debug("challenge_declined_stale", zap.String("challenge_id", challengeID))
		return
	}
	s.outgoing.Status = StatusDeclined
	s.outgoing = nil
	s.mu.Unlock()

	s.logger.Info("challenge_was_declined", zap.String("challenge_id", challengeID))
}

// HandleChallengeExpired marks an expired challenge terminal; the expiry
// window is enforced by the server, not here.
func (s *State) HandleChallengeExpired(challengeID string) {
	challengeID = strings.TrimSpace(challengeID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incoming != nil && s.incoming.ChallengeID == challengeID && s.incoming.Status == StatusPending {
		s.incoming.Status = StatusExpired
		s.incoming = nil
		s.logger.Info("challenge_expired", zap.String("challenge_id", challengeID))
		return
	}
	if s.outgoing != nil && s.outgoing.ChallengeID == challengeID && s.outgoing.Status == StatusPending {
		s.outgoing.Status = StatusExpired
		s.outgoing = nil
		s.logger.Info("challenge_expired", zap.String("challenge_id", challengeID))
	}
}

// HandleGameAssigned consumes the server's game assignment: the challenger
// side learns its game id here. Duplicate deliveries are ignored.
func (s *State) HandleGameAssigned(gameID, playMode, colorPreference string) {
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return
	}

	s.mu.Lock()
	if _, dup := s.seenGames[gameID]; dup {
		s.mu.Unlock()
		s.logger.Debug("game_assigned_duplicate", zap.String("game_id", gameID))
		return
	}
	s.seenGames[gameID] = struct{}{}

	expecting := s.awaitingAssign
	if s.outgoing != nil && s.outgoing.Status == StatusPending {
		s.outgoing.Status = StatusAccepted
		s.outgoing.GameID = gameID
		s.outgoing = nil
		expecting = true
	}
	s.awaitingAssign = false
	s.mu.Unlock()

	if !expecting {
		s.logger.Debug("game_assigned_unexpected", zap.String("game_id", gameID))
		return
	}

	s.logger.Info("game_assigned", zap.String("game_id", gameID), zap.String("play_mode", playMode))
	s.setRedirect(RedirectRecord{
		GameID:          gameID,
		PlayMode:        playMode,
		ColorPreference: colorPreference,
		UserID:          s.userID,
	})
}

// IsChallengeModalOpen reports whether a pending incoming challenge is
// displayed.
func (s *State) IsChallengeModalOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incoming != nil && s.incoming.Status == StatusPending
}

// IncomingChallenge returns a copy of the displayed challenge, if any.
func (s *State) IncomingChallenge() *ChallengeRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incoming == nil {
		return nil
	}
	rec := *s.incoming
	return &rec
}

// TakeRedirect atomically drains and clears the redirect slot. Draining an
// empty slot returns nil; the clear is part of the take, so no two callers
// can ever observe the same record.
func (s *State) TakeRedirect() *RedirectRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.redirect
	s.redirect = nil
	return rec
}

// RedirectSignal wakes the redirector when the slot fills.
func (s *State) RedirectSignal() <-chan struct{} { return s.redirectCh }

func (s *State) setRedirect(rec RedirectRecord) {
	s.mu.Lock()
	if s.redirect != nil {
		s.mu.Unlock()
		// 슬롯은 항상 최대 1건: 먼저 온 기록이 이긴다
		s.logger.Warn("redirect_slot_occupied", zap.String("dropped_game_id", rec.GameID))
		return
	}
	s.redirect = &rec
	s.mu.Unlock()

	select {
	case s.redirectCh <- struct{}{}:
	default:
	}
}

// Reset clears the whole lobby: incoming and outgoing challenges, the
// redirect slot, and the dedupe indexes. Bound to transport disconnect.
func (s *State) Reset() {
	s.mu.Lock()
	s.incoming = nil
	s.outgoing = nil
	s.redirect = nil
	s.awaitingAssign = false
	s.seenChallenges = make(map[string]struct{})
	s.seenGames = make(map[string]struct{})
	s.mu.Unlock()

	s.logger.Info("lobby_reset")
}

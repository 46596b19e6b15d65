package lobby

import (
	"context"
	"time"
)

// ChallengeStatus is the lifecycle state of one challenge. Pending is the
// only non-terminal state.
type ChallengeStatus string

const (
	StatusPending   ChallengeStatus = "PENDING"
	StatusAccepted  ChallengeStatus = "ACCEPTED"
	StatusDeclined  ChallengeStatus = "DECLINED"
	StatusExpired   ChallengeStatus = "EXPIRED"
	StatusCancelled ChallengeStatus = "CANCELLED"
)

// ChallengeRecord is one proposal to play. GameID is assigned by the server
// when it creates the challenge; it is never minted locally.
type ChallengeRecord struct {
	ChallengeID     string          `json:"challenge_id"`
	FromUserID      string          `json:"from_user_id"`
	ToUserID        string          `json:"to_user_id"`
	GameID          string          `json:"game_id,omitempty"`
	PlayMode        string          `json:"play_mode"`
	ColorPreference string          `json:"color_preference"`
	CreatedAt       time.Time       `json:"created_at"`
	Status          ChallengeStatus `json:"status"`
}

// RedirectRecord is the one-shot payload produced by an accepted challenge
// and drained exactly once by the session redirector.
type RedirectRecord struct {
	GameID          string
	PlayMode        string
	ColorPreference string
	UserID          string
}

// Commander emits challenge commands over the transport.
type Commander interface {
	AcceptChallenge(ctx context.Context, challengeID string) error
	DeclineChallenge(ctx context.Context, challengeID string) error
	SendChallenge(ctx context.Context, rec ChallengeRecord) error
}

var (
	ErrInvalidArgs     = errf("invalid arguments")
	ErrOutgoingPending = errf("an outgoing challenge is already pending")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

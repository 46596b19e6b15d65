package transport

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/RMIT-FinTech-Club/history-chess-core/internal/lobby"
	"github.com/RMIT-FinTech-Club/history-chess-core/internal/obslog"
)

// Inbound events and outbound commands. The wire encoding is owned by the
// server; this side only relies on the event names and at-least-once
// delivery (deduplicated upstream by challenge/game id).
const (
	evChallengeOffer    = "challenge_offer"
	evChallengeDeclined = "challenge_declined"
	evChallengeExpired  = "challenge_expired"
	evGameAssigned      = "game_assigned"

	cmdAcceptChallenge  = "accept_challenge"
	cmdDeclineChallenge = "decline_challenge"
	cmdSendChallenge    = "send_challenge"
)

var errNotConnected = errf("socket not connected")

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

// ChallengeOffer is the inbound challenge payload.
type ChallengeOffer struct {
	ChallengeID     string `json:"challengeId"`
	FromUserID      string `json:"fromUserId"`
	ToUserID        string `json:"toUserId"`
	GameID          string `json:"gameId,omitempty"`
	PlayMode        string `json:"playMode"`
	ColorPreference string `json:"colorPreference"`
}

// GameAssigned is the inbound game-creation payload.
type GameAssigned struct {
	GameID          string `json:"gameId"`
	PlayMode        string `json:"playMode"`
	ColorPreference string `json:"colorPreference"`
}

type challengeRef struct {
	ChallengeID string `json:"challengeId"`
}

type challengeRequest struct {
	ChallengeID     string `json:"challengeId"`
	ToUserID        string `json:"toUserId"`
	PlayMode        string `json:"playMode"`
	ColorPreference string `json:"colorPreference"`
}

// Handler receives decoded inbound events.
type Handler interface {
	OnChallengeOffer(ctx context.Context, offer ChallengeOffer)
	OnChallengeDeclined(ctx context.Context, challengeID string)
	OnChallengeExpired(ctx context.Context, challengeID string)
	OnGameAssigned(ctx context.Context, assigned GameAssigned)
}

// Client decodes inbound frames into named events for a Handler and encodes
// outbound challenge commands. It satisfies lobby.Commander.
type Client struct {
	sock    *Socket
	handler Handler
	logger  *zap.Logger
}

func NewClient(sock *Socket, handler Handler) *Client {
	c := &Client{sock: sock, handler: handler, logger: obslog.L()}
	sock.OnFrame(c.dispatch)
	return c
}

func (c *Client) Connect(ctx context.Context) error { return c.sock.Connect(ctx) }

// Close closes the underlying socket so the server can release the session.
func (c *Client) Close(ctx context.Context) error { return c.sock.Close(ctx) }

func (c *Client) OnStateChange(cb StateCallback) { c.sock.OnStateChange(cb) }

func (c *Client) dispatch(frame *Frame) {
	if frame == nil || c.handler == nil {
		return
	}
	ctx := context.Background()

	switch frame.Event {
	case evChallengeOffer:
		var offer ChallengeOffer
		if err := json.Unmarshal(frame.Data, &offer); err != nil {
			c.logger.Warn("frame_decode", zap.String("event", frame.Event), zap.Error(err))
			return
		}
		c.handler.OnChallengeOffer(ctx, offer)
	case evChallengeDeclined:
		var ref challengeRef
		if err := json.Unmarshal(frame.Data, &ref); err != nil {
			c.logger.Warn("frame_decode", zap.String("event", frame.Event), zap.Error(err))
			return
		}
		c.handler.OnChallengeDeclined(ctx, ref.ChallengeID)
	case evChallengeExpired:
		var ref challengeRef
		if err := json.Unmarshal(frame.Data, &ref); err != nil {
			c.logger.Warn("frame_decode", zap.String("event", frame.Event), zap.Error(err))
			return
		}
		c.handler.OnChallengeExpired(ctx, ref.ChallengeID)
	case evGameAssigned:
		var assigned GameAssigned
		if err := json.Unmarshal(frame.Data, &assigned); err != nil {
			c.logger.Warn("frame_decode", zap.String("event", frame.Event), zap.Error(err))
			return
		}
		c.handler.OnGameAssigned(ctx, assigned)
	default:
		c.logger.Debug("frame_ignored", zap.String("event", frame.Event))
	}
}

func (c *Client) AcceptChallenge(ctx context.Context, challengeID string) error {
	return c.writeCommand(ctx, cmdAcceptChallenge, challengeRef{ChallengeID: challengeID})
}

func (c *Client) DeclineChallenge(ctx context.Context, challengeID string) error {
	return c.writeCommand(ctx, cmdDeclineChallenge, challengeRef{ChallengeID: challengeID})
}

func (c *Client) SendChallenge(ctx context.Context, rec lobby.ChallengeRecord) error {
	return c.writeCommand(ctx, cmdSendChallenge, challengeRequest{
		ChallengeID:     rec.ChallengeID,
		ToUserID:        rec.ToUserID,
		PlayMode:        rec.PlayMode,
		ColorPreference: rec.ColorPreference,
	})
}

func (c *Client) writeCommand(ctx context.Context, event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.sock.WriteFrame(ctx, &Frame{Event: event, Data: raw})
}

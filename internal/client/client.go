package client

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/RMIT-FinTech-Club/history-chess-core/internal/config"
	"github.com/RMIT-FinTech-Club/history-chess-core/internal/engine"
	"github.com/RMIT-FinTech-Club/history-chess-core/internal/lobby"
	"github.com/RMIT-FinTech-Club/history-chess-core/internal/obslog"
	"github.com/RMIT-FinTech-Club/history-chess-core/internal/serverapi"
	"github.com/RMIT-FinTech-Club/history-chess-core/internal/session"
	"github.com/RMIT-FinTech-Club/history-chess-core/internal/transport"
)

// Client wires one authenticated user's match-coordination core: socket
// transport, lobby state, session handoff, leave cleanup, and the optional
// bot engine. It is a library composition root; the surrounding UI owns the
// process and the Navigator.
type Client struct {
	cfg    *config.AppConfig
	logger *zap.Logger

	sock    *transport.Socket
	tx      *transport.Client
	lobby   *lobby.State
	store   *session.Store
	redir   *session.Redirector
	cleanup *session.Cleanup
	api     *serverapi.Client
	engine  *engine.Adapter

	cancel context.CancelFunc
}

func New(cfg *config.AppConfig, nav session.Navigator) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if nav == nil {
		return nil, errors.New("navigator is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(redisOpts)

	c := &Client{cfg: cfg, logger: obslog.L()}

	c.sock = transport.NewSocket(cfg.ServerWSURL, 5, time.Second)
	c.sock.SetHeaderProvider(func() map[string]string {
		return map[string]string{"X-User-ID": cfg.UserID}
	})
	c.tx = transport.NewClient(c.sock, c)

	c.lobby = lobby.New(cfg.UserID, c.tx)

	c.store = session.NewStore(rdb, cfg.UserID)
	c.store.SetTTL(time.Duration(cfg.HandoffTTLSec) * time.Second)
	c.redir = session.NewRedirector(c.lobby, c.store, nav)
	c.cleanup = session.NewCleanup(c.store, c.tx, nav)

	c.api = serverapi.NewClient(cfg.ServerBaseURL,
		serverapi.WithHeaderProvider(func() map[string]string {
			return map[string]string{"X-User-ID": cfg.UserID}
		}))

	if cfg.StockfishPath != "" {
		adapter, err := engine.NewFromBinary(cfg.StockfishPath, engine.Options{
			SkillLevel:     cfg.EngineSkillLevel,
			MoveTimeMillis: cfg.EngineMoveTimeMillis,
			Debounce:       time.Duration(cfg.EngineDebounceMillis) * time.Millisecond,
		})
		if err != nil {
			return nil, err
		}
		c.engine = adapter
	}

	// 연결이 끊기면 로비 전체 초기화 (도전/리다이렉트 슬롯 포함)
	c.sock.OnStateChange(func(state transport.SocketState) {
		if state == transport.SocketDisconnected || state == transport.SocketFailed {
			c.lobby.Reset()
		}
	})

	return c, nil
}

// Start connects the transport, launches the redirector, and brings the
// engine up when one is configured.
func (c *Client) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	go c.redir.Run(runCtx)

	if c.engine != nil {
		if err := c.engine.Start(); err != nil {
			return err
		}
	}
	return c.tx.Connect(ctx)
}

// Close tears everything down.
func (c *Client) Close(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	var errs []error
	if c.engine != nil {
		if err := c.engine.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.sock.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Leave runs the session cleanup (handoff removal, transport close,
// navigation back to the find view).
func (c *Client) Leave(ctx context.Context) { c.cleanup.Leave(ctx) }

func (c *Client) Lobby() *lobby.State     { return c.lobby }
func (c *Client) Engine() *engine.Adapter { return c.engine }
func (c *Client) API() *serverapi.Client  { return c.api }
func (c *Client) Store() *session.Store   { return c.store }

// transport.Handler

func (c *Client) OnChallengeOffer(ctx context.Context, offer transport.ChallengeOffer) {
	c.lobby.HandleChallengeOffer(ctx, lobby.ChallengeRecord{
		ChallengeID:     offer.ChallengeID,
		FromUserID:      offer.FromUserID,
		ToUserID:        offer.ToUserID,
		GameID:          offer.GameID,
		PlayMode:        offer.PlayMode,
		ColorPreference: offer.ColorPreference,
	})
}

func (c *Client) OnChallengeDeclined(_ context.Context, challengeID string) {
	c.lobby.HandleChallengeDeclined(challengeID)
}

func (c *Client) OnChallengeExpired(_ context.Context, challengeID string) {
	c.lobby.HandleChallengeExpired(challengeID)
}

func (c *Client) OnGameAssigned(_ context.Context, assigned transport.GameAssigned) {
	c.lobby.HandleGameAssigned(assigned.GameID, assigned.PlayMode, assigned.ColorPreference)
}

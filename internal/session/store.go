package session

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultHandoffTTL = 24 * time.Hour

// Handoff is the only state that crosses the navigation boundary into the
// game view. Written once by the redirector, read once by the game view on
// mount, removed on leave.
type Handoff struct {
	GameID          string `json:"gameId"`
	GameMode        string `json:"gameMode"`
	ColorPreference string `json:"colorPreference"`
	UserID          string `json:"userId"`
}

// Store keeps one user's session handoff as JSON under per-user keys. The
// companion active-game key is written elsewhere; this side only clears it
// on leave.
type Store struct {
	rdb    *redis.Client
	userID string
	ttl    time.Duration
}

func NewStore(rdb *redis.Client, userID string) *Store {
	return &Store{rdb: rdb, userID: strings.TrimSpace(userID), ttl: defaultHandoffTTL}
}

func (s *Store) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		s.ttl = ttl
	}
}

func (s *Store) keyGameData() string   { return "gameData:" + s.userID }
func (s *Store) keyActiveGame() string { return "chess_active_game:" + s.userID }

func (s *Store) WriteHandoff(ctx context.Context, h Handoff) error {
	raw, err := json.Marshal(&h)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.keyGameData(), raw, s.ttl).Err()
}

// ReadHandoff returns nil when no handoff is stored. Presence does not mean
// validity: the game view must still attempt to rejoin and may find the
// remote session already gone.
func (s *Store) ReadHandoff(ctx context.Context) (*Handoff, error) {
	raw, err := s.rdb.Get(ctx, s.keyGameData()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var h Handoff
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Clear removes the handoff and every other session-scoped key.
func (s *Store) Clear(ctx context.Context) error {
	return s.rdb.Del(ctx, s.keyGameData(), s.keyActiveGame()).Err()
}

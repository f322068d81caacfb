// Package gamestore persists engine-game records: live snapshots in
// redis, finished games in Postgres.
package gamestore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/on62/cairo-board/internal/obslog"
	"github.com/on62/cairo-board/pkg/enginedto"
)

const snapshotTTL = 24 * time.Hour

// Store keeps a live snapshot per session so a crashed frontend can pick
// the game back up.
type Store struct {
	rdb *redis.Client
}

func NewStore(redisURL string) (*Store, error) {
	if strings.TrimSpace(redisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL required for game store")
	}
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{rdb: rdb}, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

// Save writes the record snapshot and refreshes the latest-session pointer.
func (s *Store) Save(ctx context.Context, rec *enginedto.GameRecord) error {
	if s == nil || s.rdb == nil || rec == nil {
		return fmt.Errorf("game store not initialized")
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, gameKey(rec.SessionID), raw, snapshotTTL).Err(); err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, latestKey, rec.SessionID, snapshotTTL).Err(); err != nil {
		return err
	}
	obslog.L().Debug("game_snapshot_saved",
		zap.String("session", rec.SessionID),
		zap.Int("moves", len(rec.MovesUCI)),
	)
	return nil
}

// Load returns the snapshot for a session, or nil when none is stored.
func (s *Store) Load(ctx context.Context, sessionID string) (*enginedto.GameRecord, error) {
	if s == nil || s.rdb == nil {
		return nil, fmt.Errorf("game store not initialized")
	}
	raw, err := s.rdb.Get(ctx, gameKey(sessionID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec enginedto.GameRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// LoadLatest returns the most recently saved snapshot, or nil.
func (s *Store) LoadLatest(ctx context.Context) (*enginedto.GameRecord, error) {
	if s == nil || s.rdb == nil {
		return nil, fmt.Errorf("game store not initialized")
	}
	id, err := s.rdb.Get(ctx, latestKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, id)
}

const latestKey = "uci:game:latest"

func gameKey(sessionID string) string { return "uci:game:" + strings.TrimSpace(sessionID) }

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}

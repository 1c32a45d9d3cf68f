package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kiliankoe/rajamantri/internal/game"
	"github.com/redis/go-redis/v9"
)

// Config holds configuration for the Redis round archive
type Config struct {
	RedisClient *redis.Client
	// Prefix namespaces every key, e.g. "rajamantri"
	Prefix string
}

// Redis appends resolved rounds to per-room lists. It is write-mostly: the
// server never restores room state from it.
type Redis struct {
	client *redis.Client
	prefix string
}

var _ game.RoundSink = (*Redis)(nil)

func NewRedis(ctx context.Context, cfg *Config) (*Redis, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if cfg.RedisClient == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if err := cfg.RedisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "rajamantri"
	}
	return &Redis{client: cfg.RedisClient, prefix: prefix}, nil
}

func (r *Redis) roundsKey(roomID string) string {
	return fmt.Sprintf("%s:rounds:%s", r.prefix, roomID)
}

func (r *Redis) roomsKey() string {
	return r.prefix + ":rooms"
}

// RoundCompleted stores the round and indexes its room.
func (r *Redis) RoundCompleted(ctx context.Context, res *game.GuessResult) error {
	if res == nil {
		return errors.New("result cannot be nil")
	}
	b, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to marshal round: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, r.roundsKey(res.RoomID), b)
	pipe.SAdd(ctx, r.roomsKey(), res.RoomID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to archive round: %w", err)
	}
	return nil
}

// Rounds lists the archived rounds of a room, oldest first.
func (r *Redis) Rounds(ctx context.Context, roomID string) ([]*game.GuessResult, error) {
	raw, err := r.client.LRange(ctx, r.roundsKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read rounds: %w", err)
	}
	out := make([]*game.GuessResult, 0, len(raw))
	for _, s := range raw {
		var res game.GuessResult
		if err := json.Unmarshal([]byte(s), &res); err != nil {
			return nil, fmt.Errorf("failed to unmarshal round: %w", err)
		}
		out = append(out, &res)
	}
	return out, nil
}

// Rooms lists every room id that has at least one archived round.
func (r *Redis) Rooms(ctx context.Context) ([]string, error) {
	ids, err := r.client.SMembers(ctx, r.roomsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read rooms: %w", err)
	}
	return ids, nil
}

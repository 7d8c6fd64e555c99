package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"mijob/internal/logger"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "presence:user:"
	eventsChannel = "presence:events"
)

// RedisRegistry keeps one set of connection ids per account so presence is
// shared by every API instance. Sets expire unless refreshed, which clears
// entries left behind by a crashed instance.
type RedisRegistry struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisRegistry(rdb *redis.Client, ttl time.Duration) *RedisRegistry {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &RedisRegistry{rdb: rdb, ttl: ttl}
}

func userKey(userID int) string {
	return keyPrefix + strconv.Itoa(userID)
}

func (r *RedisRegistry) Add(ctx context.Context, userID int, connID string) error {
	pipe := r.rdb.TxPipeline()
	pipe.SAdd(ctx, userKey(userID), connID)
	pipe.Expire(ctx, userKey(userID), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence add: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Remove(ctx context.Context, userID int, connID string) error {
	if err := r.rdb.SRem(ctx, userKey(userID), connID).Err(); err != nil {
		return fmt.Errorf("presence remove: %w", err)
	}
	return nil
}

func (r *RedisRegistry) Refresh(ctx context.Context, userID int) error {
	return r.rdb.Expire(ctx, userKey(userID), r.ttl).Err()
}

func (r *RedisRegistry) IsOnline(ctx context.Context, userID int) (bool, error) {
	n, err := r.rdb.SCard(ctx, userKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("presence lookup: %w", err)
	}
	return n > 0, nil
}

func (r *RedisRegistry) Online(ctx context.Context, userIDs []int) (map[int]bool, error) {
	out := make(map[int]bool, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.IntCmd, len(userIDs))
	for i, id := range userIDs {
		cmds[i] = pipe.SCard(ctx, userKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("presence lookup: %w", err)
	}
	for i, id := range userIDs {
		out[id] = cmds[i].Val() > 0
	}
	return out, nil
}

type envelope struct {
	UserID int   `json:"user_id"`
	Event  Event `json:"event"`
}

// Publish sends ev to every instance; the one holding the account's
// connection delivers it.
func (r *RedisRegistry) Publish(ctx context.Context, userID int, ev Event) error {
	data, err := json.Marshal(envelope{UserID: userID, Event: ev})
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, eventsChannel, string(data)).Err()
}

// Subscribe calls deliver for every published event until ctx is done.
func (r *RedisRegistry) Subscribe(ctx context.Context, deliver func(userID int, ev Event)) {
	sub := r.rdb.Subscribe(ctx, eventsChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				logger.Warn("dropping malformed presence event", "error", err.Error())
				continue
			}
			deliver(env.UserID, env.Event)
		}
	}
}

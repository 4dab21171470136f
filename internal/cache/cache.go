// Package cache holds the Redis-backed sweep lock and the active SLA index.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/AmitRK9819/pulsegov/internal/apperr"
)

const (
	ActiveSLAKey = "sla:active"
	SweepLockKey = "sla:sweep:lock"
)

type Client struct {
	rdb *goredis.Client
}

func New(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// NewFromClient wraps an existing go-redis client.
func NewFromClient(rdb *goredis.Client) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock held by another holder")

// TryLock takes key for ttl without waiting. The returned unlock only deletes
// the key while this holder's token is still stored.
func (c *Client) TryLock(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := c.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, apperr.Transient("cache.lock", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	unlock := func(ctx context.Context) error {
		err := releaseScript.Run(ctx, c.rdb, []string{key}, token).Err()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return apperr.Transient("cache.unlock", err)
		}
		return nil
	}
	return unlock, nil
}

// TrackDeadline indexes a complaint in the active SLA set scored by its
// deadline in unix milliseconds.
func (c *Client) TrackDeadline(ctx context.Context, complaintID int64, deadline time.Time) error {
	err := c.rdb.ZAdd(ctx, ActiveSLAKey, goredis.Z{
		Score:  float64(deadline.UnixMilli()),
		Member: strconv.FormatInt(complaintID, 10),
	}).Err()
	return apperr.Transient("cache.track_deadline", err)
}

func (c *Client) Untrack(ctx context.Context, complaintID int64) error {
	err := c.rdb.ZRem(ctx, ActiveSLAKey, strconv.FormatInt(complaintID, 10)).Err()
	return apperr.Transient("cache.untrack", err)
}

type Deadline struct {
	ComplaintID int64     `json:"complaint_id"`
	Deadline    time.Time `json:"sla_deadline"`
}

// DueBefore lists tracked complaints whose deadline falls before t,
// earliest first.
func (c *Client) DueBefore(ctx context.Context, t time.Time, limit int64) ([]Deadline, error) {
	zs, err := c.rdb.ZRangeByScoreWithScores(ctx, ActiveSLAKey, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(t.UnixMilli(), 10),
		Count: limit,
	}).Result()
	if err != nil {
		return nil, apperr.Transient("cache.due_before", err)
	}
	out := make([]Deadline, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Deadline{ComplaintID: id, Deadline: time.UnixMilli(int64(z.Score)).UTC()})
	}
	return out, nil
}

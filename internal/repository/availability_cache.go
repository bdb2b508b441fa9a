package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"playchrono/internal/calendar"
	"playchrono/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	availabilityKeyPrefix = "availability:"
	generationKeyPrefix   = "availability:gen:"
	// Outlives any in-flight read by far; refreshed on every invalidation.
	generationTTL = 7 * 24 * time.Hour
)

var errStaleGeneration = errors.New("availability generation moved")

// RedisAvailabilityCache keeps one hash per date with a field per sport, so a
// write to any ground of a date drops every listing of that date at once.
//
// Each date also carries a generation counter. Invalidate bumps it, and Set
// only stores a listing when the generation still matches the one Get saw
// before the listing was resolved. Dates whose invalidation failed bypass the
// cache until an invalidation succeeds.
type RedisAvailabilityCache struct {
	client *redis.Client
	ttl    time.Duration

	mu      sync.Mutex
	pending map[string]struct{}
}

func NewRedisAvailabilityCache(client *redis.Client, ttl time.Duration) *RedisAvailabilityCache {
	return &RedisAvailabilityCache{client: client, ttl: ttl, pending: make(map[string]struct{})}
}

func availabilityKey(date calendar.Date) string {
	return availabilityKeyPrefix + date.String()
}

func generationKey(date calendar.Date) string {
	return generationKeyPrefix + date.String()
}

func sportField(sport string) string {
	return strings.ToLower(strings.TrimSpace(sport))
}

func (c *RedisAvailabilityCache) isPending(date calendar.Date) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[date.String()]
	return ok
}

func (c *RedisAvailabilityCache) setPending(date calendar.Date, pending bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if pending {
		c.pending[date.String()] = struct{}{}
	} else {
		delete(c.pending, date.String())
	}
}

// Get returns the cached listing and the date's current generation. The
// generation is reported on a miss too; pass it to Set.
func (c *RedisAvailabilityCache) Get(ctx context.Context, date calendar.Date, sport string) ([]models.GroundAvailability, int64, bool, error) {
	if c.isPending(date) {
		if err := c.Invalidate(ctx, date); err != nil {
			return nil, 0, false, err
		}
	}

	pipe := c.client.TxPipeline()
	genCmd := pipe.Get(ctx, generationKey(date))
	valCmd := pipe.HGet(ctx, availabilityKey(date), sportField(sport))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, fmt.Errorf("failed to read availability cache: %w", err)
	}

	gen, err := genCmd.Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, false, fmt.Errorf("failed to read availability generation: %w", err)
	}

	val, err := valCmd.Result()
	if errors.Is(err, redis.Nil) {
		return nil, gen, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("failed to read availability cache: %w", err)
	}

	var grounds []models.GroundAvailability
	if err := json.Unmarshal([]byte(val), &grounds); err != nil {
		return nil, 0, false, fmt.Errorf("failed to decode cached availability: %w", err)
	}
	return grounds, gen, true, nil
}

// Set stores grounds under the date if its generation is still gen. A listing
// resolved before a concurrent invalidation is silently dropped.
func (c *RedisAvailabilityCache) Set(ctx context.Context, date calendar.Date, sport string, gen int64, grounds []models.GroundAvailability) error {
	if c.isPending(date) {
		return nil
	}

	data, err := json.Marshal(grounds)
	if err != nil {
		return fmt.Errorf("failed to encode availability: %w", err)
	}

	key, genKey := availabilityKey(date), generationKey(date)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, sportField(sport), data)
			pipe.Expire(ctx, key, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil, errors.Is(err, errStaleGeneration), errors.Is(err, redis.TxFailedErr):
		return nil
	default:
		return fmt.Errorf("failed to write availability cache: %w", err)
	}
}

// Invalidate bumps the date's generation and drops its listings. On failure
// the date is remembered and retried by the next Get.
func (c *RedisAvailabilityCache) Invalidate(ctx context.Context, date calendar.Date) error {
	genKey := generationKey(date)
	pipe := c.client.TxPipeline()
	pipe.Incr(ctx, genKey)
	pipe.Expire(ctx, genKey, generationTTL)
	pipe.Del(ctx, availabilityKey(date))
	if _, err := pipe.Exec(ctx); err != nil {
		c.setPending(date, true)
		return fmt.Errorf("failed to invalidate availability cache: %w", err)
	}
	c.setPending(date, false)
	return nil
}

// NopAvailabilityCache never hits. Used when redis is not configured.
type NopAvailabilityCache struct{}

func (NopAvailabilityCache) Get(context.Context, calendar.Date, string) ([]models.GroundAvailability, int64, bool, error) {
	return nil, 0, false, nil
}

func (NopAvailabilityCache) Set(context.Context, calendar.Date, string, int64, []models.GroundAvailability) error {
	return nil
}

func (NopAvailabilityCache) Invalidate(context.Context, calendar.Date) error { return nil }

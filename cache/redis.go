/*
Package cache provides a Redis read-through cache for slot availability.

LAYOUT:
  One hash per (café, date):  <prefix>:avail:<cafe>:<YYYY-MM-DD>
  One field per cutoff:       "14:00" → JSON []booking.SlotAvailability

  Invalidate deletes the whole hash, so every cutoff of that day is dropped
  together after a booking, cancellation or block change.

GENERATIONS:
  One counter per (café, date):  <prefix>:avail-gen:<cafe>:<YYYY-MM-DD>

  Invalidate increments it. Set watches it and writes only if it still holds
  the value read before the store was queried, so rows resolved before a
  booking or cancellation committed are never cached over its invalidation.
*/
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/warp/cafe-booking/booking"
	"github.com/warp/cafe-booking/generic"
)

const DefaultTTL = 30 * time.Second

// generationTTL outlives any read-resolve-write cycle by a wide margin.
const generationTTL = 24 * time.Hour

var _ booking.AvailabilityCache = (*Availability)(nil)

type Availability struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewAvailability(client redis.UniversalClient, prefix string, ttl time.Duration) *Availability {
	if prefix == "" {
		prefix = "cafe"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Availability{client: client, prefix: prefix, ttl: ttl}
}

// NewClient builds a Redis client from connection settings.
func NewClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

// Ping checks the connection.
func Ping(ctx context.Context, client redis.UniversalClient) error {
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func (a *Availability) key(cafeID generic.CafeID, date time.Time) string {
	return fmt.Sprintf("%s:avail:%s:%s", a.prefix, cafeID, generic.FormatDate(date))
}

func (a *Availability) genKey(cafeID generic.CafeID, date time.Time) string {
	return fmt.Sprintf("%s:avail-gen:%s:%s", a.prefix, cafeID, generic.FormatDate(date))
}

func (a *Availability) Get(ctx context.Context, cafeID generic.CafeID, date time.Time, cutoff generic.TimeOfDay) ([]booking.SlotAvailability, bool, error) {
	raw, err := a.client.HGet(ctx, a.key(cafeID, date), cutoff.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	var rows []booking.SlotAvailability
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, false, fmt.Errorf("cache decode: %w", err)
	}
	return rows, true, nil
}

// Generation returns the invalidation counter of (café, date), 0 if it was
// never invalidated.
func (a *Availability) Generation(ctx context.Context, cafeID generic.CafeID, date time.Time) (int64, error) {
	gen, err := a.client.Get(ctx, a.genKey(cafeID, date)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache generation: %w", err)
	}
	return gen, nil
}

// Set stores rows for cutoff if the generation still equals gen. It reports
// false without error when an invalidation got there first.
func (a *Availability) Set(ctx context.Context, cafeID generic.CafeID, date time.Time, cutoff generic.TimeOfDay, gen int64, rows []booking.SlotAvailability) (bool, error) {
	raw, err := json.Marshal(rows)
	if err != nil {
		return false, fmt.Errorf("cache encode: %w", err)
	}
	key, genKey := a.key(cafeID, date), a.genKey(cafeID, date)

	stored := false
	err = a.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, cutoff.String(), raw)
			pipe.Expire(ctx, key, a.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		stored = true
		return nil
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache set: %w", err)
	}
	return stored, nil
}

func (a *Availability) Invalidate(ctx context.Context, cafeID generic.CafeID, date time.Time) error {
	genKey := a.genKey(cafeID, date)
	_, err := a.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, generationTTL)
		pipe.Del(ctx, a.key(cafeID, date))
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}

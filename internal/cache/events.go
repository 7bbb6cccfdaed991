// Package cache provides Redis-backed read caches for hot queries.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"gift-betting-backend/internal/model"
)

const activeEventsKey = "betting:events:active"

// EventCache caches the active events listing. Writers that change event
// state invalidate it; readers fall back to Postgres on a miss.
type EventCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEventCache creates an EventCache with the given entry TTL.
func NewEventCache(client *redis.Client, ttl time.Duration) *EventCache {
	return &EventCache{client: client, ttl: ttl}
}

// Connect opens and pings a Redis client.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return client, nil
}

// GetActive returns the cached active events list. The second return value
// is false on a miss or any Redis error; cache failures never surface.
func (c *EventCache) GetActive(ctx context.Context) ([]*model.Event, bool) {
	data, err := c.client.Get(ctx, activeEventsKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Msg("Failed to read events cache")
		}
		return nil, false
	}

	var events []*model.Event
	if err := json.Unmarshal(data, &events); err != nil {
		log.Warn().Err(err).Msg("Corrupt events cache entry")
		return nil, false
	}
	return events, true
}

// SetActive stores the active events list with the configured TTL.
func (c *EventCache) SetActive(ctx context.Context, events []*model.Event) {
	data, err := json.Marshal(events)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal events for cache")
		return
	}
	if err := c.client.Set(ctx, activeEventsKey, data, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("Failed to write events cache")
	}
}

// InvalidateActive drops the cached active events list.
func (c *EventCache) InvalidateActive(ctx context.Context) error {
	return c.client.Del(ctx, activeEventsKey).Err()
}

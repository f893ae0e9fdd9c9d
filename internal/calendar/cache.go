package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/pharmacy-assistant/internal/availability"
	"github.com/wolfman30/pharmacy-assistant/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const freeBusyGenerationKey = "freebusy:generation"

// CachedGateway caches FreeBusy answers in Redis for a short TTL. Every
// successful mutation bumps a generation counter so cached answers from before
// the mutation are never served again. Cache failures fall through to next.
type CachedGateway struct {
	next   Gateway
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
	logger *logging.Logger
}

// NewCachedGateway wraps next with a Redis free/busy cache.
func NewCachedGateway(next Gateway, client *redis.Client, ttl time.Duration, logger *logging.Logger) *CachedGateway {
	if next == nil {
		panic("calendar: wrapped gateway cannot be nil")
	}
	if client == nil {
		panic("calendar: redis client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedGateway{
		next:   next,
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("pharmacy.internal.calendar.cache"),
		logger: logger,
	}
}

// FreeBusy serves from cache when possible.
func (c *CachedGateway) FreeBusy(ctx context.Context, timeMin, timeMax time.Time) ([]availability.Interval, error) {
	ctx, span := c.tracer.Start(ctx, "calendar.freebusy_cache")
	defer span.End()

	gen, err := c.generation(ctx)
	if err != nil {
		span.RecordError(err)
		c.logger.Warn("freebusy cache unavailable", "error", err)
		return c.next.FreeBusy(ctx, timeMin, timeMax)
	}
	key := freeBusyKey(gen, timeMin, timeMax)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var busy []availability.Interval
		if err := json.Unmarshal(data, &busy); err == nil {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return busy, nil
		}
		c.logger.Warn("discarding undecodable freebusy cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		span.RecordError(err)
		c.logger.Warn("freebusy cache read failed", "error", err)
	}
	span.SetAttributes(attribute.Bool("cache.hit", false))

	busy, err := c.next.FreeBusy(ctx, timeMin, timeMax)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(busy); err == nil {
		if err := c.redis.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			span.RecordError(err)
			c.logger.Warn("freebusy cache write failed", "error", err)
		}
	}
	return busy, nil
}

// CreateEvent delegates and invalidates cached free/busy answers.
func (c *CachedGateway) CreateEvent(ctx context.Context, in EventInput) (*Event, error) {
	ev, err := c.next.CreateEvent(ctx, in)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx)
	return ev, nil
}

// PatchEventTime delegates and invalidates cached free/busy answers.
func (c *CachedGateway) PatchEventTime(ctx context.Context, eventID string, interval availability.Interval) (*Event, error) {
	ev, err := c.next.PatchEventTime(ctx, eventID, interval)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx)
	return ev, nil
}

// DeleteEvent delegates and invalidates cached free/busy answers.
func (c *CachedGateway) DeleteEvent(ctx context.Context, eventID string) error {
	if err := c.next.DeleteEvent(ctx, eventID); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// SearchEvents is never cached.
func (c *CachedGateway) SearchEvents(ctx context.Context, q SearchQuery) ([]Event, error) {
	return c.next.SearchEvents(ctx, q)
}

func (c *CachedGateway) generation(ctx context.Context) (int64, error) {
	gen, err := c.redis.Get(ctx, freeBusyGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *CachedGateway) invalidate(ctx context.Context) {
	if err := c.redis.Incr(ctx, freeBusyGenerationKey).Err(); err != nil {
		c.logger.Error("failed to invalidate freebusy cache", "error", err)
	}
}

func freeBusyKey(gen int64, timeMin, timeMax time.Time) string {
	return fmt.Sprintf("freebusy:%d:%d:%d", gen, timeMin.Unix(), timeMax.Unix())
}

package session

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Registry mirrors the controller's state into Redis so other
// processes (dashboards, session listers) can observe the instance.
// It is strictly best-effort and never blocks or fails playback.
type Registry struct {
	redis *redis.Client
	id    string
	ttl   time.Duration
}

// NewRegistry connects to Redis. If Redis is unavailable the registry
// still works, it just records nothing.
func NewRegistry(url, password string, ttl time.Duration) *Registry {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     url,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		// Redis unavailable, continue without it
		log.Printf("⚠️ Redis unavailable, running without session registry: %v", err)
		redisClient.Close()
		redisClient = nil
	}

	return &Registry{
		redis: redisClient,
		id:    uuid.New().String(),
		ttl:   ttl,
	}
}

// ID returns the identifier this instance registers under, or "" when
// Redis is unavailable and nothing is being recorded.
func (r *Registry) ID() string {
	if r == nil || r.redis == nil {
		return ""
	}
	return r.id
}

// RecordState publishes the playback state and prompt count. Writes
// happen on a short-lived goroutine so the caller never waits on Redis.
func (r *Registry) RecordState(state string, prompts int) {
	if r == nil || r.redis == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		r.redis.HSet(ctx, "session:"+r.id, map[string]interface{}{
			"state":      state,
			"prompts":    prompts,
			"updated_at": time.Now().UTC().Format(time.RFC3339),
		})
		r.redis.SAdd(ctx, "active_sessions", r.id)
		r.redis.Expire(ctx, "session:"+r.id, r.ttl)
	}()
}

// Close deregisters the instance and releases the Redis connection.
func (r *Registry) Close() {
	if r == nil || r.redis == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	r.redis.Del(ctx, "session:"+r.id)
	r.redis.SRem(ctx, "active_sessions", r.id)
	r.redis.Close()
}

package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/andresuchdata/restock/internal/config"
	"github.com/andresuchdata/restock/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	recommendationKeyPrefix = "restock:recommendations"
	scanBatchSize           = 100
	defaultCacheTTL         = time.Minute
	pingTimeout             = 5 * time.Second
)

// RecommendationCache stores ranked recommendation lists per owner. Entries are
// scoped to the calendar day they were computed for.
type RecommendationCache interface {
	Get(ctx context.Context, ownerID string, opts domain.RecommendationOptions, day time.Time) (*domain.Recommendations, bool, error)
	Set(ctx context.Context, ownerID string, opts domain.RecommendationOptions, day time.Time, recs *domain.Recommendations) error
	InvalidateOwner(ctx context.Context, ownerID string) error
}

type redisRecommendationCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

type noopRecommendationCache struct{}

func NewRecommendationCache(cfg config.CacheConfig) (RecommendationCache, error) {
	if !cfg.Enabled {
		return &noopRecommendationCache{}, nil
	}

	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewRedisRecommendationCache(client, time.Duration(cfg.TTLSeconds)*time.Second), nil
}

// redisOptions prefers REDIS_URL and falls back to host, port and db.
func redisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opts, nil
	}

	host, port := cfg.RedisHost, cfg.RedisPort
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "6379"
	}
	return &redis.Options{
		Addr:     net.JoinHostPort(host, port),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

// NewRedisRecommendationCache wraps an existing client.
func NewRedisRecommendationCache(client redis.Cmdable, ttl time.Duration) RecommendationCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &redisRecommendationCache{client: client, ttl: ttl}
}

func NewNoopRecommendationCache() RecommendationCache {
	return &noopRecommendationCache{}
}

func (c *redisRecommendationCache) Get(ctx context.Context, ownerID string, opts domain.RecommendationOptions, day time.Time) (*domain.Recommendations, bool, error) {
	key := buildRecommendationKey(ownerID, opts, day)

	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var recs domain.Recommendations
	if err := json.Unmarshal(payload, &recs); err != nil {
		return nil, false, fmt.Errorf("decode recommendation cache: %w", err)
	}

	return &recs, true, nil
}

func (c *redisRecommendationCache) Set(ctx context.Context, ownerID string, opts domain.RecommendationOptions, day time.Time, recs *domain.Recommendations) error {
	key := buildRecommendationKey(ownerID, opts, day)
	payload, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("encode recommendation cache: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// InvalidateOwner drops every cached list of the owner, whatever the options or day.
func (c *redisRecommendationCache) InvalidateOwner(ctx context.Context, ownerID string) error {
	iter := c.client.Scan(ctx, 0, ownerKeyPrefix(ownerID)+"*", scanBatchSize).Iterator()

	batch := make([]string, 0, scanBatchSize)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis delete failed: %w", err)
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis delete failed: %w", err)
		}
	}
	return nil
}

func (n *noopRecommendationCache) Get(ctx context.Context, ownerID string, opts domain.RecommendationOptions, day time.Time) (*domain.Recommendations, bool, error) {
	return nil, false, nil
}

func (n *noopRecommendationCache) Set(ctx context.Context, ownerID string, opts domain.RecommendationOptions, day time.Time, recs *domain.Recommendations) error {
	return nil
}

func (n *noopRecommendationCache) InvalidateOwner(ctx context.Context, ownerID string) error {
	return nil
}

func ownerKeyPrefix(ownerID string) string {
	return fmt.Sprintf("%s:%s:", recommendationKeyPrefix, strings.TrimSpace(ownerID))
}

func buildRecommendationKey(ownerID string, opts domain.RecommendationOptions, day time.Time) string {
	return ownerKeyPrefix(ownerID) + optionsHash(opts, day)
}

func optionsHash(opts domain.RecommendationOptions, day time.Time) string {
	parts := []string{
		"day=" + day.UTC().Format("2006-01-02"),
		"horizon=" + strings.ToLower(string(opts.Horizon)),
		fmt.Sprintf("low_stock_only=%t", opts.LowStockOnly),
		fmt.Sprintf("limit=%d", opts.Limit),
	}
	if opts.MinUrgency != "" {
		parts = append(parts, "min_urgency="+strings.ToLower(string(opts.MinUrgency)))
	}

	raw := strings.Join(parts, "|")
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

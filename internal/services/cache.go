package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"alfredoptarigan/cto-screener/internal/models"
)

// CompanyCache stores enrichment results by company name.
type CompanyCache interface {
	Get(ctx context.Context, name string) (*models.EnrichedCompany, bool)
	Set(ctx context.Context, company models.EnrichedCompany)
	Close() error
}

type redisCompanyCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCompanyCache(address, password string, db int, ttl time.Duration) (CompanyCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &redisCompanyCache{client: client, ttl: ttl}, nil
}

func companyCacheKey(name string) string {
	return "enrichment:company:" + strings.ToLower(strings.TrimSpace(name))
}

func (c *redisCompanyCache) Get(ctx context.Context, name string) (*models.EnrichedCompany, bool) {
	raw, err := c.client.Get(ctx, companyCacheKey(name)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("⚠️  Enrichment cache read failed for %s: %v\n", name, err)
		}
		return nil, false
	}

	var company models.EnrichedCompany
	if err := json.Unmarshal(raw, &company); err != nil {
		return nil, false
	}
	return &company, true
}

// Set never stores degraded entries, so a failed lookup is retried next time.
func (c *redisCompanyCache) Set(ctx context.Context, company models.EnrichedCompany) {
	if company.Degraded() {
		return
	}
	raw, err := json.Marshal(company)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, companyCacheKey(company.Name), raw, c.ttl).Err(); err != nil {
		log.Printf("⚠️  Enrichment cache write failed for %s: %v\n", company.Name, err)
	}
}

func (c *redisCompanyCache) Close() error {
	return c.client.Close()
}

type noopCompanyCache struct{}

// NewNoopCompanyCache is used when no cache address is configured.
func NewNoopCompanyCache() CompanyCache { return noopCompanyCache{} }

func (noopCompanyCache) Get(context.Context, string) (*models.EnrichedCompany, bool) {
	return nil, false
}

func (noopCompanyCache) Set(context.Context, models.EnrichedCompany) {}
func (noopCompanyCache) Close() error                                { return nil }

package settings

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tradeco/backoffice/internal/domain/efactura"
)

const (
	// profileCacheKey is the Redis key for the cached profile
	profileCacheKey = "settings:company_profile"
	// defaultProfileTTL bounds staleness across instances
	defaultProfileTTL = 5 * time.Minute
)

// CachedIssuerProvider serves the company profile from a two-level cache:
// a process-local copy refreshed on expiry, backed by Redis so that profile
// updates propagate across instances without hitting the database on every
// submission. Redis failures degrade to the database, never to an error.
type CachedIssuerProvider struct {
	store  ProfileStore
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger

	mu       sync.RWMutex
	cached   *CompanyProfile
	cachedAt time.Time
}

// CachedIssuerProviderOption is a functional option for the provider
type CachedIssuerProviderOption func(*CachedIssuerProvider)

// WithRedis enables the shared Redis cache layer
func WithRedis(client *redis.Client) CachedIssuerProviderOption {
	return func(p *CachedIssuerProvider) {
		p.client = client
	}
}

// WithTTL overrides the cache TTL
func WithTTL(ttl time.Duration) CachedIssuerProviderOption {
	return func(p *CachedIssuerProvider) {
		p.ttl = ttl
	}
}

// NewCachedIssuerProvider creates a new cached issuer provider
func NewCachedIssuerProvider(store ProfileStore, logger *zap.Logger, opts ...CachedIssuerProviderOption) *CachedIssuerProvider {
	p := &CachedIssuerProvider{
		store:  store,
		ttl:    defaultProfileTTL,
		logger: logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Issuer returns the issuer snapshot, loading through the cache layers
func (p *CachedIssuerProvider) Issuer(ctx context.Context) (efactura.Issuer, error) {
	profile, err := p.profile(ctx)
	if err != nil {
		return efactura.Issuer{}, err
	}
	return profile.Issuer(), nil
}

// Save writes the profile through to the store and refreshes both cache
// layers so subsequent reads see the new identity immediately
func (p *CachedIssuerProvider) Save(ctx context.Context, profile *CompanyProfile) error {
	if err := p.store.Save(ctx, profile); err != nil {
		return err
	}
	p.setRedis(ctx, profile)
	p.setLocal(profile)
	return nil
}

// Invalidate drops both cache layers
func (p *CachedIssuerProvider) Invalidate(ctx context.Context) {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()

	if p.client != nil {
		if err := p.client.Del(ctx, profileCacheKey).Err(); err != nil {
			p.logger.Warn("failed to invalidate profile cache", zap.Error(err))
		}
	}
}

func (p *CachedIssuerProvider) profile(ctx context.Context) (*CompanyProfile, error) {
	p.mu.RLock()
	if p.cached != nil && time.Since(p.cachedAt) < p.ttl {
		profile := p.cached
		p.mu.RUnlock()
		return profile, nil
	}
	p.mu.RUnlock()

	if profile := p.fromRedis(ctx); profile != nil {
		p.setLocal(profile)
		return profile, nil
	}

	profile, err := p.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	p.setRedis(ctx, profile)
	p.setLocal(profile)
	return profile, nil
}

func (p *CachedIssuerProvider) setLocal(profile *CompanyProfile) {
	p.mu.Lock()
	p.cached = profile
	p.cachedAt = time.Now()
	p.mu.Unlock()
}

func (p *CachedIssuerProvider) fromRedis(ctx context.Context) *CompanyProfile {
	if p.client == nil {
		return nil
	}
	data, err := p.client.Get(ctx, profileCacheKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			p.logger.Warn("profile cache read failed", zap.Error(err))
		}
		return nil
	}
	var profile CompanyProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		p.logger.Warn("profile cache entry corrupt", zap.Error(err))
		return nil
	}
	return &profile
}

func (p *CachedIssuerProvider) setRedis(ctx context.Context, profile *CompanyProfile) {
	if p.client == nil {
		return
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return
	}
	if err := p.client.Set(ctx, profileCacheKey, data, p.ttl).Err(); err != nil {
		p.logger.Warn("profile cache write failed", zap.Error(err))
	}
}

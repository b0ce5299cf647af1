// Package price serves USD spot prices for PRICE-trigger evaluation. Prices
// come from an external feed, cached in Redis with a short TTL, and a cron
// job keeps tracked symbols warm.
package price

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
)

// ErrPriceNotFound indicates the feed has no price for the symbol.
var ErrPriceNotFound = errors.New("price not found")

// Fetcher retrieves USD prices for a set of symbols from an external feed.
type Fetcher interface {
	Fetch(ctx context.Context, symbols []string) (map[string]float64, error)
}

// Service caches feed prices in Redis. A nil Redis client disables caching;
// every read then hits the feed.
type Service struct {
	fetcher  Fetcher
	redis    redis.Cmdable
	cacheTTL time.Duration
	tracked  []string
	cron     *cron.Cron
	logger   *slog.Logger
}

// Config tunes the price service.
type Config struct {
	// CacheTTL bounds staleness of cached prices. Defaults to 30 seconds.
	CacheTTL time.Duration

	// Tracked symbols are refreshed on the cron schedule.
	Tracked []string

	// RefreshSpec is a cron spec for the warm-up job. Defaults to the
	// cache TTL cadence.
	RefreshSpec string
}

func NewService(fetcher Fetcher, redisClient redis.Cmdable, cfg Config, logger *slog.Logger) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}

	return &Service{
		fetcher:  fetcher,
		redis:    redisClient,
		cacheTTL: cfg.CacheTTL,
		tracked:  cfg.Tracked,
		cron:     newRefreshCron(cfg),
		logger:   logger,
	}
}

func newRefreshCron(cfg Config) *cron.Cron {
	if len(cfg.Tracked) == 0 {
		return nil
	}

	return cron.New()
}

// Start schedules the tracked-symbol refresh job. No-op without tracked
// symbols.
func (s *Service) Start(ctx context.Context, refreshSpec string) error {
	if s.cron == nil {
		return nil
	}

	if refreshSpec == "" {
		refreshSpec = "@every " + s.cacheTTL.String()
	}

	_, err := s.cron.AddFunc(refreshSpec, func() {
		refreshCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		err := s.Refresh(refreshCtx)
		if err != nil {
			s.logger.ErrorContext(refreshCtx, "Price refresh failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule price refresh: %w", err)
	}

	s.cron.Start()

	return nil
}

// Stop halts the refresh job and waits for a running refresh to finish.
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Get returns the USD price for a symbol, from cache when fresh.
func (s *Service) Get(ctx context.Context, symbol string) (float64, error) {
	symbol = strings.ToLower(symbol)

	if cached, ok := s.cachedPrice(ctx, symbol); ok {
		return cached, nil
	}

	prices, err := s.fetchAndCache(ctx, []string{symbol})
	if err != nil {
		return 0, err
	}

	value, ok := prices[symbol]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrPriceNotFound, symbol)
	}

	return value, nil
}

// Refresh fetches all tracked symbols and rewrites the cache.
func (s *Service) Refresh(ctx context.Context) error {
	if len(s.tracked) == 0 {
		return nil
	}

	_, err := s.fetchAndCache(ctx, s.tracked)

	return err
}

// Tracked returns the symbols kept warm by the refresh job.
func (s *Service) Tracked() []string {
	return append([]string(nil), s.tracked...)
}

func (s *Service) cachedPrice(ctx context.Context, symbol string) (float64, bool) {
	if s.redis == nil {
		return 0, false
	}

	cached, err := s.redis.Get(ctx, cacheKey(symbol)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.WarnContext(ctx, "Price cache read failed", "symbol", symbol, "error", err)
		}

		return 0, false
	}

	value, err := strconv.ParseFloat(cached, 64)
	if err != nil {
		return 0, false
	}

	return value, true
}

func (s *Service) fetchAndCache(ctx context.Context, symbols []string) (map[string]float64, error) {
	lowered := make([]string, len(symbols))
	for i, symbol := range symbols {
		lowered[i] = strings.ToLower(symbol)
	}

	prices, err := s.fetcher.Fetch(ctx, lowered)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}

	if s.redis != nil {
		for symbol, value := range prices {
			err := s.redis.Set(ctx, cacheKey(symbol), strconv.FormatFloat(value, 'f', -1, 64), s.cacheTTL).Err()
			if err != nil {
				s.logger.WarnContext(ctx, "Price cache write failed", "symbol", symbol, "error", err)
			}
		}
	}

	return prices, nil
}

func cacheKey(symbol string) string {
	return "price:" + symbol
}

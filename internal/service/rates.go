package service

import (
	"context"
	"time"

	"corridor/internal/domain"
	internalredis "corridor/internal/redis"
)

// RateSource quotes exchange rates for a corridor.
type RateSource interface {
	Quote(ctx context.Context, sourceCurrency, destCurrency string) (rate float64, source string, err error)
}

// FixedRateSource quotes from a static table. Used for sandbox corridors
// and as the fallback when no live source is configured.
type FixedRateSource struct {
	rates map[domain.Corridor]float64
	name  string
}

// NewFixedRateSource creates a rate source over a static corridor table.
func NewFixedRateSource(name string, rates map[domain.Corridor]float64) *FixedRateSource {
	return &FixedRateSource{rates: rates, name: name}
}

// Quote returns the configured rate for the corridor.
func (s *FixedRateSource) Quote(ctx context.Context, sourceCurrency, destCurrency string) (float64, string, error) {
	rate, ok := s.rates[domain.Corridor{SourceCurrency: sourceCurrency, DestCurrency: destCurrency}]
	if !ok {
		return 0, "", ErrUnknownCorridor
	}
	return rate, s.name, nil
}

// RateService locks exchange rates and computes fee breakdowns. A rate is
// locked at most once per order; the quoted amount never changes after
// payment begins.
type RateService struct {
	source RateSource
	cache  *internalredis.CacheStore
}

// NewRateService creates a new RateService. cache may be nil.
func NewRateService(source RateSource, cache *internalredis.CacheStore) *RateService {
	return &RateService{source: source, cache: cache}
}

// LockRate sets the locked rate and fee breakdown on the order in memory.
// If the order already carries a lock, the existing values are kept
// untouched and returned. The caller persists the order.
func (s *RateService) LockRate(ctx context.Context, order *domain.PaymentOrder, fees domain.FeeSchedule) error {
	if order.RateLocked {
		return nil
	}

	rate, sourceName, err := s.quote(ctx, order.CorridorSource, order.CorridorDest)
	if err != nil {
		return err
	}

	order.ExchangeRate = rate
	order.RateSource = sourceName
	order.RateLockedAt = time.Now()
	order.RateLocked = true
	order.Fees = ComputeFees(order.SourceAmount, fees)

	return nil
}

// quote consults the cache before the source.
func (s *RateService) quote(ctx context.Context, source, dest string) (float64, string, error) {
	if s.cache != nil {
		cached, err := s.cache.GetRateQuote(ctx, source, dest)
		if err == nil && cached != nil {
			return cached.Rate, cached.Source, nil
		}
	}

	rate, sourceName, err := s.source.Quote(ctx, source, dest)
	if err != nil {
		return 0, "", err
	}

	if s.cache != nil {
		_ = s.cache.SetRateQuote(ctx, source, dest, &internalredis.CachedQuote{
			Rate:     rate,
			Source:   sourceName,
			QuotedAt: time.Now().Unix(),
		})
	}

	return rate, sourceName, nil
}

// ComputeFees is a pure function of amount and fee schedule. The result is
// stored immutably on the order at rate-lock time.
func ComputeFees(amount float64, schedule domain.FeeSchedule) domain.FeeBreakdown {
	fees := domain.FeeBreakdown{
		Platform: amount * schedule.PlatformPct,
		Provider: amount * schedule.ProviderPct,
		Network:  schedule.NetworkFlat,
	}
	fees.Total = fees.Platform + fees.Provider + fees.Network

	if fees.Total < schedule.MinimumFee {
		fees.Total = schedule.MinimumFee
	}

	return fees
}

// SettledAmount converts the post-fee source amount at the locked rate.
func SettledAmount(order *domain.PaymentOrder) float64 {
	return (order.SourceAmount - order.Fees.Total) * order.ExchangeRate
}

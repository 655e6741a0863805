package service

import (
	"context"
	"testing"

	"corridor/internal/domain"
)

func TestComputeFees_PercentagePlusFlat(t *testing.T) {
	t.Parallel()

	fees := ComputeFees(100, domain.FeeSchedule{
		PlatformPct: 0.01,
		ProviderPct: 0.005,
		NetworkFlat: 1.0,
		MinimumFee:  1.0,
	})

	if fees.Platform != 1.0 {
		t.Errorf("expected platform fee 1.0, got %f", fees.Platform)
	}
	if fees.Provider != 0.5 {
		t.Errorf("expected provider fee 0.5, got %f", fees.Provider)
	}
	if fees.Network != 1.0 {
		t.Errorf("expected network fee 1.0, got %f", fees.Network)
	}
	if fees.Total != 2.5 {
		t.Errorf("expected total 2.5, got %f", fees.Total)
	}
}

func TestComputeFees_MinimumApplies(t *testing.T) {
	t.Parallel()

	fees := ComputeFees(10, domain.FeeSchedule{
		PlatformPct: 0.01,
		MinimumFee:  2.0,
	})

	if fees.Total != 2.0 {
		t.Errorf("expected minimum fee 2.0 to apply, got %f", fees.Total)
	}
}

func TestLockRate_IdempotentOnLockedOrder(t *testing.T) {
	t.Parallel()

	rates := NewRateService(NewFixedRateSource("fixed", map[domain.Corridor]float64{
		{SourceCurrency: "USD", DestCurrency: "PHP"}: 56.0,
	}), nil)

	order := &domain.PaymentOrder{
		SourceAmount:   100,
		SourceCurrency: "USD",
		CorridorSource: "USD",
		CorridorDest:   "PHP",
	}
	schedule := domain.FeeSchedule{PlatformPct: 0.01, NetworkFlat: 1.0}

	if err := rates.LockRate(context.Background(), order, schedule); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !order.RateLocked || order.ExchangeRate != 56.0 {
		t.Fatalf("expected locked rate 56.0, got %f (locked=%v)", order.ExchangeRate, order.RateLocked)
	}

	lockedAt := order.RateLockedAt
	firstFees := order.Fees

	// A second lock attempt changes nothing.
	if err := rates.LockRate(context.Background(), order, domain.FeeSchedule{PlatformPct: 0.5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !order.RateLockedAt.Equal(lockedAt) || order.Fees != firstFees {
		t.Error("rate lock mutated on second attempt")
	}
}

func TestLockRate_UnknownCorridorRejected(t *testing.T) {
	t.Parallel()

	rates := NewRateService(NewFixedRateSource("fixed", nil), nil)

	order := &domain.PaymentOrder{
		SourceAmount:   100,
		CorridorSource: "USD",
		CorridorDest:   "XXX",
	}

	if err := rates.LockRate(context.Background(), order, domain.FeeSchedule{}); err != ErrUnknownCorridor {
		t.Fatalf("expected ErrUnknownCorridor, got %v", err)
	}
	if order.RateLocked {
		t.Error("rate must not lock for an unknown corridor")
	}
}

func TestSettledAmount_PostFeeAtLockedRate(t *testing.T) {
	t.Parallel()

	order := &domain.PaymentOrder{
		SourceAmount: 100,
		ExchangeRate: 56.0,
		Fees:         domain.FeeBreakdown{Total: 2.5},
	}

	if got := SettledAmount(order); got != 97.5*56.0 {
		t.Errorf("expected %.2f, got %.2f", 97.5*56.0, got)
	}
}

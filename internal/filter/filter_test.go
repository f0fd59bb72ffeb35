package filter

import (
	"reflect"
	"testing"

	"github.com/abelbrown/dealfeed/internal/model"
)

func offer(key, store string, final, base int64) model.Offer {
	o := model.Offer{
		IdentityKey: key,
		Store:       store,
		Title:       "Offer " + key,
		URL:         "https://" + store + ".example/" + key,
		PriceFinal:  final,
		PriceBase:   base,
	}
	if pct, ok := model.DeriveDiscount(base, final); ok {
		o.DiscountPct = model.IntPtr(pct)
	}
	return o
}

func TestDedupKeepsLowestPrice(t *testing.T) {
	offers := []model.Offer{
		offer("sku-1", "a", 1000, 0),
		offer("sku-1", "b", 900, 0),
	}

	result := Dedup(offers)

	if len(result) != 1 {
		t.Fatalf("expected 1 offer, got %d", len(result))
	}
	if result[0].PriceFinal != 900 {
		t.Errorf("expected the 900 offer to be kept, got %d", result[0].PriceFinal)
	}
}

func TestDedupTieLaterWins(t *testing.T) {
	offers := []model.Offer{
		offer("sku-1", "first", 900, 0),
		offer("sku-2", "other", 500, 0),
		offer("sku-1", "second", 900, 0),
	}

	result := Dedup(offers)

	if len(result) != 2 {
		t.Fatalf("expected 2 offers, got %d", len(result))
	}
	if result[0].Store != "second" {
		t.Errorf("expected later offer to win tie, got store %q", result[0].Store)
	}
	if result[1].IdentityKey != "sku-2" {
		t.Errorf("expected first-appearance order, got %q second", result[1].IdentityKey)
	}
}

func TestDedupIdempotentAndMinimal(t *testing.T) {
	offers := []model.Offer{
		offer("k1", "a", 500, 0),
		offer("k2", "a", 700, 0),
		offer("k1", "b", 300, 0),
		offer("k3", "c", 100, 0),
		offer("k2", "c", 900, 0),
		offer("k1", "c", 450, 0),
	}

	once := Dedup(offers)
	twice := Dedup(once)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Dedup is not idempotent:\nonce:  %v\ntwice: %v", once, twice)
	}

	minByKey := map[string]int64{}
	for _, o := range offers {
		if cur, ok := minByKey[o.IdentityKey]; !ok || o.PriceFinal < cur {
			minByKey[o.IdentityKey] = o.PriceFinal
		}
	}
	for _, o := range once {
		if o.PriceFinal != minByKey[o.IdentityKey] {
			t.Errorf("key %s kept price %d, min is %d", o.IdentityKey, o.PriceFinal, minByKey[o.IdentityKey])
		}
	}
}

func TestDedupEmpty(t *testing.T) {
	result := Dedup(nil)
	if result == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(result) != 0 {
		t.Errorf("expected 0 offers, got %d", len(result))
	}
}

func TestByMinDiscountStrict(t *testing.T) {
	offers := []model.Offer{
		offer("k1", "a", 500, 1000), // 50%
		offer("k2", "a", 900, 1000), // 10%
		offer("k3", "a", 700, 1000), // 30%
	}

	result, step := ByMinDiscount(offers, 30)

	if step != RelaxNone {
		t.Errorf("expected strict step, got %s", step)
	}
	if len(result) != 2 || result[0].IdentityKey != "k1" || result[1].IdentityKey != "k3" {
		t.Errorf("unexpected strict result: %v", result)
	}
}

func TestByMinDiscountRelaxesToAnyDiscount(t *testing.T) {
	noPct := offer("k0", "a", 800, 0)
	derivable := offer("k2", "a", 850, 1000) // 15%, pct removed to force recompute
	derivable.DiscountPct = nil
	offers := []model.Offer{
		offer("k1", "a", 900, 1000), // 10%
		noPct,
		derivable,
	}

	result, step := ByMinDiscount(offers, 40)

	if step != RelaxAnyDiscount {
		t.Fatalf("expected any_discount step, got %s", step)
	}
	if len(result) != 2 {
		t.Fatalf("expected 2 offers with a computable discount, got %d", len(result))
	}
	if result[0].IdentityKey != "k2" || result[1].IdentityKey != "k1" {
		t.Errorf("expected discount-descending order, got %s, %s", result[0].IdentityKey, result[1].IdentityKey)
	}
	if result[0].DiscountPct == nil || *result[0].DiscountPct != 15 {
		t.Errorf("expected recomputed discount 15, got %v", result[0].DiscountPct)
	}
}

func TestByMinDiscountFallsBackToAll(t *testing.T) {
	offers := []model.Offer{
		offer("k1", "a", 800, 0),
		offer("k2", "b", 900, 0),
	}

	result, step := ByMinDiscount(offers, 20)

	if step != RelaxAll {
		t.Fatalf("expected all step, got %s", step)
	}
	if !reflect.DeepEqual(result, offers) {
		t.Errorf("expected offers unchanged, got %v", result)
	}
}

func TestByMinDiscountNeverEmptiesNonEmptyPool(t *testing.T) {
	pools := [][]model.Offer{
		{offer("k1", "a", 990, 1000)},
		{offer("k1", "a", 990, 0)},
		{offer("k1", "a", 100, 1000), offer("k2", "a", 990, 0)},
	}
	for i, pool := range pools {
		result, _ := ByMinDiscount(pool, 95)
		if len(result) == 0 {
			t.Errorf("pool %d: relaxation returned empty result", i)
		}
	}

	result, step := ByMinDiscount(nil, 10)
	if len(result) != 0 || step != RelaxNone {
		t.Errorf("empty input should stay empty and strict, got %d/%s", len(result), step)
	}
}

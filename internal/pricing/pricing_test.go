package pricing

import "testing"

func TestPointsCostExampleFromCatalog(t *testing.T) {
	// Товар за 19.99, купон 10%, курс 1000 баллов за единицу:
	// 17.991 -> 17991 баллов без потери дробной части.
	got := PointsCost(1999, 10, 1000)
	if got != 17991 {
		t.Fatalf("PointsCost(1999, 10, 1000) = %d, want 17991", got)
	}
}

func TestPointsCostRoundsUp(t *testing.T) {
	tests := []struct {
		name          string
		subtotalCents int64
		discount      int64
		rate          int64
		want          int64
	}{
		{"no discount whole units", 200, 0, 1000, 2000},
		{"fractional cost rounds up", 1, 0, 1, 1},
		{"one cent at rate 3", 1, 0, 3, 1},
		{"full discount", 1999, 100, 1000, 0},
		{"zero subtotal", 0, 10, 1000, 0},
		{"discount producing fraction", 101, 50, 100, 51},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PointsCost(tt.subtotalCents, tt.discount, tt.rate)
			if got != tt.want {
				t.Fatalf("PointsCost(%d, %d, %d) = %d, want %d",
					tt.subtotalCents, tt.discount, tt.rate, got, tt.want)
			}
		})
	}
}

func TestPointsCostNeverBelowTrueFraction(t *testing.T) {
	// Стоимость в баллах не должна быть меньше точного дробного значения.
	for subtotal := int64(1); subtotal <= 500; subtotal += 7 {
		for _, d := range []int64{0, 5, 10, 33, 99} {
			got := PointsCost(subtotal, d, 1000)
			exactNumerator := subtotal * (100 - d) * 1000
			if got*100*100 < exactNumerator {
				t.Fatalf("PointsCost(%d, %d, 1000) = %d undercharges", subtotal, d, got)
			}
			if (got-1)*100*100 >= exactNumerator {
				t.Fatalf("PointsCost(%d, %d, 1000) = %d overcharges by a whole point", subtotal, d, got)
			}
		}
	}
}

func TestApplyDiscount(t *testing.T) {
	if got := ApplyDiscount(1999, 10); got != 1800 {
		t.Fatalf("ApplyDiscount(1999, 10) = %d, want 1800", got)
	}
	if got := ApplyDiscount(1000, 0); got != 1000 {
		t.Fatalf("ApplyDiscount(1000, 0) = %d, want 1000", got)
	}
	if got := ApplyDiscount(1000, 100); got != 0 {
		t.Fatalf("ApplyDiscount(1000, 100) = %d, want 0", got)
	}
}

func TestComputeIdempotent(t *testing.T) {
	a := Compute(1999, 10, 1000)
	b := Compute(1999, 10, 1000)
	if a != b {
		t.Fatalf("Compute is not deterministic: %+v vs %+v", a, b)
	}
	if a.SubtotalCents != 1999 || a.DiscountPercent != 10 {
		t.Fatalf("Compute must not change inputs: %+v", a)
	}
}

func TestComputeClampsDiscount(t *testing.T) {
	if got := Compute(100, -5, 1000); got.DiscountPercent != 0 {
		t.Fatalf("negative discount must clamp to 0, got %d", got.DiscountPercent)
	}
	if got := Compute(100, 150, 1000); got.DiscountPercent != 100 {
		t.Fatalf("discount above 100 must clamp to 100, got %d", got.DiscountPercent)
	}
}

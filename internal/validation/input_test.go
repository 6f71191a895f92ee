package validation

import "testing"

func TestParsePriceCents(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"19.99", 1999, false},
		{"0.5", 50, false},
		{"2", 200, false},
		{" 49.99 ", 4999, false},
		{"0", 0, false},
		{"-1", 0, true},
		{"+5", 0, true},
		{"1.999", 0, true},
		{"abc", 0, true},
		{"", 0, true},
		{".5", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePriceCents(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParsePriceCents(%q) expected error, got %d", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParsePriceCents(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePriceCents(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseQuantityAndStock(t *testing.T) {
	if _, err := ParseQuantity("0"); err == nil {
		t.Errorf("quantity 0 must be rejected")
	}
	if v, err := ParseQuantity("3"); err != nil || v != 3 {
		t.Errorf("ParseQuantity(3) = %d, %v", v, err)
	}
	if v, err := ParseStock("0"); err != nil || v != 0 {
		t.Errorf("ParseStock(0) = %d, %v", v, err)
	}
	if _, err := ParseStock("-1"); err == nil {
		t.Errorf("negative stock must be rejected")
	}
}

func TestParseDiscountPercent(t *testing.T) {
	if v, err := ParseDiscountPercent("100"); err != nil || v != 100 {
		t.Errorf("ParseDiscountPercent(100) = %d, %v", v, err)
	}
	if _, err := ParseDiscountPercent("101"); err == nil {
		t.Errorf("discount above 100 must be rejected")
	}
	if _, err := ParseDiscountPercent("ten"); err == nil {
		t.Errorf("non-numeric discount must be rejected")
	}
}

func TestIsValidPaymentCode(t *testing.T) {
	if !IsValidPaymentCode("6ba7b810-9dad-11d1-80b4-00c04fd430c8") {
		t.Errorf("canonical uuid must be accepted")
	}
	if IsValidPaymentCode("6BA7B810-9DAD-11D1-80B4-00C04FD430C8") {
		t.Errorf("upper-case uuid must be rejected")
	}
	if IsValidPaymentCode("not-a-code") {
		t.Errorf("short string must be rejected")
	}
	if IsValidPaymentCode("6ba7b810x9dad-11d1-80b4-00c04fd430c8") {
		t.Errorf("misplaced separator must be rejected")
	}
}

func TestNormalizeCouponCode(t *testing.T) {
	if got := NormalizeCouponCode("  sale10 "); got != "SALE10" {
		t.Errorf("NormalizeCouponCode = %q, want SALE10", got)
	}
}

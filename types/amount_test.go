package types

import (
	"encoding/json"
	"testing"
)

func TestAmountConstructors(t *testing.T) {
	tests := []struct {
		name   string
		amount Amount
		want   string
	}{
		{"Zero value", Amount{}, "0"},
		{"NewAmount", NewAmount(4900), "4900"},
		{"Units 18 decimals", Units(1, 18), "1000000000000000000"},
		{"Units 6 decimals", Units(25, 6), "25000000"},
		{"Pow10", Pow10(18), "1000000000000000000"},
		{"MustAmount large", MustAmount("100000000000000000000000"), "100000000000000000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.amount.String(); got != tt.want {
				t.Errorf("String: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"empty is zero", "", "0", false},
		{"plain", "12345", "12345", false},
		{"beyond int64", "100000000000000000000000", "100000000000000000000000", false},
		{"negative rejected", "-1", "", true},
		{"garbage rejected", "12x", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("got %s, want %s", got.String(), tt.want)
			}
		})
	}
}

func TestAmountArithmetic(t *testing.T) {
	tests := []struct {
		name string
		op   func() Amount
		want Amount
	}{
		{"Add", func() Amount { return NewAmount(100).Add(NewAmount(200)) }, NewAmount(300)},
		{"Sub", func() Amount { return NewAmount(500).Sub(NewAmount(200)) }, NewAmount(300)},
		{"Mul", func() Amount { return NewAmount(100).Mul(NewAmount(3)) }, NewAmount(300)},
		{"Sum", func() Amount { return Sum(NewAmount(1), NewAmount(2), NewAmount(3)) }, NewAmount(6)},
		{"Zero value participates", func() Amount { return Amount{}.Add(NewAmount(7)) }, NewAmount(7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op(); !got.Equal(tt.want) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAmountSubUnderflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on underflow")
		}
	}()
	NewAmount(1).Sub(NewAmount(2))
}

func TestAmountMulDivFloors(t *testing.T) {
	scale := Pow10(18)

	tests := []struct {
		name   string
		amount Amount
		rate   Amount
		want   string
	}{
		// 1 token at 18 decimals, rate 1e6 -> exactly 1_000_000 payment units.
		{"whole token", Units(1, 18), NewAmount(1_000_000), "1000000"},
		// A remainder below the scale is truncated, never rounded up.
		{"floors remainder", NewAmount(1), NewAmount(999_999), "0"},
		{"floors just below unit", Pow10(18).Sub(NewAmount(1)), NewAmount(1_000_000), "999999"},
		{"large round cap", Units(100_000, 18), NewAmount(1_000_000), "100000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.amount.MulDiv(tt.rate, scale)
			if got.String() != tt.want {
				t.Errorf("got %s, want %s", got.String(), tt.want)
			}
		})
	}
}

func TestAmountMulDivMonotone(t *testing.T) {
	scale := Pow10(18)
	rate := NewAmount(777)

	prev := Amount{}
	for _, units := range []int64{1, 2, 5, 10, 999, 1000} {
		amt := Units(units, 15)
		got := amt.MulDiv(rate, scale)
		if got.LessThan(prev) {
			t.Fatalf("payment amount decreased: %s -> %s", prev, got)
		}
		prev = got
	}
}

func TestAmountFormat(t *testing.T) {
	tests := []struct {
		name     string
		amount   Amount
		decimals uint8
		want     string
	}{
		{"whole", Units(3, 18), 18, "3"},
		{"fraction", MustAmount("1500000000000000000"), 18, "1.5"},
		{"sub unit", NewAmount(1), 18, "0.000000000000000001"},
		{"no decimals", NewAmount(42), 0, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.amount.Format(tt.decimals); got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestAmountJSONRoundTrip(t *testing.T) {
	in := MustAmount("100000000000000000000000")
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"100000000000000000000000"` {
		t.Errorf("marshaled as %s", data)
	}

	var out Amount
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Equal(in) {
		t.Errorf("round trip: got %s, want %s", out, in)
	}
}

func TestAmountScan(t *testing.T) {
	var a Amount
	if err := a.Scan("123456789012345678901234567890"); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	if a.String() != "123456789012345678901234567890" {
		t.Errorf("got %s", a)
	}

	if err := a.Scan(int64(42)); err != nil {
		t.Fatalf("scan int64: %v", err)
	}
	if a.String() != "42" {
		t.Errorf("got %s", a)
	}

	if err := a.Scan(3.14); err == nil {
		t.Error("expected error scanning float64")
	}
}

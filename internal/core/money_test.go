package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"45.00", 4500, true},
		{"-45.00", -4500, true},
		{"$1,234.56", 123456, true},
		{"-$1,234.56", -123456, true},
		{"(12.50)", -1250, true},
		{"($12.50)", -1250, true},
		{"+3", 300, true},
		{" 0.999 ", 100, true},
		{"0", 0, true},
		{"", 0, false},
		{"$", 0, false},
		{"12a", 0, false},
		{"1.2.3", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.Cents != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got.Cents, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %d", tc.in, got.Cents)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := map[int64]string{
		0:       "0.00",
		5:       "0.05",
		4533:    "45.33",
		-150000: "-1500.00",
		-7:      "-0.07",
	}
	for cents, want := range cases {
		if got := (Money{Cents: cents}).String(); got != want {
			t.Errorf("Money{%d}.String() = %q, want %q", cents, got, want)
		}
	}
}

func TestMoneyArithmetic(t *testing.T) {
	a := Money{Cents: -1500}
	if a.Abs().Cents != 1500 {
		t.Errorf("Abs = %d", a.Abs().Cents)
	}
	if a.Neg().Cents != 1500 {
		t.Errorf("Neg = %d", a.Neg().Cents)
	}
	if got := a.Add(Money{Cents: 200}).Sub(Money{Cents: 100}); got.Cents != -1400 {
		t.Errorf("Add/Sub = %d", got.Cents)
	}
	if got := (Money{Cents: 4533}).Dollars(); got != 45.33 {
		t.Errorf("Dollars = %v", got)
	}
}

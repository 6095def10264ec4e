package core

import (
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		ok  bool
	}{
		{"12.34", 12.34, true},
		{"£1,204.50", 1204.50, true},
		{" EUR 12 ", 12, true},
		{"-3.5", -3.5, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseAmount(tc.in)
		if ok != tc.ok {
			t.Fatalf("%q expected ok=%v, got %v", tc.in, tc.ok, ok)
		}
		if ok && math.Abs(got-tc.out) > 1e-9 {
			t.Fatalf("%q expected %v, got %v", tc.in, tc.out, got)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		amount float64
		code   string
		want   string
	}{
		{12.346, "GBP", "£12.35"},
		{-3, "USD", "-$3.00"},
		{0.5, "EUR", "€0.50"},
		{12, "CHF", "12.00 CHF"},
		{7, "", "7.00"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.amount, tc.code); got != tc.want {
			t.Fatalf("FormatAmount(%v, %q) = %q, want %q", tc.amount, tc.code, got, tc.want)
		}
	}
	if got := FormatSigned(0.02, "GBP"); got != "+£0.02" {
		t.Fatalf("FormatSigned positive = %q", got)
	}
	if got := FormatSigned(-1.5, "USD"); got != "-$1.50" {
		t.Fatalf("FormatSigned negative = %q", got)
	}
}

func TestNormalizeCurrency(t *testing.T) {
	cases := map[string]string{
		"gbp":  "GBP",
		" usd": "USD",
		"":     DefaultCurrency,
		"EURO": DefaultCurrency,
		"1AB":  DefaultCurrency,
	}
	for in, want := range cases {
		if got := NormalizeCurrency(in, DefaultCurrency); got != want {
			t.Fatalf("NormalizeCurrency(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGuessCurrencyAndMinorUnit(t *testing.T) {
	if c, ok := GuessCurrency("£12.00"); !ok || c != "GBP" {
		t.Fatalf("expected GBP, got %q", c)
	}
	if c, ok := GuessCurrency("€ 3"); !ok || c != "EUR" {
		t.Fatalf("expected EUR, got %q", c)
	}
	if _, ok := GuessCurrency("12.00"); ok {
		t.Fatalf("expected no guess without a symbol")
	}
	if MinorUnit("JPY") != 1 || MinorUnit("GBP") != 0.01 {
		t.Fatalf("unexpected minor units")
	}
}

package core

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestSanitizeAmountInput(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"100", "100"},
		{"12,50", "12.50"},
		{"R$ 12,50", "12.50"},
		{"1.234,56", "1.23456"}, // first period wins, later groups are concatenated
		{"1,2,3", "1.23"},
		{"..5", ".5"},
		{"abc", ""},
		{"", ""},
		{"-42", "42"},
		{" 7 . 5 ", "7.5"},
	}
	for _, tc := range cases {
		if got := SanitizeAmountInput(tc.in); got != tc.out {
			t.Fatalf("SanitizeAmountInput(%q) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"1", "1"},
		{"1.23456", "1.23456"},
		{" 2.50 ", "2.5"},
		{"", "0"},
		{"abc", "0"},
		{"1.2.3", "0"},
	}
	for _, tc := range cases {
		got := ParseAmount(tc.in)
		if !got.Equal(decimal.RequireFromString(tc.out)) {
			t.Fatalf("ParseAmount(%q) = %s, want %s", tc.in, got, tc.out)
		}
	}
}

func TestCoerceAmount(t *testing.T) {
	cases := []struct {
		name string
		in   any
		out  string
	}{
		{"string", "150.25", "150.25"},
		{"float", 99.5, "99.5"},
		{"int", 3, "3"},
		{"json number", json.Number("42.1"), "42.1"},
		{"bad string", "n/a", "0"},
		{"nil", nil, "0"},
		{"bool", true, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CoerceAmount(tc.in)
			if !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("CoerceAmount(%v) = %s, want %s", tc.in, got, tc.out)
			}
		})
	}
}

func TestFormatBRL(t *testing.T) {
	cases := []struct {
		in  string
		out string
	}{
		{"0", "R$ 0,00"},
		{"12.5", "R$ 12,50"},
		{"1234.56", "R$ 1.234,56"},
		{"1234567.891", "R$ 1.234.567,89"},
		{"-10", "-R$ 10,00"},
	}
	for _, tc := range cases {
		if got := FormatBRL(decimal.RequireFromString(tc.in)); got != tc.out {
			t.Fatalf("FormatBRL(%s) = %q, want %q", tc.in, got, tc.out)
		}
	}
}

func TestNormalizePedido(t *testing.T) {
	cases := map[string]string{
		"123456":   "123456",
		"12-34":    "1234",
		"1234567":  "123456",
		"PED 0042": "0042",
		"":         "",
	}
	for in, want := range cases {
		if got := NormalizePedido(in); got != want {
			t.Fatalf("NormalizePedido(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAmountInputUnmarshal(t *testing.T) {
	var p struct {
		Valor AmountInput `json:"valor"`
	}
	if err := json.Unmarshal([]byte(`{"valor":"1.234,56"}`), &p); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if p.Valor != "1.23456" {
		t.Fatalf("string amount = %q", p.Valor)
	}
	if err := json.Unmarshal([]byte(`{"valor":150.5}`), &p); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if !p.Valor.Decimal().Equal(decimal.RequireFromString("150.5")) {
		t.Fatalf("number amount = %q", p.Valor)
	}
	if err := json.Unmarshal([]byte(`{"valor":{}}`), &p); err == nil {
		t.Fatalf("expected error for object amount")
	}
}

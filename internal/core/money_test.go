package core

import (
	"encoding/json"
	"testing"
)

func TestParseSignedCents(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"-4.5", -450, true},
		{"4.5", 450, true},
		{"+4.5", 450, true},
		{"12,34", 1234, true},
		{"12.345", 1235, true},
		{"12.346", 1235, true},
		{"-12.346", -1235, true},
		{"0", 0, true},
		{"100", 10000, true},
		{"92233720368547758.07", 1<<63 - 1, true},
		{"92233720368547758.08", 0, false},
		{"92233720368547758.99", 0, false},
		{"92233720368547759", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseSignedCents(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("ParseSignedCents(%q) unexpected error: %v", tc.in, err)
		}
		if !tc.ok {
			if err == nil {
				t.Fatalf("ParseSignedCents(%q) expected error", tc.in)
			}
			continue
		}
		if got != tc.cents {
			t.Fatalf("ParseSignedCents(%q) = %d, want %d", tc.in, got, tc.cents)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{-450, "-4.5"},
		{450, "4.5"},
		{1234, "12.34"},
		{300, "3"},
		{0, "0"},
		{-5, "-0.05"},
		{105, "1.05"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).String(); got != tc.want {
			t.Fatalf("Money{%d}.String() = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

func TestMoneyJSONRoundTrip(t *testing.T) {
	var m Money
	if err := json.Unmarshal([]byte(`-4.5`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Cents != -450 {
		t.Fatalf("cents = %d, want -450", m.Cents)
	}
	out, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != "-4.5" {
		t.Fatalf("marshal = %s, want -4.5", out)
	}
}

func TestMoneyAbs(t *testing.T) {
	if (Money{Cents: -450}).Abs().Cents != 450 {
		t.Fatal("abs of negative")
	}
	if (Money{Cents: 450}).Abs().Cents != 450 {
		t.Fatal("abs of positive")
	}
}

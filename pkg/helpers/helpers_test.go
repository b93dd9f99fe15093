package helpers

import (
	"testing"
)

func TestIsZeroBytes(t *testing.T) {
	tests := []struct {
		name string
		b    []byte
		want bool
	}{
		{"all zero", []byte{0, 0, 0}, true},
		{"one set", []byte{0, 1, 0}, false},
		{"empty", []byte{}, true},
		{"nil", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsZeroBytes(tt.b); got != tt.want {
				t.Errorf("IsZeroBytes = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Zero(b)
	if !IsZeroBytes(b) {
		t.Errorf("Zero left %x", b)
	}
}

func TestGenerateSecureRandom(t *testing.T) {
	a, err := GenerateSecureRandom(32)
	if err != nil {
		t.Fatalf("GenerateSecureRandom: %v", err)
	}
	b, err := GenerateSecureRandom(32)
	if err != nil {
		t.Fatalf("GenerateSecureRandom: %v", err)
	}
	if len(a) != 32 {
		t.Errorf("len = %d, want 32", len(a))
	}
	if ConstantTimeCompare(a, b) {
		t.Error("two random draws should differ")
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   int64
		decimals uint8
		want     string
	}{
		{100000000, 8, "1"},
		{150000000, 8, "1.5"},
		{1000, 8, "0.00001"},
		{1, 8, "0.00000001"},
		{0, 8, "0"},
		{-546, 8, "-0.00000546"},
		{42, 0, "42"},
	}

	for _, tt := range tests {
		got := FormatAmount(tt.amount, tt.decimals)
		if got != tt.want {
			t.Errorf("FormatAmount(%d, %d) = %s, want %s", tt.amount, tt.decimals, got, tt.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input    string
		decimals uint8
		want     int64
		wantErr  bool
	}{
		{"1", 8, 100000000, false},
		{"1.5", 8, 150000000, false},
		{"0.00001", 8, 1000, false},
		{".5", 8, 50000000, false},
		{"0.000000001", 8, 0, true},
		{"", 8, 0, true},
		{"abc", 8, 0, true},
		{"-1", 8, 0, true},
		{"1.2.3", 8, 0, true},
		{"99999999999999999999", 8, 0, true},
	}

	for _, tt := range tests {
		got, err := ParseAmount(tt.input, tt.decimals)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseAmount(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseAmount(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestSatoshisBTCConversion(t *testing.T) {
	if got := SatoshisToBTC(100000); got != "0.001" {
		t.Errorf("SatoshisToBTC(100000) = %s, want 0.001", got)
	}
	sats, err := BTCToSatoshis("0.001")
	if err != nil {
		t.Fatalf("BTCToSatoshis: %v", err)
	}
	if sats != 100000 {
		t.Errorf("BTCToSatoshis(0.001) = %d, want 100000", sats)
	}
}

func TestFormatSats(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 sats"},
		{546, "546 sats"},
		{1000, "1,000 sats"},
		{101000, "101,000 sats"},
		{1234567, "1,234,567 sats"},
		{-2500, "-2,500 sats"},
	}
	for _, tt := range tests {
		if got := FormatSats(tt.in); got != tt.want {
			t.Errorf("FormatSats(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

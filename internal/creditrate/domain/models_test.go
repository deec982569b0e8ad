package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestCalculateCredits(t *testing.T) {
	rate := Rate{
		BaseCreditPer1KTokens: decimal.NewFromInt(1),
		InputMultiplier:       decimal.RequireFromString("0.5"),
		OutputMultiplier:      decimal.RequireFromString("1.5"),
	}

	cases := []struct {
		name    string
		in, out int64
		want    string
	}{
		{"zero", 0, 0, "0"},
		{"input only", 2000, 0, "1"},
		{"mixed", 1500, 500, "1.5"},
		{"rounds to cents", 1, 1, "0"},
		{"rounds half up", 10, 0, "0.01"},
		{"large", 123456, 654321, "1043.21"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := CalculateCredits(rate, tc.in, tc.out)
			if !got.Equal(decimal.RequireFromString(tc.want)) {
				t.Fatalf("CalculateCredits(%d, %d) = %s, want %s", tc.in, tc.out, got, tc.want)
			}
		})
	}
}

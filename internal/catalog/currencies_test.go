package catalog

import "testing"

func TestSupportedCurrency(t *testing.T) {
	cases := []struct {
		code string
		want bool
	}{
		{"usd", true},
		{"USD", true},
		{"eur", true},
		{"xdr", false},
		{"", false},
		{"dollars", false},
	}
	for _, tc := range cases {
		if got := SupportedCurrency(tc.code); got != tc.want {
			t.Errorf("SupportedCurrency(%q) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

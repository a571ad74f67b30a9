package util

import (
	"testing"
)

func TestUnwrapRedirect(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		changed  bool
	}{
		{
			name:     "No change",
			input:    "https://example.com/hotel",
			expected: "https://example.com/hotel",
			changed:  false,
		},
		{
			name:     "Linksynergy murl",
			input:    "https://click.linksynergy.com/deeplink?id=x&murl=https%3A%2F%2Fairline.example%2Fsale",
			expected: "https://airline.example/sale",
			changed:  true,
		},
		{
			name:     "Redirectingat url",
			input:    "https://go.redirectingat.com/?id=1&url=https%3A%2F%2Fhotel.example%2Froom",
			expected: "https://hotel.example/room",
			changed:  true,
		},
		{
			name:     "Known host without destination",
			input:    "https://go.redirectingat.com/?id=1",
			expected: "https://go.redirectingat.com/?id=1",
			changed:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := UnwrapRedirect(tt.input)
			if got != tt.expected {
				t.Errorf("UnwrapRedirect() got = %v, want %v", got, tt.expected)
			}
			if changed != tt.changed {
				t.Errorf("UnwrapRedirect() changed = %v, want %v", changed, tt.changed)
			}
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "Trailing slash",
			input: "https://partner.example.com/deals/bali-1234/",
			want:  "https://partner.example.com/deals/bali-1234",
		},
		{
			name:  "Remove www and upgrade scheme",
			input: "http://www.Partner.example.com/deal/",
			want:  "https://partner.example.com/deal",
		},
		{
			name:  "Remove UTM params",
			input: "https://partner.example.com/deal?utm_source=foo&utm_medium=bar",
			want:  "https://partner.example.com/deal",
		},
		{
			name:  "Keep meaningful params",
			input: "https://partner.example.com/deal?id=7&gclid=abc",
			want:  "https://partner.example.com/deal?id=7",
		},
		{
			name:  "Relative path untouched",
			input: "/deal/7",
			want:  "/deal/7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("NormalizeURL() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("NormalizeURL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetDomain(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "Standard domain",
			input: "https://expedia.ca/hotels/12345",
			want:  "expedia.ca",
		},
		{
			name:  "Subdomain",
			input: "https://deals.expedia.ca/hotels",
			want:  "expedia.ca",
		},
		{
			name:  "Two-part TLD",
			input: "https://example.co.uk/product",
			want:  "example.co.uk",
		},
		{
			name:  "Subdomain with two-part TLD",
			input: "https://sub.example.co.uk/product",
			want:  "example.co.uk",
		},
		{
			name:  "No www",
			input: "https://www.airtransat.com",
			want:  "airtransat.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetDomain(tt.input)
			if got != tt.want {
				t.Errorf("GetDomain() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseLeadingNumber(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOK bool
	}{
		{"25% off", 25, true},
		{" 12.5%", 12.5, true},
		{"50", 50, true},
		{"$40 off", 0, false},
		{"half price", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseLeadingNumber(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParseLeadingNumber(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		input  string
		want   float64
		wantOK bool
	}{
		{"$1,299.00", 1299, true},
		{"CA$ 89", 89, true},
		{"free", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParsePrice(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ParsePrice(%q) = (%v, %v), want (%v, %v)", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

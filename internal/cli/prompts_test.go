package cli

import (
	"testing"

	"github.com/dyike/DexterGo/internal/models"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		market  models.MarketType
		wantErr bool
	}{
		{in: "US:AAPL", want: "US:AAPL", market: models.MarketUS},
		{in: "aapl", want: "US:AAPL", market: models.MarketUS},
		{in: " hk:700 ", want: "HK:700", market: models.MarketHK},
		{in: "cn:600519", want: "CN:600519", market: models.MarketCN},
		{in: "BRK.B", want: "US:BRK.B", market: models.MarketUS},
		{in: "XX:AAPL", wantErr: true},
		{in: "US:", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		key, err := NormalizeSymbol(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeSymbol(%q) expected error, got %v", tt.in, key)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeSymbol(%q) unexpected error: %v", tt.in, err)
			continue
		}
		if key.String() != tt.want {
			t.Errorf("NormalizeSymbol(%q) = %q, want %q", tt.in, key.String(), tt.want)
		}
		if key.Market != tt.market {
			t.Errorf("NormalizeSymbol(%q) market = %q, want %q", tt.in, key.Market, tt.market)
		}
	}
}

package providers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"
	"github.com/shopspring/decimal"

	"github.com/dyike/DexterGo/config"
	"github.com/dyike/DexterGo/internal/models"
)

// YahooProvider serves the US market through Yahoo Finance.
type YahooProvider struct {
	cache *CacheManager
}

func NewYahooProvider(cfg *config.Config) *YahooProvider {
	cacheDir := filepath.Join(cfg.DataCacheDir, "yahoo_finance")
	return &YahooProvider{
		cache: NewCacheManager(cacheDir, 24*time.Hour, cfg.CacheEnabled),
	}
}

func (yp *YahooProvider) Name() string { return "yahoo" }

func (yp *YahooProvider) SupportedMarkets() []models.MarketType {
	return []models.MarketType{models.MarketUS}
}

func (yp *YahooProvider) Connect(ctx context.Context) error { return nil }
func (yp *YahooProvider) Disconnect() error                 { return nil }

func (yp *YahooProvider) GetQuote(ctx context.Context, symbol models.SymbolKey) (*models.Quote, error) {
	q, err := quote.Get(symbol.Code)
	if err != nil {
		return nil, fmt.Errorf("yahoo quote for %s: %w", symbol, err)
	}
	if q == nil {
		return nil, nil
	}

	quality := models.QualityDelayed
	if q.MarketState == "REGULAR" {
		quality = models.QualityRealtime
	}

	return &models.Quote{
		Symbol:    symbol.String(),
		Price:     decimal.NewFromFloat(q.RegularMarketPrice),
		Open:      decimal.NewFromFloat(q.RegularMarketOpen),
		High:      decimal.NewFromFloat(q.RegularMarketDayHigh),
		Low:       decimal.NewFromFloat(q.RegularMarketDayLow),
		PrevClose: decimal.NewFromFloat(q.RegularMarketPreviousClose),
		Volume:    int64(q.RegularMarketVolume),
		Quality:   quality,
		Timestamp: time.Now(),
	}, nil
}

func (yp *YahooProvider) GetBars(ctx context.Context, symbol models.SymbolKey, timeframe models.TimeFrame, start, end time.Time) ([]*models.Bar, error) {
	cacheKey := map[string]any{
		"symbol":    symbol.String(),
		"timeframe": string(timeframe),
		"start":     start.Format("2006-01-02"),
		"end":       end.Format("2006-01-02"),
	}

	var cached []*models.Bar
	if yp.cache.Get("yahoo", "bars", cacheKey, &cached) {
		return cached, nil
	}

	interval := datetime.OneDay
	switch timeframe {
	case models.TimeFrameMinute:
		interval = datetime.OneMin
	case models.TimeFrameHour:
		interval = datetime.OneHour
	}

	var result []*models.Bar
	err := WithRetry(ctx, DefaultRetryConfig(), func() error {
		params := &chart.Params{
			Symbol:   symbol.Code,
			Start:    datetime.New(&start),
			End:      datetime.New(&end),
			Interval: interval,
		}

		iter := chart.Get(params)
		result = result[:0]
		for iter.Next() {
			bar := iter.Bar()
			result = append(result, &models.Bar{
				Symbol:   symbol.String(),
				Date:     time.Unix(int64(bar.Timestamp), 0),
				Open:     bar.Open,
				High:     bar.High,
				Low:      bar.Low,
				Close:    bar.Close,
				AdjClose: bar.AdjClose,
				Volume:   int64(bar.Volume),
			})
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("yahoo bars for %s: %w", symbol, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	yp.cache.Set("yahoo", "bars", cacheKey, result)
	return result, nil
}

func (yp *YahooProvider) GetBasicInfo(ctx context.Context, symbol models.SymbolKey) (*models.BasicInfo, error) {
	var cached models.BasicInfo
	if yp.cache.Get("yahoo", "basic_info", symbol.String(), &cached) {
		return &cached, nil
	}

	q, err := quote.Get(symbol.Code)
	if err != nil {
		return nil, fmt.Errorf("yahoo basic info for %s: %w", symbol, err)
	}
	if q == nil {
		return nil, nil
	}

	info := &models.BasicInfo{
		Symbol:   symbol.String(),
		Name:     q.ShortName,
		Exchange: q.FullExchangeName,
		Currency: q.CurrencyID,
	}
	yp.cache.Set("yahoo", "basic_info", symbol.String(), info)
	return info, nil
}

// Yahoo carries no symbol-scoped news or sentiment here; the news provider
// covers those operations in the fallback chain.
func (yp *YahooProvider) GetNews(ctx context.Context, symbol models.SymbolKey, limit int) ([]*models.NewsArticle, error) {
	return nil, nil
}

func (yp *YahooProvider) GetSentiment(ctx context.Context, symbol models.SymbolKey) (*models.SentimentSummary, error) {
	return nil, nil
}

// usSymbolUniverse is the liquid-names universe used for text search and
// symbol listing.
var usSymbolUniverse = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "NVDA", "NFLX",
	"AMD", "INTC", "CRM", "ORCL", "ADBE", "PYPL", "DIS", "V", "MA",
	"JPM", "BAC", "WFC", "C", "GS", "MS", "BRK-B", "JNJ", "PFE",
	"KO", "PEP", "WMT", "HD", "NKE", "MCD", "SBUX", "UNH", "CVX",
}

func (yp *YahooProvider) SearchSymbol(ctx context.Context, query string) ([]models.SymbolKey, error) {
	query = strings.TrimSpace(strings.ToUpper(query))
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}

	var matches []models.SymbolKey
	for _, code := range usSymbolUniverse {
		if strings.Contains(code, query) {
			matches = append(matches, models.NewSymbolKey(models.MarketUS, code))
		}
	}
	return matches, nil
}

func (yp *YahooProvider) GetSymbolList(ctx context.Context, market models.MarketType) ([]models.SymbolKey, error) {
	if market != models.MarketUS {
		return nil, nil
	}
	keys := make([]models.SymbolKey, 0, len(usSymbolUniverse))
	for _, code := range usSymbolUniverse {
		keys = append(keys, models.NewSymbolKey(models.MarketUS, code))
	}
	return keys, nil
}

package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	lpconfig "github.com/longportapp/openapi-go/config"
	lpquote "github.com/longportapp/openapi-go/quote"
	"github.com/shopspring/decimal"

	"github.com/dyike/DexterGo/config"
	"github.com/dyike/DexterGo/internal/models"
)

// LongportProvider serves HK and CN markets through the Longport OpenAPI.
type LongportProvider struct {
	quoteCtx *lpquote.QuoteContext
}

func NewLongportProvider(cfg *config.Config) (*LongportProvider, error) {
	if cfg.LongportAppKey == "" || cfg.LongportAppSecret == "" || cfg.LongportAccessToken == "" {
		return nil, errors.New("longport API credentials not configured")
	}

	conf, err := lpconfig.New(lpconfig.WithConfigKey(cfg.LongportAppKey, cfg.LongportAppSecret, cfg.LongportAccessToken))
	if err != nil {
		return nil, err
	}

	quoteContext, err := lpquote.NewFromCfg(conf)
	if err != nil {
		return nil, err
	}

	return &LongportProvider{quoteCtx: quoteContext}, nil
}

func (lp *LongportProvider) Name() string { return "longport" }

func (lp *LongportProvider) SupportedMarkets() []models.MarketType {
	return []models.MarketType{models.MarketHK, models.MarketCN}
}

func (lp *LongportProvider) Connect(ctx context.Context) error {
	if lp.quoteCtx == nil {
		return errors.New("quote context is nil")
	}
	return nil
}

func (lp *LongportProvider) Disconnect() error {
	if lp.quoteCtx != nil {
		lp.quoteCtx.Close()
	}
	return nil
}

// derefDec unwraps the SDK's nullable price fields.
func derefDec(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

// wireSymbol converts the canonical key to Longport's exchange-suffixed form,
// e.g. HK:700 -> 700.HK, CN:600519 -> 600519.SH.
func wireSymbol(symbol models.SymbolKey) string {
	switch symbol.Market {
	case models.MarketHK:
		return symbol.Code + ".HK"
	case models.MarketCN:
		if strings.HasPrefix(symbol.Code, "6") {
			return symbol.Code + ".SH"
		}
		return symbol.Code + ".SZ"
	}
	return symbol.Code
}

func (lp *LongportProvider) GetQuote(ctx context.Context, symbol models.SymbolKey) (*models.Quote, error) {
	if lp.quoteCtx == nil {
		return nil, errors.New("quote context is nil")
	}

	// Last two daily candles give the latest close plus the previous close.
	sticks, err := lp.quoteCtx.Candlesticks(ctx, wireSymbol(symbol), lpquote.PeriodDay, 2, lpquote.AdjustTypeNo)
	if err != nil {
		return nil, fmt.Errorf("longport quote for %s: %w", symbol, err)
	}
	if len(sticks) == 0 {
		return nil, nil
	}

	last := sticks[len(sticks)-1]
	q := &models.Quote{
		Symbol:    symbol.String(),
		Price:     derefDec(last.Close),
		Open:      derefDec(last.Open),
		High:      derefDec(last.High),
		Low:       derefDec(last.Low),
		Volume:    last.Volume,
		Quality:   models.QualityEOD,
		Timestamp: time.Unix(last.Timestamp, 0),
	}
	if len(sticks) > 1 {
		q.PrevClose = derefDec(sticks[len(sticks)-2].Close)
	}
	return q, nil
}

func (lp *LongportProvider) GetBars(ctx context.Context, symbol models.SymbolKey, timeframe models.TimeFrame, start, end time.Time) ([]*models.Bar, error) {
	if lp.quoteCtx == nil {
		return nil, errors.New("quote context is nil")
	}

	period := lpquote.PeriodDay
	switch timeframe {
	case models.TimeFrameMinute:
		period = lpquote.PeriodOneMinute
	case models.TimeFrameWeekly:
		period = lpquote.PeriodWeek
	}

	count := int32(end.Sub(start).Hours()/24) + 1
	if count < 1 {
		count = 1
	}

	sticks, err := lp.quoteCtx.Candlesticks(ctx, wireSymbol(symbol), period, count, lpquote.AdjustTypeNo)
	if err != nil {
		return nil, fmt.Errorf("longport bars for %s: %w", symbol, err)
	}

	bars := make([]*models.Bar, 0, len(sticks))
	for _, stick := range sticks {
		date := time.Unix(stick.Timestamp, 0)
		if date.Before(start) || date.After(end) {
			continue
		}
		bars = append(bars, &models.Bar{
			Symbol:   symbol.String(),
			Date:     date,
			Open:     derefDec(stick.Open),
			High:     derefDec(stick.High),
			Low:      derefDec(stick.Low),
			Close:    derefDec(stick.Close),
			AdjClose: derefDec(stick.Close),
			Volume:   stick.Volume,
		})
	}
	return bars, nil
}

func (lp *LongportProvider) GetBasicInfo(ctx context.Context, symbol models.SymbolKey) (*models.BasicInfo, error) {
	if lp.quoteCtx == nil {
		return nil, errors.New("quote context is nil")
	}

	infos, err := lp.quoteCtx.StaticInfo(ctx, []string{wireSymbol(symbol)})
	if err != nil {
		return nil, fmt.Errorf("longport static info for %s: %w", symbol, err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return nil, nil
	}

	info := infos[0]
	name := info.NameEn
	if name == "" {
		name = info.NameCn
	}
	return &models.BasicInfo{
		Symbol:   symbol.String(),
		Name:     name,
		Exchange: info.Exchange,
		Currency: info.Currency,
		LotSize:  info.LotSize,
	}, nil
}

func (lp *LongportProvider) GetNews(ctx context.Context, symbol models.SymbolKey, limit int) ([]*models.NewsArticle, error) {
	return nil, nil
}

func (lp *LongportProvider) GetSentiment(ctx context.Context, symbol models.SymbolKey) (*models.SentimentSummary, error) {
	return nil, nil
}

func (lp *LongportProvider) SearchSymbol(ctx context.Context, query string) ([]models.SymbolKey, error) {
	return nil, nil
}

func (lp *LongportProvider) GetSymbolList(ctx context.Context, market models.MarketType) ([]models.SymbolKey, error) {
	return nil, nil
}

package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/dyike/DexterGo/consts"
	"github.com/dyike/DexterGo/internal/models"
	"github.com/dyike/DexterGo/internal/providers"
)

// RegisterDataTools wires the market data vocabulary against the provider
// manager. These five tools are the only way plans touch market data.
func RegisterDataTools(r *Registry, mgr *providers.Manager) {
	symbolParam := map[string]*schema.ParameterInfo{
		"symbol": {
			Type:     "string",
			Desc:     "Symbol in MARKET:CODE form, e.g. US:AAPL or HK:700",
			Required: true,
		},
	}

	r.Register(&Spec{
		Name:    consts.ToolMarketQuote,
		Desc:    "Get the latest price snapshot for a symbol",
		Params:  symbolParam,
		Handler: quoteHandler(mgr),
	})

	r.Register(&Spec{
		Name: consts.ToolMarketBars,
		Desc: "Get historical OHLCV candles for a symbol",
		Params: map[string]*schema.ParameterInfo{
			"symbol": symbolParam["symbol"],
			"timeframe": {
				Type:     "string",
				Desc:     "Bar interval: 1m, 60m, 1d or 1wk (default 1d)",
				Required: false,
			},
			"lookback_days": {
				Type:     "integer",
				Desc:     "How many calendar days of history to fetch (default 30)",
				Required: false,
			},
		},
		Handler: barsHandler(mgr),
	})

	r.Register(&Spec{
		Name: consts.ToolMarketNews,
		Desc: "Get recent news coverage for a symbol",
		Params: map[string]*schema.ParameterInfo{
			"symbol": symbolParam["symbol"],
			"limit": {
				Type:     "integer",
				Desc:     "Maximum number of articles (default 10)",
				Required: false,
			},
		},
		Handler: newsHandler(mgr),
	})

	r.Register(&Spec{
		Name:    consts.ToolMarketSentiment,
		Desc:    "Get an aggregate sentiment read on recent coverage of a symbol",
		Params:  symbolParam,
		Handler: sentimentHandler(mgr),
	})

	r.Register(&Spec{
		Name:    consts.ToolMarketInfo,
		Desc:    "Get static descriptive data for a symbol: name, exchange, currency, lot size",
		Params:  symbolParam,
		Handler: infoHandler(mgr),
	})
}

func symbolArg(args map[string]any) (models.SymbolKey, error) {
	raw, _ := args["symbol"].(string)
	if raw == "" {
		return models.SymbolKey{}, fmt.Errorf("symbol argument is required")
	}
	return models.ParseSymbolKey(raw)
}

// intArg tolerates float64, the type JSON numbers decode to.
func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

func quoteHandler(mgr *providers.Manager) Handler {
	return func(ctx context.Context, args map[string]any) (*models.ToolOutput, error) {
		symbol, err := symbolArg(args)
		if err != nil {
			return nil, err
		}
		q, source := mgr.GetQuote(ctx, symbol)
		if q == nil {
			return missing(fmt.Sprintf("no quote available for %s", symbol)), nil
		}
		return &models.ToolOutput{
			Data:           q,
			Quality:        q.Quality,
			SourceProvider: source,
			AsOf:           q.Timestamp,
		}, nil
	}
}

func barsHandler(mgr *providers.Manager) Handler {
	return func(ctx context.Context, args map[string]any) (*models.ToolOutput, error) {
		symbol, err := symbolArg(args)
		if err != nil {
			return nil, err
		}

		timeframe := models.TimeFrameDaily
		if tf, _ := args["timeframe"].(string); tf != "" {
			timeframe = models.TimeFrame(tf)
			if !timeframe.Valid() {
				return nil, fmt.Errorf("unsupported timeframe %q", tf)
			}
		}

		lookback := intArg(args, "lookback_days", 30)
		end := time.Now()
		start := end.AddDate(0, 0, -lookback)

		bars, source, err := mgr.GetBars(ctx, symbol, timeframe, start, end)
		if err != nil {
			return nil, err
		}
		if len(bars) == 0 {
			return missing(fmt.Sprintf("no %s bars for %s in the last %d days", timeframe, symbol, lookback)), nil
		}
		return &models.ToolOutput{
			Data:           bars,
			Quality:        models.QualityEOD,
			SourceProvider: source,
			AsOf:           bars[len(bars)-1].Date,
		}, nil
	}
}

func newsHandler(mgr *providers.Manager) Handler {
	return func(ctx context.Context, args map[string]any) (*models.ToolOutput, error) {
		symbol, err := symbolArg(args)
		if err != nil {
			return nil, err
		}
		limit := intArg(args, "limit", 10)
		articles, source := mgr.GetNews(ctx, symbol, limit)
		if len(articles) == 0 {
			return missing(fmt.Sprintf("no recent news for %s", symbol)), nil
		}
		urls := make([]string, 0, len(articles))
		var newest time.Time
		for _, a := range articles {
			urls = append(urls, a.URL)
			if a.PublishedAt.After(newest) {
				newest = a.PublishedAt
			}
		}
		return &models.ToolOutput{
			Data:           articles,
			Quality:        models.QualityDelayed,
			SourceProvider: source,
			AsOf:           newest,
			SourceURLs:     urls,
		}, nil
	}
}

func sentimentHandler(mgr *providers.Manager) Handler {
	return func(ctx context.Context, args map[string]any) (*models.ToolOutput, error) {
		symbol, err := symbolArg(args)
		if err != nil {
			return nil, err
		}
		s, source := mgr.GetSentiment(ctx, symbol)
		if s == nil {
			return missing(fmt.Sprintf("no sentiment signal for %s", symbol)), nil
		}
		return &models.ToolOutput{
			Data:           s,
			Quality:        models.QualityDelayed,
			SourceProvider: source,
			AsOf:           time.Now(),
			SourceURLs:     s.Sources,
		}, nil
	}
}

func infoHandler(mgr *providers.Manager) Handler {
	return func(ctx context.Context, args map[string]any) (*models.ToolOutput, error) {
		symbol, err := symbolArg(args)
		if err != nil {
			return nil, err
		}
		info, source := mgr.GetBasicInfo(ctx, symbol)
		if info == nil {
			return missing(fmt.Sprintf("no static info for %s", symbol)), nil
		}
		return &models.ToolOutput{
			Data:           info,
			Quality:        models.QualityEOD,
			SourceProvider: source,
			AsOf:           time.Now(),
		}, nil
	}
}

// missing is the degraded-but-successful shape: the step completed, the data
// simply is not there. Experts see the message instead of raw data.
func missing(msg string) *models.ToolOutput {
	return &models.ToolOutput{
		Quality: models.QualityMissing,
		Message: msg,
	}
}

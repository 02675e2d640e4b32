package providers

import (
	"context"
	"time"

	"github.com/dyike/DexterGo/internal/models"
)

// MarketDataProvider is the capability contract every data source implements.
// A provider declares the markets it can serve; the Manager routes requests
// to providers by market and falls back across them in registration order.
//
// Operations return their zero value (nil slice / nil pointer) when the
// provider has nothing for the symbol; that is not an error and lets the
// Manager continue down the fallback chain.
type MarketDataProvider interface {
	Name() string
	SupportedMarkets() []models.MarketType

	Connect(ctx context.Context) error
	Disconnect() error

	SearchSymbol(ctx context.Context, query string) ([]models.SymbolKey, error)
	GetSymbolList(ctx context.Context, market models.MarketType) ([]models.SymbolKey, error)
	GetQuote(ctx context.Context, symbol models.SymbolKey) (*models.Quote, error)
	GetBars(ctx context.Context, symbol models.SymbolKey, timeframe models.TimeFrame, start, end time.Time) ([]*models.Bar, error)
	GetBasicInfo(ctx context.Context, symbol models.SymbolKey) (*models.BasicInfo, error)
	GetNews(ctx context.Context, symbol models.SymbolKey, limit int) ([]*models.NewsArticle, error)
	GetSentiment(ctx context.Context, symbol models.SymbolKey) (*models.SentimentSummary, error)
}

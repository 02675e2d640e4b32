package providers

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/dyike/DexterGo/internal/models"
)

// Manager routes data requests to the providers registered for a symbol's
// market and transparently fails over across them. Registration order defines
// fallback priority: first registered is first tried.
//
// Construct one Manager per session and pass it down explicitly; there is no
// package-level registry.
type Manager struct {
	mu        sync.RWMutex
	providers map[models.MarketType][]MarketDataProvider
	failures  map[string]int
}

func NewManager() *Manager {
	return &Manager{
		providers: make(map[models.MarketType][]MarketDataProvider),
		failures:  make(map[string]int),
	}
}

// Register appends the provider to the fallback list of every market it
// declares support for.
func (m *Manager) Register(p MarketDataProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, market := range p.SupportedMarkets() {
		m.providers[market] = append(m.providers[market], p)
		log.Printf("Registered provider %s for market %s", p.Name(), market)
	}
}

// Failures returns how many times the named provider has errored since the
// Manager was created.
func (m *Manager) Failures(provider string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failures[provider]
}

func (m *Manager) providersFor(market models.MarketType) []MarketDataProvider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.providers[market]
}

func (m *Manager) recordFailure(provider string) {
	m.mu.Lock()
	m.failures[provider]++
	m.mu.Unlock()
}

// attempt walks the provider list in order. A provider error is logged,
// counted and skipped; an empty result moves on to the next provider. The
// first non-empty result wins and attempt reports which provider produced it.
// When the list is exhausted attempt returns the zero value together with the
// last observed error (nil when every provider simply had nothing).
func attempt[T any](m *Manager, market models.MarketType, op, symbol string, call func(MarketDataProvider) (T, bool, error)) (T, string, error) {
	var zero T
	var lastErr error
	for _, p := range m.providersFor(market) {
		v, ok, err := call(p)
		if err != nil {
			log.Printf("Provider %s failed on %s for %s: %v", p.Name(), op, symbol, err)
			m.recordFailure(p.Name())
			lastErr = err
			continue
		}
		if ok {
			return v, p.Name(), nil
		}
	}
	return zero, "", lastErr
}

// GetQuote returns the first quote any provider for the symbol's market can
// produce together with the serving provider's name, or nil when every
// provider fails or has nothing.
func (m *Manager) GetQuote(ctx context.Context, symbol models.SymbolKey) (*models.Quote, string) {
	q, source, _ := attempt(m, symbol.Market, "get_quote", symbol.String(), func(p MarketDataProvider) (*models.Quote, bool, error) {
		q, err := p.GetQuote(ctx, symbol)
		return q, q != nil, err
	})
	return q, source
}

// GetBars returns historical candles. Unlike the other operations it fails
// loudly: when every provider errors the last error is returned so callers
// notice missing history instead of silently analyzing nothing.
func (m *Manager) GetBars(ctx context.Context, symbol models.SymbolKey, timeframe models.TimeFrame, start, end time.Time) ([]*models.Bar, string, error) {
	bars, source, err := attempt(m, symbol.Market, "get_bars", symbol.String(), func(p MarketDataProvider) ([]*models.Bar, bool, error) {
		bars, err := p.GetBars(ctx, symbol, timeframe, start, end)
		return bars, len(bars) > 0, err
	})
	if len(bars) == 0 && err != nil {
		return nil, "", err
	}
	return bars, source, nil
}

// GetBasicInfo returns static info for the symbol, or nil when unavailable.
func (m *Manager) GetBasicInfo(ctx context.Context, symbol models.SymbolKey) (*models.BasicInfo, string) {
	info, source, _ := attempt(m, symbol.Market, "get_basic_info", symbol.String(), func(p MarketDataProvider) (*models.BasicInfo, bool, error) {
		info, err := p.GetBasicInfo(ctx, symbol)
		return info, info != nil, err
	})
	return info, source
}

// GetNews returns recent coverage for the symbol, or an empty list.
func (m *Manager) GetNews(ctx context.Context, symbol models.SymbolKey, limit int) ([]*models.NewsArticle, string) {
	news, source, _ := attempt(m, symbol.Market, "get_news", symbol.String(), func(p MarketDataProvider) ([]*models.NewsArticle, bool, error) {
		news, err := p.GetNews(ctx, symbol, limit)
		return news, len(news) > 0, err
	})
	return news, source
}

// GetSentiment returns an aggregate sentiment read, or nil when unavailable.
func (m *Manager) GetSentiment(ctx context.Context, symbol models.SymbolKey) (*models.SentimentSummary, string) {
	s, source, _ := attempt(m, symbol.Market, "get_sentiment", symbol.String(), func(p MarketDataProvider) (*models.SentimentSummary, bool, error) {
		s, err := p.GetSentiment(ctx, symbol)
		return s, s != nil, err
	})
	return s, source
}

// GetSymbolList returns every symbol the given market's providers know about,
// deduplicated on canonical form.
func (m *Manager) GetSymbolList(ctx context.Context, market models.MarketType) []models.SymbolKey {
	seen := make(map[string]struct{})
	var result []models.SymbolKey
	for _, p := range m.providersFor(market) {
		keys, err := p.GetSymbolList(ctx, market)
		if err != nil {
			log.Printf("Provider %s failed on get_symbol_list for %s: %v", p.Name(), market, err)
			m.recordFailure(p.Name())
			continue
		}
		for _, k := range keys {
			if _, dup := seen[k.String()]; dup {
				continue
			}
			seen[k.String()] = struct{}{}
			result = append(result, k)
		}
	}
	return result
}

// SearchSymbol fans out to every provider of the requested markets (all known
// markets when none are given), concatenates results and deduplicates on
// canonical form. Provider errors are logged and skipped.
func (m *Manager) SearchSymbol(ctx context.Context, query string, markets ...models.MarketType) []models.SymbolKey {
	if len(markets) == 0 {
		m.mu.RLock()
		for market := range m.providers {
			markets = append(markets, market)
		}
		m.mu.RUnlock()
	}

	seen := make(map[string]struct{})
	var results []models.SymbolKey
	for _, market := range markets {
		for _, p := range m.providersFor(market) {
			keys, err := p.SearchSymbol(ctx, query)
			if err != nil {
				log.Printf("Provider %s search failed: %v", p.Name(), err)
				m.recordFailure(p.Name())
				continue
			}
			for _, k := range keys {
				if _, dup := seen[k.String()]; dup {
					continue
				}
				seen[k.String()] = struct{}{}
				results = append(results, k)
			}
		}
	}
	return results
}

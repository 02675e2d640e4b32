package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dyike/DexterGo/internal/models"
)

// fakeProvider scripts per-operation outcomes so ordering and failover are
// observable in tests.
type fakeProvider struct {
	name    string
	markets []models.MarketType

	quote    *models.Quote
	quoteErr error
	bars     []*models.Bar
	barsErr  error
	info     *models.BasicInfo
	infoErr  error
	news     []*models.NewsArticle
	newsErr  error

	searchResults []models.SymbolKey
	searchErr     error

	calls map[string]int
}

func newFakeProvider(name string, markets ...models.MarketType) *fakeProvider {
	return &fakeProvider{name: name, markets: markets, calls: make(map[string]int)}
}

func (f *fakeProvider) Name() string                          { return f.name }
func (f *fakeProvider) SupportedMarkets() []models.MarketType { return f.markets }
func (f *fakeProvider) Connect(ctx context.Context) error     { return nil }
func (f *fakeProvider) Disconnect() error                     { return nil }

func (f *fakeProvider) GetQuote(ctx context.Context, symbol models.SymbolKey) (*models.Quote, error) {
	f.calls["get_quote"]++
	return f.quote, f.quoteErr
}

func (f *fakeProvider) GetBars(ctx context.Context, symbol models.SymbolKey, timeframe models.TimeFrame, start, end time.Time) ([]*models.Bar, error) {
	f.calls["get_bars"]++
	return f.bars, f.barsErr
}

func (f *fakeProvider) GetBasicInfo(ctx context.Context, symbol models.SymbolKey) (*models.BasicInfo, error) {
	f.calls["get_basic_info"]++
	return f.info, f.infoErr
}

func (f *fakeProvider) GetNews(ctx context.Context, symbol models.SymbolKey, limit int) ([]*models.NewsArticle, error) {
	f.calls["get_news"]++
	return f.news, f.newsErr
}

func (f *fakeProvider) GetSentiment(ctx context.Context, symbol models.SymbolKey) (*models.SentimentSummary, error) {
	f.calls["get_sentiment"]++
	return nil, nil
}

func (f *fakeProvider) SearchSymbol(ctx context.Context, query string) ([]models.SymbolKey, error) {
	f.calls["search_symbol"]++
	return f.searchResults, f.searchErr
}

func (f *fakeProvider) GetSymbolList(ctx context.Context, market models.MarketType) ([]models.SymbolKey, error) {
	f.calls["get_symbol_list"]++
	return f.searchResults, f.searchErr
}

func aapl() models.SymbolKey {
	return models.NewSymbolKey(models.MarketUS, "AAPL")
}

func fiveBars() []*models.Bar {
	bars := make([]*models.Bar, 5)
	base := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		bars[i] = &models.Bar{
			Symbol:    "US:AAPL",
			Date:      base.AddDate(0, 0, i),
			Open:      decimal.NewFromInt(200),
			High:      decimal.NewFromInt(205),
			Low:       decimal.NewFromInt(198),
			Close:     decimal.NewFromInt(202),
			Volume:    1000,
		}
	}
	return bars
}

func TestFallbackSkipsFailedProvider(t *testing.T) {
	p1 := newFakeProvider("p1", models.MarketUS)
	p1.quoteErr = errors.New("upstream down")
	p2 := newFakeProvider("p2", models.MarketUS)
	p2.quote = &models.Quote{Symbol: "US:AAPL", Price: decimal.NewFromInt(202), Quality: models.QualityRealtime}

	m := NewManager()
	m.Register(p1)
	m.Register(p2)

	q, source := m.GetQuote(context.Background(), aapl())
	if q == nil {
		t.Fatal("expected a quote from the second provider")
	}
	if !q.Price.Equal(decimal.NewFromInt(202)) {
		t.Errorf("quote price = %s, want 202", q.Price)
	}
	if got := m.Failures("p1"); got != 1 {
		t.Errorf("p1 failure count = %d, want 1", got)
	}
	if got := m.Failures("p2"); got != 0 {
		t.Errorf("p2 failure count = %d, want 0", got)
	}
	if source != "p2" {
		t.Errorf("serving provider = %q, want p2", source)
	}
}

func TestFallbackHonorsRegistrationOrder(t *testing.T) {
	p1 := newFakeProvider("p1", models.MarketUS)
	p1.quote = &models.Quote{Symbol: "US:AAPL", Price: decimal.NewFromInt(100)}
	p2 := newFakeProvider("p2", models.MarketUS)
	p2.quote = &models.Quote{Symbol: "US:AAPL", Price: decimal.NewFromInt(999)}

	m := NewManager()
	m.Register(p1)
	m.Register(p2)

	q, source := m.GetQuote(context.Background(), aapl())
	if q == nil || !q.Price.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected first registered provider to win, got %+v", q)
	}
	if source != "p1" {
		t.Errorf("serving provider = %q, want p1", source)
	}
	if p2.calls["get_quote"] != 0 {
		t.Errorf("second provider was consulted %d times, want 0", p2.calls["get_quote"])
	}
}

func TestGetQuoteDegradesToNilWhenAllFail(t *testing.T) {
	p1 := newFakeProvider("p1", models.MarketUS)
	p1.quoteErr = errors.New("down")
	p2 := newFakeProvider("p2", models.MarketUS)
	p2.quoteErr = errors.New("also down")

	m := NewManager()
	m.Register(p1)
	m.Register(p2)

	if q, _ := m.GetQuote(context.Background(), aapl()); q != nil {
		t.Errorf("expected nil quote on total failure, got %+v", q)
	}
}

func TestGetBarsReturnsLastErrorOnExhaustion(t *testing.T) {
	firstErr := errors.New("first provider broke")
	lastErr := errors.New("last provider broke")

	p1 := newFakeProvider("p1", models.MarketUS)
	p1.barsErr = firstErr
	p2 := newFakeProvider("p2", models.MarketUS)
	p2.barsErr = lastErr

	m := NewManager()
	m.Register(p1)
	m.Register(p2)

	_, _, err := m.GetBars(context.Background(), aapl(), models.TimeFrameDaily, time.Time{}, time.Time{})
	if !errors.Is(err, lastErr) {
		t.Fatalf("GetBars error = %v, want last provider error", err)
	}
}

func TestGetBarsEmptyWithoutErrorIsNotAnError(t *testing.T) {
	p1 := newFakeProvider("p1", models.MarketUS)

	m := NewManager()
	m.Register(p1)

	bars, _, err := m.GetBars(context.Background(), aapl(), models.TimeFrameDaily, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 0 {
		t.Errorf("expected no bars, got %d", len(bars))
	}
}

func TestSearchSymbolDeduplicates(t *testing.T) {
	p1 := newFakeProvider("p1", models.MarketUS)
	p1.searchResults = []models.SymbolKey{aapl()}
	p2 := newFakeProvider("p2", models.MarketUS)
	p2.searchResults = []models.SymbolKey{
		aapl(),
		models.NewSymbolKey(models.MarketUS, "MSFT"),
	}

	m := NewManager()
	m.Register(p1)
	m.Register(p2)

	results := m.SearchSymbol(context.Background(), "a", models.MarketUS)
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 after dedupe: %v", len(results), results)
	}
}

func TestSearchSymbolSkipsErroringProvider(t *testing.T) {
	p1 := newFakeProvider("p1", models.MarketUS)
	p1.searchErr = errors.New("search broken")
	p2 := newFakeProvider("p2", models.MarketUS)
	p2.searchResults = []models.SymbolKey{aapl()}

	m := NewManager()
	m.Register(p1)
	m.Register(p2)

	results := m.SearchSymbol(context.Background(), "aapl", models.MarketUS)
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if m.Failures("p1") != 1 {
		t.Errorf("p1 failure count = %d, want 1", m.Failures("p1"))
	}
}

func TestFailoverEndToEnd(t *testing.T) {
	flaky := newFakeProvider("flaky", models.MarketUS)
	flaky.barsErr = errors.New("always down")
	steady := newFakeProvider("steady", models.MarketUS)
	steady.bars = fiveBars()

	m := NewManager()
	m.Register(flaky)
	m.Register(steady)

	bars, source, err := m.GetBars(context.Background(), aapl(), models.TimeFrameDaily,
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 5 {
		t.Fatalf("got %d bars, want 5", len(bars))
	}
	if source != "steady" {
		t.Errorf("serving provider = %q, want steady", source)
	}
	if m.Failures("flaky") != 1 {
		t.Errorf("flaky failure count = %d, want 1", m.Failures("flaky"))
	}
	if m.Failures("steady") != 0 {
		t.Errorf("steady failure count = %d, want 0", m.Failures("steady"))
	}
}

func TestProvidersOnlyServeDeclaredMarkets(t *testing.T) {
	us := newFakeProvider("us-only", models.MarketUS)
	us.quote = &models.Quote{Symbol: "US:AAPL", Price: decimal.NewFromInt(202)}

	m := NewManager()
	m.Register(us)

	hk := models.NewSymbolKey(models.MarketHK, "700")
	if q, _ := m.GetQuote(context.Background(), hk); q != nil {
		t.Errorf("US-only provider served an HK symbol: %+v", q)
	}
	if us.calls["get_quote"] != 0 {
		t.Errorf("US-only provider was consulted for HK, calls = %d", us.calls["get_quote"])
	}
}

package providers

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/dyike/DexterGo/config"
	"github.com/dyike/DexterGo/internal/models"
)

// googleNewsRSS mirrors the Google News RSS feed layout.
type googleNewsRSS struct {
	XMLName xml.Name          `xml:"rss"`
	Channel googleNewsChannel `xml:"channel"`
}

type googleNewsChannel struct {
	Title string           `xml:"title"`
	Items []googleNewsItem `xml:"item"`
}

type googleNewsItem struct {
	Title       string           `xml:"title"`
	Link        string           `xml:"link"`
	Description string           `xml:"description"`
	PubDate     string           `xml:"pubDate"`
	Source      googleNewsSource `xml:"source"`
}

type googleNewsSource struct {
	URL  string `xml:"url,attr"`
	Text string `xml:",chardata"`
}

// GoogleNewsProvider serves news and sentiment for every market through the
// Google News RSS feed. It carries no price data; quote and bar requests fall
// through to the market-native providers.
type GoogleNewsProvider struct {
	client *resty.Client
	cache  *CacheManager
}

func NewGoogleNewsProvider(cfg *config.Config) *GoogleNewsProvider {
	cacheDir := filepath.Join(cfg.DataCacheDir, "google_news")
	cache := NewCacheManager(cacheDir, 30*time.Minute, cfg.CacheEnabled)

	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")

	return &GoogleNewsProvider{client: client, cache: cache}
}

func (gp *GoogleNewsProvider) Name() string { return "google_news" }

func (gp *GoogleNewsProvider) SupportedMarkets() []models.MarketType {
	return models.AllMarkets()
}

func (gp *GoogleNewsProvider) Connect(ctx context.Context) error { return nil }
func (gp *GoogleNewsProvider) Disconnect() error                 { return nil }

func (gp *GoogleNewsProvider) GetNews(ctx context.Context, symbol models.SymbolKey, limit int) ([]*models.NewsArticle, error) {
	if limit <= 0 {
		limit = 10
	}

	cacheKey := map[string]any{"symbol": symbol.String(), "limit": limit}
	var cached []*models.NewsArticle
	if gp.cache.Get("google_news", "news", cacheKey, &cached) {
		return cached, nil
	}

	query := symbol.Code + " stock"
	feedURL := fmt.Sprintf("https://news.google.com/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en", url.QueryEscape(query))

	var articles []*models.NewsArticle
	err := WithRetry(ctx, DefaultRetryConfig(), func() error {
		resp, err := gp.client.R().SetContext(ctx).Get(feedURL)
		if err != nil {
			return fmt.Errorf("fetch google news for %s: %w", symbol, err)
		}
		if resp.StatusCode() != 200 {
			return fmt.Errorf("google news responded %d for %s", resp.StatusCode(), symbol)
		}

		var rss googleNewsRSS
		if err := xml.Unmarshal(resp.Body(), &rss); err != nil {
			return fmt.Errorf("parse google news feed: %w", err)
		}

		articles = articles[:0]
		for _, item := range rss.Channel.Items {
			if len(articles) >= limit {
				break
			}
			published, _ := time.Parse(time.RFC1123, item.PubDate)
			articles = append(articles, &models.NewsArticle{
				Title:       strings.TrimSpace(item.Title),
				Content:     stripHTML(item.Description),
				URL:         item.Link,
				Source:      item.Source.Text,
				PublishedAt: published,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	gp.cache.Set("google_news", "news", cacheKey, articles)
	return articles, nil
}

// GetSentiment scores recent headline tone. The read is coarse but gives the
// sentiment tool a usable signal for every market.
func (gp *GoogleNewsProvider) GetSentiment(ctx context.Context, symbol models.SymbolKey) (*models.SentimentSummary, error) {
	articles, err := gp.GetNews(ctx, symbol, 20)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, nil
	}

	score := 0.0
	sources := make([]string, 0, len(articles))
	for _, a := range articles {
		score += headlineTone(a.Title)
		sources = append(sources, a.URL)
	}
	score /= float64(len(articles))

	label := "neutral"
	switch {
	case score > 0.15:
		label = "bullish"
	case score < -0.15:
		label = "bearish"
	}

	return &models.SentimentSummary{
		Symbol:     symbol.String(),
		Score:      score,
		Label:      label,
		SampleSize: len(articles),
		Sources:    sources,
	}, nil
}

var (
	bullishWords = []string{"surge", "rally", "beat", "record", "upgrade", "soar", "gain", "growth", "strong", "buy"}
	bearishWords = []string{"plunge", "miss", "downgrade", "drop", "fall", "lawsuit", "recall", "weak", "loss", "sell"}
)

func headlineTone(title string) float64 {
	lower := strings.ToLower(title)
	tone := 0.0
	for _, w := range bullishWords {
		if strings.Contains(lower, w) {
			tone += 1
		}
	}
	for _, w := range bearishWords {
		if strings.Contains(lower, w) {
			tone -= 1
		}
	}
	if tone > 1 {
		tone = 1
	}
	if tone < -1 {
		tone = -1
	}
	return tone
}

// stripHTML extracts plain text from an RSS description fragment.
func stripHTML(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.TrimSpace(doc.Text())
}

func (gp *GoogleNewsProvider) GetQuote(ctx context.Context, symbol models.SymbolKey) (*models.Quote, error) {
	return nil, nil
}

func (gp *GoogleNewsProvider) GetBars(ctx context.Context, symbol models.SymbolKey, timeframe models.TimeFrame, start, end time.Time) ([]*models.Bar, error) {
	return nil, nil
}

func (gp *GoogleNewsProvider) GetBasicInfo(ctx context.Context, symbol models.SymbolKey) (*models.BasicInfo, error) {
	return nil, nil
}

func (gp *GoogleNewsProvider) SearchSymbol(ctx context.Context, query string) ([]models.SymbolKey, error) {
	return nil, nil
}

func (gp *GoogleNewsProvider) GetSymbolList(ctx context.Context, market models.MarketType) ([]models.SymbolKey, error) {
	return nil, nil
}

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a point-in-time price snapshot for one symbol.
type Quote struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	PrevClose decimal.Decimal `json:"prev_close"`
	Volume    int64           `json:"volume"`
	Quality   Quality         `json:"quality"`
	Timestamp time.Time       `json:"timestamp"`
}

// Bar is one OHLCV candle.
type Bar struct {
	Symbol   string          `json:"symbol"`
	Date     time.Time       `json:"date"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	AdjClose decimal.Decimal `json:"adj_close"`
	Volume   int64           `json:"volume"`
}

// BasicInfo is static descriptive data for one symbol.
type BasicInfo struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
	Currency string `json:"currency"`
	LotSize  int32  `json:"lot_size,omitempty"`
}

// NewsArticle is one news item related to a symbol or market.
type NewsArticle struct {
	Title       string    `json:"title"`
	Content     string    `json:"content,omitempty"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

// SentimentSummary aggregates tone across recent coverage of a symbol.
type SentimentSummary struct {
	Symbol     string   `json:"symbol"`
	Score      float64  `json:"score"` // -1 bearish .. +1 bullish
	Label      string   `json:"label"`
	SampleSize int      `json:"sample_size"`
	Sources    []string `json:"sources,omitempty"`
}

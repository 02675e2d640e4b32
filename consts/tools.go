package consts

const (
	// Research tool vocabulary. Every plan step must reference one of these.
	ToolMarketQuote     = "market_quote"
	ToolMarketBars      = "market_bars"
	ToolMarketNews      = "market_news"
	ToolMarketSentiment = "market_sentiment"
	ToolMarketInfo      = "market_info"
)

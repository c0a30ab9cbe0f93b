// Package tasks implements the analysis and production collaborators of
// the EV market pipeline.
//
// Every collaborator satisfies the task contract: read a state snapshot,
// return a partial update, never mutate the input. External providers
// (search, quotes) are pluggable functions; when a provider is absent or
// failing the task degrades to a built-in fallback dataset and records a
// warning, so missing credentials never abort the orchestrator.
package tasks

import "context"

// SearchResult is one hit from a web search provider.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// SearchProvider runs a web search. Implementations wrap whatever search
// API credentials are available in the environment.
type SearchProvider func(ctx context.Context, query string, maxResults int) ([]SearchResult, error)

// Quote is one ticker's pricing snapshot.
type Quote struct {
	Ticker    string  `json:"ticker"`
	Price     float64 `json:"price"`
	ChangePct float64 `json:"change_pct"`
	Volume    int64   `json:"volume"`
}

// QuoteProvider fetches a pricing snapshot for a ticker.
type QuoteProvider func(ctx context.Context, ticker string) (Quote, error)

const fallbackNote = "fallback data (no provider available)"

package tool

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SearchResult is one hit returned by a Searcher.
type SearchResult struct {
	Title   string
	Link    string
	Snippet string
}

// SearchResponse is the outcome of one web query.
type SearchResponse struct {
	Results      []SearchResult
	TotalResults string
	SearchTime   time.Duration
}

// Searcher performs a web query. The HTTP client behind it lives outside this module.
type Searcher interface {
	Search(ctx context.Context, query string) (*SearchResponse, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, query string) (*SearchResponse, error)

// Search calls f.
func (f SearcherFunc) Search(ctx context.Context, query string) (*SearchResponse, error) {
	return f(ctx, query)
}

// WebSearchName is the tool name used by the research specialist.
const WebSearchName = "web_search"

// Result markers let front ends detect and render search hits.
const (
	SearchResultsStart = "[[SEARCH_RESULTS_START]]"
	SearchResultsEnd   = "[[SEARCH_RESULTS_END]]"
	SearchResultOpen   = "[[SEARCH_RESULT]]"
	SearchResultClose  = "[[/SEARCH_RESULT]]"
)

const maxSearchResults = 5

type webSearchArgs struct {
	Query string `json:"query" description:"The search query"`
}

// NewWebSearchTool exposes searcher as the web_search tool. Search failures
// are reported in-band as the tool result text.
func NewWebSearchTool(searcher Searcher) *FunctionTool {
	return NewFunctionToolFromStruct(
		WebSearchName,
		"Search the web for current events, news or factual information.",
		webSearchArgs{},
		func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			query = strings.TrimSpace(query)
			if query == "" {
				return nil, NewToolError(WebSearchName, "query must not be empty", "VALIDATION_ERROR")
			}
			resp, err := searcher.Search(ctx, query)
			if err != nil {
				return fmt.Sprintf("Search error: %v", err), nil
			}
			return FormatSearchResults(query, resp), nil
		},
	)
}

// FormatSearchResults renders up to five results between marker lines.
func FormatSearchResults(query string, resp *SearchResponse) string {
	if resp == nil || len(resp.Results) == 0 {
		return "No results found for your query."
	}

	total := resp.TotalResults
	if total == "" {
		total = fmt.Sprint(len(resp.Results))
	}

	items := resp.Results
	if len(items) > maxSearchResults {
		items = items[:maxSearchResults]
	}
	blocks := make([]string, 0, len(items))
	for _, item := range items {
		blocks = append(blocks, fmt.Sprintf("%s\n- %s\n  URL: %s\n  Description: %s\n%s",
			SearchResultOpen,
			orDefault(item.Title, "No title"),
			orDefault(item.Link, "No link"),
			orDefault(item.Snippet, "No description"),
			SearchResultClose,
		))
	}

	var b strings.Builder
	b.WriteString(SearchResultsStart)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Based on my search for '%s' (found %s results in %.2f seconds), here's what I found:\n\n",
		query, total, resp.SearchTime.Seconds())
	b.WriteString("Here are the top search results:\n\n")
	b.WriteString(strings.Join(blocks, "\n\n"))
	b.WriteString("\n")
	b.WriteString(SearchResultsEnd)
	return b.String()
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

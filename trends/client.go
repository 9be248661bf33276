// Package trends fetches Google Trends daily trending searches.
package trends

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/rainmanjam/social-flood/transport"
)

const DefaultBaseURL = "https://trends.google.com/trends/api/dailytrends"

// xssiPrefix guards Trends JSON responses and must be stripped before
// decoding.
var xssiPrefix = []byte(")]}',")

// TrendingSearch is one trending topic with its top articles.
type TrendingSearch struct {
	Query    string            `json:"query"`
	Traffic  string            `json:"traffic,omitempty"`
	Articles []TrendingArticle `json:"articles,omitempty"`
}

// TrendingArticle is one article attached to a trending topic.
type TrendingArticle struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source,omitempty"`
}

type Client struct {
	http    *transport.Client
	baseURL string
}

type Option func(*Client)

// WithBaseURL overrides the upstream base URL, mainly for tests.
func WithBaseURL(raw string) Option {
	return func(c *Client) { c.baseURL = raw }
}

// New creates a trends client on the shared transport.
func New(t *transport.Client, opts ...Option) *Client {
	c := &Client{http: t, baseURL: DefaultBaseURL}
	for _, o := range opts {
		o(c)
	}
	return c
}

// dailyTrends mirrors the subset of the response we read.
type dailyTrends struct {
	Default struct {
		TrendingSearchesDays []struct {
			TrendingSearches []struct {
				Title struct {
					Query string `json:"query"`
				} `json:"title"`
				FormattedTraffic string `json:"formattedTraffic"`
				Articles         []struct {
					Title  string `json:"title"`
					URL    string `json:"url"`
					Source string `json:"source"`
				} `json:"articles"`
			} `json:"trendingSearches"`
		} `json:"trendingSearchesDays"`
	} `json:"default"`
}

// Trending returns today's trending searches for a geo like "US".
func (c *Client) Trending(ctx context.Context, geo, lang string) ([]TrendingSearch, error) {
	if geo == "" {
		geo = "US"
	}
	if lang == "" {
		lang = "en-US"
	}
	q := url.Values{
		"geo": {geo},
		"hl":  {lang},
		"tz":  {"0"},
	}

	resp, err := c.http.Get(ctx, c.baseURL, q, nil)
	if err != nil {
		return nil, fmt.Errorf("trends: fetch %s: %w", geo, err)
	}

	body := bytes.TrimPrefix(resp.Body, xssiPrefix)
	var dt dailyTrends
	if err := json.Unmarshal(bytes.TrimSpace(body), &dt); err != nil {
		return nil, fmt.Errorf("trends: parse response: %w", err)
	}

	var out []TrendingSearch
	for _, day := range dt.Default.TrendingSearchesDays {
		for _, ts := range day.TrendingSearches {
			s := TrendingSearch{Query: ts.Title.Query, Traffic: ts.FormattedTraffic}
			for _, a := range ts.Articles {
				s.Articles = append(s.Articles, TrendingArticle{Title: a.Title, URL: a.URL, Source: a.Source})
			}
			out = append(out, s)
		}
	}
	return out, nil
}

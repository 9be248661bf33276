// Package gnews fetches Google News RSS search results and decodes the
// redirect-wrapped article links they contain.
package gnews

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/rainmanjam/social-flood/fanout"
	"github.com/rainmanjam/social-flood/transport"
)

const DefaultBaseURL = "https://news.google.com/rss"

// Article is one news search result.
type Article struct {
	Title     string    `json:"title"`
	Link      string    `json:"link"`
	Source    string    `json:"source,omitempty"`
	Published time.Time `json:"published,omitempty"`
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

// New creates a news client on the shared transport.
func New(t *transport.Client, opts ...Option) *Client {
	c := &Client{http: t, baseURL: DefaultBaseURL}
	for _, o := range opts {
		o(c)
	}
	return c
}

// rss mirrors the subset of the feed we read.
type rss struct {
	Channel struct {
		Items []struct {
			Title   string `xml:"title"`
			Link    string `xml:"link"`
			PubDate string `xml:"pubDate"`
			Source  string `xml:"source"`
		} `xml:"item"`
	} `xml:"channel"`
}

// Search runs a news search. lang is a BCP-47 code like "en-US"; empty
// defaults to en-US.
func (c *Client) Search(ctx context.Context, query, lang string) ([]Article, error) {
	if lang == "" {
		lang = "en-US"
	}
	q := url.Values{
		"q":  {query},
		"hl": {lang},
	}

	resp, err := c.http.Get(ctx, c.baseURL+"/search", q, nil)
	if err != nil {
		return nil, fmt.Errorf("gnews: search %q: %w", query, err)
	}

	var feed rss
	if err := xml.Unmarshal(resp.Body, &feed); err != nil {
		return nil, fmt.Errorf("gnews: parse feed: %w", err)
	}

	articles := make([]Article, 0, len(feed.Channel.Items))
	for _, it := range feed.Channel.Items {
		a := Article{Title: it.Title, Link: it.Link, Source: it.Source}
		if t, err := time.Parse(time.RFC1123, it.PubDate); err == nil {
			a.Published = t
		}
		articles = append(articles, a)
	}
	return articles, nil
}

// DecodedURL is the outcome of decoding one redirect-wrapped link.
type DecodedURL struct {
	Source string `json:"source"`
	URL    string `json:"url,omitempty"`
	Error  string `json:"error,omitempty"`
}

// DecodeURLs resolves redirect-wrapped article links to their final
// destinations, at most maxParallel at a time. Output order matches the
// input and one bad link never fails the batch.
func (c *Client) DecodeURLs(ctx context.Context, urls []string, maxParallel int) []DecodedURL {
	tasks := make([]fanout.Task[string], len(urls))
	for i, u := range urls {
		u := u
		tasks[i] = func(ctx context.Context) (string, error) {
			resp, err := c.http.Get(ctx, u, nil, http.Header{"Accept": {"text/html"}})
			if err != nil {
				return "", err
			}
			return resp.FinalURL, nil
		}
	}

	results := fanout.RunAll(ctx, maxParallel, tasks)
	decoded := make([]DecodedURL, len(results))
	for i, r := range results {
		decoded[i] = DecodedURL{Source: urls[i], URL: r.Value}
		if r.Err != nil {
			decoded[i].URL = ""
			decoded[i].Error = r.Err.Error()
		}
	}
	return decoded
}

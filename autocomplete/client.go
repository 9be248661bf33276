// Package autocomplete fetches Google query suggestions and expands a
// keyword into its common variations.
package autocomplete

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/rainmanjam/social-flood/fanout"
	"github.com/rainmanjam/social-flood/transport"
)

const DefaultBaseURL = "https://suggestqueries.google.com/complete/search"

// variationPrefixes are prepended to the keyword when expanding it; the
// lowercase alphabet is appended as suffixes.
var variationPrefixes = []string{"how", "what", "why", "when", "where", "is", "can", "best"}

type Client struct {
	http    *transport.Client
	baseURL string
}

type Option func(*Client)

// WithBaseURL overrides the upstream base URL, mainly for tests.
func WithBaseURL(raw string) Option {
	return func(c *Client) { c.baseURL = raw }
}

// New creates an autocomplete client on the shared transport.
func New(t *transport.Client, opts ...Option) *Client {
	c := &Client{http: t, baseURL: DefaultBaseURL}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Suggest returns the suggestions for one query. lang is a two-letter
// code like "en"; empty defaults to en.
func (c *Client) Suggest(ctx context.Context, query, lang string) ([]string, error) {
	if lang == "" {
		lang = "en"
	}
	q := url.Values{
		"client": {"firefox"},
		"q":      {query},
		"hl":     {lang},
	}

	resp, err := c.http.Get(ctx, c.baseURL, q, nil)
	if err != nil {
		return nil, fmt.Errorf("autocomplete: suggest %q: %w", query, err)
	}

	// Response shape: ["query", ["suggestion", ...], ...]
	var raw []json.RawMessage
	if err := json.Unmarshal(resp.Body, &raw); err != nil {
		return nil, fmt.Errorf("autocomplete: parse response: %w", err)
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("autocomplete: unexpected response shape")
	}
	var suggestions []string
	if err := json.Unmarshal(raw[1], &suggestions); err != nil {
		return nil, fmt.Errorf("autocomplete: parse suggestions: %w", err)
	}
	return suggestions, nil
}

// Variations expands a keyword with question prefixes and alphabet
// suffixes, fetching suggestions for each variation at most maxParallel
// at a time. The result is the deduplicated union, sorted. Individual
// variation failures are skipped rather than failing the batch.
func (c *Client) Variations(ctx context.Context, keyword, lang string, maxParallel int) ([]string, error) {
	queries := make([]string, 0, len(variationPrefixes)+26)
	for _, p := range variationPrefixes {
		queries = append(queries, p+" "+keyword)
	}
	for ch := 'a'; ch <= 'z'; ch++ {
		queries = append(queries, keyword+" "+string(ch))
	}

	tasks := make([]fanout.Task[[]string], len(queries))
	for i, q := range queries {
		q := q
		tasks[i] = func(ctx context.Context) ([]string, error) {
			return c.Suggest(ctx, q, lang)
		}
	}
	results := fanout.RunAll(ctx, maxParallel, tasks)

	seen := make(map[string]struct{})
	var out []string
	failures := 0
	for _, r := range results {
		if r.Err != nil {
			failures++
			continue
		}
		for _, s := range r.Value {
			key := strings.ToLower(s)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, s)
		}
	}
	if failures == len(results) {
		return nil, fmt.Errorf("autocomplete: all %d variation fetches failed", failures)
	}

	sort.Strings(out)
	return out, nil
}

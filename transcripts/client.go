// Package transcripts fetches YouTube video captions through the
// timedtext endpoint.
package transcripts

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/rainmanjam/social-flood/transport"
)

const DefaultBaseURL = "https://www.youtube.com/api/timedtext"

// Segment is one caption line with its timing in seconds.
type Segment struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
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

// New creates a transcripts client on the shared transport.
func New(t *transport.Client, opts ...Option) *Client {
	c := &Client{http: t, baseURL: DefaultBaseURL}
	for _, o := range opts {
		o(c)
	}
	return c
}

type timedtext struct {
	Texts []struct {
		Start float64 `xml:"start,attr"`
		Dur   float64 `xml:"dur,attr"`
		Body  string  `xml:",chardata"`
	} `xml:"text"`
}

// Fetch returns the caption segments for a video. lang is a two-letter
// code like "en"; empty defaults to en. Videos without captions yield
// an error rather than an empty transcript.
func (c *Client) Fetch(ctx context.Context, videoID, lang string) ([]Segment, error) {
	if lang == "" {
		lang = "en"
	}
	q := url.Values{
		"v":    {videoID},
		"lang": {lang},
	}

	resp, err := c.http.Get(ctx, c.baseURL, q, nil)
	if err != nil {
		return nil, fmt.Errorf("transcripts: fetch %s: %w", videoID, err)
	}
	if len(resp.Body) == 0 {
		return nil, fmt.Errorf("transcripts: no %s captions for %s", lang, videoID)
	}

	var tt timedtext
	if err := xml.Unmarshal(resp.Body, &tt); err != nil {
		return nil, fmt.Errorf("transcripts: parse captions: %w", err)
	}

	segments := make([]Segment, 0, len(tt.Texts))
	for _, t := range tt.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Body))
		if text == "" {
			continue
		}
		segments = append(segments, Segment{Start: t.Start, Duration: t.Dur, Text: text})
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("transcripts: no %s captions for %s", lang, videoID)
	}
	return segments, nil
}

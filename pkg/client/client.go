// Package client is the Go client for the AlterLab web scraping API.
//
//	c, err := client.New(client.WithToken("sk_live_..."))
//
//	result, err := c.Scrapes.New(ctx, client.ScrapeRequest{
//		URL: "https://example.com",
//	})
//
//	fmt.Println(result.Text())
package client

import (
	"net/http"
	"slices"

	"github.com/alterlab/alterlab-go/pkg/otel"
)

const Version = "2.0.0"

type Client struct {
	Scrapes ScrapeService
	Jobs    JobService
	Batches BatchService

	Estimates EstimateService
	Usage     UsageService

	client *http.Client
}

func New(opts ...RequestOption) (*Client, error) {
	cfg := newRequestConfig(opts...)

	if cfg.Token == "" {
		return nil, ErrMissingAPIKey
	}

	hc := &http.Client{
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
	}

	if cfg.Client != nil {
		c := *cfg.Client
		hc = &c

		if hc.Transport == nil {
			hc.Transport = http.DefaultTransport
		}
	}

	if cfg.Telemetry {
		hc.Transport = otel.Transport(hc.Transport)
	}

	opts = slices.Concat(opts, []RequestOption{
		WithToken(cfg.Token),
		WithURL(cfg.URL),
		WithClient(hc),
	})

	return &Client{
		Scrapes: NewScrapeService(opts...),
		Jobs:    NewJobService(opts...),
		Batches: NewBatchService(opts...),

		Estimates: NewEstimateService(opts...),
		Usage:     NewUsageService(opts...),

		client: hc,
	}, nil
}

func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func Ptr[T any](v T) *T {
	return &v
}

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"
)

type BatchService struct {
	Options []RequestOption
}

func NewBatchService(opts ...RequestOption) BatchService {
	return BatchService{
		Options: opts,
	}
}

type BatchRequest struct {
	Requests []ScrapeRequest

	// WebhookURL receives a notification as each job finishes.
	WebhookURL string
}

type batchPayload struct {
	Requests   []*scrapePayload `json:"requests"`
	WebhookURL string           `json:"webhook_url,omitempty"`
}

type Batch struct {
	ID            string   `json:"batch_id"`
	TotalRequests int      `json:"total_requests"`
	JobIDs        []string `json:"job_ids"`

	jobs JobService
}

func (r *BatchService) New(ctx context.Context, input BatchRequest, opts ...RequestOption) (*Batch, error) {
	opts = slices.Concat(r.Options, opts)

	cfg := newRequestConfig(opts...)
	t := newTransport(cfg)

	if len(input.Requests) == 0 {
		return nil, invalidRequest("batch requires at least one request")
	}

	if input.WebhookURL != "" {
		if err := validateURL("webhook_url", input.WebhookURL); err != nil {
			return nil, err
		}
	}

	payload := batchPayload{
		WebhookURL: input.WebhookURL,
	}

	for i, req := range input.Requests {
		// jobs in a batch always run asynchronously
		req.Async = true

		p, err := req.payload(cfg.Timeout)

		if err != nil {
			return nil, fmt.Errorf("request %d: %w", i, err)
		}

		payload.Requests = append(payload.Requests, p)
	}

	body, _, err := t.Post(ctx, "/api/v1/batch", payload)

	if err != nil {
		return nil, err
	}

	batch := Batch{
		TotalRequests: len(input.Requests),

		jobs: NewJobService(opts...),
	}

	if err := json.Unmarshal(body, &batch); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}

	return &batch, nil
}

// Wait polls every job of the batch with at most limit polls in flight.
// Results are ordered like JobIDs. A Batch returned by BatchService.New keeps
// the client's options. A Batch decoded elsewhere needs them passed in opts.
func (b *Batch) Wait(ctx context.Context, options WaitOptions, limit int, opts ...RequestOption) ([]*ScrapeResult, error) {
	results := make([]*ScrapeResult, len(b.JobIDs))

	g, ctx := errgroup.WithContext(ctx)

	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, id := range b.JobIDs {
		g.Go(func() error {
			result, err := b.jobs.Wait(ctx, id, options, opts...)

			if err != nil {
				return fmt.Errorf("job %s: %w", id, err)
			}

			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

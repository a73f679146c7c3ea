package client

import (
	"context"
	"fmt"
	"net/http"
	"slices"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

type ScrapeService struct {
	Options []RequestOption
}

func NewScrapeService(opts ...RequestOption) ScrapeService {
	return ScrapeService{
		Options: opts,
	}
}

// New submits a scrape. A 202 response is polled to completion unless the
// request is Async, in which case the returned result only carries JobID.
func (r *ScrapeService) New(ctx context.Context, input ScrapeRequest, opts ...RequestOption) (*ScrapeResult, error) {
	opts = slices.Concat(r.Options, opts)

	cfg := newRequestConfig(opts...)
	t := newTransport(cfg)

	payload, err := input.payload(cfg.Timeout)

	if err != nil {
		return nil, err
	}

	body, status, err := t.Post(ctx, "/api/v1/scrape", payload)

	if err != nil {
		return nil, err
	}

	if status == http.StatusAccepted {
		if id := gjson.GetBytes(body, "job_id"); id.Exists() {
			if input.Async {
				return pendingResult(input.URL, id.String()), nil
			}

			jobs := NewJobService(opts...)

			result, err := jobs.Wait(ctx, id.String(), input.Poll)

			if err != nil {
				return nil, err
			}

			t.metrics.RecordCredits(ctx, string(result.TierUsed()), result.CreditsUsed())
			return result, nil
		}
	}

	result, err := ParseScrapeResult(body)

	if err != nil {
		return nil, err
	}

	t.metrics.RecordCredits(ctx, string(result.TierUsed()), result.CreditsUsed())

	return result, nil
}

// Submit queues the scrape and returns its job id for Jobs.Get or Jobs.Wait.
// It returns an empty id when the API answered synchronously.
func (r *ScrapeService) Submit(ctx context.Context, input ScrapeRequest, opts ...RequestOption) (string, error) {
	input.Async = true

	result, err := r.New(ctx, input, opts...)

	if err != nil {
		return "", err
	}

	return result.JobID, nil
}

// HTML scrapes without JavaScript rendering.
func (r *ScrapeService) HTML(ctx context.Context, input ScrapeRequest, opts ...RequestOption) (*ScrapeResult, error) {
	input.Mode = ModeHTML
	return r.New(ctx, input, opts...)
}

// JS renders the page in a headless browser. A Screenshot request is moved
// into the advanced options the renderer reads.
func (r *ScrapeService) JS(ctx context.Context, input ScrapeRequest, opts ...RequestOption) (*ScrapeResult, error) {
	advanced := AdvancedOptions{}

	if input.Advanced != nil {
		advanced = *input.Advanced
	}

	advanced.RenderJS = true

	if input.Screenshot {
		advanced.Screenshot = true
		input.Screenshot = false
	}

	input.Mode = ModeJS
	input.Advanced = &advanced

	return r.New(ctx, input, opts...)
}

func (r *ScrapeService) PDF(ctx context.Context, input ScrapeRequest, opts ...RequestOption) (*ScrapeResult, error) {
	input.Mode = ModePDF
	return r.New(ctx, input, opts...)
}

func (r *ScrapeService) OCR(ctx context.Context, input ScrapeRequest, opts ...RequestOption) (*ScrapeResult, error) {
	input.Mode = ModeOCR
	return r.New(ctx, input, opts...)
}

// NewMany runs the scrapes concurrently with at most limit in flight. Results
// keep the order of inputs. The first error cancels the remaining scrapes.
func (r *ScrapeService) NewMany(ctx context.Context, inputs []ScrapeRequest, limit int, opts ...RequestOption) ([]*ScrapeResult, error) {
	results := make([]*ScrapeResult, len(inputs))

	g, ctx := errgroup.WithContext(ctx)

	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, input := range inputs {
		g.Go(func() error {
			result, err := r.New(ctx, input, opts...)

			if err != nil {
				return fmt.Errorf("scrape %s: %w", input.URL, err)
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

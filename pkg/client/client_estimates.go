package client

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

type EstimateService struct {
	Options []RequestOption
}

func NewEstimateService(opts ...RequestOption) EstimateService {
	return EstimateService{
		Options: opts,
	}
}

// New asks the API which tier a scrape would likely need. It costs no credits.
func (r *EstimateService) New(ctx context.Context, input EstimateRequest, opts ...RequestOption) (*CostEstimate, error) {
	cfg := newRequestConfig(slices.Concat(r.Options, opts)...)
	t := newTransport(cfg)

	payload, err := input.payload()

	if err != nil {
		return nil, err
	}

	body, _, err := t.Post(ctx, "/api/v1/scrape/estimate", payload)

	if err != nil {
		return nil, err
	}

	result := CostEstimate{
		URL: input.URL,

		EstimatedTier:      TierHTTP,
		EstimatedCredits:   2,
		Confidence:         ConfidenceMedium,
		MaxPossibleCredits: 20,
	}

	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode estimate: %w", err)
	}

	return &result, nil
}

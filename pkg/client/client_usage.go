package client

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

type UsageService struct {
	Options []RequestOption
}

func NewUsageService(opts ...RequestOption) UsageService {
	return UsageService{
		Options: opts,
	}
}

func (r *UsageService) Get(ctx context.Context, opts ...RequestOption) (*UsageStats, error) {
	cfg := newRequestConfig(slices.Concat(r.Options, opts)...)
	t := newTransport(cfg)

	body, _, err := t.Get(ctx, "/api/v1/usage")

	if err != nil {
		return nil, err
	}

	var result UsageStats

	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode usage: %w", err)
	}

	return &result, nil
}

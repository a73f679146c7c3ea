package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"
)

const (
	DefaultPollInterval    = 500 * time.Millisecond
	DefaultPollTimeout     = 300 * time.Second
	DefaultMaxPollInterval = 10 * time.Second
)

type WaitOptions struct {
	Interval time.Duration
	Timeout  time.Duration

	// Multiplier grows the interval between polls. 1 keeps it fixed.
	Multiplier  float64
	MaxInterval time.Duration
}

func (o WaitOptions) withDefaults() WaitOptions {
	if o.Interval <= 0 {
		o.Interval = DefaultPollInterval
	}

	if o.Timeout <= 0 {
		o.Timeout = DefaultPollTimeout
	}

	if o.Multiplier < 1 {
		o.Multiplier = 1
	}

	if o.MaxInterval <= 0 {
		o.MaxInterval = DefaultMaxPollInterval
	}

	o.MaxInterval = max(o.MaxInterval, o.Interval)

	return o
}

func newPollBackOff(options WaitOptions) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     options.Interval,
		RandomizationFactor: 0,
		Multiplier:          options.Multiplier,
		MaxInterval:         options.MaxInterval,
	}

	b.Reset()
	return b
}

type JobService struct {
	Options []RequestOption
}

func NewJobService(opts ...RequestOption) JobService {
	return JobService{
		Options: opts,
	}
}

func (r *JobService) Get(ctx context.Context, id string, opts ...RequestOption) (*JobStatus, error) {
	if id == "" {
		return nil, invalidRequest("job id is required")
	}

	cfg := newRequestConfig(slices.Concat(r.Options, opts)...)
	t := newTransport(cfg)

	body, _, err := t.Get(ctx, "/api/v1/jobs/"+url.PathEscape(id))

	if err != nil {
		return nil, err
	}

	var raw struct {
		JobID  string          `json:"job_id"`
		Status string          `json:"status"`
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}

	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}

	job := &JobStatus{
		JobID:  first(raw.JobID, id),
		Status: normalizeJobState(raw.Status),
		Error:  raw.Error,
	}

	if job.Status == JobSucceeded && hasResult(raw.Result) {
		result, err := ParseScrapeResult(raw.Result)

		if err != nil {
			return nil, err
		}

		job.Result = result
	}

	return job, nil
}

// hasResult reports whether data is a non-empty JSON object.
func hasResult(data json.RawMessage) bool {
	v := gjson.ParseBytes(data)
	return v.IsObject() && len(v.Map()) > 0
}

// Wait polls the job until it succeeds, fails, or the timeout elapses.
func (r *JobService) Wait(ctx context.Context, id string, options WaitOptions, opts ...RequestOption) (*ScrapeResult, error) {
	options = options.withDefaults()

	cfg := newRequestConfig(slices.Concat(r.Options, opts)...)

	interval := newPollBackOff(options)

	deadline := time.Now().Add(options.Timeout)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for polls := 1; ; polls++ {
		select {
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		case <-timer.C:
		}

		if time.Now().After(deadline) {
			return nil, &TimeoutError{JobID: id, Timeout: options.Timeout}
		}

		job, err := r.Get(ctx, id, opts...)

		if err != nil {
			return nil, err
		}

		cfg.Logger.DebugContext(ctx, "alterlab.job.poll",
			"job_id", id,
			"status", job.Status,
			"poll", polls,
		)

		switch job.Status {
		case JobSucceeded:
			if job.Result == nil {
				return nil, &ScrapeError{
					StatusCode: 200,
					Message:    "job completed without a result",
				}
			}

			job.Result.JobID = first(job.Result.JobID, id)
			return job.Result, nil

		case JobFailed:
			return nil, &ScrapeError{
				StatusCode: 422,
				Message:    first(job.Error, "job failed"),
				Code:       "JOB_FAILED",
			}
		}

		timer.Reset(interval.NextBackOff())
	}
}

package webhook

import (
	"encoding/json"
	"errors"

	"github.com/alterlab/alterlab-go/pkg/client"
)

type Event struct {
	Type string `json:"event"`

	BatchID string `json:"batch_id,omitempty"`
	JobID   string `json:"job_id"`

	Status client.JobState `json:"status"`
	Error  string          `json:"error,omitempty"`

	Result json.RawMessage `json:"result,omitempty"`
}

func (e *Event) Succeeded() bool {
	return e.Status == client.JobSucceeded
}

// ScrapeResult decodes the attached result of a finished job.
func (e *Event) ScrapeResult() (*client.ScrapeResult, error) {
	if len(e.Result) == 0 || string(e.Result) == "null" {
		return nil, errors.New("event has no result")
	}

	result, err := client.ParseScrapeResult(e.Result)

	if err != nil {
		return nil, err
	}

	if result.JobID == "" {
		result.JobID = e.JobID
	}

	return result, nil
}

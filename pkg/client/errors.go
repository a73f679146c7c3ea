package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

var (
	ErrMissingAPIKey  = errors.New("alterlab: api key required, pass WithToken or set ALTERLAB_API_KEY")
	ErrInvalidRequest = errors.New("alterlab: invalid request")

	ErrAuthentication      = errors.New("alterlab: authentication failed")
	ErrInsufficientCredits = errors.New("alterlab: insufficient credits")
	ErrValidation          = errors.New("alterlab: request validation failed")
	ErrRateLimited         = errors.New("alterlab: rate limit exceeded")

	ErrScrapeFailed = errors.New("alterlab: scrape failed")
	ErrTimeout      = errors.New("alterlab: timeout")
)

// APIError is returned for any response with a status code of 400 or above.
type APIError struct {
	StatusCode int
	Message    string

	Header http.Header
	Body   []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("alterlab: [%d] %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return target == ErrAuthentication
	case http.StatusPaymentRequired:
		return target == ErrInsufficientCredits
	case http.StatusUnprocessableEntity:
		return target == ErrValidation
	case http.StatusTooManyRequests:
		return target == ErrRateLimited
	}

	return false
}

type RateLimitError struct {
	APIError

	// RetryAfter is zero when the server did not send a Retry-After header.
	RetryAfter time.Duration
}

func (e *RateLimitError) Unwrap() error {
	return &e.APIError
}

// ScrapeError reports a scrape job that failed or finished without a result.
type ScrapeError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *ScrapeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("alterlab: [%d] %s (%s)", e.StatusCode, e.Message, e.Code)
	}

	return fmt.Sprintf("alterlab: [%d] %s", e.StatusCode, e.Message)
}

func (e *ScrapeError) Is(target error) bool {
	return target == ErrScrapeFailed
}

type TimeoutError struct {
	JobID   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("alterlab: job %s did not complete within %s", e.JobID, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "alterlab: network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Is(target error) bool {
	if target != ErrTimeout {
		return false
	}

	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

func invalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

func newAPIError(status int, header http.Header, body []byte) error {
	err := APIError{
		StatusCode: status,
		Message:    errorDetail(body),

		Header: header,
		Body:   body,
	}

	if status == http.StatusTooManyRequests {
		after, _ := parseRetryAfter(header.Get("Retry-After"))

		return &RateLimitError{
			APIError:   err,
			RetryAfter: after,
		}
	}

	return &err
}

func errorDetail(body []byte) string {
	if gjson.ValidBytes(body) {
		if detail := gjson.GetBytes(body, "detail"); detail.Exists() {
			if detail.Type == gjson.String {
				return detail.String()
			}

			return detail.Raw
		}
	}

	return strings.TrimSpace(string(body))
}

func parseRetryAfter(val string) (time.Duration, bool) {
	val = strings.TrimSpace(val)

	if val == "" {
		return 0, false
	}

	if seconds, err := strconv.ParseFloat(val, 64); err == nil {
		if seconds < 0 {
			seconds = 0
		}

		return time.Duration(seconds * float64(time.Second)), true
	}

	if at, err := http.ParseTime(val); err == nil {
		return max(time.Until(at), 0), true
	}

	return 0, false
}

package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"
	"github.com/yuin/goldmark"
)

type Mode string

const (
	ModeAuto Mode = "auto"
	ModeHTML Mode = "html"
	ModeJS   Mode = "js"
	ModePDF  Mode = "pdf"
	ModeOCR  Mode = "ocr"
)

type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
	FormatMarkdown Format = "markdown"
)

type ExtractionProfile string

const (
	ProfileAuto       ExtractionProfile = "auto"
	ProfileProduct    ExtractionProfile = "product"
	ProfileArticle    ExtractionProfile = "article"
	ProfileJobPosting ExtractionProfile = "job_posting"
	ProfileFAQ        ExtractionProfile = "faq"
	ProfileRecipe     ExtractionProfile = "recipe"
	ProfileEvent      ExtractionProfile = "event"
)

type WaitCondition string

const (
	WaitDOMContentLoaded WaitCondition = "domcontentloaded"
	WaitNetworkIdle      WaitCondition = "networkidle"
	WaitLoad             WaitCondition = "load"
)

type PDFFormat string

const (
	PDFText     PDFFormat = "text"
	PDFMarkdown PDFFormat = "markdown"
)

// Tier is the escalation level the API used to fetch a page, "1" (curl) to "5" (captcha).
type Tier string

const (
	TierCurl    Tier = "1"
	TierHTTP    Tier = "2"
	TierStealth Tier = "3"
	TierBrowser Tier = "4"
	TierCaptcha Tier = "5"
)

var tierPrices = map[Tier]float64{
	TierCurl:    0.0002,
	TierHTTP:    0.0003,
	TierStealth: 0.0005,
	TierBrowser: 0.001,
	TierCaptcha: 0.02,
}

// Price returns the pay-as-you-go dollar price of one request at this tier.
func (t Tier) Price() float64 {
	if p, ok := tierPrices[t]; ok {
		return p
	}

	return tierPrices[TierHTTP]
}

type EscalationResult string

const (
	EscalationSuccess EscalationResult = "success"
	EscalationFailed  EscalationResult = "failed"
	EscalationSkipped EscalationResult = "skipped"
)

type TierEscalation struct {
	Tier    Tier             `json:"tier"`
	Result  EscalationResult `json:"result"`
	Credits int              `json:"credits"`

	DurationMS *int   `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (e *TierEscalation) UnmarshalJSON(data []byte) error {
	type escalation TierEscalation

	v := escalation{
		Tier:   TierCurl,
		Result: EscalationSuccess,
	}

	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	*e = TierEscalation(v)
	return nil
}

type BillingDetails struct {
	TotalCredits int              `json:"total_credits"`
	TierUsed     Tier             `json:"tier_used"`
	Escalations  []TierEscalation `json:"escalations,omitempty"`

	Savings                int    `json:"savings"`
	OptimizationSuggestion string `json:"optimization_suggestion,omitempty"`

	BYOPApplied         bool     `json:"byop_applied"`
	BYOPDiscountPercent *float64 `json:"byop_discount_percent,omitempty"`

	OriginalCostMicrocents *int64 `json:"original_cost_microcents,omitempty"`
	FinalCostMicrocents    *int64 `json:"final_cost_microcents,omitempty"`
}

func (b *BillingDetails) UnmarshalJSON(data []byte) error {
	type billing BillingDetails

	v := billing{
		TierUsed: TierCurl,
	}

	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	*b = BillingDetails(v)
	return nil
}

// CostDollars prefers the billed microcents and falls back to the tier price.
func (b *BillingDetails) CostDollars() float64 {
	if b.FinalCostMicrocents != nil {
		return float64(*b.FinalCostMicrocents) / 1_000_000
	}

	return b.TierUsed.Price()
}

type ScrapeResult struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`

	// Content is either a JSON string or an object keyed by format.
	Content json.RawMessage `json:"content,omitempty"`

	Title       string `json:"title,omitempty"`
	Author      string `json:"author,omitempty"`
	PublishedAt string `json:"published_at,omitempty"`

	Metadata map[string]any    `json:"metadata,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`

	Cached    bool   `json:"cached"`
	CachedAt  string `json:"cached_at,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`

	ResponseTimeMS int `json:"response_time_ms"`
	SizeBytes      int `json:"size_bytes"`

	RawHTML       string `json:"raw_html,omitempty"`
	ScreenshotURL string `json:"screenshot_url,omitempty"`
	PDFURL        string `json:"pdf_url,omitempty"`

	OCRResults      []map[string]any `json:"ocr_results,omitempty"`
	ProxyUsed       map[string]any   `json:"proxy_used,omitempty"`
	FilteredContent map[string]any   `json:"filtered_content,omitempty"`

	StructuredContent json.RawMessage `json:"structured_content,omitempty"`

	Billing *BillingDetails `json:"billing,omitempty"`

	ExtractionMethod string         `json:"extraction_method"`
	MethodDetails    map[string]any `json:"method_details,omitempty"`

	// JobID is set when the request was submitted without waiting for the result.
	JobID string `json:"job_id,omitempty"`
}

func ParseScrapeResult(data []byte) (*ScrapeResult, error) {
	result := ScrapeResult{
		StatusCode:       200,
		ExtractionMethod: "algorithmic",

		Billing: &BillingDetails{
			TierUsed: TierCurl,
		},
	}

	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode scrape result: %w", err)
	}

	return &result, nil
}

func pendingResult(url, jobID string) *ScrapeResult {
	content, _ := json.Marshal(map[string]string{
		"job_id": jobID,
	})

	return &ScrapeResult{
		URL:        url,
		StatusCode: 202,

		Content: content,

		Metadata: map[string]any{
			"job_id": jobID,
		},

		ExtractionMethod: "algorithmic",

		JobID: jobID,
	}
}

func (r *ScrapeResult) content() gjson.Result {
	return gjson.ParseBytes(r.Content)
}

func (r *ScrapeResult) Text() string {
	c := r.content()

	if c.IsObject() {
		return c.Get("text").String()
	}

	return c.String()
}

func (r *ScrapeResult) HTML() string {
	c := r.content()

	if c.IsObject() {
		return c.Get("html").String()
	}

	return c.String()
}

func (r *ScrapeResult) Markdown() string {
	c := r.content()

	if c.IsObject() {
		return c.Get("markdown").String()
	}

	return ""
}

// MarkdownHTML renders the markdown content to HTML.
func (r *ScrapeResult) MarkdownHTML() (string, error) {
	var buf bytes.Buffer

	if err := goldmark.Convert([]byte(r.Markdown()), &buf); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// Document parses the raw HTML, or the html content when no raw HTML was
// requested, for CSS selector queries.
func (r *ScrapeResult) Document() (*goquery.Document, error) {
	html := r.RawHTML

	if html == "" {
		html = r.HTML()
	}

	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (r *ScrapeResult) JSON() map[string]any {
	c := r.content()

	if c.IsObject() {
		if m, ok := c.Get("json").Value().(map[string]any); ok {
			return m
		}
	}

	return map[string]any{}
}

// ExtractedJSON returns the structured extraction output: structured_content
// when present, otherwise the json entry of the content.
func (r *ScrapeResult) ExtractedJSON() json.RawMessage {
	if len(r.StructuredContent) > 0 && string(r.StructuredContent) != "null" {
		return r.StructuredContent
	}

	c := r.content()

	if c.IsObject() {
		if v := c.Get("json"); v.Exists() {
			return json.RawMessage(v.Raw)
		}
	}

	return nil
}

// DecodeExtraction unmarshals ExtractedJSON into v.
func (r *ScrapeResult) DecodeExtraction(v any) error {
	data := r.ExtractedJSON()

	if data == nil {
		return fmt.Errorf("%w: result has no structured content", ErrScrapeFailed)
	}

	return json.Unmarshal(data, v)
}

func (r *ScrapeResult) CreditsUsed() int {
	if r.Billing == nil {
		return 0
	}

	return r.Billing.TotalCredits
}

func (r *ScrapeResult) TierUsed() Tier {
	if r.Billing == nil || r.Billing.TierUsed == "" {
		return TierCurl
	}

	return r.Billing.TierUsed
}

type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

type CostEstimate struct {
	URL string `json:"url"`

	EstimatedTier      Tier       `json:"estimated_tier"`
	EstimatedCredits   int        `json:"estimated_credits"`
	Confidence         Confidence `json:"confidence"`
	MaxPossibleCredits int        `json:"max_possible_credits"`

	Reasoning string `json:"reasoning"`
}

func (e *CostEstimate) EstimatedCostDollars() float64 {
	return e.EstimatedTier.Price()
}

type UsageStats struct {
	CreditsAvailable int64 `json:"credits_available"`
	CreditsUsedMonth int64 `json:"credits_used_month"`
	CreditsLimit     int64 `json:"credits_limit"`

	RequestsCount int64 `json:"requests_count,omitempty"`

	Plan string `json:"plan"`

	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
}

func (u *UsageStats) UnmarshalJSON(data []byte) error {
	var v struct {
		CreditsAvailable int64  `json:"credits_available"`
		CreditsUsedMonth *int64 `json:"credits_used_month"`
		CreditsUsed      *int64 `json:"credits_used"`
		CreditsLimit     int64  `json:"credits_limit"`
		RequestsCount    int64  `json:"requests_count"`

		Plan             string `json:"plan"`
		SubscriptionTier string `json:"subscription_tier"`

		PeriodStart        string `json:"period_start"`
		PeriodEnd          string `json:"period_end"`
		BillingPeriodStart string `json:"billing_period_start"`
		BillingPeriodEnd   string `json:"billing_period_end"`
	}

	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	*u = UsageStats{
		CreditsAvailable: v.CreditsAvailable,
		CreditsLimit:     v.CreditsLimit,
		RequestsCount:    v.RequestsCount,

		Plan: first(v.Plan, v.SubscriptionTier),

		PeriodStart: first(v.PeriodStart, v.BillingPeriodStart),
		PeriodEnd:   first(v.PeriodEnd, v.BillingPeriodEnd),
	}

	switch {
	case v.CreditsUsedMonth != nil:
		u.CreditsUsedMonth = *v.CreditsUsedMonth
	case v.CreditsUsed != nil:
		u.CreditsUsedMonth = *v.CreditsUsed
	}

	return nil
}

// BalanceDollars converts the available balance from microcents to dollars.
func (u *UsageStats) BalanceDollars() float64 {
	return float64(u.CreditsAvailable) / 1_000_000
}

type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
)

func normalizeJobState(val string) JobState {
	switch val {
	case "":
		return JobPending
	case "completed":
		return JobSucceeded
	}

	return JobState(val)
}

type JobStatus struct {
	JobID  string   `json:"job_id"`
	Status JobState `json:"status"`

	Result *ScrapeResult `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}

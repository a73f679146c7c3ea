package client

import (
	"encoding/json"
	"math"
	"net/url"
	"slices"
	"time"

	"github.com/tidwall/gjson"
)

type AdvancedOptions struct {
	RenderJS    bool
	Screenshot  bool
	Markdown    bool
	GeneratePDF bool
	OCR         bool

	UseProxy bool

	// UseOwnProxy routes through the account's BYOP integration.
	UseOwnProxy    bool
	UseSystemProxy bool

	ProxyIntegrationID string
	ProxyCountry       string

	// WaitCondition defaults to networkidle.
	WaitCondition WaitCondition

	// RemoveCookieBanners defaults to true.
	RemoveCookieBanners *bool
}

func (o *AdvancedOptions) Validate() error {
	if o.Screenshot && !o.RenderJS {
		return invalidRequest("screenshot requires render_js")
	}

	if o.GeneratePDF && !o.RenderJS {
		return invalidRequest("generate_pdf requires render_js")
	}

	if o.WaitCondition != "" && !validWaitCondition(o.WaitCondition) {
		return invalidRequest("wait_condition must be 'domcontentloaded', 'networkidle', or 'load'")
	}

	return nil
}

type advancedPayload struct {
	RenderJS    bool `json:"render_js"`
	Screenshot  bool `json:"screenshot"`
	Markdown    bool `json:"markdown"`
	GeneratePDF bool `json:"generate_pdf"`
	OCR         bool `json:"ocr"`

	UseProxy       bool `json:"use_proxy"`
	UseOwnProxy    bool `json:"use_own_proxy"`
	UseSystemProxy bool `json:"use_system_proxy"`

	ProxyIntegrationID *string `json:"proxy_integration_id"`
	ProxyCountry       *string `json:"proxy_country"`

	WaitCondition       WaitCondition `json:"wait_condition"`
	RemoveCookieBanners bool          `json:"remove_cookie_banners"`
}

func (o *AdvancedOptions) payload() *advancedPayload {
	if o == nil {
		return nil
	}

	p := &advancedPayload{
		RenderJS:    o.RenderJS,
		Screenshot:  o.Screenshot,
		Markdown:    o.Markdown,
		GeneratePDF: o.GeneratePDF,
		OCR:         o.OCR,

		UseProxy:       o.UseProxy,
		UseOwnProxy:    o.UseOwnProxy,
		UseSystemProxy: o.UseSystemProxy,

		WaitCondition:       o.WaitCondition,
		RemoveCookieBanners: true,
	}

	if o.ProxyIntegrationID != "" {
		p.ProxyIntegrationID = Ptr(o.ProxyIntegrationID)
	}

	if o.ProxyCountry != "" {
		p.ProxyCountry = Ptr(o.ProxyCountry)
	}

	if p.WaitCondition == "" {
		p.WaitCondition = WaitNetworkIdle
	}

	if o.RemoveCookieBanners != nil {
		p.RemoveCookieBanners = *o.RemoveCookieBanners
	}

	return p
}

type CostControls struct {
	// MaxTier caps escalation, "1" to "5". Empty leaves it to the API.
	MaxTier Tier

	PreferCost  bool
	PreferSpeed bool
	FailFast    bool

	MaxCredits *int
}

func (c *CostControls) Validate() error {
	if c.MaxTier != "" {
		if _, ok := tierPrices[c.MaxTier]; !ok {
			return invalidRequest("max_tier must be one of \"1\" to \"5\", got %q", c.MaxTier)
		}
	}

	if c.MaxCredits != nil && *c.MaxCredits < 0 {
		return invalidRequest("max_credits must not be negative")
	}

	return nil
}

type costControlsPayload struct {
	MaxTier Tier `json:"max_tier,omitempty"`

	PreferCost  bool `json:"prefer_cost"`
	PreferSpeed bool `json:"prefer_speed"`
	FailFast    bool `json:"fail_fast"`

	MaxCredits *int `json:"max_credits,omitempty"`
}

func (c *CostControls) payload() *costControlsPayload {
	if c == nil {
		return nil
	}

	return &costControlsPayload{
		MaxTier: c.MaxTier,

		PreferCost:  c.PreferCost,
		PreferSpeed: c.PreferSpeed,
		FailFast:    c.FailFast,

		MaxCredits: c.MaxCredits,
	}
}

type ScrapeRequest struct {
	URL  string
	Mode Mode

	// Async submits the scrape and returns the job id instead of waiting.
	Async bool

	Advanced     *AdvancedOptions
	CostControls *CostControls

	Cache        bool
	CacheTTL     *int
	ForceRefresh bool

	IncludeRawHTML bool

	// Timeout is sent to the API in seconds. Zero uses the client timeout.
	Timeout time.Duration

	Formats []Format

	// ExtractionSchema is any JSON Schema value: a map, a *jsonschema.Schema
	// from SchemaFor, or raw JSON.
	ExtractionSchema  any
	ExtractionPrompt  string
	ExtractionProfile ExtractionProfile

	Evidence bool

	// PromoteSchemaOrg defaults to true.
	PromoteSchemaOrg *bool

	WaitFor    string
	Screenshot bool

	// WaitUntil defaults to networkidle.
	WaitUntil WaitCondition

	EnableScroll *bool

	// PDFFormat is only sent in pdf mode and defaults to markdown.
	PDFFormat PDFFormat

	// OCRLanguage is only sent in ocr mode and defaults to eng.
	OCRLanguage string

	// Poll controls how a 202 response is awaited.
	Poll WaitOptions
}

var (
	modes = []Mode{ModeAuto, ModeHTML, ModeJS, ModePDF, ModeOCR}

	formats = []Format{FormatText, FormatJSON, FormatHTML, FormatMarkdown}

	profiles = []ExtractionProfile{
		ProfileAuto,
		ProfileProduct,
		ProfileArticle,
		ProfileJobPosting,
		ProfileFAQ,
		ProfileRecipe,
		ProfileEvent,
	}
)

func validWaitCondition(c WaitCondition) bool {
	return c == WaitDOMContentLoaded || c == WaitNetworkIdle || c == WaitLoad
}

func validateURL(name, raw string) error {
	if raw == "" {
		return invalidRequest("%s is required", name)
	}

	u, err := url.Parse(raw)

	if err != nil {
		return invalidRequest("%s: %v", name, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return invalidRequest("%s must be an absolute http(s) url, got %q", name, raw)
	}

	return nil
}

func (r *ScrapeRequest) Validate() error {
	if err := validateURL("url", r.URL); err != nil {
		return err
	}

	if r.Mode != "" && !slices.Contains(modes, r.Mode) {
		return invalidRequest("unknown mode %q", r.Mode)
	}

	if r.Advanced != nil {
		if err := r.Advanced.Validate(); err != nil {
			return err
		}
	}

	if r.CostControls != nil {
		if err := r.CostControls.Validate(); err != nil {
			return err
		}
	}

	if r.CacheTTL != nil && (*r.CacheTTL < 60 || *r.CacheTTL > 86400) {
		return invalidRequest("cache_ttl must be between 60 and 86400 seconds, got %d", *r.CacheTTL)
	}

	if r.Timeout < 0 {
		return invalidRequest("timeout must not be negative")
	}

	for _, f := range r.Formats {
		if !slices.Contains(formats, f) {
			return invalidRequest("unknown format %q", f)
		}
	}

	if r.ExtractionProfile != "" && !slices.Contains(profiles, r.ExtractionProfile) {
		return invalidRequest("unknown extraction_profile %q", r.ExtractionProfile)
	}

	schema, err := r.extractionSchema()

	if err != nil {
		return err
	}

	if schema != nil {
		if _, err := compileSchema(schema); err != nil {
			return invalidRequest("extraction_schema: %v", err)
		}
	}

	if r.WaitUntil != "" && !validWaitCondition(r.WaitUntil) {
		return invalidRequest("wait_until must be 'domcontentloaded', 'networkidle', or 'load'")
	}

	if r.PDFFormat != "" && r.PDFFormat != PDFText && r.PDFFormat != PDFMarkdown {
		return invalidRequest("pdf_format must be 'text' or 'markdown'")
	}

	return nil
}

type scrapePayload struct {
	URL  string `json:"url"`
	Mode Mode   `json:"mode"`
	Sync bool   `json:"sync"`

	Cache        bool `json:"cache"`
	CacheTTL     *int `json:"cache_ttl,omitempty"`
	ForceRefresh bool `json:"force_refresh"`

	IncludeRawHTML bool `json:"include_raw_html"`
	Timeout        int  `json:"timeout"`

	Evidence         bool          `json:"evidence"`
	PromoteSchemaOrg bool          `json:"promote_schema_org"`
	WaitUntil        WaitCondition `json:"wait_until"`

	Advanced     *advancedPayload     `json:"advanced,omitempty"`
	CostControls *costControlsPayload `json:"cost_controls,omitempty"`

	Formats []Format `json:"formats,omitempty"`

	ExtractionSchema  json.RawMessage   `json:"extraction_schema,omitempty"`
	ExtractionPrompt  string            `json:"extraction_prompt,omitempty"`
	ExtractionProfile ExtractionProfile `json:"extraction_profile,omitempty"`

	WaitFor      string `json:"wait_for,omitempty"`
	Screenshot   bool   `json:"screenshot,omitempty"`
	EnableScroll *bool  `json:"enable_scroll,omitempty"`

	PDFFormat   PDFFormat `json:"pdf_format,omitempty"`
	OCRLanguage string    `json:"ocr_language,omitempty"`
}

func (r *ScrapeRequest) payload(timeout time.Duration) (*scrapePayload, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	if r.Timeout > 0 {
		timeout = r.Timeout
	}

	p := &scrapePayload{
		URL:  r.URL,
		Mode: r.Mode,
		Sync: !r.Async,

		Cache:        r.Cache,
		CacheTTL:     r.CacheTTL,
		ForceRefresh: r.ForceRefresh,

		IncludeRawHTML: r.IncludeRawHTML,
		Timeout:        timeoutSeconds(timeout),

		Evidence:         r.Evidence,
		PromoteSchemaOrg: true,
		WaitUntil:        r.WaitUntil,

		Advanced:     r.Advanced.payload(),
		CostControls: r.CostControls.payload(),

		Formats: r.Formats,

		ExtractionPrompt:  r.ExtractionPrompt,
		ExtractionProfile: r.ExtractionProfile,

		WaitFor:      r.WaitFor,
		Screenshot:   r.Screenshot,
		EnableScroll: r.EnableScroll,
	}

	if p.Mode == "" {
		p.Mode = ModeAuto
	}

	schema, err := r.extractionSchema()

	if err != nil {
		return nil, err
	}

	p.ExtractionSchema = schema

	if r.PromoteSchemaOrg != nil {
		p.PromoteSchemaOrg = *r.PromoteSchemaOrg
	}

	if p.WaitUntil == "" {
		p.WaitUntil = WaitNetworkIdle
	}

	switch p.Mode {
	case ModePDF:
		p.PDFFormat = r.PDFFormat

		if p.PDFFormat == "" {
			p.PDFFormat = PDFMarkdown
		}

	case ModeOCR:
		p.OCRLanguage = r.OCRLanguage

		if p.OCRLanguage == "" {
			p.OCRLanguage = "eng"
		}
	}

	return p, nil
}

// extractionSchema returns nil for a missing, null or empty object schema.
func (r *ScrapeRequest) extractionSchema() (json.RawMessage, error) {
	if r.ExtractionSchema == nil {
		return nil, nil
	}

	data, err := schemaJSON(r.ExtractionSchema)

	if err != nil {
		return nil, invalidRequest("extraction_schema: %v", err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	if json.Valid(data) {
		v := gjson.ParseBytes(data)

		if v.Type == gjson.Null || v.IsObject() && len(v.Map()) == 0 {
			return nil, nil
		}
	}

	return data, nil
}

// timeoutSeconds rounds up to whole seconds so the API never receives 0.
func timeoutSeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 1)
}

type EstimateRequest struct {
	URL  string
	Mode Mode

	Advanced     *AdvancedOptions
	CostControls *CostControls
}

type estimatePayload struct {
	URL  string `json:"url"`
	Mode Mode   `json:"mode"`

	Advanced     *advancedPayload     `json:"advanced,omitempty"`
	CostControls *costControlsPayload `json:"cost_controls,omitempty"`
}

func (r *EstimateRequest) payload() (*estimatePayload, error) {
	if err := validateURL("url", r.URL); err != nil {
		return nil, err
	}

	if r.Mode != "" && !slices.Contains(modes, r.Mode) {
		return nil, invalidRequest("unknown mode %q", r.Mode)
	}

	if r.Advanced != nil {
		if err := r.Advanced.Validate(); err != nil {
			return nil, err
		}
	}

	if r.CostControls != nil {
		if err := r.CostControls.Validate(); err != nil {
			return nil, err
		}
	}

	p := &estimatePayload{
		URL:  r.URL,
		Mode: r.Mode,

		Advanced:     r.Advanced.payload(),
		CostControls: r.CostControls.payload(),
	}

	if p.Mode == "" {
		p.Mode = ModeAuto
	}

	return p, nil
}

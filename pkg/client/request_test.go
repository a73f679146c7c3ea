package client

import (
	"encoding/json"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func payloadMap(t *testing.T, v any) map[string]any {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	return m
}

func TestScrapeRequestValidate(t *testing.T) {
	tests := []struct {
		name  string
		input ScrapeRequest
	}{
		{"missing url", ScrapeRequest{}},
		{"relative url", ScrapeRequest{URL: "/path"}},
		{"ftp url", ScrapeRequest{URL: "ftp://example.com/file"}},
		{"unknown mode", ScrapeRequest{URL: "https://example.com", Mode: "browser"}},
		{"screenshot without render", ScrapeRequest{URL: "https://example.com", Advanced: &AdvancedOptions{Screenshot: true}}},
		{"pdf without render", ScrapeRequest{URL: "https://example.com", Advanced: &AdvancedOptions{GeneratePDF: true}}},
		{"bad wait condition", ScrapeRequest{URL: "https://example.com", Advanced: &AdvancedOptions{WaitCondition: "idle"}}},
		{"bad wait until", ScrapeRequest{URL: "https://example.com", WaitUntil: "idle"}},
		{"cache ttl too small", ScrapeRequest{URL: "https://example.com", CacheTTL: Ptr(59)}},
		{"cache ttl too large", ScrapeRequest{URL: "https://example.com", CacheTTL: Ptr(86401)}},
		{"bad max tier", ScrapeRequest{URL: "https://example.com", CostControls: &CostControls{MaxTier: "6"}}},
		{"negative max credits", ScrapeRequest{URL: "https://example.com", CostControls: &CostControls{MaxCredits: Ptr(-1)}}},
		{"unknown format", ScrapeRequest{URL: "https://example.com", Formats: []Format{"xml"}}},
		{"unknown profile", ScrapeRequest{URL: "https://example.com", ExtractionProfile: "movie"}},
		{"bad pdf format", ScrapeRequest{URL: "https://example.com", PDFFormat: "docx"}},
		{"negative timeout", ScrapeRequest{URL: "https://example.com", Timeout: -time.Second}},
		{"schema not json", ScrapeRequest{URL: "https://example.com", ExtractionSchema: "{"}},
		{"schema invalid", ScrapeRequest{URL: "https://example.com", ExtractionSchema: map[string]any{"type": 5}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			require.ErrorIs(t, err, ErrInvalidRequest)
		})
	}
}

func TestScrapeRequestValidateAccepts(t *testing.T) {
	input := ScrapeRequest{
		URL:  "https://example.com/products?id=1",
		Mode: ModeJS,

		Advanced: &AdvancedOptions{
			RenderJS:      true,
			Screenshot:    true,
			GeneratePDF:   true,
			WaitCondition: WaitLoad,
		},

		CostControls: &CostControls{MaxTier: TierBrowser, MaxCredits: Ptr(10)},

		CacheTTL: Ptr(60),
		Formats:  []Format{FormatText, FormatJSON, FormatHTML, FormatMarkdown},

		ExtractionSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name": map[string]any{"type": "string"},
			},
		},
		ExtractionProfile: ProfileProduct,

		WaitUntil: WaitDOMContentLoaded,
		PDFFormat: PDFText,
	}

	require.NoError(t, input.Validate())
}

func TestScrapePayloadDefaults(t *testing.T) {
	input := ScrapeRequest{URL: "https://example.com"}

	p, err := input.payload(DefaultTimeout)
	require.NoError(t, err)

	m := payloadMap(t, p)

	keys := slices.Sorted(maps.Keys(m))

	require.Equal(t, []string{
		"cache",
		"evidence",
		"force_refresh",
		"include_raw_html",
		"mode",
		"promote_schema_org",
		"sync",
		"timeout",
		"url",
		"wait_until",
	}, keys)

	require.Equal(t, "https://example.com", m["url"])
	require.Equal(t, "auto", m["mode"])
	require.Equal(t, true, m["sync"])
	require.Equal(t, true, m["promote_schema_org"])
	require.Equal(t, "networkidle", m["wait_until"])
	require.Equal(t, float64(120), m["timeout"])
}

func TestScrapePayloadOptionalFields(t *testing.T) {
	input := ScrapeRequest{
		URL:   "https://example.com",
		Async: true,

		CacheTTL: Ptr(3600),
		Timeout:  30 * time.Second,

		Formats: []Format{FormatMarkdown},

		ExtractionSchema:  json.RawMessage(`{"type":"object"}`),
		ExtractionPrompt:  "extract the price",
		ExtractionProfile: ProfileProduct,

		PromoteSchemaOrg: Ptr(false),

		WaitFor:      "#content",
		Screenshot:   true,
		EnableScroll: Ptr(false),

		PDFFormat:   PDFText,
		OCRLanguage: "deu",
	}

	p, err := input.payload(DefaultTimeout)
	require.NoError(t, err)

	m := payloadMap(t, p)

	require.Equal(t, false, m["sync"])
	require.Equal(t, float64(3600), m["cache_ttl"])
	require.Equal(t, float64(30), m["timeout"])
	require.Equal(t, []any{"markdown"}, m["formats"])
	require.Equal(t, map[string]any{"type": "object"}, m["extraction_schema"])
	require.Equal(t, "extract the price", m["extraction_prompt"])
	require.Equal(t, "product", m["extraction_profile"])
	require.Equal(t, false, m["promote_schema_org"])
	require.Equal(t, "#content", m["wait_for"])
	require.Equal(t, true, m["screenshot"])
	require.Equal(t, false, m["enable_scroll"])

	require.NotContains(t, m, "pdf_format")
	require.NotContains(t, m, "ocr_language")
	require.NotContains(t, m, "advanced")
	require.NotContains(t, m, "cost_controls")
}

func TestScrapePayloadModeSpecificFields(t *testing.T) {
	pdf := ScrapeRequest{URL: "https://example.com/doc.pdf", Mode: ModePDF}

	p, err := pdf.payload(DefaultTimeout)
	require.NoError(t, err)

	m := payloadMap(t, p)
	require.Equal(t, "markdown", m["pdf_format"])
	require.NotContains(t, m, "ocr_language")

	ocr := ScrapeRequest{URL: "https://example.com/scan.png", Mode: ModeOCR}

	p, err = ocr.payload(DefaultTimeout)
	require.NoError(t, err)

	m = payloadMap(t, p)
	require.Equal(t, "eng", m["ocr_language"])
	require.NotContains(t, m, "pdf_format")
}

func TestAdvancedPayload(t *testing.T) {
	input := ScrapeRequest{
		URL: "https://example.com",

		Advanced: &AdvancedOptions{
			RenderJS:     true,
			ProxyCountry: "DE",
		},
	}

	p, err := input.payload(DefaultTimeout)
	require.NoError(t, err)

	advanced := payloadMap(t, p)["advanced"].(map[string]any)

	require.Equal(t, map[string]any{
		"render_js":    true,
		"screenshot":   false,
		"markdown":     false,
		"generate_pdf": false,
		"ocr":          false,

		"use_proxy":        false,
		"use_own_proxy":    false,
		"use_system_proxy": false,

		"proxy_integration_id": nil,
		"proxy_country":        "DE",

		"wait_condition":        "networkidle",
		"remove_cookie_banners": true,
	}, advanced)

	input.Advanced.RemoveCookieBanners = Ptr(false)

	p, err = input.payload(DefaultTimeout)
	require.NoError(t, err)

	advanced = payloadMap(t, p)["advanced"].(map[string]any)
	require.Equal(t, false, advanced["remove_cookie_banners"])
}

func TestCostControlsPayload(t *testing.T) {
	input := ScrapeRequest{
		URL:          "https://example.com",
		CostControls: &CostControls{MaxTier: TierStealth, PreferCost: true},
	}

	p, err := input.payload(DefaultTimeout)
	require.NoError(t, err)

	require.Equal(t, map[string]any{
		"max_tier":     "3",
		"prefer_cost":  true,
		"prefer_speed": false,
		"fail_fast":    false,
	}, payloadMap(t, p)["cost_controls"])

	input.CostControls = &CostControls{MaxCredits: Ptr(5)}

	p, err = input.payload(DefaultTimeout)
	require.NoError(t, err)

	require.Equal(t, map[string]any{
		"prefer_cost":  false,
		"prefer_speed": false,
		"fail_fast":    false,
		"max_credits":  float64(5),
	}, payloadMap(t, p)["cost_controls"])
}

func TestEstimatePayload(t *testing.T) {
	input := EstimateRequest{URL: "https://example.com"}

	p, err := input.payload()
	require.NoError(t, err)

	require.Equal(t, map[string]any{
		"url":  "https://example.com",
		"mode": "auto",
	}, payloadMap(t, p))

	input.Advanced = &AdvancedOptions{Screenshot: true}

	_, err = input.payload()
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestScrapePayloadTimeoutRoundsUp(t *testing.T) {
	tests := []struct {
		name    string
		client  time.Duration
		request time.Duration
		want    float64
	}{
		{"sub-second request timeout", DefaultTimeout, 500 * time.Millisecond, 1},
		{"fractional request timeout", DefaultTimeout, 1500 * time.Millisecond, 2},
		{"whole request timeout", DefaultTimeout, 2 * time.Second, 2},
		{"sub-second client timeout", 500 * time.Millisecond, 0, 1},
		{"tiny client timeout", time.Nanosecond, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := ScrapeRequest{URL: "https://example.com", Timeout: tt.request}

			p, err := input.payload(tt.client)
			require.NoError(t, err)

			require.Equal(t, tt.want, payloadMap(t, p)["timeout"])
		})
	}
}

func TestScrapePayloadEmptySchemaIsOmitted(t *testing.T) {
	tests := []struct {
		name   string
		schema any
	}{
		{"empty map", map[string]any{}},
		{"null raw", json.RawMessage("null")},
		{"empty raw object", json.RawMessage(" { } ")},
		{"empty string", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := ScrapeRequest{URL: "https://example.com", ExtractionSchema: tt.schema}
			require.NoError(t, input.Validate())

			p, err := input.payload(DefaultTimeout)
			require.NoError(t, err)

			require.NotContains(t, payloadMap(t, p), "extraction_schema")
		})
	}
}

package client

import (
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestParseScrapeResultDefaults(t *testing.T) {
	result, err := ParseScrapeResult([]byte(`{"url": "https://example.com", "content": "plain"}`))
	require.NoError(t, err)

	require.Equal(t, 200, result.StatusCode)
	require.Equal(t, "algorithmic", result.ExtractionMethod)
	require.Equal(t, TierCurl, result.TierUsed())
	require.Equal(t, 0, result.CreditsUsed())

	require.Equal(t, "plain", result.Text())
	require.Equal(t, "plain", result.HTML())
	require.Equal(t, "", result.Markdown())
	require.Empty(t, result.JSON())
}

func TestParseScrapeResultInvalid(t *testing.T) {
	_, err := ParseScrapeResult([]byte(`{"url": 5}`))
	require.Error(t, err)
}

func TestScrapeResultContentFormats(t *testing.T) {
	result, err := ParseScrapeResult([]byte(`{
		"content": {
			"text": "Hello",
			"html": "<p>Hello</p>",
			"markdown": "# Hello",
			"json": {"title": "Hello", "price": 9.5}
		}
	}`))
	require.NoError(t, err)

	require.Equal(t, "Hello", result.Text())
	require.Equal(t, "<p>Hello</p>", result.HTML())
	require.Equal(t, "# Hello", result.Markdown())
	require.Equal(t, map[string]any{"title": "Hello", "price": 9.5}, result.JSON())

	html, err := result.MarkdownHTML()
	require.NoError(t, err)
	require.Equal(t, "<h1>Hello</h1>\n", html)

	require.JSONEq(t, `{"title": "Hello", "price": 9.5}`, string(result.ExtractedJSON()))
}

func TestScrapeResultStructuredContent(t *testing.T) {
	result, err := ParseScrapeResult([]byte(`{
		"content": {"json": {"title": "fallback"}},
		"structured_content": {"name": "Widget", "price": 12}
	}`))
	require.NoError(t, err)

	var product struct {
		Name  string  `json:"name"`
		Price float64 `json:"price"`
	}

	require.NoError(t, result.DecodeExtraction(&product))
	require.Equal(t, "Widget", product.Name)
	require.Equal(t, 12.0, product.Price)

	empty, err := ParseScrapeResult([]byte(`{"content": "text"}`))
	require.NoError(t, err)
	require.ErrorIs(t, empty.DecodeExtraction(&product), ErrScrapeFailed)
}

func TestBillingDetails(t *testing.T) {
	result, err := ParseScrapeResult([]byte(`{
		"billing": {
			"total_credits": 5,
			"escalations": [
				{"credits": 1, "result": "failed", "error": "blocked"},
				{"tier": "3", "credits": 4}
			],
			"final_cost_microcents": 500
		}
	}`))
	require.NoError(t, err)

	billing := result.Billing

	require.Equal(t, TierCurl, billing.TierUsed)
	require.Equal(t, 5, result.CreditsUsed())
	require.Len(t, billing.Escalations, 2)

	require.Equal(t, TierCurl, billing.Escalations[0].Tier)
	require.Equal(t, EscalationFailed, billing.Escalations[0].Result)
	require.Equal(t, "blocked", billing.Escalations[0].Error)

	require.Equal(t, TierStealth, billing.Escalations[1].Tier)
	require.Equal(t, EscalationSuccess, billing.Escalations[1].Result)

	require.Equal(t, 0.0005, billing.CostDollars())

	billing.FinalCostMicrocents = nil
	billing.TierUsed = TierCaptcha
	require.Equal(t, 0.02, billing.CostDollars())
}

func TestTierPrice(t *testing.T) {
	require.Equal(t, 0.0002, TierCurl.Price())
	require.Equal(t, 0.0003, TierHTTP.Price())
	require.Equal(t, 0.0005, TierStealth.Price())
	require.Equal(t, 0.001, TierBrowser.Price())
	require.Equal(t, 0.02, TierCaptcha.Price())
	require.Equal(t, 0.0003, Tier("9").Price())
}

func TestScrapeResultDocument(t *testing.T) {
	result, err := ParseScrapeResult([]byte(`{
		"content": {"html": "<ul><li class=\"item\">a</li><li class=\"item\">b</li></ul>"}
	}`))
	require.NoError(t, err)

	doc, err := result.Document()
	require.NoError(t, err)

	var items []string

	doc.Find("li.item").Each(func(_ int, s *goquery.Selection) {
		items = append(items, s.Text())
	})

	require.Equal(t, []string{"a", "b"}, items)

	result.RawHTML = "<title>Raw</title>"

	doc, err = result.Document()
	require.NoError(t, err)
	require.Equal(t, "Raw", doc.Find("title").Text())
}

// Package preview produces a bounded markdown extract of an accessible
// HTML page: the content an automated client would actually obtain from
// the URL, plus a rough token cost.
package preview

import (
	"log/slog"
	nurl "net/url"
	"strings"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/pardeepdhingra/urllens/models"
)

// maxMarkdownChars bounds the preview body; longer extracts are cut at
// a rune boundary and flagged Truncated.
const maxMarkdownChars = 2000

// minContentLength is the minimum TextContent length (in characters)
// for readability output to be considered valid. Below that we assume
// the algorithm failed to locate the main content and fall back to the
// raw HTML.
const minContentLength = 50

// Generator turns probe body captures into previews. The markdown
// converter is created once and reused across all requests
// (goroutine-safe).
type Generator struct {
	mdConverter *converter.Converter
}

// New initialises a Generator with a pre-configured markdown converter.
func New() *Generator {
	return &Generator{mdConverter: newMarkdownConverter()}
}

// newMarkdownConverter builds the reusable Converter: the base plugin
// strips script/style/head noise, commonmark renders standard Markdown,
// and the table plugin keeps tabular structure with a single space of
// cell padding instead of aligning all columns to equal width.
func newMarkdownConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(
				table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
			),
		),
	)
}

// FromBody builds a preview from the bounded body capture of a probe.
// It never fails: when readability or markdown conversion choke, the
// preview degrades to whatever could be extracted.
func (g *Generator) FromBody(body []byte, sourceURL string) *models.Preview {
	rawHTML := string(body)
	article, _ := extractArticle(rawHTML, sourceURL)

	markdown, err := g.mdConverter.ConvertString(article.Content, converter.WithDomain(sourceURL))
	if err != nil {
		slog.Warn("preview: markdown conversion failed, using plain text",
			"url", sourceURL, "error", err,
		)
		markdown = article.TextContent
	}
	markdown = strings.TrimSpace(markdown)

	p := &models.Preview{
		Title:       strings.TrimSpace(article.Title),
		Description: strings.TrimSpace(article.Excerpt),
		Markdown:    markdown,
	}
	fillMetaFallbacks(p, rawHTML)

	if utf8.RuneCountInString(p.Markdown) > maxMarkdownChars {
		p.Markdown = truncateRunes(p.Markdown, maxMarkdownChars)
		p.Truncated = true
	}
	p.TokenEstimate = estimateTokens(p.Markdown)
	return p
}

// extractArticle runs the Mozilla Readability algorithm on rawHTML.
//
// Fallback behaviour (a preview must never fail just because
// readability choked):
//   - If URL parsing fails           → return raw HTML in Content
//   - If readability.FromReader errs → return raw HTML in Content
//   - If extracted TextContent < 50  → return raw HTML in Content
func extractArticle(rawHTML, sourceURL string) (readability.Article, bool) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Warn("preview: invalid source URL, falling back to raw HTML",
			"url", sourceURL, "error", err,
		)
		return fallbackArticle(rawHTML), false
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Warn("preview: readability extraction failed, falling back to raw HTML",
			"url", sourceURL, "error", err,
		)
		return fallbackArticle(rawHTML), false
	}

	if len(strings.TrimSpace(article.TextContent)) < minContentLength {
		return fallbackArticle(rawHTML), false
	}
	return article, true
}

// fallbackArticle wraps raw HTML into an Article so the pipeline can
// proceed uniformly regardless of whether readability succeeded.
func fallbackArticle(rawHTML string) readability.Article {
	return readability.Article{
		Content:     rawHTML,
		TextContent: rawHTML,
	}
}

// fillMetaFallbacks supplies title and description from meta tags when
// readability found none, which is common on thin pages and challenge
// interstitials.
func fillMetaFallbacks(p *models.Preview, rawHTML string) {
	if p.Title != "" && p.Description != "" {
		return
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return
	}

	if p.Title == "" {
		if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && og != "" {
			p.Title = strings.TrimSpace(og)
		} else {
			p.Title = strings.TrimSpace(doc.Find("title").First().Text())
		}
	}
	if p.Description == "" {
		if og, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok && og != "" {
			p.Description = strings.TrimSpace(og)
		} else if d, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
			p.Description = strings.TrimSpace(d)
		}
	}
}

// estimateTokens provides a fast token count estimate without importing
// tiktoken.
//
// Heuristic: utf8 rune count / 3. English text averages ~4 chars/token,
// CJK text averages ~1.5; dividing by 3 is a middle ground for
// mixed-language content.
func estimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	est := n / 3
	if est < 1 {
		return 1
	}
	return est
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

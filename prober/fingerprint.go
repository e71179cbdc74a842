package prober

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/pardeepdhingra/urllens/models"
)

// BotSignals scans the final response for bot-protection markers and
// returns at most one signal per vendor. Header and cookie markers work
// on any response; body markers only apply when a body was captured.
func (c *Catalog) BotSignals(hdr http.Header, body []byte) []models.BotSignal {
	server := strings.ToLower(hdr.Get("Server"))
	cookies := setCookieNames(hdr)

	var lower string
	if len(body) > 0 {
		lower = strings.ToLower(string(body))
	}

	var signals []models.BotSignal
	for _, rule := range c.Rules {
		if ev, ok := matchRule(rule, hdr, server, cookies, lower); ok {
			signals = append(signals, models.BotSignal{Vendor: rule.Vendor, Evidence: ev})
		}
	}
	return signals
}

func matchRule(rule VendorRule, hdr http.Header, server string, cookies []string, body string) (string, bool) {
	for _, h := range rule.Headers {
		if hdr.Get(h) != "" {
			return fmt.Sprintf("response header %s", h), true
		}
	}
	for _, s := range rule.Server {
		if server != "" && strings.Contains(server, s) {
			return fmt.Sprintf("server header contains %q", s), true
		}
	}
	for _, prefix := range rule.Cookies {
		for _, name := range cookies {
			if strings.HasPrefix(name, prefix) {
				return fmt.Sprintf("cookie %s", name), true
			}
		}
	}
	if body != "" {
		for _, m := range rule.Body {
			if strings.Contains(body, m) {
				return fmt.Sprintf("body contains %q", m), true
			}
		}
	}
	return "", false
}

// setCookieNames extracts lowercase cookie names from Set-Cookie headers.
func setCookieNames(hdr http.Header) []string {
	values := hdr.Values("Set-Cookie")
	if len(values) == 0 {
		return nil
	}
	names := make([]string, 0, len(values))
	for _, sc := range values {
		name, _, _ := strings.Cut(sc, "=")
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, strings.ToLower(name))
		}
	}
	return names
}

// JSRequired decides heuristically whether an HTML body needs JavaScript
// execution before meaningful content is available: an unrendered SPA
// mount node, a <noscript> warning, or too little visible text.
func (c *Catalog) JSRequired(body []byte) bool {
	if len(body) == 0 {
		return false
	}

	visible := extractVisibleText(body)
	if len(visible) < c.minVisibleText {
		return true
	}

	if doc, err := html.Parse(bytes.NewReader(body)); err == nil {
		for _, n := range cascadia.QueryAll(doc, c.spaMounts) {
			if effectivelyEmpty(n) {
				return true
			}
		}
	}

	lower := strings.ToLower(string(body))
	if c.noscript.MatchString(lower) {
		return true
	}

	// Many <script> tags plus little body text → JS-heavy page.
	if strings.Count(lower, "<script") > c.scriptHeavyCount && len(visible) < c.scriptHeavyText {
		return true
	}

	return false
}

// effectivelyEmpty reports whether a node has no element children and no
// non-whitespace text. Plain :empty is too strict here — SPA shells often
// carry a newline inside the mount div.
func effectivelyEmpty(n *html.Node) bool {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case html.ElementNode:
			return false
		case html.TextNode:
			if strings.TrimSpace(child.Data) != "" {
				return false
			}
		}
	}
	return true
}

// isHTMLContentType returns true if the content-type header looks like HTML.
func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// extractVisibleText extracts the visible text from within <body>, stripping
// all tags and <script>/<style> content. Used for heuristic analysis only.
func extractVisibleText(body []byte) string {
	tokenizer := html.NewTokenizer(bytes.NewReader(body))
	var buf strings.Builder
	inBody := false
	skipDepth := 0

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return buf.String()
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			tag := string(tn)
			if tag == "body" {
				inBody = true
			}
			if tag == "script" || tag == "style" || tag == "noscript" {
				skipDepth++
			}
		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			tag := string(tn)
			if tag == "script" || tag == "style" || tag == "noscript" {
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if inBody && skipDepth == 0 {
				text := strings.TrimSpace(string(tokenizer.Text()))
				if text != "" {
					buf.WriteString(text)
					buf.WriteByte(' ')
				}
			}
		}
	}
}

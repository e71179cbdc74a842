package prober

import (
	"fmt"
	"regexp"

	"github.com/andybalholm/cascadia"

	"github.com/pardeepdhingra/urllens/models"
)

// CatalogVersion identifies the built-in detection ruleset. Bumped
// whenever vendor markers or JS heuristics change, so cached outcomes
// produced by an older ruleset can be told apart.
const CatalogVersion = "2025.08.1"

// VendorRule describes how one bot-protection product shows up in a
// response. All fields are matched case-insensitively; markers are data,
// not code, so extending detection never touches the probe control flow.
type VendorRule struct {
	Vendor models.BotVendor

	// Headers are response header names whose presence implicates the vendor.
	Headers []string

	// Server lists substrings of the Server header.
	Server []string

	// Cookies lists Set-Cookie name prefixes.
	Cookies []string

	// Body lists lowercase substrings of the response body.
	Body []string
}

// Catalog is a versioned set of detection rules: bot-protection vendor
// markers plus the heuristics for deciding a page needs JavaScript.
type Catalog struct {
	Version string
	Rules   []VendorRule

	// spaMounts matches framework mount nodes; a matched node that is
	// effectively empty means the page is an unrendered SPA shell.
	spaMounts cascadia.Matcher

	// noscript matches <noscript> blocks that tell the visitor to turn
	// JavaScript on.
	noscript *regexp.Regexp

	// minVisibleText is the visible-character floor below which a page is
	// assumed to render client-side.
	minVisibleText int

	// scriptHeavyCount/scriptHeavyText flag pages with many scripts and
	// little text.
	scriptHeavyCount int
	scriptHeavyText  int
}

// DefaultCatalog returns the built-in detection ruleset.
func DefaultCatalog() *Catalog {
	return &Catalog{
		Version: CatalogVersion,
		Rules: []VendorRule{
			{
				Vendor:  models.VendorCloudflare,
				Headers: []string{"cf-ray", "cf-cache-status", "cf-mitigated"},
				Server:  []string{"cloudflare"},
				Cookies: []string{"__cf_bm", "cf_clearance", "__cfruid"},
				Body:    []string{"checking your browser", "just a moment", "challenges.cloudflare.com", "cf-turnstile", "attention required! | cloudflare"},
			},
			{
				Vendor:  models.VendorAkamai,
				Server:  []string{"akamaighost"},
				Cookies: []string{"ak_bmsc", "_abck", "bm_sz", "bm_sv"},
				Body:    []string{"akamai bot manager"},
			},
			{
				Vendor:  models.VendorPerimeterX,
				Cookies: []string{"_px", "_pxhd", "_pxvid"},
				Body:    []string{"perimeterx", "px-captcha", "press & hold to confirm"},
			},
			{
				Vendor:  models.VendorDataDome,
				Headers: []string{"x-datadome", "x-dd-b"},
				Cookies: []string{"datadome"},
				Body:    []string{"datadome", "geo.captcha-delivery.com"},
			},
			{
				Vendor:  models.VendorImperva,
				Headers: []string{"x-iinfo"},
				Cookies: []string{"incap_ses", "visid_incap"},
				Body:    []string{"incapsula", "_incapsula_resource", "imperva"},
			},
			{
				Vendor: models.VendorReCAPTCHA,
				Body:   []string{"www.google.com/recaptcha", "grecaptcha", "g-recaptcha"},
			},
			{
				Vendor: models.VendorHCaptcha,
				Body:   []string{"hcaptcha.com", "h-captcha"},
			},
			{
				Vendor:  models.VendorDistilNetworks,
				Headers: []string{"x-distil-cs"},
				Body:    []string{"distil_r_captcha", "distilnetworks.com"},
			},
			{
				Vendor: models.VendorShapeSecurity,
				Body:   []string{"shapesecurity", "shape security"},
			},
			{
				Vendor: models.VendorChallengePage,
				Body: []string{
					"verify you are human",
					"are you a robot",
					"unusual traffic from your",
					"access to this page has been denied",
					"please enable cookies to continue",
					"ddos protection by",
					"checking if the site connection is secure",
					"enable javascript and cookies to continue",
				},
			},
		},
		spaMounts:        mustSelector("div#root, div#app, div#__next"),
		noscript:         regexp.MustCompile(`<noscript[^>]*>[^<]*(enable|activate|turn on|requires?)\s+javascript`),
		minVisibleText:   100,
		scriptHeavyCount: 10,
		scriptHeavyText:  500,
	}
}

func mustSelector(s string) cascadia.Matcher {
	sel, err := cascadia.ParseGroup(s)
	if err != nil {
		panic(fmt.Sprintf("prober: bad built-in selector %q: %v", s, err))
	}
	return sel
}

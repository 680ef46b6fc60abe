// Package bypass recognizes bot-protection challenge pages so the engine can
// drop them instead of handing a captcha to the extractor.
package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Response is the part of a fetch result the detectors look at.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector reports whether res is a challenge and which vendor issued it.
type Detector func(res Response) (detected bool, source string)

// DefaultDetectors returns every built-in detector.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
		detectListingCaptcha,
	}
}

// Analyze runs the detectors in order and returns the first hit.
func Analyze(res Response, detectors []Detector) (bool, string) {
	for _, d := range detectors {
		if detected, source := d(res); detected {
			return true, source
		}
	}
	return false, ""
}

func server(res Response) string {
	return strings.ToLower(res.Header.Get("Server"))
}

func bodyHasAny(body []byte, needles ...string) bool {
	for _, n := range needles {
		if bytes.Contains(body, []byte(n)) {
			return true
		}
	}
	return false
}

func detectCloudflare(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(server(res), "cloudflare") ||
		bodyHasAny(res.Body, "cf-browser-verification", "cf-turnstile", "Attention Required! | Cloudflare") {
		return true, "Cloudflare"
	}
	return false, ""
}

func detectAkamai(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(server(res), "akamai") ||
		(bodyHasAny(res.Body, "Reference #") && bodyHasAny(res.Body, "Access Denied")) {
		return true, "Akamai"
	}
	return false, ""
}

func detectDataDome(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(server(res), "datadome") ||
		res.Header.Get("X-DataDome") != "" ||
		bodyHasAny(res.Body, "geo.captcha-delivery.com") {
		return true, "DataDome"
	}
	return false, ""
}

func detectPerimeterX(res Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if res.Header.Get("X-Px-Captcha") != "" ||
		bodyHasAny(res.Body, "client.perimeterx.net", "px-captcha", "_pxBlock") {
		return true, "PerimeterX"
	}
	return false, ""
}

// detectListingCaptcha catches the interstitial listing sites serve with a
// 200 status when they suspect automation.
func detectListingCaptcha(res Response) (bool, string) {
	if res.StatusCode != http.StatusOK {
		return false, ""
	}
	if bodyHasAny(res.Body, "g-recaptcha", "Are you a human?", "unusual activity from your") {
		return true, "Captcha"
	}
	return false, ""
}

package clanalytics

import "strings"

const unknownLabel = "unknown"

// parseUserAgent déduit navigateur, système et type d'appareil par recherche de motifs
func parseUserAgent(userAgent string) (browser, os, device string) {
	ua := strings.ToLower(userAgent)
	if ua == "" {
		return unknownLabel, unknownLabel, unknownLabel
	}

	// l'ordre compte: Edge et Opera annoncent aussi Chrome, Chrome annonce aussi Safari
	switch {
	case strings.Contains(ua, "edg/") || strings.Contains(ua, "edge/"):
		browser = "Edge"
	case strings.Contains(ua, "opr/") || strings.Contains(ua, "opera"):
		browser = "Opera"
	case strings.Contains(ua, "firefox/"):
		browser = "Firefox"
	case strings.Contains(ua, "chrome/") || strings.Contains(ua, "crios/"):
		browser = "Chrome"
	case strings.Contains(ua, "safari/"):
		browser = "Safari"
	case strings.Contains(ua, "bot") || strings.Contains(ua, "spider") || strings.Contains(ua, "crawl"):
		browser = "Bot"
	default:
		browser = "Other"
	}

	switch {
	case strings.Contains(ua, "android"):
		os = "Android"
	case strings.Contains(ua, "iphone") || strings.Contains(ua, "ipad") || strings.Contains(ua, "ipod"):
		os = "iOS"
	case strings.Contains(ua, "windows"):
		os = "Windows"
	case strings.Contains(ua, "mac os") || strings.Contains(ua, "macintosh"):
		os = "macOS"
	case strings.Contains(ua, "cros"):
		os = "ChromeOS"
	case strings.Contains(ua, "linux"):
		os = "Linux"
	default:
		os = "Other"
	}

	switch {
	case browser == "Bot":
		device = "bot"
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet") ||
		(strings.Contains(ua, "android") && !strings.Contains(ua, "mobile")):
		device = "tablet"
	case strings.Contains(ua, "mobile") || strings.Contains(ua, "iphone"):
		device = "mobile"
	default:
		device = "desktop"
	}
	return browser, os, device
}

// complete renseigne les champs absents depuis le user agent
func (f VisitorFingerprint) complete() VisitorFingerprint {
	if f.DeviceType != "" && f.Browser != "" && f.OS != "" {
		return f
	}
	browser, os, device := parseUserAgent(f.UserAgent)
	if f.Browser == "" {
		f.Browser = browser
	}
	if f.OS == "" {
		f.OS = os
	}
	if f.DeviceType == "" {
		f.DeviceType = device
	}
	return f
}

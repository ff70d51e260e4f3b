package clanalytics

import (
	"net/url"
	"strings"
)

const directLabel = "direct"

// trafficSource renvoie la source et la campagne d'une page d'entrée.
// Une source vide correspond à un accès direct.
func trafficSource(pageURL, referrer string) (source, campaign string) {
	page, err := url.Parse(pageURL)
	if err == nil {
		query := page.Query()
		campaign = strings.TrimSpace(query.Get("utm_campaign"))
		if utm := strings.TrimSpace(query.Get("utm_source")); utm != "" {
			return strings.ToLower(utm), campaign
		}
	}

	if referrer == "" {
		return "", campaign
	}
	ref, err := url.Parse(referrer)
	if err != nil || ref.Host == "" {
		return "", campaign
	}

	refHost := strings.TrimPrefix(strings.ToLower(ref.Hostname()), "www.")
	if page != nil && strings.TrimPrefix(strings.ToLower(page.Hostname()), "www.") == refHost {
		return "", campaign
	}
	return refHost, campaign
}

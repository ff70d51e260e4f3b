package clanalytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseUserAgent(t *testing.T) {
	tests := []struct {
		ua      string
		browser string
		os      string
		device  string
	}{
		{"", unknownLabel, unknownLabel, unknownLabel},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36 Edg/120.0", "Edge", "Windows", "desktop"},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1", "Safari", "iOS", "mobile"},
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36", "Chrome", "Android", "mobile"},
		{"Mozilla/5.0 (Linux; Android 13; SM-X700) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36", "Chrome", "Android", "tablet"},
		{"Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0", "Firefox", "Linux", "desktop"},
		{"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)", "Bot", "Other", "bot"},
	}

	for _, tt := range tests {
		browser, os, device := parseUserAgent(tt.ua)
		assert.Equal(t, tt.browser, browser, tt.ua)
		assert.Equal(t, tt.os, os, tt.ua)
		assert.Equal(t, tt.device, device, tt.ua)
	}
}

func TestFingerprintCompleteKeepsClientValues(t *testing.T) {
	fp := VisitorFingerprint{
		UserAgent:  "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0",
		DeviceType: "tv",
	}.complete()

	assert.Equal(t, "tv", fp.DeviceType)
	assert.Equal(t, "Firefox", fp.Browser)
	assert.Equal(t, "Linux", fp.OS)
}

func TestTrafficSource(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		referrer string
		source   string
		campaign string
	}{
		{"direct", "https://blog.example/a", "", "", ""},
		{"utm wins", "https://blog.example/a?utm_source=Mastodon&utm_campaign=launch", "https://google.com/", "mastodon", "launch"},
		{"external referrer", "https://blog.example/a", "https://www.google.com/search?q=go", "google.com", ""},
		{"internal referrer", "https://blog.example/b", "https://www.blog.example/a", "", ""},
		{"relative page", "/a", "https://news.ycombinator.com/item?id=1", "news.ycombinator.com", ""},
		{"invalid referrer", "/a", "::not a url", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source, campaign := trafficSource(tt.url, tt.referrer)
			assert.Equal(t, tt.source, source)
			assert.Equal(t, tt.campaign, campaign)
		})
	}
}

func TestHourlySeries(t *testing.T) {
	now := time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)
	id1, id2 := uint(1), uint(2)
	views := []viewPoint{
		{CreatedAt: now.Add(-65 * time.Minute), VisitorID: &id1},
		{CreatedAt: now.Add(-3 * time.Minute), VisitorID: &id1},
		{CreatedAt: now.Add(-2 * time.Minute), VisitorID: &id1},
		{CreatedAt: now.Add(-1 * time.Minute), VisitorID: &id2},
		{CreatedAt: now, VisitorID: nil},
		{CreatedAt: now.Add(-24 * time.Hour)},
		{CreatedAt: now.Add(-25 * time.Hour)},
		{CreatedAt: now.Add(time.Minute)},
	}

	stats := hourlySeries(now, views)
	assert.Len(t, stats, 24)
	assert.Equal(t, now.Add(-24*time.Hour), stats[0].Start)
	assert.Equal(t, int64(1), stats[0].Views)
	assert.Equal(t, int64(1), stats[22].Views)
	assert.Equal(t, int64(4), stats[23].Views)
	assert.Equal(t, int64(2), stats[23].Visitors)
	assert.Equal(t, "14:30", stats[23].Label)
}

func TestDailySeries(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	now := time.Date(2026, 3, 10, 0, 30, 0, 0, loc)
	id := uint(7)
	views := []viewPoint{
		{CreatedAt: now.Add(-10 * time.Minute), VisitorID: &id},
		{CreatedAt: now.Add(-40 * time.Minute), VisitorID: &id},
		{CreatedAt: now.AddDate(0, 0, -29), VisitorID: &id},
		{CreatedAt: now.AddDate(0, 0, -31), VisitorID: &id},
	}
	sessions := []time.Time{now.Add(-10 * time.Minute), now.Add(-40 * time.Minute)}

	stats := dailySeries(now, views, sessions)
	assert.Len(t, stats, 30)
	assert.Equal(t, "2026-03-10", stats[29].Label)
	assert.Equal(t, int64(1), stats[29].Views)
	assert.Equal(t, int64(1), stats[29].Sessions)
	assert.Equal(t, "2026-03-09", stats[28].Label)
	assert.Equal(t, int64(1), stats[28].Views)
	assert.Equal(t, int64(1), stats[0].Views)
	assert.Equal(t, time.Date(2026, 2, 9, 0, 0, 0, 0, loc), stats[0].Start)
}

func TestPercentage(t *testing.T) {
	assert.Zero(t, percentage(5, 0))
	assert.Equal(t, 50.0, percentage(1, 2))
	assert.InDelta(t, 33.3333, percentage(1, 3), 0.001)
}

package clanalytics

import (
	"blogcms/internal/clredis"
	"blogcms/internal/models/clerrors"
	"blogcms/internal/models/clgeoip"
	"blogcms/internal/models/clstorage"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ============= Setup =============

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func noon() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 12, 0, 0, 0, time.Local)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := clstorage.OpenSQLite(":memory:", "silent")
	require.NoError(t, err)
	require.NoError(t, clstorage.Migrate(db, Models()...))
	t.Cleanup(func() { _ = clstorage.Close(db) })
	return db
}

func setupService(t *testing.T, opts ...Option) (*AnalyticsService, *gorm.DB, *testClock) {
	t.Helper()
	db := setupTestDB(t)
	clock := &testClock{t: noon()}
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewAnalyticsService(db, opts...), db, clock
}

func view(url, token, ip string) PageViewInput {
	return PageViewInput{
		URL:          url,
		Title:        "Titre " + url,
		SessionToken: token,
		Fingerprint: VisitorFingerprint{
			IP:        ip,
			UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		},
	}
}

func findSession(t *testing.T, db *gorm.DB, token string) Session {
	t.Helper()
	var s Session
	require.NoError(t, db.Where("token = ?", token).Take(&s).Error)
	return s
}

// ============= Ingestion =============

func TestRecordPageViewCreatesRows(t *testing.T) {
	as, db, clock := setupService(t)
	ctx := context.Background()

	pv, err := as.RecordPageView(ctx, view("https://blog.example/a?utm_source=Newsletter&utm_campaign=rentree", "s1", "1.2.3.4"))
	require.NoError(t, err)
	require.NotNil(t, pv.SessionID)
	require.NotNil(t, pv.VisitorID)
	assert.Equal(t, clock.Now(), pv.CreatedAt)

	var visitor Visitor
	require.NoError(t, db.Where("ip_address = ?", "1.2.3.4").Take(&visitor).Error)
	assert.Equal(t, int64(1), visitor.VisitCount)
	assert.True(t, visitor.IsUnique)
	assert.Equal(t, "desktop", visitor.DeviceType)
	assert.Equal(t, "Chrome", visitor.Browser)
	assert.Equal(t, "Windows", visitor.OS)

	session := findSession(t, db, "s1")
	assert.Equal(t, int64(1), session.PageViews)
	assert.True(t, session.Bounce)
	assert.Equal(t, "newsletter", session.Source)
	assert.Equal(t, "rentree", session.Campaign)
	assert.Equal(t, visitor.ID, *session.VisitorID)
}

func TestRecordPageViewReturningVisitor(t *testing.T) {
	as, db, _ := setupService(t)
	ctx := context.Background()

	_, err := as.RecordPageView(ctx, view("/a", "s1", "1.2.3.4"))
	require.NoError(t, err)
	_, err = as.RecordPageView(ctx, view("/b", "s2", "1.2.3.4"))
	require.NoError(t, err)

	var visitor Visitor
	require.NoError(t, db.Where("ip_address = ?", "1.2.3.4").Take(&visitor).Error)
	assert.Equal(t, int64(2), visitor.VisitCount)
	assert.False(t, visitor.IsUnique)

	var count int64
	require.NoError(t, db.Model(&Visitor{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecordPageViewConcurrentIncrements(t *testing.T) {
	as, db, _ := setupService(t)
	ctx := context.Background()

	_, err := as.RecordPageView(ctx, view("/", "seed", "9.9.9.9"))
	require.NoError(t, err)

	const n = 25
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := "shared"
			if i%2 == 0 {
				token = fmt.Sprintf("own-%d", i)
			}
			_, err := as.RecordPageView(ctx, view("/page", token, "9.9.9.9"))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var visitor Visitor
	require.NoError(t, db.Where("ip_address = ?", "9.9.9.9").Take(&visitor).Error)
	assert.Equal(t, int64(1+n), visitor.VisitCount)

	shared := findSession(t, db, "shared")
	assert.Equal(t, int64(n/2), shared.PageViews)
	assert.False(t, shared.Bounce)

	var views int64
	require.NoError(t, db.Model(&PageView{}).Count(&views).Error)
	assert.Equal(t, int64(1+n), views)
}

func TestRecordPageViewValidation(t *testing.T) {
	as, _, _ := setupService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		input PageViewInput
	}{
		{"missing url", view("   ", "s1", "1.2.3.4")},
		{"missing session", view("/a", "", "1.2.3.4")},
		{"url too long", view("/"+string(make([]byte, maxURLLength)), "s1", "1.2.3.4")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := as.RecordPageView(ctx, tt.input)
			assert.ErrorIs(t, err, clerrors.ErrValidation)
		})
	}
}

func TestRecordPageViewWithoutIP(t *testing.T) {
	as, db, _ := setupService(t)

	pv, err := as.RecordPageView(context.Background(), view("/a", "s1", ""))
	require.NoError(t, err)
	assert.Nil(t, pv.VisitorID)

	var count int64
	require.NoError(t, db.Model(&Visitor{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRecordPageViewTruncatesOnRuneBoundary(t *testing.T) {
	as, db, _ := setupService(t)

	in := view("/a", "s1", "1.1.1.1")
	in.Referrer = "https://ref.example/" + strings.Repeat("a", maxURLLength-len("https://ref.example/")-1) + "é"
	in.Fingerprint.UserAgent = strings.Repeat("x", 511) + "ü"
	pv, err := as.RecordPageView(context.Background(), in)
	require.NoError(t, err)

	var stored PageView
	require.NoError(t, db.First(&stored, pv.ID).Error)
	assert.True(t, utf8.ValidString(stored.Referrer))
	assert.Len(t, stored.Referrer, maxURLLength-1)

	var visitor Visitor
	require.NoError(t, db.Where("ip_address = ?", "1.1.1.1").Take(&visitor).Error)
	assert.True(t, utf8.ValidString(visitor.UserAgent))
	assert.Len(t, visitor.UserAgent, 511)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abé", 3))
	assert.Equal(t, "abé", truncate("abéd", 4))
	assert.Equal(t, "", truncate("日本", 2))
}

func TestRecordPageViewGeoIP(t *testing.T) {
	locator := clgeoip.Static{"8.8.8.8": {Country: "US", City: "Mountain View"}}
	as, db, _ := setupService(t, WithGeoIP(locator))

	_, err := as.RecordPageView(context.Background(), view("/a", "s1", "8.8.8.8"))
	require.NoError(t, err)

	var visitor Visitor
	require.NoError(t, db.Where("ip_address = ?", "8.8.8.8").Take(&visitor).Error)
	assert.Equal(t, "US", visitor.Country)
	assert.Equal(t, "Mountain View", visitor.City)
}

// ============= Sessions =============

func TestEndSessionBounce(t *testing.T) {
	as, db, _ := setupService(t)
	ctx := context.Background()

	_, err := as.RecordPageView(ctx, view("/a", "single", "1.1.1.1"))
	require.NoError(t, err)
	_, err = as.RecordPageView(ctx, view("/a", "multi", "2.2.2.2"))
	require.NoError(t, err)
	_, err = as.RecordPageView(ctx, view("/b", "multi", "2.2.2.2"))
	require.NoError(t, err)

	require.NoError(t, as.EndSession(ctx, "single", 5))
	require.NoError(t, as.EndSession(ctx, "multi", 2))

	single := findSession(t, db, "single")
	assert.True(t, single.Bounce)
	require.NotNil(t, single.EndedAt)
	assert.Equal(t, int64(5), *single.Duration)

	multi := findSession(t, db, "multi")
	assert.False(t, multi.Bounce)
	assert.Equal(t, int64(2), *multi.Duration)
}

func TestEndSessionLastWriteWins(t *testing.T) {
	as, db, _ := setupService(t)
	ctx := context.Background()

	_, err := as.RecordPageView(ctx, view("/a", "s1", "1.1.1.1"))
	require.NoError(t, err)

	require.NoError(t, as.EndSession(ctx, "s1", 30))
	require.NoError(t, as.EndSession(ctx, "s1", 30))
	require.NoError(t, as.EndSession(ctx, "s1", 45))

	assert.Equal(t, int64(45), *findSession(t, db, "s1").Duration)
}

func TestEndSessionErrors(t *testing.T) {
	as, _, _ := setupService(t)
	ctx := context.Background()

	assert.ErrorIs(t, as.EndSession(ctx, "", 10), clerrors.ErrValidation)
	assert.ErrorIs(t, as.EndSession(ctx, "s1", -1), clerrors.ErrValidation)
	assert.ErrorIs(t, as.EndSession(ctx, "missing", 10), clerrors.ErrNotFound)
}

func TestCloseStaleSessions(t *testing.T) {
	as, db, clock := setupService(t)
	ctx := context.Background()
	base := clock.Now()

	clock.Set(base.Add(-2 * time.Hour))
	_, err := as.RecordPageView(ctx, view("/a", "stale", "1.1.1.1"))
	require.NoError(t, err)
	clock.Set(base.Add(-2*time.Hour + 10*time.Minute))
	_, err = as.RecordPageView(ctx, view("/b", "stale", "1.1.1.1"))
	require.NoError(t, err)

	clock.Set(base.Add(-5 * time.Minute))
	_, err = as.RecordPageView(ctx, view("/a", "fresh", "2.2.2.2"))
	require.NoError(t, err)

	clock.Set(base)
	closed, err := as.CloseStaleSessions(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), closed)

	stale := findSession(t, db, "stale")
	require.NotNil(t, stale.EndedAt)
	assert.Equal(t, int64(600), *stale.Duration)
	assert.False(t, stale.Bounce)

	assert.Nil(t, findSession(t, db, "fresh").EndedAt)

	closed, err = as.CloseStaleSessions(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Zero(t, closed)
}

func TestPurgeOlderThan(t *testing.T) {
	as, db, clock := setupService(t)
	ctx := context.Background()
	base := clock.Now()

	clock.Set(base.AddDate(0, 0, -40))
	_, err := as.RecordPageView(ctx, view("/old", "old", "1.1.1.1"))
	require.NoError(t, err)
	clock.Set(base)
	_, err = as.RecordPageView(ctx, view("/new", "new", "2.2.2.2"))
	require.NoError(t, err)

	deleted, err := as.PurgeOlderThan(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	deleted, err = as.PurgeOlderThan(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)

	var views, sessions, visitors int64
	require.NoError(t, db.Model(&PageView{}).Count(&views).Error)
	require.NoError(t, db.Model(&Session{}).Count(&sessions).Error)
	require.NoError(t, db.Model(&Visitor{}).Count(&visitors).Error)
	assert.Equal(t, int64(1), views)
	assert.Equal(t, int64(1), sessions)
	assert.Equal(t, int64(1), visitors)
}

func TestPurgeInvalidatesCachedSummary(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	as, _, clock := setupService(t, WithCache(clredis.New(client, "analytics"), time.Hour))
	ctx := context.Background()
	base := clock.Now()

	clock.Set(base.AddDate(0, 0, -40))
	_, err := as.RecordPageView(ctx, view("/old", "old", "1.1.1.1"))
	require.NoError(t, err)
	clock.Set(base)

	before, err := as.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), before.TotalPageViews)
	require.True(t, mr.Exists("analytics:summary"))

	_, err = as.PurgeOlderThan(ctx, 30)
	require.NoError(t, err)
	assert.False(t, mr.Exists("analytics:summary"))

	after, err := as.GetSummary(ctx)
	require.NoError(t, err)
	assert.Zero(t, after.TotalPageViews)
}

// ============= Summary =============

func TestSummaryEmpty(t *testing.T) {
	as, _, _ := setupService(t)

	summary, err := as.GetSummary(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.TotalSessions)
	assert.Zero(t, summary.BounceRate)
	assert.False(t, math.IsNaN(summary.BounceRate))
	assert.Zero(t, summary.AvgSessionTime)
	assert.Empty(t, summary.TopPages)
	assert.Empty(t, summary.TrafficSources)
	assert.Len(t, summary.HourlyStats, 24)
	assert.Len(t, summary.DailyStats, 30)
}

func TestSummaryScenario(t *testing.T) {
	as, _, _ := setupService(t)
	ctx := context.Background()

	_, err := as.RecordPageView(ctx, view("/populaire", "s1", "1.2.3.4"))
	require.NoError(t, err)
	_, err = as.RecordPageView(ctx, view("/populaire", "s1", "1.2.3.4"))
	require.NoError(t, err)
	_, err = as.RecordPageView(ctx, view("/autre", "s2", "1.2.3.4"))
	require.NoError(t, err)

	summary, err := as.GetSummary(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(3), summary.TotalPageViews)
	assert.Equal(t, int64(2), summary.TotalSessions)
	assert.Equal(t, int64(1), summary.TotalVisitors)
	require.Len(t, summary.TopPages, 2)
	assert.Equal(t, "/populaire", summary.TopPages[0].URL)
	assert.Equal(t, int64(2), summary.TopPages[0].Views)
	assert.Equal(t, "Titre /populaire", summary.TopPages[0].Title)

	assert.Equal(t, int64(2), summary.Realtime.ActiveUsers)
	assert.Equal(t, int64(3), summary.Realtime.TodayPageViews)
	assert.Equal(t, int64(1), summary.Realtime.TodayVisitors)

	today := summary.DailyStats[len(summary.DailyStats)-1]
	assert.Equal(t, int64(3), today.Views)
	assert.Equal(t, int64(1), today.Visitors)
	assert.Equal(t, int64(2), today.Sessions)
}

func TestSummaryTopPagesLimitAndTies(t *testing.T) {
	as, _, _ := setupService(t)
	ctx := context.Background()

	// /p00 et /p01 ont 3 vues, /p02 2 vues, les autres une seule
	urls := make([]string, 12)
	for i := range urls {
		urls[i] = fmt.Sprintf("/p%02d", i)
		_, err := as.RecordPageView(ctx, view(urls[i], "s1", "1.1.1.1"))
		require.NoError(t, err)
	}
	for _, url := range []string{"/p01", "/p00", "/p02", "/p01", "/p00"} {
		_, err := as.RecordPageView(ctx, view(url, "s1", "1.1.1.1"))
		require.NoError(t, err)
	}

	summary, err := as.GetSummary(ctx)
	require.NoError(t, err)
	require.Len(t, summary.TopPages, topPagesLimit)

	got := make([]string, 0, len(summary.TopPages))
	for _, page := range summary.TopPages {
		got = append(got, page.URL)
	}
	assert.Equal(t, []string{"/p00", "/p01", "/p02", "/p03", "/p04", "/p05", "/p06", "/p07", "/p08", "/p09"}, got)
	assert.Equal(t, int64(3), summary.TopPages[0].Views)
	assert.Equal(t, int64(3), summary.TopPages[1].Views)
	assert.Equal(t, int64(1), summary.TopPages[9].Views)
}

func TestSummaryTopPagesNeverPadded(t *testing.T) {
	as, _, _ := setupService(t)
	ctx := context.Background()

	for _, url := range []string{"/a", "/b", "/c"} {
		_, err := as.RecordPageView(ctx, view(url, "s1", "1.1.1.1"))
		require.NoError(t, err)
	}

	summary, err := as.GetSummary(ctx)
	require.NoError(t, err)
	assert.Len(t, summary.TopPages, 3)
}

func TestSummarySourceTiesKeepFirstSeenOrder(t *testing.T) {
	as, _, _ := setupService(t)
	ctx := context.Background()

	// mastodon, twitter et newsletter à égalité, dans l'ordre d'apparition
	sources := []string{"mastodon", "twitter", "newsletter", "rss", "rss", "rss", "twitter", "mastodon", "newsletter"}
	for i, source := range sources {
		token := fmt.Sprintf("s%d", i)
		_, err := as.RecordPageView(ctx, view("https://blog.example/a?utm_source="+source, token, "1.1.1.1"))
		require.NoError(t, err)
	}

	summary, err := as.GetSummary(ctx)
	require.NoError(t, err)
	require.Len(t, summary.TrafficSources, 4)

	labels := make([]string, 0, 4)
	for _, share := range summary.TrafficSources {
		labels = append(labels, share.Label)
	}
	assert.Equal(t, []string{"rss", "mastodon", "twitter", "newsletter"}, labels)
	assert.InDelta(t, 100.0/3, summary.TrafficSources[0].Percentage, 0.0001)
	assert.InDelta(t, 200.0/9, summary.TrafficSources[1].Percentage, 0.0001)
}

func TestSummaryBounceRateAndDuration(t *testing.T) {
	as, _, _ := setupService(t)
	ctx := context.Background()

	for _, token := range []string{"a", "b", "c", "d"} {
		_, err := as.RecordPageView(ctx, view("/x", token, "1.1.1.1"))
		require.NoError(t, err)
	}
	_, err := as.RecordPageView(ctx, view("/y", "d", "1.1.1.1"))
	require.NoError(t, err)

	require.NoError(t, as.EndSession(ctx, "a", 10))
	require.NoError(t, as.EndSession(ctx, "b", 30))
	require.NoError(t, as.EndSession(ctx, "d", 0))

	summary, err := as.GetSummary(ctx)
	require.NoError(t, err)

	// a, b et c n'ont qu'une page vue, d en a deux
	assert.InDelta(t, 75.0, summary.BounceRate, 0.0001)
	assert.InDelta(t, 20.0, summary.AvgSessionTime, 0.0001)
}

func TestSummarySourcesAndDevices(t *testing.T) {
	as, _, _ := setupService(t)
	ctx := context.Background()

	inputs := []PageViewInput{
		view("https://blog.example/a", "s1", "1.1.1.1"),
		view("https://blog.example/a?utm_source=twitter", "s2", "2.2.2.2"),
		view("https://blog.example/a?utm_source=twitter", "s3", "3.3.3.3"),
		view("https://blog.example/a?utm_source=direct", "s4", "4.4.4.4"),
	}
	inputs[3].Fingerprint.UserAgent = ""
	for _, in := range inputs {
		_, err := as.RecordPageView(ctx, in)
		require.NoError(t, err)
	}

	summary, err := as.GetSummary(ctx)
	require.NoError(t, err)

	require.Len(t, summary.TrafficSources, 2)
	assert.Equal(t, ShareStat{Label: "direct", Count: 2, Percentage: 50}, summary.TrafficSources[0])
	assert.Equal(t, ShareStat{Label: "twitter", Count: 2, Percentage: 50}, summary.TrafficSources[1])

	require.Len(t, summary.DeviceBreakdown, 2)
	assert.Equal(t, "desktop", summary.DeviceBreakdown[0].Label)
	assert.InDelta(t, 75.0, summary.DeviceBreakdown[0].Percentage, 0.0001)
	assert.Equal(t, "unknown", summary.DeviceBreakdown[1].Label)
}

func TestSummaryHourlyBuckets(t *testing.T) {
	as, _, clock := setupService(t)
	ctx := context.Background()
	base := clock.Now()

	clock.Set(base.Add(-65 * time.Minute))
	_, err := as.RecordPageView(ctx, view("/a", "s1", "1.1.1.1"))
	require.NoError(t, err)
	clock.Set(base.Add(-3 * time.Minute))
	_, err = as.RecordPageView(ctx, view("/b", "s2", "2.2.2.2"))
	require.NoError(t, err)

	clock.Set(base)
	summary, err := as.GetSummary(ctx)
	require.NoError(t, err)

	require.Len(t, summary.HourlyStats, 24)
	last := summary.HourlyStats[23]
	previous := summary.HourlyStats[22]
	assert.Equal(t, int64(1), last.Views)
	assert.Equal(t, int64(1), previous.Views)
	assert.Equal(t, int64(1), last.Visitors)
	assert.Equal(t, base.Add(-time.Hour), last.Start)
}

func TestSummaryCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	as, _, _ := setupService(t, WithCache(clredis.New(client, "analytics"), 10*time.Second))
	ctx := context.Background()

	_, err := as.RecordPageView(ctx, view("/a", "s1", "1.1.1.1"))
	require.NoError(t, err)

	first, err := as.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.TotalPageViews)
	assert.True(t, mr.Exists("analytics:summary"))

	_, err = as.RecordPageView(ctx, view("/b", "s1", "1.1.1.1"))
	require.NoError(t, err)

	cached, err := as.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), cached.TotalPageViews)

	mr.FastForward(11 * time.Second)
	fresh, err := as.GetSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), fresh.TotalPageViews)

	require.NoError(t, as.InvalidateSummary(ctx))
	assert.False(t, mr.Exists("analytics:summary"))
}

func TestSummaryCacheUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	as, _, _ := setupService(t, WithCache(clredis.New(client, "analytics"), 10*time.Second))

	summary, err := as.GetSummary(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, summary)
}

// ============= Storage failures =============

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return db, mock
}

func TestRecordPageViewStorageError(t *testing.T) {
	db, mock := setupMockDB(t)
	as := NewAnalyticsService(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `visitors`").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := as.RecordPageView(context.Background(), view("/a", "s1", "1.1.1.1"))
	require.Error(t, err)
	assert.ErrorIs(t, err, clerrors.ErrStorage)
	assert.Equal(t, 500, clerrors.HTTPStatus(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEndSessionStorageError(t *testing.T) {
	db, mock := setupMockDB(t)
	as := NewAnalyticsService(db)

	mock.ExpectExec("UPDATE `sessions`").WillReturnError(errors.New("disk full"))

	err := as.EndSession(context.Background(), "s1", 10)
	assert.ErrorIs(t, err, clerrors.ErrStorage)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSummaryStorageError(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.MatchExpectationsInOrder(false)
	as := NewAnalyticsService(db)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("table missing"))

	_, err := as.GetSummary(context.Background())
	assert.ErrorIs(t, err, clerrors.ErrStorage)
}

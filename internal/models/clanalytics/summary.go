package clanalytics

import (
	"blogcms/internal/models/clerrors"
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	summaryCacheKey   = "summary"
	topPagesLimit     = 10
	activeUsersWindow = 60 * time.Minute
)

type groupCount struct {
	Label string
	Count int64
}

// GetSummary calcule la vue agrégée du journal d'analytics. Les requêtes
// indépendantes s'exécutent en parallèle et ne forment pas un instantané cohérent.
func (as *AnalyticsService) GetSummary(ctx context.Context) (*Summary, error) {
	if summary, ok := as.cachedSummary(ctx); ok {
		return summary, nil
	}

	now := as.now()
	summary := &Summary{GeneratedAt: now}
	g, gctx := errgroup.WithContext(ctx)
	db := as.db.WithContext(gctx)

	var bounced int64
	g.Go(func() error { return db.Model(&Visitor{}).Count(&summary.TotalVisitors).Error })
	g.Go(func() error {
		return db.Model(&Visitor{}).Where("is_unique = ?", true).Count(&summary.UniqueVisitors).Error
	})
	g.Go(func() error { return db.Model(&Session{}).Count(&summary.TotalSessions).Error })
	g.Go(func() error { return db.Model(&PageView{}).Count(&summary.TotalPageViews).Error })
	g.Go(func() error { return db.Model(&Session{}).Where("bounce = ?", true).Count(&bounced).Error })
	g.Go(func() error {
		avg, err := averageDuration(db)
		summary.AvgSessionTime = avg
		return err
	})
	g.Go(func() error {
		pages, err := topPages(db)
		summary.TopPages = pages
		return err
	})
	g.Go(func() error {
		sources, err := shareOf(db.Model(&Session{}), "source", directLabel)
		summary.TrafficSources = sources
		return err
	})
	g.Go(func() error {
		devices, err := shareOf(db.Model(&Visitor{}), "device_type", unknownLabel)
		summary.DeviceBreakdown = devices
		return err
	})
	g.Go(func() error {
		realtime, err := realtimeStats(db, now)
		summary.Realtime = realtime
		return err
	})
	g.Go(func() error {
		hourly, daily, err := seriesStats(db, now)
		summary.HourlyStats = hourly
		summary.DailyStats = daily
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, clerrors.Storage(err)
	}
	summary.BounceRate = percentage(bounced, summary.TotalSessions)

	as.storeSummary(ctx, summary)
	return summary, nil
}

func (as *AnalyticsService) cachedSummary(ctx context.Context) (*Summary, bool) {
	if as.cache == nil {
		return nil, false
	}

	var summary Summary
	found, err := as.cache.GetJSON(ctx, summaryCacheKey, &summary)
	if err != nil {
		log.Warn().Err(err).Msg("summary cache read failed")
		as.metrics.RecordSummaryCache("error")
		return nil, false
	}
	if !found {
		as.metrics.RecordSummaryCache("miss")
		return nil, false
	}
	as.metrics.RecordSummaryCache("hit")
	return &summary, true
}

func (as *AnalyticsService) storeSummary(ctx context.Context, summary *Summary) {
	if as.cache == nil || as.cacheTTL <= 0 {
		return
	}
	if err := as.cache.SetJSON(ctx, summaryCacheKey, summary, as.cacheTTL); err != nil {
		log.Warn().Err(err).Msg("summary cache write failed")
	}
}

// InvalidateSummary retire le résumé du cache
func (as *AnalyticsService) InvalidateSummary(ctx context.Context) error {
	if as.cache == nil {
		return nil
	}
	return as.cache.Delete(ctx, summaryCacheKey)
}

// averageDuration ignore les sessions jamais terminées
func averageDuration(db *gorm.DB) (float64, error) {
	var avg sql.NullFloat64
	err := db.Model(&Session{}).
		Select("AVG(duration)").
		Where("duration IS NOT NULL AND duration > 0").
		Row().
		Scan(&avg)
	if err != nil {
		return 0, err
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

func topPages(db *gorm.DB) ([]PageStat, error) {
	pages := []PageStat{}
	err := db.Model(&PageView{}).
		Select("url, MAX(title) AS title, COUNT(*) AS views").
		Group("url").
		Order("views DESC").
		Order("MIN(id) ASC").
		Limit(topPagesLimit).
		Scan(&pages).Error
	return pages, err
}

// shareOf regroupe par column, renomme la valeur vide en emptyLabel et
// annote chaque groupe de sa part du total
func shareOf(query *gorm.DB, column, emptyLabel string) ([]ShareStat, error) {
	var rows []groupCount
	err := query.
		Select(column + " AS label, COUNT(*) AS count").
		Group(column).
		Order("MIN(id) ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	shares := []ShareStat{}
	positions := make(map[string]int, len(rows))
	var total int64
	for _, row := range rows {
		label := row.Label
		if label == "" {
			label = emptyLabel
		}
		total += row.Count
		if i, ok := positions[label]; ok {
			shares[i].Count += row.Count
			continue
		}
		positions[label] = len(shares)
		shares = append(shares, ShareStat{Label: label, Count: row.Count})
	}

	sort.SliceStable(shares, func(i, j int) bool { return shares[i].Count > shares[j].Count })
	for i := range shares {
		shares[i].Percentage = percentage(shares[i].Count, total)
	}
	return shares, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func realtimeStats(db *gorm.DB, now time.Time) (Realtime, error) {
	var rt Realtime
	midnight := startOfDay(now)

	if err := db.Model(&Session{}).
		Where("started_at >= ?", now.Add(-activeUsersWindow)).
		Count(&rt.ActiveUsers).Error; err != nil {
		return rt, err
	}
	if err := db.Model(&PageView{}).
		Where("created_at >= ?", midnight).
		Count(&rt.TodayPageViews).Error; err != nil {
		return rt, err
	}
	err := db.Model(&PageView{}).
		Where("created_at >= ? AND visitor_id IS NOT NULL", midnight).
		Distinct("visitor_id").
		Count(&rt.TodayVisitors).Error
	return rt, err
}

func seriesStats(db *gorm.DB, now time.Time) ([]BucketStat, []BucketStat, error) {
	since := dailySeriesStart(now)
	if hourlyStart := now.Add(-hourlyBuckets * time.Hour); hourlyStart.Before(since) {
		since = hourlyStart
	}

	var views []viewPoint
	if err := db.Model(&PageView{}).
		Select("created_at", "visitor_id").
		Where("created_at >= ?", since).
		Scan(&views).Error; err != nil {
		return nil, nil, err
	}

	var sessionStarts []time.Time
	if err := db.Model(&Session{}).
		Where("started_at >= ?", since).
		Pluck("started_at", &sessionStarts).Error; err != nil {
		return nil, nil, err
	}

	return hourlySeries(now, views), dailySeries(now, views, sessionStarts), nil
}

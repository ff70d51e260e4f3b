package clanalytics

import "time"

const (
	hourlyBuckets = 24
	dailyBuckets  = 30
)

type viewPoint struct {
	CreatedAt time.Time
	VisitorID *uint
}

type bucket struct {
	stat     BucketStat
	visitors map[uint]struct{}
}

func (b *bucket) addView(p viewPoint) {
	b.stat.Views++
	if p.VisitorID == nil {
		return
	}
	if _, seen := b.visitors[*p.VisitorID]; !seen {
		b.visitors[*p.VisitorID] = struct{}{}
		b.stat.Visitors++
	}
}

func newBuckets(n int) []bucket {
	buckets := make([]bucket, n)
	for i := range buckets {
		buckets[i].visitors = make(map[uint]struct{})
	}
	return buckets
}

func flatten(buckets []bucket) []BucketStat {
	stats := make([]BucketStat, len(buckets))
	for i := range buckets {
		stats[i] = buckets[i].stat
	}
	return stats
}

// hourlySeries découpe les 24 dernières heures en intervalles [début, début+1h)
// ancrés sur now. Un point exactement à now tombe dans le dernier intervalle.
func hourlySeries(now time.Time, views []viewPoint) []BucketStat {
	start := now.Add(-hourlyBuckets * time.Hour)
	buckets := newBuckets(hourlyBuckets)
	for i := range buckets {
		bucketStart := start.Add(time.Duration(i) * time.Hour)
		buckets[i].stat.Start = bucketStart
		buckets[i].stat.Label = bucketStart.Format("15:04")
	}

	for _, p := range views {
		if p.CreatedAt.Before(start) || p.CreatedAt.After(now) {
			continue
		}
		idx := int(p.CreatedAt.Sub(start) / time.Hour)
		if idx >= hourlyBuckets {
			idx = hourlyBuckets - 1
		}
		buckets[idx].addView(p)
	}
	return flatten(buckets)
}

// dailySeriesStart renvoie le minuit local du premier jour de la série
func dailySeriesStart(now time.Time) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return midnight.AddDate(0, 0, -(dailyBuckets - 1))
}

// dailySeries compte vues, visiteurs et sessions démarrées pour chacun des
// 30 derniers jours, chaque jour commençant à minuit local
func dailySeries(now time.Time, views []viewPoint, sessionStarts []time.Time) []BucketStat {
	first := dailySeriesStart(now)
	buckets := newBuckets(dailyBuckets)
	index := make(map[string]int, dailyBuckets)
	for i := range buckets {
		day := first.AddDate(0, 0, i)
		label := day.Format("2006-01-02")
		buckets[i].stat.Start = day
		buckets[i].stat.Label = label
		index[label] = i
	}

	loc := now.Location()
	for _, p := range views {
		if p.CreatedAt.After(now) {
			continue
		}
		if idx, ok := index[p.CreatedAt.In(loc).Format("2006-01-02")]; ok {
			buckets[idx].addView(p)
		}
	}
	for _, started := range sessionStarts {
		if started.After(now) {
			continue
		}
		if idx, ok := index[started.In(loc).Format("2006-01-02")]; ok {
			buckets[idx].stat.Sessions++
		}
	}
	return flatten(buckets)
}

// percentage renvoie count/total*100, 0 si total est nul
func percentage(count, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

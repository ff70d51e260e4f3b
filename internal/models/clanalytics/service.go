package clanalytics

import (
	"blogcms/internal/models/clerrors"
	"blogcms/internal/models/clgeoip"
	"blogcms/internal/models/clmetrics"
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	maxURLLength      = 768
	maxTokenLength    = 128
	staleSessionBatch = 500
)

// SummaryCache stocke le résumé déjà calculé
type SummaryCache interface {
	GetJSON(ctx context.Context, id string, dest any) (bool, error)
	SetJSON(ctx context.Context, id string, value any, ttl time.Duration) error
	Delete(ctx context.Context, ids ...string) error
}

type AnalyticsService struct {
	db       *gorm.DB
	cache    SummaryCache
	cacheTTL time.Duration
	geoip    clgeoip.Locator
	metrics  *clmetrics.Metrics
	now      func() time.Time
}

type Option func(*AnalyticsService)

func WithCache(cache SummaryCache, ttl time.Duration) Option {
	return func(as *AnalyticsService) {
		as.cache = cache
		as.cacheTTL = ttl
	}
}

func WithGeoIP(locator clgeoip.Locator) Option {
	return func(as *AnalyticsService) { as.geoip = locator }
}

func WithMetrics(m *clmetrics.Metrics) Option {
	return func(as *AnalyticsService) { as.metrics = m }
}

// WithClock remplace l'horloge, utilisé par les tests
func WithClock(now func() time.Time) Option {
	return func(as *AnalyticsService) { as.now = now }
}

func NewAnalyticsService(db *gorm.DB, opts ...Option) *AnalyticsService {
	as := &AnalyticsService{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(as)
	}
	return as
}

func (in *PageViewInput) validate() error {
	in.URL = strings.TrimSpace(in.URL)
	in.SessionToken = strings.TrimSpace(in.SessionToken)

	switch {
	case in.URL == "":
		return clerrors.Validation("url requise")
	case len(in.URL) > maxURLLength:
		return clerrors.Validation("url trop longue (max %d)", maxURLLength)
	case in.SessionToken == "":
		return clerrors.Validation("sessionId requis")
	case len(in.SessionToken) > maxTokenLength:
		return clerrors.Validation("sessionId trop long (max %d)", maxTokenLength)
	}
	in.Referrer = truncate(in.Referrer, maxURLLength)
	return nil
}

// RecordPageView enregistre une page vue et met à jour visiteur et session
func (as *AnalyticsService) RecordPageView(ctx context.Context, in PageViewInput) (*PageView, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	fp := in.Fingerprint.complete()
	if fp.Country == "" && as.geoip != nil && fp.IP != "" {
		if loc, ok := as.geoip.Lookup(fp.IP); ok {
			fp.Country = loc.Country
			if fp.City == "" {
				fp.City = loc.City
			}
		}
	}

	now := as.now()
	source, campaign := trafficSource(in.URL, in.Referrer)

	var pageView PageView
	err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		visitorID, err := upsertVisitor(tx, fp, now)
		if err != nil {
			return err
		}

		session := Session{
			Token:        in.SessionToken,
			VisitorID:    visitorID,
			StartedAt:    now,
			LastActivity: now,
			PageViews:    1,
			Bounce:       true,
			Source:       source,
			Campaign:     campaign,
			LandingPage:  in.URL,
		}
		err = tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "token"}},
			DoUpdates: clause.Assignments(map[string]any{
				"page_views":    gorm.Expr("page_views + 1"),
				"bounce":        false,
				"last_activity": now,
			}),
		}).Create(&session).Error
		if err != nil {
			return err
		}
		var stored Session
		if err := tx.Select("id").Where("token = ?", in.SessionToken).Take(&stored).Error; err != nil {
			return err
		}

		pageView = PageView{
			SessionID:  &stored.ID,
			VisitorID:  visitorID,
			ArticleID:  in.ArticleID,
			CategoryID: in.CategoryID,
			URL:        in.URL,
			Title:      in.Title,
			Referrer:   in.Referrer,
			CreatedAt:  now,
		}
		return tx.Create(&pageView).Error
	})
	if err != nil {
		return nil, clerrors.Storage(err)
	}

	as.metrics.RecordPageView()
	return &pageView, nil
}

// upsertVisitor incrémente le compteur de visites au niveau SQL. Un client
// sans adresse n'a pas de visiteur.
func upsertVisitor(tx *gorm.DB, fp VisitorFingerprint, now time.Time) (*uint, error) {
	if fp.IP == "" {
		return nil, nil
	}

	visitor := Visitor{
		IPAddress:  fp.IP,
		UserAgent:  truncate(fp.UserAgent, 512),
		DeviceType: fp.DeviceType,
		Browser:    fp.Browser,
		OS:         fp.OS,
		Country:    fp.Country,
		City:       fp.City,
		FirstSeen:  now,
		LastSeen:   now,
		VisitCount: 1,
		IsUnique:   true,
	}
	updates := clause.Assignments(map[string]any{
		"visit_count": gorm.Expr("visit_count + 1"),
		"is_unique":   false,
	})
	updates = append(updates, clause.AssignmentColumns([]string{
		"last_seen", "user_agent", "device_type", "browser", "os", "country", "city",
	})...)

	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ip_address"}},
		DoUpdates: updates,
	}).Create(&visitor).Error
	if err != nil {
		return nil, err
	}

	var stored Visitor
	if err := tx.Select("id").Where("ip_address = ?", fp.IP).Take(&stored).Error; err != nil {
		return nil, err
	}
	return &stored.ID, nil
}

// EndSession clôt une session. Un second appel écrase durée et rebond.
func (as *AnalyticsService) EndSession(ctx context.Context, token string, durationSeconds int64) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return clerrors.Validation("sessionId requis")
	}
	if durationSeconds < 0 {
		return clerrors.Validation("la durée doit être positive")
	}

	db := as.db.WithContext(ctx)
	res := db.Model(&Session{}).
		Where("token = ?", token).
		Updates(map[string]any{
			"ended_at": as.now(),
			"duration": durationSeconds,
			"bounce":   gorm.Expr("CASE WHEN page_views = 1 THEN ? ELSE ? END", true, false),
		})
	if res.Error != nil {
		return clerrors.Storage(res.Error)
	}

	if res.RowsAffected == 0 {
		// certains drivers ne comptent que les lignes réellement modifiées
		var count int64
		if err := db.Model(&Session{}).Where("token = ?", token).Count(&count).Error; err != nil {
			return clerrors.Storage(err)
		}
		if count == 0 {
			return clerrors.NotFound("session %s introuvable", token)
		}
	}

	as.metrics.RecordSessionEnded("client", 1)
	return nil
}

// CloseStaleSessions termine les sessions inactives depuis plus de timeout
func (as *AnalyticsService) CloseStaleSessions(ctx context.Context, timeout time.Duration) (int64, error) {
	cutoff := as.now().Add(-timeout)
	db := as.db.WithContext(ctx)

	var closed int64
	for {
		var stale []Session
		err := db.Select("id", "started_at", "last_activity").
			Where("ended_at IS NULL AND last_activity < ?", cutoff).
			Order("id ASC").
			Limit(staleSessionBatch).
			Find(&stale).Error
		if err != nil {
			return closed, clerrors.Storage(err)
		}

		for _, s := range stale {
			duration := int64(s.LastActivity.Sub(s.StartedAt).Seconds())
			if duration < 0 {
				duration = 0
			}
			res := db.Model(&Session{}).
				Where("id = ? AND ended_at IS NULL", s.ID).
				Updates(map[string]any{
					"ended_at": s.LastActivity,
					"duration": duration,
					"bounce":   gorm.Expr("CASE WHEN page_views = 1 THEN ? ELSE ? END", true, false),
				})
			if res.Error != nil {
				return closed, clerrors.Storage(res.Error)
			}
			closed += res.RowsAffected
		}

		if len(stale) < staleSessionBatch {
			break
		}
	}

	as.metrics.RecordSessionEnded("timeout", int(closed))
	return closed, nil
}

// PurgeOlderThan supprime les données plus anciennes que days jours. days <= 0 ne supprime rien.
func (as *AnalyticsService) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := as.now().AddDate(0, 0, -days)

	var deleted int64
	err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		steps := []struct {
			model any
			where string
		}{
			{&PageView{}, "created_at < ?"},
			{&Session{}, "last_activity < ?"},
			{&Visitor{}, "last_seen < ?"},
		}
		for _, step := range steps {
			res := tx.Where(step.where, cutoff).Delete(step.model)
			if res.Error != nil {
				return res.Error
			}
			deleted += res.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, clerrors.Storage(err)
	}

	// le résumé en cache compterait encore les lignes supprimées
	if deleted > 0 {
		if err := as.InvalidateSummary(ctx); err != nil {
			log.Warn().Err(err).Msg("summary cache invalidation failed")
		}
	}
	return deleted, nil
}

// truncate coupe à max octets sans scinder un caractère UTF-8
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

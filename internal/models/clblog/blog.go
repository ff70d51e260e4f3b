package clblog

import (
	"blogcms/internal/clredis"
	"blogcms/internal/models/clanalytics"
	"blogcms/internal/models/clapikeys"
	"blogcms/internal/models/clconfig"
	"blogcms/internal/models/clgeoip"
	"blogcms/internal/models/clmetrics"
	"blogcms/internal/models/clstorage"
	"blogcms/internal/models/clusers"
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const summaryCachePrefix = "blogcms:analytics"

// Blogcms regroupe les dépendances partagées par les handlers
type Blogcms struct {
	Db            *gorm.DB
	Redis         *redis.Client
	GeoIP         *clgeoip.Reader
	Configuration *clconfig.Config
	Metrics       *clmetrics.Metrics
	Analytics     *clanalytics.AnalyticsService
	ApiKeys       *clapikeys.Service
	Users         *clusers.Service
	Jobs          *cron.Cron
	Version       string
	BuildID       string
}

// Init ouvre la base, les services optionnels (redis, geoip) et construit les services
func Init(ctx context.Context, config *clconfig.Config, version string, buildid string) (*Blogcms, error) {
	bl := &Blogcms{
		Configuration: config,
		Metrics:       clmetrics.New(),
		Version:       version,
		BuildID:       buildid,
	}

	if err := bl.initDatabase(); err != nil {
		return nil, err
	}
	bl.initRedis(ctx)
	bl.initGeoIP()
	bl.initServices()

	if err := bl.Users.SeedSuperAdmin(ctx, config.Admin.Login, config.Admin.Hash); err != nil {
		bl.Close()
		return nil, fmt.Errorf("création du superadmin: %w", err)
	}

	return bl, nil
}

// Models liste tous les modèles persistés
func Models() []any {
	models := clanalytics.Models()
	return append(models, &clapikeys.ApiKey{}, &clusers.User{})
}

func (bl *Blogcms) initDatabase() error {
	// Créer le logger GORM avec Zerolog
	level := "warn"
	if bl.Configuration.Logger.Level == "debug" || !bl.Configuration.Production {
		level = "debug"
	}

	db, err := clstorage.Open(bl.Configuration.Database, level)
	if err != nil {
		return err
	}
	if err := clstorage.Migrate(db, Models()...); err != nil {
		_ = clstorage.Close(db)
		return err
	}

	bl.Db = db
	return nil
}

// initRedis: sans redis le résumé est recalculé à chaque appel
func (bl *Blogcms) initRedis(ctx context.Context) {
	cfg := bl.Configuration.Redis
	if cfg.Addr == "" {
		return
	}

	client, err := clredis.Open(ctx, cfg.Addr, cfg.Db)
	if err != nil {
		log.Warn().Err(err).Msg("cache redis désactivé")
		return
	}
	bl.Redis = client
}

func (bl *Blogcms) initGeoIP() {
	path := bl.Configuration.Analytics.GeoIPDb
	if path == "" {
		return
	}

	reader, err := clgeoip.Open(path)
	if err != nil {
		log.Warn().Err(err).Msg("geoip désactivé")
		return
	}
	bl.GeoIP = reader
}

func (bl *Blogcms) initServices() {
	opts := []clanalytics.Option{clanalytics.WithMetrics(bl.Metrics)}
	if bl.Redis != nil {
		opts = append(opts, clanalytics.WithCache(clredis.New(bl.Redis, summaryCachePrefix), bl.Configuration.Redis.SummaryTTL))
	}
	if bl.GeoIP != nil {
		opts = append(opts, clanalytics.WithGeoIP(bl.GeoIP))
	}
	bl.Analytics = clanalytics.NewAnalyticsService(bl.Db, opts...)

	bl.ApiKeys = clapikeys.NewService(bl.Db,
		clapikeys.WithPrefix(bl.Configuration.ApiKeys.Prefix),
		clapikeys.WithDefaultRateLimit(bl.Configuration.ApiKeys.DefaultRateLimit),
		clapikeys.WithMetrics(bl.Metrics),
	)
	bl.Users = clusers.NewService(bl.Db)
}

// StartJobs démarre les tâches planifiées de l'agrégateur
func (bl *Blogcms) StartJobs() error {
	cfg := bl.Configuration.Analytics
	jobs, err := bl.Analytics.StartJobs(cfg.SessionTimeout, cfg.RetentionDays)
	if err != nil {
		return err
	}
	bl.Jobs = jobs
	return nil
}

// Close arrête les tâches puis ferme les connexions ouvertes par Init
func (bl *Blogcms) Close() error {
	if bl.Jobs != nil {
		<-bl.Jobs.Stop().Done()
	}

	var errs []error
	if bl.GeoIP != nil {
		errs = append(errs, bl.GeoIP.Close())
	}
	if bl.Redis != nil {
		errs = append(errs, bl.Redis.Close())
	}
	errs = append(errs, clstorage.Close(bl.Db))
	return errors.Join(errs...)
}

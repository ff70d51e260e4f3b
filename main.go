package main

import (
	"blogcms/internal/clmiddleware"
	handlers_ai "blogcms/internal/handlers/ai"
	handlers_analytics "blogcms/internal/handlers/analytics"
	handlers_apikeys "blogcms/internal/handlers/apikeys"
	handlers_auth "blogcms/internal/handlers/auth"
	"blogcms/internal/models/clblog"
	"blogcms/internal/models/clconfig"
	"blogcms/internal/models/cllog"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const VERSION string = "1.0.0"

const (
	shutdownTimeout = 10 * time.Second
	loginRateLimit  = 5
)

var BuildID string

func initConfiguration() *clconfig.Config {
	configFile, shouldCreateExample, versionDisplay, err := parseCommandLineArgs()
	if err != nil {
		fmt.Println("Usage:")
		fmt.Println("  blogcms -config blogcms.yaml")
		fmt.Println("  blogcms -example  (pour créer un fichier exemple)")
		fmt.Println("  blogcms -version  (affiche la version)")
		os.Exit(1)
	}

	if versionDisplay {
		fmt.Println(VERSION)
		os.Exit(0)
	}

	clconfig.CreateExample(shouldCreateExample, configFile)

	conf, err := clconfig.LoadConfig(configFile)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	if err := conf.Validate(); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	if err := clconfig.HashAdminPassword(configFile, conf); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	return conf
}

func newServer(conf *clconfig.Config) *gin.Engine {
	if conf.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	if conf.TrustedProxies != nil {
		if err := r.SetTrustedProxies(conf.TrustedProxies); err != nil {
			log.Warn().Err(err).Msg("trustedproxies invalide")
		}
	}
	if conf.TrustedPlatform != "" {
		switch conf.TrustedPlatform {
		case "cloudflare":
			r.TrustedPlatform = gin.PlatformCloudflare
		case "google":
			r.TrustedPlatform = gin.PlatformGoogleAppEngine
		case "flyio":
			r.TrustedPlatform = gin.PlatformFlyIO
		default:
			r.TrustedPlatform = conf.TrustedPlatform
		}
	}
	return r
}

func setRoutes(r *gin.Engine, bl *clblog.Blogcms) {
	conf := bl.Configuration

	analytics := handlers_analytics.NewAnalyticsHandler(bl.Analytics)
	apikeys := handlers_apikeys.NewApiKeysHandler(bl.ApiKeys)
	auth := handlers_auth.NewAuthHandler(bl.Users)

	// middleware rate limiter
	loginLimiter := clmiddleware.NewLimiter(time.Minute, loginRateLimit)
	trackLimiter := clmiddleware.NewLimiter(time.Minute, conf.Analytics.TrackLimit)

	//default
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Page non trouvée"})
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": bl.Version, "build": bl.BuildID})
	})

	// Routes d'authentification
	r.POST("/admin/login", loginLimiter, auth.Login)
	r.POST("/admin/logout", auth.Logout)
	r.GET("/admin/me", clmiddleware.AuthRequired(), auth.Me)

	// Analytics: collecte publique, lecture réservée à l'administration
	api := r.Group("/api")
	{
		api.POST("/analytics/track-visit", trackLimiter, analytics.TrackVisit)
		api.POST("/analytics/update-session", trackLimiter, analytics.UpdateSession)
		api.GET("/analytics/detailed", clmiddleware.AuthRequired(), analytics.GetDetailed)
	}

	// Gestion des clés API
	admin := r.Group("/api/admin")
	admin.Use(clmiddleware.AuthRequired())
	{
		admin.GET("/api-keys", apikeys.List)
		admin.POST("/api-keys", apikeys.Create)
		admin.GET("/api-keys/:id", apikeys.Get)
		admin.PUT("/api-keys/:id", apikeys.Update)
		admin.DELETE("/api-keys/:id", apikeys.Delete)
		admin.POST("/api-keys/:id/regenerate", apikeys.Regenerate)
	}

	// Intégrations externes authentifiées par X-API-Key
	handlers_ai.Register(r.Group("/api/ai"), bl.ApiKeys, analytics)
}

func startServer(ctx context.Context, r *gin.Engine, bl *clblog.Blogcms) error {
	conf := bl.Configuration

	if conf.Listen.Metrics != "" {
		metricsServer := &http.Server{
			Addr:              conf.Listen.Metrics,
			Handler:           bl.Metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.Info().Msgf("Metrics disponible sur http://%s/metrics", conf.Listen.Metrics)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("serveur metrics arrêté")
			}
		}()
		defer metricsServer.Close()
	}

	server := &http.Server{
		Addr:              conf.Listen.Website,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("Website démarré sur http://%s", conf.Listen.Website)
		log.Info().Msgf("Admin: http://%s/admin/login", conf.Listen.Website)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Arrêt du serveur")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func parseCommandLineArgs() (configFile string, shouldCreateExample bool, versionDisplay bool, err error) {
	var config = flag.String("config", "", "Fichier de configuration YAML")
	var example = flag.Bool("example", false, "Créer un fichier de configuration exemple")
	var version = flag.Bool("version", false, "version du produit")
	flag.Parse()

	if *version {
		return "", false, true, nil
	}

	if *example {
		return *config, true, false, nil
	}

	if *config == "" {
		return "", false, false, fmt.Errorf("fichier de configuration requis")
	}

	return *config, false, false, nil
}

func main() {
	if BuildID == "" {
		BuildID = VERSION
	}

	conf := initConfiguration()
	if err := cllog.InitLogger(conf.Logger, conf.Production); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	clconfig.DisplayConfiguration(conf, VERSION)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bl, err := clblog.Init(ctx, conf, VERSION, BuildID)
	if err != nil {
		log.Fatal().Err(err).Msg("initialisation impossible")
	}
	defer func() {
		if err := bl.Close(); err != nil {
			log.Error().Err(err).Msg("fermeture des ressources")
		}
	}()

	if err := bl.StartJobs(); err != nil {
		log.Error().Err(err).Msg("démarrage des tâches planifiées")
		return
	}

	r := newServer(conf)
	clmiddleware.InitMiddleware(r, conf.Production, bl.Metrics)
	setRoutes(r, bl)

	if err := startServer(ctx, r, bl); err != nil {
		log.Error().Err(err).Msg("serveur arrêté")
	}
}

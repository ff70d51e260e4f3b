package clconfig

import (
	"fmt"
	"log/syslog"
	"os"
	"strings"
	"time"

	"github.com/andskur/argon2-hashing"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListen           = "localhost:8080"
	DefaultSessionTimeout   = 30 * time.Minute
	DefaultSummaryTTL       = 10 * time.Second
	DefaultRateLimit        = 100
	DefaultKeyPrefix        = "bkp_"
	DefaultTrackLimit       = 60
	minAdminPasswordLength  = 8
	defaultConfigFile       = "blogcms.yaml"
	defaultSystemConfigFile = "/etc/blogcms/config.yaml"
)

type Config struct {
	TrustedProxies  []string        `yaml:"trustedproxies"`
	TrustedPlatform string          `yaml:"trustedplatform"`
	Production      bool            `yaml:"production"`
	Listen          ListenConfig    `yaml:"listen"`
	Database        DatabaseConfig  `yaml:"database"`
	Redis           RedisConfig     `yaml:"redis"`
	Logger          LoggerConfig    `yaml:"logger"`
	Admin           UserConfig      `yaml:"admin"`
	Analytics       AnalyticsConfig `yaml:"analytics"`
	ApiKeys         ApiKeysConfig   `yaml:"apikeys"`
}

type ListenConfig struct {
	Website string `yaml:"website"`
	Metrics string `yaml:"metrics"`
}

type DatabaseConfig struct {
	Db   string `yaml:"db"`
	Path string `yaml:"path"`
	Dsn  string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr       string        `yaml:"addr"`
	Db         int           `yaml:"db"`
	SummaryTTL time.Duration `yaml:"summaryttl"`
}

type LoggerConfig struct {
	Level  string             `yaml:"level"`
	File   LoggerFileConfig   `yaml:"file"`
	Syslog LoggerSyslogConfig `yaml:"syslog"`
}

type LoggerFileConfig struct {
	Enable     bool   `yaml:"enable"`
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"maxsize"`
	MaxBackups int    `yaml:"maxbackups"`
	MaxAge     int    `yaml:"maxage"`
	Compress   bool   `yaml:"compress"`
}

type LoggerSyslogConfig struct {
	Enable   bool            `yaml:"enable"`
	Protocol string          `yaml:"protocol"`
	Address  string          `yaml:"address"`
	Tag      string          `yaml:"tag"`
	Priority syslog.Priority `yaml:"priority"`
}

type UserConfig struct {
	Login string `yaml:"login"`
	Pass  string `yaml:"pass"`
	Hash  string `yaml:"hash"`
}

type AnalyticsConfig struct {
	GeoIPDb        string        `yaml:"geoipdb"`
	SessionTimeout time.Duration `yaml:"sessiontimeout"`
	RetentionDays  int           `yaml:"retentiondays"`
	TrackLimit     int64         `yaml:"tracklimit"`
}

type ApiKeysConfig struct {
	Prefix           string `yaml:"prefix"`
	DefaultRateLimit int64  `yaml:"defaultratelimit"`
}

func CreateExampleConfig(filename string) (string, error) {
	example := &Config{
		Production: false,
		Listen: ListenConfig{
			Website: "0.0.0.0:8080",
			Metrics: "127.0.0.1:8090",
		},
		Database: DatabaseConfig{
			Db:   "sqlite",
			Path: "./blogcms.db",
		},
		Logger: LoggerConfig{
			Level: "info",
		},
		Admin: UserConfig{
			Login: "admin",
			Pass:  "admin1234",
		},
		Analytics: AnalyticsConfig{
			SessionTimeout: DefaultSessionTimeout,
			TrackLimit:     DefaultTrackLimit,
		},
		ApiKeys: ApiKeysConfig{
			Prefix:           DefaultKeyPrefix,
			DefaultRateLimit: DefaultRateLimit,
		},
	}

	if filename == "/etc/" {
		example.Listen.Website = "127.0.0.1:8000"
		example.Production = true
		example.Database.Path = "/var/lib/blogcms/sqlite.db"
		example.Logger.File = LoggerFileConfig{
			Enable:     true,
			Path:       "/var/log/blogcms/blogcms.log",
			MaxSize:    100,
			MaxBackups: 30,
			MaxAge:     7,
			Compress:   true,
		}
		filename = defaultSystemConfigFile
	}

	return filename, WriteConfigYaml(filename, example)
}

func WriteConfigYaml(filename string, conf *Config) error {
	data, err := yaml.Marshal(conf)
	if err != nil {
		return err
	}

	return os.WriteFile(filename, data, 0600)
}

// Charger la configuration YAML
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("impossible de lire le fichier %s: %w", filename, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("erreur de parsing YAML: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Listen.Website == "" {
		c.Listen.Website = DefaultListen
	}
	if strings.HasPrefix(c.Listen.Website, ":") {
		c.Listen.Website = "localhost" + c.Listen.Website
	}
	if c.Redis.SummaryTTL <= 0 {
		c.Redis.SummaryTTL = DefaultSummaryTTL
	}
	if c.Analytics.SessionTimeout <= 0 {
		c.Analytics.SessionTimeout = DefaultSessionTimeout
	}
	if c.Analytics.TrackLimit <= 0 {
		c.Analytics.TrackLimit = DefaultTrackLimit
	}
	if c.ApiKeys.Prefix == "" {
		c.ApiKeys.Prefix = DefaultKeyPrefix
	}
	if c.ApiKeys.DefaultRateLimit <= 0 {
		c.ApiKeys.DefaultRateLimit = DefaultRateLimit
	}
}

// Validate vérifie la cohérence de la configuration chargée
func (c *Config) Validate() error {
	switch c.Database.Db {
	case "":
		return fmt.Errorf("database.db ne peut pas être vide")
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database.path ne peut pas être vide")
		}
	case "mysql":
		if c.Database.Dsn == "" {
			return fmt.Errorf("database.dsn ne peut pas être vide")
		}
	default:
		return fmt.Errorf("le type de database doit etre sqlite ou mysql")
	}

	if c.Admin.Login == "" {
		return fmt.Errorf("admin.login ne peut pas être vide")
	}
	if c.Admin.Pass != "" && len(c.Admin.Pass) < minAdminPasswordLength {
		return fmt.Errorf("le mot de passe doit contenir au moins %d caractères", minAdminPasswordLength)
	}
	if c.Admin.Pass == "" && c.Admin.Hash == "" {
		return fmt.Errorf("admin.pass ou admin.hash doit être renseigné")
	}
	if c.Analytics.RetentionDays < 0 {
		return fmt.Errorf("analytics.retentiondays doit être positif")
	}
	return nil
}

// HashAdminPassword remplace le mot de passe en clair par son hash argon2
// et réécrit le fichier. Ne fait rien si aucun mot de passe en clair n'est présent.
func HashAdminPassword(filename string, conf *Config) error {
	if conf.Admin.Pass == "" {
		return nil
	}

	hash, err := argon2.GenerateFromPassword([]byte(conf.Admin.Pass), argon2.DefaultParams)
	if err != nil {
		return err
	}
	conf.Admin.Hash = string(hash)
	conf.Admin.Pass = ""
	return WriteConfigYaml(filename, conf)
}

func CreateExample(shouldCreateExample bool, configFile string) {
	if shouldCreateExample {
		if err := handleExampleCreation(configFile); err != nil {
			fmt.Printf("❌ %v\n", err)
		}
		os.Exit(1)
	}

	_, err := os.Stat(configFile)
	if err != nil && os.IsNotExist(err) {
		if err := handleExampleCreation(configFile); err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
	}
}

func handleExampleCreation(filename string) error {
	if filename == "" {
		filename = defaultConfigFile
	}
	filename, err := CreateExampleConfig(filename)
	if err != nil {
		return fmt.Errorf("erreur création exemple: %w", err)
	}

	fmt.Printf("✅ Fichier exemple créé: %s\n", filename)
	fmt.Println("⚠️  admin.pass sera automatiquement hash en argon2 dans admin.hash au premier lancement")
	return nil
}

func DisplayConfiguration(config *Config, version string) {
	logPrintf("Blogcms version %s", version)
	logPrintf("Mode Production %v", config.Production)
	logPrintf("Administrateur login %s", config.Admin.Login)

	logPrintf("Database")
	switch config.Database.Db {
	case "sqlite":
		logPrintf("  • Type sqlite")
		logPrintf("  • Path %s", config.Database.Path)
	case "mysql":
		logPrintf("  • Type mysql")
	}
	if config.Redis.Addr != "" {
		logPrintf("  • Cache redis %s (ttl %s)", config.Redis.Addr, config.Redis.SummaryTTL)
	} else {
		logPrintf("  • Cache redis désactivé")
	}

	logPrintf("Analytics")
	logPrintf("  • Timeout session %s", config.Analytics.SessionTimeout)
	if config.Analytics.RetentionDays > 0 {
		logPrintf("  • Rétention %d jours", config.Analytics.RetentionDays)
	} else {
		logPrintf("  • Rétention illimitée")
	}
	if config.Analytics.GeoIPDb != "" {
		logPrintf("  • GeoIP %s", config.Analytics.GeoIPDb)
	}

	logPrintf("Clés API")
	logPrintf("  • Préfixe %s", config.ApiKeys.Prefix)
	logPrintf("  • Limite par défaut %d", config.ApiKeys.DefaultRateLimit)

	logPrintf("Logger en level %s", config.Logger.Level)
	if config.Logger.File.Enable {
		logPrintf("  Log en fichier activé")
		logPrintf("  • Path %s", config.Logger.File.Path)
		logPrintf("  • Max size %d", config.Logger.File.MaxSize)
		logPrintf("  • Max age %d", config.Logger.File.MaxAge)
		logPrintf("  • Max backup %d", config.Logger.File.MaxBackups)
		logPrintf("  • Compression %v", config.Logger.File.Compress)
	}
	if config.Logger.Syslog.Enable {
		logPrintf("  Log en syslog activé")
		logPrintf("  • Protocol %s", config.Logger.Syslog.Protocol)
		logPrintf("  • Address %s", config.Logger.Syslog.Address)
		logPrintf("  • Tag %s", config.Logger.Syslog.Tag)
	}
	if config.Listen.Metrics != "" {
		logPrintf("Metrics sur %s", config.Listen.Metrics)
	}
}

func logPrintf(format string, a ...any) {
	log.Info().Msg(fmt.Sprintf(format, a...))
}

package gormzerologger

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const DefaultSlowThreshold = 200 * time.Millisecond

// GormZerologger implémente logger.Interface de gorm au-dessus de zerolog
type GormZerologger struct {
	Logger                    zerolog.Logger
	LogLevel                  logger.LogLevel
	SlowThreshold             time.Duration
	IgnoreRecordNotFoundError bool
}

func New(logLevel string, slowThreshold time.Duration) *GormZerologger {
	return NewWithLogger(log.Logger, logLevel, slowThreshold)
}

func NewWithLogger(zl zerolog.Logger, logLevel string, slowThreshold time.Duration) *GormZerologger {
	if slowThreshold <= 0 {
		slowThreshold = DefaultSlowThreshold
	}
	return &GormZerologger{
		Logger:                    zl.With().Str("component", "gorm").Logger(),
		LogLevel:                  ParseLevel(logLevel),
		SlowThreshold:             slowThreshold,
		IgnoreRecordNotFoundError: true,
	}
}

// ParseLevel traduit un niveau zerolog en niveau gorm
func ParseLevel(level string) logger.LogLevel {
	switch level {
	case "silent":
		return logger.Silent
	case "debug", "trace":
		return logger.Info
	case "warn":
		return logger.Warn
	case "error":
		return logger.Error
	default:
		return logger.Warn
	}
}

// LogMode retourne une copie avec le niveau demandé
func (l *GormZerologger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *GormZerologger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Info {
		l.Logger.Info().Msgf(msg, data...)
	}
}

func (l *GormZerologger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Warn {
		l.Logger.Warn().Msgf(msg, data...)
	}
}

func (l *GormZerologger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Error {
		l.Logger.Error().Msgf(msg, data...)
	}
}

func (l *GormZerologger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.LogLevel <= logger.Silent {
		return
	}

	// Calculer la durée de la requête
	elapsed := time.Since(begin)
	notFound := errors.Is(err, gorm.ErrRecordNotFound) && l.IgnoreRecordNotFoundError

	switch {
	// Erreur SQL
	case err != nil && !notFound && l.LogLevel >= logger.Error:
		sql, rows := fc()
		l.Logger.Error().
			Err(err).
			Dur("elapsed_ms", elapsed).
			Int64("rows", rows).
			Str("sql", sql).
			Msg("database query error")

	// Requête lente
	case l.SlowThreshold != 0 && elapsed > l.SlowThreshold && l.LogLevel >= logger.Warn:
		sql, rows := fc()
		l.Logger.Warn().
			Dur("elapsed_ms", elapsed).
			Dur("threshold", l.SlowThreshold).
			Int64("rows", rows).
			Str("sql", sql).
			Msg("slow database query")

	// Toutes les requêtes en mode debug
	case l.LogLevel >= logger.Info:
		sql, rows := fc()
		l.Logger.Debug().
			Dur("elapsed_ms", elapsed).
			Int64("rows", rows).
			Str("sql", sql).
			Msg("database query")
	}
}

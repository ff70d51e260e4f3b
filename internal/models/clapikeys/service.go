package clapikeys

import (
	"blogcms/internal/models/clerrors"
	"blogcms/internal/models/clmetrics"
	"blogcms/internal/models/clusers"
	"context"
	"errors"
	"net/netip"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const (
	DefaultPrefix    = "bkp_"
	DefaultRateLimit = 100
	maxNameLength    = 255
	maxTokenAttempts = 3
)

type Service struct {
	db               *gorm.DB
	prefix           string
	defaultRateLimit int64
	metrics          *clmetrics.Metrics
	now              func() time.Time
	generate         func(prefix string) (string, error)
}

type Option func(*Service)

func WithPrefix(prefix string) Option {
	return func(s *Service) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func WithDefaultRateLimit(limit int64) Option {
	return func(s *Service) {
		if limit > 0 {
			s.defaultRateLimit = limit
		}
	}
}

func WithMetrics(m *clmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(db *gorm.DB, opts ...Option) *Service {
	s := &Service{
		db:               db,
		prefix:           DefaultPrefix,
		defaultRateLimit: DefaultRateLimit,
		now:              time.Now,
		generate:         generateToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateInput struct {
	Name        string
	Permissions StringSet
	RateLimit   int64
	AllowedIPs  StringSet
	ExpiresAt   *time.Time
	Metadata    Metadata
}

// UpdateInput ne modifie que les champs renseignés. Scopes est fusionné avec Permissions.
type UpdateInput struct {
	Name           *string
	Permissions    *StringSet
	Scopes         *StringSet
	RateLimit      *int64
	AllowedIPs     *StringSet
	ExpiresAt      *time.Time
	ClearExpiresAt bool
	IsActive       *bool
	Metadata       *Metadata
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", clerrors.Validation("le nom est requis")
	}
	if len(name) > maxNameLength {
		return "", clerrors.Validation("le nom est trop long (max %d)", maxNameLength)
	}
	return name, nil
}

func validateAllowedIPs(ips StringSet) (StringSet, error) {
	ips = NewStringSet(ips...)
	for _, ip := range ips {
		if strings.Contains(ip, "/") {
			if _, err := netip.ParsePrefix(ip); err != nil {
				return nil, clerrors.Validation("plage IP invalide: %s", ip)
			}
			continue
		}
		if _, err := netip.ParseAddr(ip); err != nil {
			return nil, clerrors.Validation("adresse IP invalide: %s", ip)
		}
	}
	return ips, nil
}

func (s *Service) validateExpiry(expiresAt *time.Time) error {
	if expiresAt != nil && !expiresAt.After(s.now()) {
		return clerrors.Validation("la date d'expiration doit être dans le futur")
	}
	return nil
}

// Create délivre une nouvelle clé. Le jeton en clair n'est renvoyé qu'ici.
func (s *Service) Create(ctx context.Context, caller clusers.Caller, in CreateInput) (*ApiKey, string, error) {
	if !caller.IsAdmin() {
		return nil, "", clerrors.Forbidden("création réservée aux administrateurs")
	}

	name, err := validateName(in.Name)
	if err != nil {
		return nil, "", err
	}
	permissions := NewStringSet(in.Permissions...)
	if len(permissions) == 0 {
		return nil, "", clerrors.Validation("au moins une permission est requise")
	}
	if in.RateLimit < 0 {
		return nil, "", clerrors.Validation("la limite doit être positive")
	}
	if in.RateLimit > MaxRateLimit {
		return nil, "", clerrors.Validation("la limite est trop grande (max %d)", int64(MaxRateLimit))
	}
	rateLimit := in.RateLimit
	if rateLimit == 0 {
		rateLimit = s.defaultRateLimit
	}
	allowedIPs, err := validateAllowedIPs(in.AllowedIPs)
	if err != nil {
		return nil, "", err
	}
	if err := s.validateExpiry(in.ExpiresAt); err != nil {
		return nil, "", err
	}
	metadata := in.Metadata
	if metadata == nil {
		metadata = Metadata{}
	}

	db := s.db.WithContext(ctx)
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		token, err := s.generate(s.prefix)
		if err != nil {
			return nil, "", err
		}

		key := &ApiKey{
			Name:        name,
			KeyHash:     HashToken(token),
			KeyPrefix:   displayPrefix(token),
			Permissions: permissions,
			RateLimit:   rateLimit,
			AllowedIPs:  allowedIPs,
			ExpiresAt:   in.ExpiresAt,
			CreatedBy:   caller.ID,
			IsActive:    true,
			Metadata:    metadata,
		}
		err = db.Create(key).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			log.Warn().Int("attempt", attempt).Msg("api key token collision, retrying")
			continue
		}
		if err != nil {
			return nil, "", clerrors.Storage(err)
		}

		key.Key = MaskToken(token)
		log.Info().Uint("api_key_id", key.ID).Uint("created_by", caller.ID).Msg("api key created")
		return key, token, nil
	}
	return nil, "", clerrors.Storage(errors.New("token collision after retries"))
}

// scoped restreint la requête aux clés du créateur pour un utilisateur non administrateur
func (s *Service) scoped(ctx context.Context, caller clusers.Caller) *gorm.DB {
	db := s.db.WithContext(ctx)
	if !caller.IsAdmin() {
		db = db.Where("created_by = ?", caller.ID)
	}
	return db
}

func (s *Service) List(ctx context.Context, caller clusers.Caller, includeInactive bool) ([]ApiKey, error) {
	db := s.scoped(ctx, caller)
	if !includeInactive {
		db = db.Where("is_active = ?", true)
	}

	keys := []ApiKey{}
	if err := db.Order("id ASC").Find(&keys).Error; err != nil {
		return nil, clerrors.Storage(err)
	}
	return keys, nil
}

// Get renvoie la clé masquée. Une clé d'un autre utilisateur est introuvable.
func (s *Service) Get(ctx context.Context, caller clusers.Caller, id uint) (*ApiKey, error) {
	var key ApiKey
	err := s.scoped(ctx, caller).Where("id = ?", id).Take(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, clerrors.NotFound("clé API %d introuvable", id)
	}
	if err != nil {
		return nil, clerrors.Storage(err)
	}
	return &key, nil
}

// Delete désactive la clé, ou la supprime si permanent est vrai
func (s *Service) Delete(ctx context.Context, caller clusers.Caller, id uint, permanent bool) error {
	key, err := s.Get(ctx, caller, id)
	if err != nil {
		return err
	}

	db := s.db.WithContext(ctx)
	if permanent {
		err = db.Delete(&ApiKey{}, key.ID).Error
	} else {
		err = db.Model(&ApiKey{}).Where("id = ?", key.ID).Update("is_active", false).Error
	}
	if err != nil {
		return clerrors.Storage(err)
	}

	log.Info().Uint("api_key_id", key.ID).Bool("permanent", permanent).Uint("by", caller.ID).Msg("api key deleted")
	return nil
}

// Regenerate remplace le jeton et remet le compteur d'utilisation à zéro
func (s *Service) Regenerate(ctx context.Context, caller clusers.Caller, id uint) (*ApiKey, string, error) {
	key, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, "", err
	}

	db := s.db.WithContext(ctx)
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		token, err := s.generate(s.prefix)
		if err != nil {
			return nil, "", err
		}

		err = db.Model(&ApiKey{}).Where("id = ?", key.ID).Updates(map[string]any{
			"key_hash":    HashToken(token),
			"key_prefix":  displayPrefix(token),
			"usage_count": 0,
		}).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		if err != nil {
			return nil, "", clerrors.Storage(err)
		}

		key.KeyPrefix = displayPrefix(token)
		key.Key = MaskToken(token)
		key.UsageCount = 0
		log.Info().Uint("api_key_id", key.ID).Uint("by", caller.ID).Msg("api key regenerated")
		return key, token, nil
	}
	return nil, "", clerrors.Storage(errors.New("token collision after retries"))
}

// Update applique une mise à jour partielle
func (s *Service) Update(ctx context.Context, caller clusers.Caller, id uint, in UpdateInput) (*ApiKey, error) {
	key, err := s.Get(ctx, caller, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Name != nil {
		name, err := validateName(*in.Name)
		if err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if in.Permissions != nil || in.Scopes != nil {
		var merged StringSet
		if in.Permissions != nil {
			merged = append(merged, (*in.Permissions)...)
		}
		if in.Scopes != nil {
			merged = append(merged, (*in.Scopes)...)
		}
		merged = NewStringSet(merged...)
		if len(merged) == 0 {
			return nil, clerrors.Validation("au moins une permission est requise")
		}
		updates["permissions"] = merged
	}
	if in.RateLimit != nil {
		if *in.RateLimit <= 0 {
			return nil, clerrors.Validation("la limite doit être strictement positive")
		}
		if *in.RateLimit > MaxRateLimit {
			return nil, clerrors.Validation("la limite est trop grande (max %d)", int64(MaxRateLimit))
		}
		updates["rate_limit"] = *in.RateLimit
	}
	if in.AllowedIPs != nil {
		ips, err := validateAllowedIPs(*in.AllowedIPs)
		if err != nil {
			return nil, err
		}
		updates["allowed_ips"] = ips
	}
	if in.ClearExpiresAt {
		updates["expires_at"] = nil
	} else if in.ExpiresAt != nil {
		if err := s.validateExpiry(in.ExpiresAt); err != nil {
			return nil, err
		}
		updates["expires_at"] = *in.ExpiresAt
	}
	if in.IsActive != nil {
		updates["is_active"] = *in.IsActive
	}
	if in.Metadata != nil {
		metadata := *in.Metadata
		if metadata == nil {
			metadata = Metadata{}
		}
		updates["metadata"] = metadata
	}

	if len(updates) == 0 {
		return key, nil
	}
	if err := s.db.WithContext(ctx).Model(&ApiKey{}).Where("id = ?", key.ID).Updates(updates).Error; err != nil {
		return nil, clerrors.Storage(err)
	}
	return s.Get(ctx, caller, id)
}

// Authenticate valide un jeton présenté et comptabilise son utilisation.
// Les contrôles s'arrêtent au premier échec: existence et activité,
// expiration, liste d'IP, quota.
func (s *Service) Authenticate(ctx context.Context, token, clientIP string) (*ApiKey, error) {
	key, err := s.authenticate(ctx, token, clientIP)
	s.metrics.RecordAPIKeyAuth(authResult(err))
	return key, err
}

func (s *Service) authenticate(ctx context.Context, token, clientIP string) (*ApiKey, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, clerrors.Unauthorized("clé API manquante")
	}

	db := s.db.WithContext(ctx)
	var key ApiKey
	err := db.Where("key_hash = ?", HashToken(token)).Take(&key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, clerrors.Unauthorized("clé API invalide")
	}
	if err != nil {
		return nil, clerrors.Storage(err)
	}
	if !key.IsActive {
		return nil, clerrors.Unauthorized("clé API invalide")
	}

	now := s.now()
	if key.ExpiresAt != nil && key.ExpiresAt.Before(now) {
		return nil, clerrors.Unauthorized("clé API expirée")
	}
	if len(key.AllowedIPs) > 0 && !ipAllowed(key.AllowedIPs, clientIP) {
		return nil, clerrors.Forbidden("IP non autorisée")
	}

	quota := key.DailyQuota()
	if key.UsageCount >= quota {
		return nil, clerrors.TooManyRequests("limite de requêtes atteinte")
	}

	// l'incrément conditionnel garde le quota exact sous accès concurrents
	res := db.Model(&ApiKey{}).
		Where("id = ? AND usage_count < ?", key.ID, quota).
		UpdateColumns(map[string]any{
			"usage_count": gorm.Expr("usage_count + 1"),
			"last_used":   now,
		})
	if res.Error != nil {
		return nil, clerrors.Storage(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, clerrors.TooManyRequests("limite de requêtes atteinte")
	}

	key.UsageCount++
	key.LastUsed = &now
	return &key, nil
}

func ipAllowed(allowed StringSet, clientIP string) bool {
	addr, err := netip.ParseAddr(clientIP)
	if err != nil {
		return allowed.Contains(clientIP)
	}
	addr = addr.Unmap()

	for _, entry := range allowed {
		if strings.Contains(entry, "/") {
			if prefix, err := netip.ParsePrefix(entry); err == nil && prefix.Contains(addr) {
				return true
			}
			continue
		}
		if candidate, err := netip.ParseAddr(entry); err == nil && candidate.Unmap() == addr {
			return true
		}
	}
	return false
}

func authResult(err error) string {
	if err == nil {
		return "ok"
	}
	switch clerrors.KindOf(err) {
	case clerrors.KindUnauthorized:
		return "unauthorized"
	case clerrors.KindForbidden:
		return "forbidden"
	case clerrors.KindTooManyRequests:
		return "rate_limited"
	default:
		return "error"
	}
}

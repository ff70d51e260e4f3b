package clapikeys

import (
	"math"
	"time"

	"gorm.io/gorm"
)

const WildcardPermission = "*"

// MaxRateLimit borne la limite pour que RateLimit*24 tienne dans un int64
const MaxRateLimit = math.MaxInt64 / 24

// ApiKey est un identifiant délivré à une intégration externe. Seule
// l'empreinte du jeton est stockée, Key contient la forme masquée.
type ApiKey struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Name        string     `gorm:"size:255;not null" json:"name"`
	KeyHash     string     `gorm:"size:64;uniqueIndex;not null" json:"-"`
	KeyPrefix   string     `gorm:"size:16;not null" json:"-"`
	Key         string     `gorm:"-" json:"key"`
	Permissions StringSet  `gorm:"type:text" json:"permissions"`
	RateLimit   int64      `gorm:"not null" json:"rateLimit"`
	AllowedIPs  StringSet  `gorm:"column:allowed_ips;type:text" json:"allowedIps"`
	ExpiresAt   *time.Time `json:"expiresAt"`
	CreatedBy   uint       `gorm:"index;not null" json:"createdBy"`
	LastUsed    *time.Time `json:"lastUsed"`
	UsageCount  int64      `gorm:"not null" json:"usageCount"`
	IsActive    bool       `gorm:"index;not null" json:"isActive"`
	Metadata    Metadata   `gorm:"type:text" json:"metadata"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func (ApiKey) TableName() string {
	return "api_keys"
}

func (k *ApiKey) AfterFind(tx *gorm.DB) error {
	k.Key = k.KeyPrefix + maskSuffix
	return nil
}

// DailyQuota est le nombre total de requêtes accepté pour la clé
func (k *ApiKey) DailyQuota() int64 {
	return k.RateLimit * 24
}

// Authorize indique si la clé porte la permission demandée ou le joker "*".
// Aucune correspondance par préfixe: "content:*" n'est qu'une permission opaque.
func Authorize(key *ApiKey, permission string) bool {
	if key == nil {
		return false
	}
	return key.Permissions.Contains(WildcardPermission) || key.Permissions.Contains(permission)
}

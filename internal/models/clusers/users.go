package clusers

import (
	"blogcms/internal/models/clerrors"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/andskur/argon2-hashing"
	"gorm.io/gorm"
)

const minPasswordLength = 8

type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User est un compte de l'espace d'administration
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Login     string    `gorm:"size:64;uniqueIndex;not null" json:"login"`
	Hash      string    `gorm:"size:255;not null" json:"-"`
	Role      Role      `gorm:"size:16;not null" json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

// Caller identifie l'utilisateur à l'origine d'une opération
type Caller struct {
	ID   uint
	Role Role
}

func (c Caller) IsAdmin() bool {
	return c.Role.IsAdmin()
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func HashPassword(pass string) (string, error) {
	hash, err := argon2.GenerateFromPassword([]byte(pass), argon2.DefaultParams)
	return string(hash), err
}

// SeedSuperAdmin crée le superadmin de la configuration ou aligne son hash et son rôle
func (s *Service) SeedSuperAdmin(ctx context.Context, login, hash string) error {
	if login == "" || hash == "" {
		return clerrors.Validation("login et hash administrateur requis")
	}

	db := s.db.WithContext(ctx)
	var user User
	err := db.Where("login = ?", login).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return clerrors.Storage(db.Create(&User{Login: login, Hash: hash, Role: RoleSuperAdmin}).Error)
	}
	if err != nil {
		return clerrors.Storage(err)
	}

	return clerrors.Storage(db.Model(&user).Updates(map[string]any{
		"hash": hash,
		"role": RoleSuperAdmin,
	}).Error)
}

func (s *Service) Create(ctx context.Context, login, password string, role Role) (*User, error) {
	login = strings.TrimSpace(login)
	switch {
	case login == "":
		return nil, clerrors.Validation("login requis")
	case len(password) < minPasswordLength:
		return nil, clerrors.Validation("le mot de passe doit contenir au moins %d caractères", minPasswordLength)
	case !role.Valid():
		return nil, clerrors.Validation("rôle inconnu: %s", role)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &User{Login: login, Hash: hash, Role: role}
	err = s.db.WithContext(ctx).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, clerrors.Validation("le login %s existe déjà", login)
	}
	if err != nil {
		return nil, clerrors.Storage(err)
	}
	return user, nil
}

// Authenticate vérifie le couple login/mot de passe
func (s *Service) Authenticate(ctx context.Context, login, password string) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("login = ?", login).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, clerrors.Unauthorized("identifiants incorrects")
	}
	if err != nil {
		return nil, clerrors.Storage(err)
	}

	if err := argon2.CompareHashAndPassword([]byte(user.Hash), []byte(password)); err != nil {
		return nil, clerrors.Unauthorized("identifiants incorrects")
	}
	return &user, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*User, error) {
	var user User
	err := s.db.WithContext(ctx).Take(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, clerrors.NotFound("utilisateur %d introuvable", id)
	}
	if err != nil {
		return nil, clerrors.Storage(err)
	}
	return &user, nil
}

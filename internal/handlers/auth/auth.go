package handlers_auth

import (
	"blogcms/internal/clmiddleware"
	"blogcms/internal/models/clerrors"
	"blogcms/internal/models/clusers"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Authenticator interface {
	Authenticate(ctx context.Context, login, password string) (*clusers.User, error)
	Get(ctx context.Context, id uint) (*clusers.User, error)
}

type AuthHandler struct {
	users Authenticator
}

func NewAuthHandler(users Authenticator) *AuthHandler {
	return &AuthHandler{users: users}
}

type LoginRequest struct {
	Username string `json:"username" binding:"required,max=64"`
	Password string `json:"password" binding:"required,max=256"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := clmiddleware.BindJSON(c, &req); err != nil {
		clmiddleware.AbortWithError(c, err)
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if clerrors.KindOf(err) == clerrors.KindUnauthorized {
			log.Warn().Str("user", req.Username).Str("ip", c.ClientIP()).Msg("Tentative de connexion échouée")
		}
		clmiddleware.AbortWithError(c, err)
		return
	}
	log.Info().Str("user", user.Login).Str("ip", c.ClientIP()).Msg("Connexion réussie")

	if err := clmiddleware.SaveCaller(c, user); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Connexion réussie",
		"redirect": "/admin",
		"user":     user,
	})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := clmiddleware.ClearCaller(c); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Erreur session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Déconnexion réussie"})
}

// Me retourne l'utilisateur de la session courante
func (h *AuthHandler) Me(c *gin.Context) {
	caller, ok := clmiddleware.GetCaller(c)
	if !ok {
		clmiddleware.AbortWithError(c, clerrors.Unauthorized("Authentification requise"))
		return
	}

	user, err := h.users.Get(c.Request.Context(), caller.ID)
	if err != nil {
		clmiddleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

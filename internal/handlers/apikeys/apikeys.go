package handlers_apikeys

import (
	"blogcms/internal/clmiddleware"
	"blogcms/internal/models/clapikeys"
	"blogcms/internal/models/clerrors"
	"blogcms/internal/models/clusers"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Service est le sous-ensemble du contrôleur de clés utilisé par les handlers
type Service interface {
	Create(ctx context.Context, caller clusers.Caller, in clapikeys.CreateInput) (*clapikeys.ApiKey, string, error)
	List(ctx context.Context, caller clusers.Caller, includeInactive bool) ([]clapikeys.ApiKey, error)
	Get(ctx context.Context, caller clusers.Caller, id uint) (*clapikeys.ApiKey, error)
	Update(ctx context.Context, caller clusers.Caller, id uint, in clapikeys.UpdateInput) (*clapikeys.ApiKey, error)
	Delete(ctx context.Context, caller clusers.Caller, id uint, permanent bool) error
	Regenerate(ctx context.Context, caller clusers.Caller, id uint) (*clapikeys.ApiKey, string, error)
}

type ApiKeysHandler struct {
	service Service
}

func NewApiKeysHandler(service Service) *ApiKeysHandler {
	return &ApiKeysHandler{service: service}
}

type CreateRequest struct {
	Name        string              `json:"name" binding:"required,max=255"`
	Permissions clapikeys.StringSet `json:"permissions"`
	Scopes      clapikeys.StringSet `json:"scopes"`
	RateLimit   int64               `json:"rateLimit" binding:"min=0"`
	AllowedIPs  clapikeys.StringSet `json:"allowedIps"`
	ExpiresAt   *time.Time          `json:"expiresAt"`
	Metadata    clapikeys.Metadata  `json:"metadata"`
}

// UpdateRequest: seuls les champs présents sont modifiés. expiresAt à null
// n'est pas distinguable d'un champ absent, clearExpiresAt retire l'expiration.
type UpdateRequest struct {
	Name           *string              `json:"name" binding:"omitempty,max=255"`
	Permissions    *clapikeys.StringSet `json:"permissions"`
	Scopes         *clapikeys.StringSet `json:"scopes"`
	RateLimit      *int64               `json:"rateLimit"`
	AllowedIPs     *clapikeys.StringSet `json:"allowedIps"`
	ExpiresAt      *time.Time           `json:"expiresAt"`
	ClearExpiresAt bool                 `json:"clearExpiresAt"`
	IsActive       *bool                `json:"isActive"`
	Metadata       *clapikeys.Metadata  `json:"metadata"`
}

// keyResponse ajoute le jeton en clair, renvoyé uniquement à la création et à la régénération
type keyResponse struct {
	*clapikeys.ApiKey
	Token string `json:"token"`
}

func requireCaller(c *gin.Context) (clusers.Caller, bool) {
	caller, ok := clmiddleware.GetCaller(c)
	if !ok {
		clmiddleware.AbortWithError(c, clerrors.Unauthorized("Authentification requise"))
	}
	return caller, ok
}

func (h *ApiKeysHandler) List(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	includeInactive, _ := strconv.ParseBool(c.Query("includeInactive"))

	keys, err := h.service.List(c.Request.Context(), caller, includeInactive)
	if err != nil {
		clmiddleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys, "total": len(keys)})
}

func (h *ApiKeysHandler) Create(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	var req CreateRequest
	if err := clmiddleware.BindJSON(c, &req); err != nil {
		clmiddleware.AbortWithError(c, err)
		return
	}

	key, token, err := h.service.Create(c.Request.Context(), caller, clapikeys.CreateInput{
		Name:        req.Name,
		Permissions: append(req.Permissions, req.Scopes...),
		RateLimit:   req.RateLimit,
		AllowedIPs:  req.AllowedIPs,
		ExpiresAt:   req.ExpiresAt,
		Metadata:    req.Metadata,
	})
	if err != nil {
		clmiddleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, keyResponse{ApiKey: key, Token: token})
}

func (h *ApiKeysHandler) Get(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	id, err := clmiddleware.ParamID(c, "id")
	if err != nil {
		clmiddleware.AbortWithError(c, err)
		return
	}

	key, err := h.service.Get(c.Request.Context(), caller, id)
	if err != nil {
		clmiddleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

func (h *ApiKeysHandler) Update(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	id, err := clmiddleware.ParamID(c, "id")
	if err != nil {
		clmiddleware.AbortWithError(c, err)
		return
	}
	var req UpdateRequest
	if err := clmiddleware.BindJSON(c, &req); err != nil {
		clmiddleware.AbortWithError(c, err)
		return
	}

	key, err := h.service.Update(c.Request.Context(), caller, id, clapikeys.UpdateInput{
		Name:           req.Name,
		Permissions:    req.Permissions,
		Scopes:         req.Scopes,
		RateLimit:      req.RateLimit,
		AllowedIPs:     req.AllowedIPs,
		ExpiresAt:      req.ExpiresAt,
		ClearExpiresAt: req.ClearExpiresAt,
		IsActive:       req.IsActive,
		Metadata:       req.Metadata,
	})
	if err != nil {
		clmiddleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, key)
}

func (h *ApiKeysHandler) Delete(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	id, err := clmiddleware.ParamID(c, "id")
	if err != nil {
		clmiddleware.AbortWithError(c, err)
		return
	}
	permanent, _ := strconv.ParseBool(c.Query("permanent"))

	if err := h.service.Delete(c.Request.Context(), caller, id, permanent); err != nil {
		clmiddleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "permanent": permanent})
}

func (h *ApiKeysHandler) Regenerate(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	id, err := clmiddleware.ParamID(c, "id")
	if err != nil {
		clmiddleware.AbortWithError(c, err)
		return
	}

	key, token, err := h.service.Regenerate(c.Request.Context(), caller, id)
	if err != nil {
		clmiddleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, keyResponse{ApiKey: key, Token: token})
}

package clmiddleware

import (
	"blogcms/internal/models/clapikeys"
	"blogcms/internal/models/clerrors"
	"blogcms/internal/models/clusers"
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	SessionUserID = "user_id"
	SessionRole   = "role"
	SessionLogin  = "username"

	callerKey = "caller"
	apiKeyKey = "api_key"

	APIKeyHeader = "X-API-Key"
)

// SaveCaller enregistre l'utilisateur authentifié dans la session cookie
func SaveCaller(c *gin.Context, user *clusers.User) error {
	session := sessions.Default(c)
	session.Clear()
	session.Set(SessionUserID, user.ID)
	session.Set(SessionRole, string(user.Role))
	session.Set(SessionLogin, user.Login)
	return session.Save()
}

func ClearCaller(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	return session.Save()
}

// AuthRequired refuse les requêtes sans session valide
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID, ok := session.Get(SessionUserID).(uint)
		role, _ := session.Get(SessionRole).(string)
		if !ok || userID == 0 || !clusers.Role(role).Valid() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentification requise"})
			return
		}

		c.Set(callerKey, clusers.Caller{ID: userID, Role: clusers.Role(role)})
		c.Next()
	}
}

// GetCaller renvoie l'appelant posé par AuthRequired
func GetCaller(c *gin.Context) (clusers.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return clusers.Caller{}, false
	}
	caller, ok := v.(clusers.Caller)
	return caller, ok
}

// KeyAuthenticator est le sous-ensemble du service de clés utilisé par le middleware
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, token, clientIP string) (*clapikeys.ApiKey, error)
}

// APIKeyRequired authentifie l'en-tête X-API-Key puis vérifie la permission demandée
func APIKeyRequired(keys KeyAuthenticator, permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, err := keys.Authenticate(c.Request.Context(), c.GetHeader(APIKeyHeader), ClientIP(c))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		if !clapikeys.Authorize(key, permission) {
			log.Warn().
				Uint("api_key_id", key.ID).
				Str("permission", permission).
				Str("request_id", GetRequestID(c)).
				Msg("api key permission denied")
			AbortWithError(c, clerrors.Forbidden("permission %s requise", permission))
			return
		}

		c.Set(apiKeyKey, key)
		c.Next()
	}
}

// GetAPIKey renvoie la clé posée par APIKeyRequired
func GetAPIKey(c *gin.Context) *clapikeys.ApiKey {
	v, ok := c.Get(apiKeyKey)
	if !ok {
		return nil
	}
	key, _ := v.(*clapikeys.ApiKey)
	return key
}

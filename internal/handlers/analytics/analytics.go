package handlers_analytics

import (
	"blogcms/internal/clmiddleware"
	"blogcms/internal/models/clanalytics"
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// Service est le sous-ensemble de l'agrégateur utilisé par les handlers
type Service interface {
	RecordPageView(ctx context.Context, in clanalytics.PageViewInput) (*clanalytics.PageView, error)
	EndSession(ctx context.Context, token string, durationSeconds int64) error
	GetSummary(ctx context.Context) (*clanalytics.Summary, error)
}

type AnalyticsHandler struct {
	service Service
}

func NewAnalyticsHandler(service Service) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
	}
}

type TrackVisitRequest struct {
	URL        string `json:"url" binding:"required,max=768"`
	Title      string `json:"title" binding:"max=512"`
	Referrer   string `json:"referrer"`
	SessionID  string `json:"sessionId" binding:"required,max=128"`
	DeviceType string `json:"deviceType" binding:"max=32"`
	Browser    string `json:"browser" binding:"max=64"`
	OS         string `json:"os" binding:"max=64"`
	Country    string `json:"country" binding:"max=8"`
	City       string `json:"city" binding:"max=128"`
	ArticleID  *uint  `json:"articleId"`
	CategoryID *uint  `json:"categoryId"`
}

type UpdateSessionRequest struct {
	SessionID string `json:"sessionId" binding:"required,max=128"`
	Duration  *int64 `json:"duration" binding:"required,min=0"`
	// PageViews est envoyé par le client mais le compteur serveur fait foi
	PageViews int64 `json:"pageViews" binding:"min=0"`
}

// TrackVisit enregistre une page vue signalée par le navigateur
func (ah *AnalyticsHandler) TrackVisit(c *gin.Context) {
	var req TrackVisitRequest
	if err := clmiddleware.BindJSON(c, &req); err != nil {
		clmiddleware.AbortWithError(c, err)
		return
	}

	// Ne pas tracker l'administration ni les endpoints techniques
	if u, err := url.Parse(req.URL); err == nil && clmiddleware.SkipTracking(u.Path) {
		c.Status(http.StatusNoContent)
		return
	}

	pageView, err := ah.service.RecordPageView(c.Request.Context(), clanalytics.PageViewInput{
		URL:          req.URL,
		Title:        req.Title,
		Referrer:     req.Referrer,
		SessionToken: req.SessionID,
		ArticleID:    req.ArticleID,
		CategoryID:   req.CategoryID,
		Fingerprint:  clmiddleware.Fingerprint(c, req.DeviceType, req.Browser, req.OS, req.Country, req.City),
	})
	if err != nil {
		clmiddleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"success": true, "pageViewId": pageView.ID})
}

// UpdateSession clôt la session signalée par le navigateur (fermeture de page ou inactivité)
func (ah *AnalyticsHandler) UpdateSession(c *gin.Context) {
	var req UpdateSessionRequest
	if err := clmiddleware.BindJSON(c, &req); err != nil {
		clmiddleware.AbortWithError(c, err)
		return
	}

	if err := ah.service.EndSession(c.Request.Context(), req.SessionID, *req.Duration); err != nil {
		clmiddleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetDetailed retourne le résumé complet pour le tableau de bord
func (ah *AnalyticsHandler) GetDetailed(c *gin.Context) {
	summary, err := ah.service.GetSummary(c.Request.Context())
	if err != nil {
		clmiddleware.AbortWithError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, summary)
}

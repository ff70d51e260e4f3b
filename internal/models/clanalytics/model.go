package clanalytics

import "time"

// Visitor représente un client distinct identifié par son adresse IP
type Visitor struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	IPAddress  string    `gorm:"column:ip_address;size:64;uniqueIndex;not null" json:"ipAddress"`
	UserAgent  string    `gorm:"size:512" json:"userAgent"`
	DeviceType string    `gorm:"size:32;index" json:"deviceType"`
	Browser    string    `gorm:"size:64" json:"browser"`
	OS         string    `gorm:"column:os;size:64" json:"os"`
	Country    string    `gorm:"size:8" json:"country"`
	City       string    `gorm:"size:128" json:"city"`
	FirstSeen  time.Time `gorm:"not null" json:"firstSeen"`
	LastSeen   time.Time `gorm:"index;not null" json:"lastSeen"`
	VisitCount int64     `gorm:"not null" json:"visitCount"`
	IsUnique   bool      `gorm:"not null;index" json:"isUnique"`
}

// Session représente une navigation continue d'un visiteur
type Session struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Token        string     `gorm:"size:128;uniqueIndex;not null" json:"sessionId"`
	VisitorID    *uint      `gorm:"index" json:"visitorId"`
	StartedAt    time.Time  `gorm:"index;not null" json:"startedAt"`
	LastActivity time.Time  `gorm:"index;not null" json:"lastActivity"`
	EndedAt      *time.Time `json:"endedAt"`
	Duration     *int64     `json:"duration"`
	PageViews    int64      `gorm:"not null" json:"pageViews"`
	Bounce       bool       `gorm:"not null" json:"bounce"`
	Source       string     `gorm:"size:255;index" json:"source"`
	Campaign     string     `gorm:"size:255" json:"campaign"`
	LandingPage  string     `gorm:"size:768" json:"landingPage"`
}

// PageView représente l'affichage d'une page
type PageView struct {
	ID         uint64    `gorm:"primaryKey" json:"id"`
	SessionID  *uint     `gorm:"index" json:"sessionId"`
	VisitorID  *uint     `gorm:"index" json:"visitorId"`
	ArticleID  *uint     `gorm:"index" json:"articleId,omitempty"`
	CategoryID *uint     `gorm:"index" json:"categoryId,omitempty"`
	URL        string    `gorm:"column:url;size:768;index;not null" json:"url"`
	Title      string    `gorm:"size:512" json:"title"`
	Referrer   string    `gorm:"size:768" json:"referrer"`
	TimeOnPage *int64    `json:"timeOnPage,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

func (Visitor) TableName() string {
	return "visitors"
}

func (Session) TableName() string {
	return "sessions"
}

func (PageView) TableName() string {
	return "page_views"
}

// Models liste les modèles à migrer
func Models() []any {
	return []any{&Visitor{}, &Session{}, &PageView{}}
}

// VisitorFingerprint décrit le client à l'origine d'une page vue
type VisitorFingerprint struct {
	IP         string
	UserAgent  string
	DeviceType string
	Browser    string
	OS         string
	Country    string
	City       string
}

// PageViewInput regroupe les paramètres d'enregistrement d'une page vue
type PageViewInput struct {
	URL          string
	Title        string
	Referrer     string
	SessionToken string
	ArticleID    *uint
	CategoryID   *uint
	Fingerprint  VisitorFingerprint
}

// Summary est la vue agrégée renvoyée au tableau de bord
type Summary struct {
	TotalVisitors   int64        `json:"totalVisitors"`
	UniqueVisitors  int64        `json:"uniqueVisitors"`
	TotalSessions   int64        `json:"totalSessions"`
	TotalPageViews  int64        `json:"totalPageViews"`
	AvgSessionTime  float64      `json:"avgSessionDuration"`
	BounceRate      float64      `json:"bounceRate"`
	TopPages        []PageStat   `json:"topPages"`
	TrafficSources  []ShareStat  `json:"trafficSources"`
	DeviceBreakdown []ShareStat  `json:"deviceStats"`
	Realtime        Realtime     `json:"realTimeStats"`
	HourlyStats     []BucketStat `json:"hourlyStats"`
	DailyStats      []BucketStat `json:"dailyStats"`
	GeneratedAt     time.Time    `json:"generatedAt"`
}

type PageStat struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	Views int64  `json:"views"`
}

// ShareStat est une entrée de répartition annotée de son pourcentage
type ShareStat struct {
	Label      string  `json:"label"`
	Count      int64   `json:"count"`
	Percentage float64 `json:"percentage"`
}

type Realtime struct {
	ActiveUsers    int64 `json:"activeUsers"`
	TodayPageViews int64 `json:"todayPageViews"`
	TodayVisitors  int64 `json:"todayVisitors"`
}

// BucketStat couvre l'intervalle [Start, Start+durée du bucket)
type BucketStat struct {
	Start    time.Time `json:"start"`
	Label    string    `json:"label"`
	Views    int64     `json:"views"`
	Visitors int64     `json:"visitors"`
	Sessions int64     `json:"sessions,omitempty"`
}

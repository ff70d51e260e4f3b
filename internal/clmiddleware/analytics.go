package clmiddleware

import (
	"blogcms/internal/models/clanalytics"
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// Fingerprint construit l'empreinte du visiteur à partir de la requête.
// Les champs fournis par le client priment sur ceux déduits du user agent.
func Fingerprint(c *gin.Context, deviceType, browser, os, country, city string) clanalytics.VisitorFingerprint {
	return clanalytics.VisitorFingerprint{
		IP:         ClientIP(c),
		UserAgent:  c.Request.UserAgent(),
		DeviceType: strings.ToLower(strings.TrimSpace(deviceType)),
		Browser:    strings.TrimSpace(browser),
		OS:         strings.TrimSpace(os),
		Country:    strings.TrimSpace(country),
		City:       strings.TrimSpace(city),
	}
}

// ClientIP récupère l'IP réelle du client. Les en-têtes de proxy ne sont lus
// que si gin les considère fiables (trustedproxies / trustedplatform).
func ClientIP(c *gin.Context) string {
	ip := c.ClientIP()
	if ip == "" {
		if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
			ip = host
		}
	}
	return ip
}

// SkipTracking indique si le chemin ne doit pas être compté comme une page
func SkipTracking(path string) bool {
	for _, prefix := range []string{"/static/", "/admin", "/files/", "/api/"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

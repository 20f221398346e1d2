package edge

import (
	"net/http"
	"strconv"
	"time"
)

const Version = "1.4.0"

const contentSecurityPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline' 'unsafe-eval'; " +
	"style-src 'self' 'unsafe-inline'; img-src 'self' data: blob: https:; " +
	"font-src 'self' data:; connect-src 'self' https: wss:; frame-ancestors 'none'"

// applySecurityHeaders — статический набор безопасности; ставится на каждый
// ответ, включая ошибки и редиректы. HSTS только в проде.
func (p *Pipeline) applySecurityHeaders(h http.Header) {
	h.Set("Content-Security-Policy", contentSecurityPolicy)
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
	h.Set("X-XSS-Protection", "1; mode=block")
	h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

	if p.production {
		h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
	if p.corsOrigin != "" {
		h.Set("Access-Control-Allow-Origin", p.corsOrigin)
		h.Set("Access-Control-Allow-Credentials", "true")
	}
}

func (p *Pipeline) applyUserHeaders(h http.Header, claims *Claims) {
	if claims == nil {
		h.Set("X-Auth-Status", "unauthenticated")
		return
	}

	h.Set("X-Auth-Status", "authenticated")
	h.Set("X-User-ID", claims.UserID)
	h.Set("X-User-Email", claims.Email)
	if claims.ExpiresAt != nil {
		h.Set("X-Token-Expires-At", claims.ExpiresAt.Format(time.RFC3339))
	}
}

func applyRateLimitHeaders(h http.Header, v Verdict) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(v.Limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(v.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(v.ResetAt.Unix(), 10))
}

// clearTokenCookie просит клиента забыть протухший/битый токен.
func (p *Pipeline) clearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   p.production,
		SameSite: http.SameSiteLaxMode,
	})
}

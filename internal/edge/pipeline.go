package edge

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cwrk-planet/webinar-edge/pkg/httputil"
)

type Config struct {
	Routes     Routes
	JWTSecret  string
	ClockSkew  time.Duration
	Production bool
	CORSOrigin string
	Limits     map[string]Limit
	Store      RateLimitStore
}

func DefaultLimits() map[string]Limit {
	return map[string]Limit{
		"auth": {Requests: 5, Window: 15 * time.Minute},
		"api":  {Requests: 300, Window: time.Minute},
	}
}

// Pipeline перехватывает каждый запрос до приложения: классификация пути,
// токен, лимиты, скрининг, редиректы, заголовки. Состояния на запрос:
// Skip / Blocked / Redirect / PassThrough.
type Pipeline struct {
	routes     Routes
	validator  *TokenValidator
	limiter    *Limiter
	production bool
	corsOrigin string

	now func() time.Time
}

func New(cfg Config) *Pipeline {
	if cfg.Routes.LoginPath == "" {
		cfg.Routes = DefaultRoutes()
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Limits == nil {
		cfg.Limits = DefaultLimits()
	}

	return &Pipeline{
		routes:     cfg.Routes,
		validator:  NewTokenValidator(cfg.JWTSecret, cfg.ClockSkew),
		limiter:    NewLimiter(cfg.Store, cfg.Limits),
		production: cfg.Production,
		corsOrigin: cfg.CORSOrigin,
		now:        time.Now,
	}
}

func (p *Pipeline) limitCategory(path string) string {
	switch {
	case p.routes.IsAuth(path):
		return "auth"
	case strings.HasPrefix(path, "/api"):
		return "api"
	default:
		return ""
	}
}

func (p *Pipeline) newRequestID() string {
	return fmt.Sprintf("req_%d_%s", p.now().UnixMilli(), uuid.NewString()[:8])
}

// Middleware — весь конвейер; короткое замыкание на первом применимом
// действии, в порядке: bypass → rate limit → screening → auth-флоу →
// protected-флоу → корень → pass-through.
func (p *Pipeline) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := p.now()
		path := r.URL.Path

		// 1. Статика, публичные префиксы, ассеты фреймворка: только
		// security-заголовки, без токенов и лимитов.
		if p.routes.Bypassed(path) {
			p.applySecurityHeaders(w.Header())
			next.ServeHTTP(w, r)
			return
		}

		reqID := p.newRequestID()
		w.Header().Set("X-Request-ID", reqID)

		// 2. Контекст запроса: токен и его разбор (claims == nil, если
		// подпись или exp не сошлись).
		token := ExtractToken(r)
		var (
			claims   *Claims
			tokenErr error
		)
		if token != "" {
			claims, tokenErr = p.validator.Validate(token)
		}

		// 3. Лимиты: auth-пути строго, api — щадяще. Превышение на auth
		// уводит на логин, на api — 429.
		if category := p.limitCategory(path); category != "" {
			v, err := p.limiter.Allow(r.Context(), category, ClientID(r))
			if err != nil {
				slog.Error("rate limit store failed", "req_id", reqID, "err", err)
				p.writeError(w, reqID, systemError("rate limit store unavailable"))
				return
			}
			if v.Limit > 0 {
				applyRateLimitHeaders(w.Header(), v)
			}
			if !v.Allowed {
				slog.Warn("rate limited", "req_id", reqID, "path", path, "client", ClientID(r))
				if category == "auth" {
					p.redirect(w, r, p.routes.LoginPath+"?error=rate_limited")
					return
				}
				p.writeError(w, reqID, rateLimitError("too many requests"))
				return
			}
		}

		// 4. Скрининг; доверенные краулеры его минуют.
		if !isAllowedCrawler(r.UserAgent()) {
			if token != "" && tokenErr != nil {
				p.clearTokenCookie(w)
				p.redirect(w, r, p.routes.LoginPath+"?error=invalid_token")
				return
			}
			if perr := p.screenRequest(r); perr != nil {
				slog.Warn("request blocked", "req_id", reqID, "path", path, "code", perr.Code)
				p.writeError(w, reqID, perr)
				return
			}
		}

		// 5. Вошедшему нечего делать на auth-страницах.
		if claims != nil && p.routes.IsAuth(path) {
			p.redirect(w, r, p.routes.HomePath)
			return
		}

		// 6. Гостя с защищённой страницы — на логин с возвратом.
		if claims == nil && p.routes.IsProtected(path) {
			p.redirect(w, r, p.routes.LoginPath+"?redirect="+url.QueryEscape(path))
			return
		}

		// 7. Корень сам по себе не рендерится.
		if path == "/" {
			if claims != nil {
				p.redirect(w, r, p.routes.HomePath)
			} else {
				p.redirect(w, r, p.routes.LoginPath)
			}
			return
		}

		// 8. Pass-through с контекстом пользователя.
		p.applySecurityHeaders(w.Header())
		p.applyUserHeaders(w.Header(), claims)
		w.Header().Set("X-Middleware-Version", Version)

		next.ServeHTTP(&timingWriter{ResponseWriter: w, start: start, now: p.now}, r)
	})
}

func (p *Pipeline) redirect(w http.ResponseWriter, r *http.Request, target string) {
	p.applySecurityHeaders(w.Header())
	w.Header().Set("X-Middleware-Version", Version)
	http.Redirect(w, r, target, http.StatusTemporaryRedirect)
}

// writeError — единая точка отказа: JSON с категорией, корреляционным id
// и полным набором security-заголовков.
func (p *Pipeline) writeError(w http.ResponseWriter, reqID string, perr *PipelineError) {
	p.applySecurityHeaders(w.Header())
	w.Header().Set("X-Error-Category", string(perr.Kind))
	w.Header().Set("X-Middleware-Version", Version)

	httputil.JSON(w, perr.StatusCode, map[string]any{
		"error": map[string]any{
			"category":   perr.Kind,
			"code":       perr.Code,
			"message":    perr.Message,
			"timestamp":  p.now().UTC().Format(time.RFC3339),
			"request_id": reqID,
		},
	})
}

// timingWriter проставляет X-Process-Time перед первой записью заголовков.
type timingWriter struct {
	http.ResponseWriter
	start time.Time
	now   func() time.Time
	wrote bool
}

func (w *timingWriter) WriteHeader(code int) {
	if !w.wrote {
		w.wrote = true
		w.Header().Set("X-Process-Time", fmt.Sprintf("%dms", w.now().Sub(w.start).Milliseconds()))
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *timingWriter) Write(b []byte) (int, error) {
	if !w.wrote {
		w.WriteHeader(http.StatusOK)
	}

	return w.ResponseWriter.Write(b)
}

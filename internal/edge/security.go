package edge

import (
	"net/http"
	"strings"
)

const maxBodyBytes = 1 << 20 // 1MB вне upload-путей

// Известные поисковые/социальные краулеры: скрининг для них пропускается.
var allowedCrawlers = []string{
	"googlebot", "bingbot", "yandexbot", "duckduckbot", "baiduspider",
	"twitterbot", "facebookexternalhit", "linkedinbot", "telegrambot",
	"slackbot", "whatsapp", "applebot",
}

// Сигнатуры инструментов автоматизации в user agent.
var automationAgents = []string{
	"curl", "wget", "python-requests", "python-urllib", "go-http-client",
	"postman", "insomnia", "httpie", "scrapy", "java/", "okhttp",
}

func isAllowedCrawler(ua string) bool {
	ua = strings.ToLower(ua)
	for _, c := range allowedCrawlers {
		if strings.Contains(ua, c) {
			return true
		}
	}

	return false
}

func hasAutomationAgent(ua string) bool {
	ua = strings.ToLower(ua)
	for _, a := range automationAgents {
		if strings.Contains(ua, a) {
			return true
		}
	}

	return false
}

// screenRequest — эвристики подозрительных запросов. Возвращает ошибку
// категории security (403) при первом совпадении.
func (p *Pipeline) screenRequest(r *http.Request) *PipelineError {
	ua := r.UserAgent()
	path := r.URL.Path

	if ua == "" && !p.routes.IsHealth(path) {
		return securityError("missing_user_agent", "requests without a user agent are not accepted")
	}

	if p.routes.IsAuth(path) && hasAutomationAgent(ua) && !isAllowedCrawler(ua) {
		return securityError("automation_agent", "automation tools are not allowed on auth endpoints")
	}

	if r.Method == http.MethodPost &&
		(p.routes.IsAuth(path) || strings.HasPrefix(path, "/api") || strings.HasPrefix(path, "/admin")) &&
		r.Header.Get("Referer") == "" && r.Header.Get("Origin") == "" {
		return securityError("missing_origin", "cross-site POST without referer or origin")
	}

	if r.ContentLength > maxBodyBytes && !p.routes.IsUpload(path) {
		return securityError("body_too_large", "request body exceeds the allowed size")
	}

	return nil
}

package edge

import (
	"path"
	"strings"
)

// Routes — классификация путей: что пропускаем без обработки, что требует
// сессии, что относится к auth-флоу.
type Routes struct {
	PublicPrefixes    []string
	StaticExtensions  []string
	AssetPrefix       string
	AuthPrefix        string
	ProtectedPrefixes []string
	UploadPrefixes    []string
	HealthPaths       []string

	LoginPath string
	HomePath  string
}

func DefaultRoutes() Routes {
	return Routes{
		PublicPrefixes: []string{
			"/healthz",
			"/api/health",
			"/legal",
			"/favicon.ico",
			"/robots.txt",
			"/sitemap.xml",
		},
		StaticExtensions: []string{
			".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".webp",
			".css", ".js", ".map",
			".woff", ".woff2", ".ttf", ".otf",
			".txt", ".webmanifest",
		},
		AssetPrefix:       "/_next/",
		AuthPrefix:        "/auth",
		ProtectedPrefixes: []string{"/rooms", "/reports", "/admin", "/profile"},
		UploadPrefixes:    []string{"/api/upload", "/api/media"},
		HealthPaths:       []string{"/healthz", "/api/health"},
		LoginPath:         "/auth/login",
		HomePath:          "/rooms",
	}
}

// Bypassed: публичные префиксы, статика по расширению и служебные ассеты
// фреймворка минуют пайплайн целиком.
func (rt Routes) Bypassed(p string) bool {
	if rt.AssetPrefix != "" && strings.HasPrefix(p, rt.AssetPrefix) {
		return true
	}
	for _, pref := range rt.PublicPrefixes {
		if strings.HasPrefix(p, pref) {
			return true
		}
	}
	if ext := path.Ext(p); ext != "" {
		for _, e := range rt.StaticExtensions {
			if strings.EqualFold(ext, e) {
				return true
			}
		}
	}

	return false
}

func (rt Routes) IsAuth(p string) bool {
	return strings.HasPrefix(p, rt.AuthPrefix)
}

func (rt Routes) IsProtected(p string) bool {
	for _, pref := range rt.ProtectedPrefixes {
		if p == pref || strings.HasPrefix(p, pref+"/") {
			return true
		}
	}

	return false
}

func (rt Routes) IsUpload(p string) bool {
	for _, pref := range rt.UploadPrefixes {
		if strings.HasPrefix(p, pref) {
			return true
		}
	}

	return false
}

func (rt Routes) IsHealth(p string) bool {
	for _, hp := range rt.HealthPaths {
		if p == hp {
			return true
		}
	}

	return false
}

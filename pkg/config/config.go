package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

var (
	ContentPath    = "./content"
	SiteConfigPath = "./config.yml"
	PreviewURL     = "/preview/"
	Port           = "8080"

	// Render settings
	RenderFormat = "html"

	// Cache settings
	CacheConcurrency = 20

	// Logging settings
	LogLevel  = "info"
	LogFormat = "text"

	SessionSecret = ""
)

// OauthConf is nil unless GITHUB_CLIENT_ID is set; the API is then open.
var OauthConf *oauth2.Config

func Init() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	ContentPath = getEnv("CONTENT_PATH", "./content")
	SiteConfigPath = getEnv("SITE_CONFIG", filepath.Join(filepath.Dir(filepath.Clean(ContentPath)), "config.yml"))
	Port = getEnv("PORT", "8080")
	RenderFormat = getEnv("RENDER_FORMAT", "html")
	CacheConcurrency = getEnvInt("CACHE_CONCURRENCY", 20)
	LogLevel = getEnv("LOG_LEVEL", "info")
	LogFormat = getEnv("LOG_FORMAT", "text")
	SessionSecret = getEnv("SESSION_SECRET", "")

	OauthConf = nil
	if clientID := os.Getenv("GITHUB_CLIENT_ID"); clientID != "" {
		OauthConf = &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			Scopes:       []string{"read:user"},
			Endpoint:     github.Endpoint,
			RedirectURL:  getEnv("GITHUB_REDIRECT_URL", GetAppURL()+"/auth/callback"),
		}
	}
}

// AuthEnabled reports whether API routes require a GitHub login.
func AuthEnabled() bool {
	return OauthConf != nil
}

func GetAppURL() string {
	return getEnv("APP_URL", "http://localhost:"+Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

package handlers

import (
	"log/slog"
	"net/http"

	"article-renderer/pkg/config"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the preview server routes.
func NewRouter(api *API, reg *prometheus.Registry, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(logger))
	if api.Metrics != nil {
		r.Use(api.Metrics.Handler())
	}

	// Session Setup
	store := cookie.NewStore([]byte(config.SessionSecret))
	r.Use(sessions.Sessions("articlesession", store))

	r.SetHTMLTemplate(previewTemplate)

	r.GET("/healthz", Health)
	if reg != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	// --- Auth Routes ---
	r.GET("/login", GithubLogin)
	r.GET("/auth/callback", AuthCallback)
	r.GET("/logout", Logout)

	authorized := r.Group("/")
	authorized.Use(AuthRequired)
	{
		authorized.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/api/articles") })
		authorized.GET(config.PreviewURL+"*path", api.Preview)

		apiGroup := authorized.Group("/api")
		{
			apiGroup.GET("/articles", api.ListArticles)
			apiGroup.GET("/article", api.GetArticle)
			apiGroup.GET("/render", api.RenderArticle)
			apiGroup.POST("/render", api.RenderRaw)
			apiGroup.POST("/create", api.CreateArticle)
			apiGroup.GET("/config", api.GetConfig)
		}
	}

	return r
}

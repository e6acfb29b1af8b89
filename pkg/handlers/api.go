package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"os"
	"strings"

	"article-renderer/pkg/config"
	"article-renderer/pkg/models"
	"article-renderer/pkg/services"

	"github.com/gin-gonic/gin"
)

// API serves articles from one content directory.
type API struct {
	ContentPath string
	Concurrency int
	Format      string // default render format
	Site        *models.SiteConfig
	Cache       *services.ArticleCache
	Metrics     *Metrics
}

func NewAPI(contentPath string, site *models.SiteConfig, metrics *Metrics) *API {
	if site == nil {
		site = services.DefaultSiteConfig()
	}
	return &API{
		ContentPath: contentPath,
		Concurrency: config.CacheConcurrency,
		Format:      config.RenderFormat,
		Site:        site,
		Cache:       services.NewArticleCache(),
		Metrics:     metrics,
	}
}

var previewTemplate = template.Must(template.New("article").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Metadata.Title}}</title>
{{if .Metadata.Description}}<meta name="description" content="{{.Metadata.Description}}">{{end}}
</head>
<body>
<article>
<header>
<h1>{{.Metadata.Title}}</h1>
<p class="byline">{{.Metadata.Author}} &middot; <time datetime="{{.Metadata.Date}}">{{.Metadata.Date}}</time></p>
{{if .Metadata.Tags}}<ul class="tags">{{range .Metadata.Tags}}<li>{{.}}</li>{{end}}</ul>{{end}}
</header>
{{.Body}}
</article>
</body>
</html>
`))

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (a *API) ListArticles(c *gin.Context) {
	articles, err := a.Cache.ListArticles(c.Request.Context(), a.ContentPath, a.Concurrency)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch articles"})
		return
	}
	for _, article := range articles {
		if article.Error != "" {
			a.Metrics.failed("listing")
		}
	}
	c.JSON(http.StatusOK, articles)
}

func (a *API) GetArticle(c *gin.Context) {
	article, ok := a.load(c, c.Query("path"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, article)
}

func (a *API) RenderArticle(c *gin.Context) {
	article, ok := a.load(c, c.Query("path"))
	if !ok {
		return
	}
	doc, ok := a.render(c, article, c.DefaultQuery("format", a.Format))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, doc)
}

// RenderRaw parses and renders the content unit sent as the request body.
func (a *API) RenderRaw(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}
	article, err := services.Parse(raw)
	if err != nil {
		a.respondError(c, err)
		return
	}
	doc, ok := a.render(c, article, c.DefaultQuery("format", a.Format))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Preview serves an article as a standalone HTML page.
func (a *API) Preview(c *gin.Context) {
	article, ok := a.load(c, strings.TrimPrefix(c.Param("path"), "/"))
	if !ok {
		return
	}
	doc, ok := a.render(c, article, services.RenderHTML)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "article", gin.H{
		"Metadata": doc.Metadata,
		"Body":     template.HTML(doc.Body),
	})
}

func (a *API) CreateArticle(c *gin.Context) {
	var req struct {
		Path       string                 `json:"path"`
		Collection string                 `json:"collection"`
		Fields     map[string]interface{} `json:"fields"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	if req.Path == "" || strings.Contains(req.Path, "..") || !strings.HasSuffix(req.Path, ".md") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid path"})
		return
	}

	name := req.Collection
	if name == "" && len(a.Site.Collections) > 0 {
		name = a.Site.Collections[0].Name
	}
	collection := a.Site.FindCollection(name)
	if collection == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown collection"})
		return
	}

	fullPath, err := services.CreateArticle(a.ContentPath, req.Path, *collection, req.Fields)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			c.JSON(http.StatusConflict, gin.H{"error": "File already exists"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Create failed: " + err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "created", "path": fullPath})
}

func (a *API) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, a.Site)
}

func (a *API) load(c *gin.Context, targetPath string) (*models.Article, bool) {
	fullPath := services.SafeJoin(a.ContentPath, "", targetPath)
	if targetPath == "" || fullPath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid path"})
		return nil, false
	}
	article, err := a.Cache.Load(fullPath)
	if err != nil {
		a.respondError(c, err)
		return nil, false
	}
	return article, true
}

func (a *API) render(c *gin.Context, article *models.Article, format string) (*models.RenderedDocument, bool) {
	doc, err := services.Render(article, format)
	if err != nil {
		a.respondError(c, err)
		return nil, false
	}
	a.Metrics.rendered(doc.Format)
	return doc, true
}

func (a *API) respondError(c *gin.Context, err error) {
	if errors.Is(err, os.ErrNotExist) {
		c.JSON(http.StatusNotFound, gin.H{"error": "File not found"})
		return
	}

	kind := services.ErrorKind(err)
	a.Metrics.failed(kind)
	switch kind {
	case "unsupported_format":
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": kind})
	case "internal":
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "kind": kind})
	default:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "kind": kind})
	}
}

package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"article-renderer/pkg/models"

	"gopkg.in/yaml.v3"
)

// SafeJoin joins target below root/sub, returning "" when target would
// escape it.
func SafeJoin(root, sub, target string) string {
	cleanTarget := filepath.Clean(target)
	if strings.Contains(cleanTarget, "..") {
		return ""
	}
	return filepath.Join(root, sub, cleanTarget)
}

// LoadArticleFile reads and parses the content unit at path.
func LoadArticleFile(path string) (*models.Article, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	article, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	article.Path = path
	return article, nil
}

// CreateArticle writes a scaffolded article for collection to path below
// contentDir. It refuses to overwrite an existing file.
func CreateArticle(contentDir, path string, collection models.Collection, overrides map[string]interface{}) (string, error) {
	fullPath := SafeJoin(contentDir, collection.Folder, path)
	if fullPath == "" {
		return "", fmt.Errorf("invalid path %q", path)
	}
	if _, err := os.Stat(fullPath); err == nil {
		return "", os.ErrExist
	}

	content, err := ScaffoldArticle(collection, overrides, time.Now())
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		return "", err
	}
	return fullPath, nil
}

// LoadSiteConfig reads the YAML site configuration. A missing file yields a
// configuration with a single default "posts" collection.
func LoadSiteConfig(path string) (*models.SiteConfig, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultSiteConfig(), nil
	}
	if err != nil {
		return nil, err
	}

	var cfg models.SiteConfig
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("parse site config %s: %w", path, err)
	}
	if len(cfg.Collections) == 0 {
		cfg.Collections = DefaultSiteConfig().Collections
	}
	return &cfg, nil
}

func DefaultSiteConfig() *models.SiteConfig {
	return &models.SiteConfig{
		Collections: []models.Collection{{
			Name:   "posts",
			Label:  "Posts",
			Format: FormatTOML,
			Fields: []models.Field{
				{Name: "title", Widget: "string"},
				{Name: "author", Widget: "string"},
				{Name: "date", Widget: "date"},
				{Name: "description", Widget: "text"},
				{Name: "tags", Widget: "list"},
				{Name: "body", Widget: "markdown"},
			},
		}},
	}
}

package services

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"article-renderer/pkg/models"

	"golang.org/x/sync/errgroup"
)

// cacheKey identifies one version of a content file.
type cacheKey struct {
	path    string
	modTime time.Time
	size    int64
}

type cacheEntry struct {
	key     cacheKey
	article *models.Article
}

// ArticleCache keeps parsed articles keyed by path and file version. A file
// that changes on disk is parsed again on the next Load. Safe for concurrent
// use; callers own the instance.
type ArticleCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	hits    int
	misses  int
}

func NewArticleCache() *ArticleCache {
	return &ArticleCache{entries: map[string]cacheEntry{}}
}

// Load returns the parsed article at path, parsing it only when the file
// changed since the cached version. Parse failures are not cached.
func (c *ArticleCache) Load(path string) (*models.Article, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	key := cacheKey{path: path, modTime: info.ModTime(), size: info.Size()}

	c.mu.Lock()
	if entry, ok := c.entries[path]; ok && entry.key == key {
		c.hits++
		c.mu.Unlock()
		return entry.article, nil
	}
	c.misses++
	c.mu.Unlock()

	article, err := LoadArticleFile(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[path] = cacheEntry{key: key, article: article}
	c.mu.Unlock()
	return article, nil
}

// Stats reports cache hits and misses since creation.
func (c *ArticleCache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *ArticleCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = map[string]cacheEntry{}
}

// ListArticles loads every Markdown file under contentDir with at most
// concurrency parses in flight. A file that fails to parse is listed with its
// error instead of failing the listing.
func (c *ArticleCache) ListArticles(ctx context.Context, contentDir string, concurrency int) ([]models.ArticleSummary, error) {
	var paths []string
	err := filepath.WalkDir(contentDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".md") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list articles in %s: %w", contentDir, err)
	}

	dirtyFiles, err := getGitDirtyFiles(contentDir)
	if err != nil {
		slog.Debug("git status unavailable", "dir", contentDir, "error", err)
	}

	summaries := make([]models.ArticleSummary, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, path := range paths {
		i, path := i, path // per-iteration copy (go1.21 loop semantics)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			relPath, _ := filepath.Rel(contentDir, path)
			relPath = filepath.ToSlash(relPath)
			absPath, _ := filepath.Abs(path)

			summary := models.ArticleSummary{
				Path:    relPath,
				Title:   relPath,
				IsDirty: dirtyFiles[filepath.ToSlash(absPath)],
			}
			article, err := c.Load(path)
			if err != nil {
				summary.Error = err.Error()
			} else {
				summary.Title = article.Title
				summary.Date = article.Date
				summary.Tags = article.Tags
			}
			summaries[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Path < summaries[j].Path
	})
	return summaries, nil
}

// getGitDirtyFiles returns the absolute slash paths of files with uncommitted
// changes in the git checkout containing dir.
func getGitDirtyFiles(dir string) (map[string]bool, error) {
	top := exec.Command("git", "rev-parse", "--show-toplevel")
	top.Dir = dir
	rootOut, err := top.Output()
	if err != nil {
		return nil, err
	}
	root := strings.TrimSpace(string(rootOut))

	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	dirty := make(map[string]bool)
	lines := strings.Split(string(out), "\n")
	for _, line := range lines {
		if len(line) < 4 {
			continue
		}
		path := strings.TrimSpace(line[3:])
		path = strings.Trim(path, "\"")
		dirty[filepath.ToSlash(filepath.Join(root, path))] = true
	}
	return dirty, nil
}

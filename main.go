package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"article-renderer/pkg/config"
	"article-renderer/pkg/handlers"
	"article-renderer/pkg/logging"
	"article-renderer/pkg/services"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type CLI struct {
	Serve  ServeCmd  `cmd:"" help:"Run the preview server."`
	Render RenderCmd `cmd:"" help:"Parse and render one article to stdout."`
	Check  CheckCmd  `cmd:"" help:"Parse every article under a directory and report failures."`
	List   ListCmd   `cmd:"" help:"List articles under a directory."`
	New    NewCmd    `cmd:"" help:"Create a new article from a collection template."`
}

type ServeCmd struct {
	Port string `help:"Listen port (default from PORT)."`
}

func (c *ServeCmd) Run(logger *slog.Logger) error {
	port := c.Port
	if port == "" {
		port = config.Port
	}
	if config.AuthEnabled() && config.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required when GitHub login is enabled")
	}

	site, err := services.LoadSiteConfig(config.SiteConfigPath)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := handlers.NewMetrics(reg)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	api := handlers.NewAPI(config.ContentPath, site, metrics)
	r := handlers.NewRouter(api, reg, logger)

	logger.Info("preview server listening", "port", port, "content", config.ContentPath, "auth", config.AuthEnabled())
	return r.Run(":" + port)
}

type RenderCmd struct {
	File   string `arg:"" type:"existingfile" help:"Content file to render."`
	Format string `short:"f" help:"Output format: html, text, markdown, or json (the parsed article)."`
}

func (c *RenderCmd) Run(out io.Writer) error {
	article, err := services.LoadArticleFile(c.File)
	if err != nil {
		return err
	}
	if c.Format == "json" {
		return printJSON(out, article)
	}
	format := c.Format
	if format == "" {
		format = config.RenderFormat
	}
	doc, err := services.Render(article, format)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(out, doc.Body)
	return err
}

type CheckCmd struct {
	Dir string `arg:"" optional:"" type:"existingdir" help:"Content directory (default from CONTENT_PATH)."`
}

func (c *CheckCmd) Run(logger *slog.Logger) error {
	dir := c.Dir
	if dir == "" {
		dir = config.ContentPath
	}
	cache := services.NewArticleCache()
	summaries, err := cache.ListArticles(context.Background(), dir, config.CacheConcurrency)
	if err != nil {
		return err
	}

	failed := 0
	for _, s := range summaries {
		if s.Error != "" {
			failed++
			logger.Error("article rejected", "path", s.Path, "error", s.Error)
		}
	}
	_, parsed := cache.Stats()
	logger.Info("check finished", "articles", len(summaries), "failed", failed, "parsed", parsed)
	if failed > 0 {
		return fmt.Errorf("%d of %d articles failed to load", failed, len(summaries))
	}
	return nil
}

type ListCmd struct {
	Dir string `arg:"" optional:"" type:"existingdir" help:"Content directory (default from CONTENT_PATH)."`
}

func (c *ListCmd) Run(out io.Writer) error {
	dir := c.Dir
	if dir == "" {
		dir = config.ContentPath
	}
	summaries, err := services.NewArticleCache().ListArticles(context.Background(), dir, config.CacheConcurrency)
	if err != nil {
		return err
	}
	return printJSON(out, summaries)
}

type NewCmd struct {
	Path       string   `arg:"" help:"Path of the new article, relative to the collection folder."`
	Collection string   `short:"c" help:"Collection name (default: first configured)."`
	Title      string   `help:"Article title."`
	Author     string   `help:"Article author."`
	Tags       []string `help:"Article tags."`
}

func (c *NewCmd) Run(logger *slog.Logger) error {
	site, err := services.LoadSiteConfig(config.SiteConfigPath)
	if err != nil {
		return err
	}
	name := c.Collection
	if name == "" && len(site.Collections) > 0 {
		name = site.Collections[0].Name
	}
	collection := site.FindCollection(name)
	if collection == nil {
		return fmt.Errorf("unknown collection %q", name)
	}

	overrides := map[string]interface{}{}
	if c.Title != "" {
		overrides["title"] = c.Title
	}
	if c.Author != "" {
		overrides["author"] = c.Author
	}
	if len(c.Tags) > 0 {
		tags := make([]interface{}, len(c.Tags))
		for i, t := range c.Tags {
			tags[i] = t
		}
		overrides["tags"] = tags
	}

	path := c.Path
	if filepath.Ext(path) == "" {
		path += ".md"
	}
	fullPath, err := services.CreateArticle(config.ContentPath, path, *collection, overrides)
	if err != nil {
		return err
	}
	logger.Info("article created", "path", fullPath)
	return nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newParser builds the command line with logger and out available to every
// command's Run method.
func newParser(cli *CLI, logger *slog.Logger, out io.Writer) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("article-renderer"),
		kong.Description("Load, validate and render front-matter Markdown articles."),
		kong.UsageOnError(),
		kong.Bind(logger),
		kong.BindTo(out, (*io.Writer)(nil)),
	)
}

func main() {
	// Initialize config
	config.Init()
	logger := logging.Init(os.Stderr, config.LogLevel, config.LogFormat)

	var cli CLI
	parser, err := newParser(&cli, logger, os.Stdout)
	if err != nil {
		logger.Error("building command line", "error", err)
		os.Exit(1)
	}
	ctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	if err := ctx.Run(); err != nil {
		logger.Error("command failed", "command", ctx.Command(), "error", err)
		os.Exit(1)
	}
}

package models

import (
	"github.com/pelletier/go-toml/v2"
)

// Article is a parsed content unit: validated front matter followed by the
// ordered body blocks.
type Article struct {
	Path        string         `json:"path,omitempty"`
	Title       string         `json:"title"`
	Author      string         `json:"author"`
	Date        toml.LocalDate `json:"date"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags"`   // sorted, unique
	Format      string         `json:"format"` // yaml, toml, json
	Extra       map[string]any `json:"extra,omitempty"`
	Body        []Block        `json:"body"`
}

// Metadata returns the front matter part of the article.
func (a *Article) Metadata() Metadata {
	return Metadata{
		Title:       a.Title,
		Author:      a.Author,
		Date:        a.Date,
		Description: a.Description,
		Tags:        append([]string(nil), a.Tags...),
	}
}

type Metadata struct {
	Title       string         `json:"title"`
	Author      string         `json:"author"`
	Date        toml.LocalDate `json:"date"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags"`
}

// BlockKind tags the variant held by a Block.
type BlockKind string

const (
	BlockHeading    BlockKind = "heading"
	BlockParagraph  BlockKind = "paragraph"
	BlockCode       BlockKind = "code"
	BlockFootnote   BlockKind = "footnote"
	BlockBlockquote BlockKind = "blockquote"
)

// Block is one rendering unit of an article body. Which fields are set
// depends on Kind.
type Block struct {
	Kind BlockKind `json:"kind"`
	Line int       `json:"line"`

	// heading, paragraph, footnote
	Text  string   `json:"text,omitempty"`
	Refs  []string `json:"refs,omitempty"`
	Level int      `json:"level,omitempty"`

	// code
	Language string `json:"language,omitempty"`
	Info     string `json:"info,omitempty"`
	Code     string `json:"code,omitempty"`

	// footnote
	Label string `json:"label,omitempty"`

	// blockquote
	Children []Block `json:"children,omitempty"`
}

// RenderedDocument is the output of a render pass.
type RenderedDocument struct {
	Metadata Metadata `json:"metadata"`
	Format   string   `json:"format"`
	Body     string   `json:"body"`
}

// ArticleSummary is a listing entry for a content file.
type ArticleSummary struct {
	Path    string         `json:"path"`
	Title   string         `json:"title"`
	Date    toml.LocalDate `json:"date"`
	Tags    []string       `json:"tags,omitempty"`
	IsDirty bool           `json:"is_dirty"`
	Error   string         `json:"error,omitempty"`
}

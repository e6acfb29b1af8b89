package services

import (
	"errors"
	"testing"

	"article-renderer/pkg/models"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioTOML = `+++
title = "T"
author = "A"
date = 2021-08-20
tags = ["x", "y"]
+++
hello
`

func TestParseScenario(t *testing.T) {
	article, err := Parse([]byte(scenarioTOML))
	require.NoError(t, err)

	assert.Equal(t, models.Metadata{
		Title:       "T",
		Author:      "A",
		Date:        toml.LocalDate{Year: 2021, Month: 8, Day: 20},
		Description: "",
		Tags:        []string{"x", "y"},
	}, article.Metadata())
	assert.Equal(t, FormatTOML, article.Format)

	require.Len(t, article.Body, 1)
	assert.Equal(t, models.BlockParagraph, article.Body[0].Kind)
	assert.Equal(t, "hello", article.Body[0].Text)
}

func TestParseFrontMatterFlavours(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		format string
	}{
		{
			name:   "yaml",
			raw:    "---\ntitle: T\nauthor: A\ndate: 2021-08-20\ntags: [x, y]\n---\nhello\n",
			format: FormatYAML,
		},
		{
			name:   "yaml quoted datetime",
			raw:    "---\ntitle: T\nauthor: A\ndate: \"2021-08-20T10:30:00+02:00\"\ntags:\n  - y\n  - x\n---\nhello\n",
			format: FormatYAML,
		},
		{
			name:   "toml local datetime",
			raw:    "+++\ntitle = \"T\"\nauthor = \"A\"\ndate = 2021-08-20T23:59:00\ntags = [\"y\", \"x\"]\n+++\nhello\n",
			format: FormatTOML,
		},
		{
			name:   "json semicolons",
			raw:    ";;;\n{\"title\": \"T\", \"author\": \"A\", \"date\": \"2021-08-20\", \"tags\": [\"x\", \"y\"]}\n;;;\nhello\n",
			format: FormatJSON,
		},
		{
			name:   "json object",
			raw:    "{\n\"title\": \"T\",\n\"author\": \"A\",\n\"date\": \"2021-08-20\",\n\"tags\": [\"x\", \"y\"]\n}\nhello\n",
			format: FormatJSON,
		},
		{
			name:   "crlf line endings",
			raw:    "+++\r\ntitle = \"T\"\r\nauthor = \"A\"\r\ndate = 2021-08-20\r\ntags = [\"x\", \"y\"]\r\n+++\r\nhello\r\n",
			format: FormatTOML,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			article, err := Parse([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.format, article.Format)
			assert.Equal(t, "T", article.Title)
			assert.Equal(t, "A", article.Author)
			assert.Equal(t, toml.LocalDate{Year: 2021, Month: 8, Day: 20}, article.Date)
			assert.Equal(t, []string{"x", "y"}, article.Tags)
			require.Len(t, article.Body, 1)
			assert.Equal(t, "hello", article.Body[0].Text)
		})
	}
}

func TestParseTagsDeduplicated(t *testing.T) {
	for _, tags := range []string{`["a", "b", "a"]`, `["b", "a", "a"]`, `[" a", "b ", "a"]`} {
		raw := "+++\ntitle = \"T\"\nauthor = \"A\"\ndate = 2021-08-20\ntags = " + tags + "\n+++\nbody\n"
		article, err := Parse([]byte(raw))
		require.NoError(t, err, tags)
		assert.Equal(t, []string{"a", "b"}, article.Tags, tags)
	}
}

func TestParseZolaStyleFrontMatter(t *testing.T) {
	raw := `+++
title = "Why closures passed to thread::spawn need 'static"
date = 2021-08-20
summary = "Capturing by value or borrowing forever."

[taxonomies]
tags = ["rust", "concurrency"]
categories = ["programming"]

[extra]
author = "Jane"
reading_time = 5
+++
Body.
`
	article, err := Parse([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, "Jane", article.Author)
	assert.Equal(t, "Capturing by value or borrowing forever.", article.Description)
	assert.Equal(t, []string{"concurrency", "rust"}, article.Tags)
	assert.Equal(t, map[string]interface{}{"categories": []interface{}{"programming"}}, article.Extra["taxonomies"])
	assert.Contains(t, article.Extra, "extra")
	assert.NotContains(t, article.Extra, "title")
}

func TestParseJSONNestedObjects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		line int
	}{
		{
			name: "bare object",
			line: 9,
			raw:  "{\n  \"title\": \"T\",\n  \"author\": \"A\",\n  \"date\": \"2021-08-20\",\n  \"taxonomies\": {\n    \"tags\": [\"x\"]\n  }\n}\nhello\n",
		},
		{
			name: "semicolon delimiters",
			raw:  ";;;\n{\n  \"title\": \"T\",\n  \"author\": \"A\",\n  \"date\": \"2021-08-20\",\n  \"taxonomies\": {\n    \"tags\": [\"x\"]\n  }\n}\n;;;\nhello\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			article, err := Parse([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, FormatJSON, article.Format)
			assert.Equal(t, []string{"x"}, article.Tags)
			require.Len(t, article.Body, 1)
			assert.Equal(t, "hello", article.Body[0].Text)
			if tt.line > 0 {
				assert.Equal(t, tt.line, article.Body[0].Line)
			}
		})
	}
}

func TestParseAuthorsList(t *testing.T) {
	raw := "---\ntitle: T\nauthors: [Ann, Bob]\ndate: 2021-08-20\n---\nx\n"
	article, err := Parse([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "Ann, Bob", article.Author)
	assert.Empty(t, article.Tags)
}

func TestParseMalformedMetadata(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		fields []string
	}{
		{
			name:   "missing title",
			raw:    "+++\nauthor = \"A\"\ndate = 2021-08-20\n+++\nhello\n",
			fields: []string{"title"},
		},
		{
			name:   "missing everything",
			raw:    "+++\ndraft = true\n+++\nhello\n",
			fields: []string{"author", "date", "title"},
		},
		{
			name:   "unparseable date",
			raw:    "---\ntitle: T\nauthor: A\ndate: last tuesday\n---\nhello\n",
			fields: []string{"date"},
		},
		{
			name:   "title wrong type",
			raw:    "+++\ntitle = 42\nauthor = \"A\"\ndate = 2021-08-20\n+++\nhello\n",
			fields: []string{"title"},
		},
		{
			name:   "tags not strings",
			raw:    "+++\ntitle = \"T\"\nauthor = \"A\"\ndate = 2021-08-20\ntags = [1, 2]\n+++\nhello\n",
			fields: []string{"tags"},
		},
		{
			name:   "blank tag",
			raw:    "+++\ntitle = \"T\"\nauthor = \"A\"\ndate = 2021-08-20\ntags = [\"ok\", \"  \"]\n+++\nhello\n",
			fields: []string{"tags"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedMetadata))

			var metaErr *MalformedMetadataError
			require.ErrorAs(t, err, &metaErr)
			var got []string
			for field := range metaErr.Fields {
				got = append(got, field)
			}
			assert.ElementsMatch(t, tt.fields, got)
		})
	}
}

func TestParseWithoutFrontMatter(t *testing.T) {
	for _, raw := range []string{"# Just a heading\n\nhello\n", ""} {
		_, err := Parse([]byte(raw))
		require.Error(t, err, raw)
		assert.True(t, errors.Is(err, ErrMalformedMetadata), raw)
	}
}

func TestParseMetadataCheckedBeforeBody(t *testing.T) {
	raw := "+++\nauthor = \"A\"\ndate = 2021-08-20\n+++\n```rust\nunclosed\n"
	_, err := Parse([]byte(raw))
	assert.True(t, errors.Is(err, ErrMalformedMetadata))
}

func TestParseUnterminatedCodeFragment(t *testing.T) {
	raw := "+++\ntitle = \"T\"\nauthor = \"A\"\ndate = 2021-08-20\n+++\nintro\n\n```rust\nfn main() {}\n"
	_, err := Parse([]byte(raw))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnterminatedCodeFragment))
}

func TestParseUnresolvedFootnoteReference(t *testing.T) {
	raw := "+++\ntitle = \"T\"\nauthor = \"A\"\ndate = 2021-08-20\n+++\nSee this[^1].\n"
	_, err := Parse([]byte(raw))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnresolvedFootnoteReference))

	var refErr *UnresolvedFootnoteReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, "1", refErr.Label)
}

func TestParseFootnotes(t *testing.T) {
	head := "+++\ntitle = \"T\"\nauthor = \"A\"\ndate = 2021-08-20\n+++\n"

	t.Run("resolved", func(t *testing.T) {
		article, err := Parse([]byte(head + "See this[^1].\n\n> quoted[^q]\n\n[^1]: One.\n[^q]: Quote note.\n"))
		require.NoError(t, err)
		require.Len(t, article.Body, 4)
		assert.Equal(t, []string{"1"}, article.Body[0].Refs)
	})

	t.Run("reference in code span", func(t *testing.T) {
		_, err := Parse([]byte(head + "Write `[^1]` for a footnote.\n"))
		assert.NoError(t, err)
	})

	t.Run("reference in code block", func(t *testing.T) {
		_, err := Parse([]byte(head + "```md\nText[^1]\n```\n"))
		assert.NoError(t, err)
	})

	t.Run("unresolved inside blockquote", func(t *testing.T) {
		_, err := Parse([]byte(head + "> quoted[^missing]\n"))
		var refErr *UnresolvedFootnoteReferenceError
		require.ErrorAs(t, err, &refErr)
		assert.Equal(t, "missing", refErr.Label)
	})
}

func TestParseIsDeterministic(t *testing.T) {
	raw := []byte(fixtureHeader() + "# Heading\n\nText[^a] with `code`.\n\n```rust\nlet x = 1;\n```\n\n> quote\n\n[^a]: Note.\n")

	first, err := Parse(raw)
	require.NoError(t, err)
	second, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	for _, format := range RenderFormats {
		a, err := Render(first, format)
		require.NoError(t, err)
		b, err := Render(second, format)
		require.NoError(t, err)
		assert.Equal(t, a, b, format)
	}
}

func fixtureHeader() string {
	return "+++\ntitle = \"T\"\nauthor = \"A\"\ndate = 2021-08-20\ntags = [\"b\", \"a\"]\n\n[extra]\nseries = \"rust\"\nweight = 3\n+++\n"
}

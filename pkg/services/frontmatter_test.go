package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"article-renderer/pkg/models"

	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrontMatterOffset(t *testing.T) {
	content := []byte("+++\ntitle = \"T\"\n+++\nfirst body line\n")
	fm, body, format, offset, err := ParseFrontMatter(content)
	require.NoError(t, err)
	assert.Equal(t, "T", fm["title"])
	assert.Equal(t, FormatTOML, format)
	assert.Equal(t, "first body line", strings.TrimSpace(body))
	assert.LessOrEqual(t, offset, 3)
}

func TestParseFrontMatterInvalidBlock(t *testing.T) {
	_, _, _, _, err := ParseFrontMatter([]byte("+++\ntitle = = broken\n+++\nbody\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedMetadata))

	var metaErr *MalformedMetadataError
	require.ErrorAs(t, err, &metaErr)
	assert.Empty(t, metaErr.Fields)
	assert.Error(t, metaErr.Err)
}

func TestParseFrontMatterJSONObject(t *testing.T) {
	content := []byte("{\n  \"title\": \"T\",\n  \"taxonomies\": {\n    \"tags\": [\"x\"]\n  }\n}\nbody line\n")
	fm, body, format, offset, err := ParseFrontMatter(content)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, format)
	assert.Equal(t, map[string]interface{}{"tags": []interface{}{"x"}}, fm["taxonomies"])
	assert.Equal(t, "body line\n", body)
	assert.Equal(t, 6, offset)

	_, _, _, _, err = ParseFrontMatter([]byte("{\"title\": \"T\",\nbody\n"))
	assert.True(t, errors.Is(err, ErrMalformedMetadata))
}

func TestDedupeTags(t *testing.T) {
	assert.Equal(t, []string{}, dedupeTags(nil))
	assert.Equal(t, []string{"a", "b"}, dedupeTags([]string{"b", "a", "b", " a "}))
}

func TestAsDate(t *testing.T) {
	want := toml.LocalDate{Year: 2021, Month: 8, Day: 20}
	for _, v := range []interface{}{
		want,
		toml.LocalDateTime{LocalDate: want, LocalTime: toml.LocalTime{Hour: 23}},
		time.Date(2021, 8, 20, 12, 0, 0, 0, time.UTC),
		"2021-08-20",
		"2021-08-20T10:00:00Z",
		"2021-08-20 10:00:00",
	} {
		got, err := asDate(v)
		require.NoError(t, err, v)
		assert.Equal(t, want, got, v)
	}

	for _, v := range []interface{}{"20/08/2021", 20210820, true} {
		_, err := asDate(v)
		assert.Error(t, err, v)
	}
}

func TestConstructFileContent(t *testing.T) {
	fm := map[string]interface{}{
		"title": "T",
		"date":  toml.LocalDate{Year: 2021, Month: 8, Day: 20},
	}

	tests := []struct {
		format string
		prefix string
		date   string
	}{
		{format: FormatTOML, prefix: "+++\n", date: "date = 2021-08-20"},
		{format: FormatYAML, prefix: "---\n", date: "2021-08-20"},
		{format: FormatJSON, prefix: ";;;\n{\n", date: `"date": "2021-08-20"`},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := ConstructFileContent(fm, "Body text.", tt.format)
			require.NoError(t, err)
			content := string(out)
			assert.True(t, strings.HasPrefix(content, tt.prefix), content)
			assert.Contains(t, content, tt.date)
			assert.True(t, strings.HasSuffix(content, "\nBody text.\n"), content)
		})
	}

	_, err := ConstructFileContent(fm, "", "ini")
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestScaffoldArticle(t *testing.T) {
	now := time.Date(2024, 3, 9, 15, 4, 5, 0, time.UTC)
	collection := DefaultSiteConfig().Collections[0]

	content, err := ScaffoldArticle(collection, map[string]interface{}{
		"title":  "Hello",
		"author": "Ann",
		"tags":   []interface{}{"go", "go"},
		"body":   "Draft text.",
		"draft":  true,
	}, now)
	require.NoError(t, err)

	article, err := Parse(content)
	require.NoError(t, err, string(content))
	assert.Equal(t, "Hello", article.Title)
	assert.Equal(t, "Ann", article.Author)
	assert.Equal(t, toml.LocalDate{Year: 2024, Month: 3, Day: 9}, article.Date)
	assert.Equal(t, []string{"go"}, article.Tags)
	assert.Equal(t, FormatTOML, article.Format)
	assert.Equal(t, true, article.Extra["draft"])
	require.Len(t, article.Body, 1)
	assert.Equal(t, "Draft text.", article.Body[0].Text)
}

func TestScaffoldArticleWidgetDefaults(t *testing.T) {
	now := time.Date(2024, 3, 9, 15, 4, 5, 0, time.UTC)
	collection := models.Collection{
		Name:   "notes",
		Format: FormatYAML,
		Fields: []models.Field{
			{Name: "title", Default: "Untitled"},
			{Name: "published", Widget: "datetime"},
			{Name: "pinned", Widget: "boolean"},
		},
	}

	content, err := ScaffoldArticle(collection, nil, now)
	require.NoError(t, err)

	fm, body, format, _, err := ParseFrontMatter(content)
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, format)
	assert.Empty(t, strings.TrimSpace(body))
	assert.Equal(t, "Untitled", fm["title"])
	assert.Equal(t, false, fm["pinned"])
	assert.Contains(t, string(content), "2024-03-09T15:04:05Z")
}

func TestArticleFrontMatterPrunesEmptyFields(t *testing.T) {
	fm := ArticleFrontMatter(&models.Article{
		Title:  "T",
		Author: "A",
		Date:   toml.LocalDate{Year: 2021, Month: 8, Day: 20},
		Tags:   []string{},
		Extra:  map[string]interface{}{"series": "", "weight": int64(2)},
	})
	assert.Equal(t, map[string]interface{}{
		"title":  "T",
		"author": "A",
		"date":   toml.LocalDate{Year: 2021, Month: 8, Day: 20},
		"weight": int64(2),
	}, fm)
}

package services

import (
	"errors"
	"testing"

	"article-renderer/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBodyBlocks(t *testing.T) {
	body := "# Why `move`?\n" +
		"\n" +
		"Threads need `'static` data.[^1]\n" +
		"Second line.\n" +
		"\n" +
		"```rust\n" +
		"fn main() {}\n" +
		"```\n" +
		"\n" +
		"> Quoted\n" +
		">\n" +
		"> ```\n" +
		"> let x = 1;\n" +
		"> ```\n" +
		"\n" +
		"[^1]: See the book.\n" +
		"    More detail.\n"

	blocks, err := ParseBody(body, 1)
	require.NoError(t, err)

	want := []models.Block{
		{Kind: models.BlockHeading, Line: 1, Level: 1, Text: "Why `move`?"},
		{Kind: models.BlockParagraph, Line: 3, Text: "Threads need `'static` data.[^1]\nSecond line.", Refs: []string{"1"}},
		{Kind: models.BlockCode, Line: 6, Language: "rust", Info: "rust", Code: "fn main() {}"},
		{Kind: models.BlockBlockquote, Line: 10, Children: []models.Block{
			{Kind: models.BlockParagraph, Line: 10, Text: "Quoted"},
			{Kind: models.BlockCode, Line: 12, Code: "let x = 1;"},
		}},
		{Kind: models.BlockFootnote, Line: 16, Label: "1", Text: "See the book.\nMore detail."},
	}
	assert.Equal(t, want, blocks)
}

func TestParseBodyLineOffset(t *testing.T) {
	blocks, err := ParseBody("first\n\nsecond", 7)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, 7, blocks[0].Line)
	assert.Equal(t, 9, blocks[1].Line)
}

func TestParseBodyFences(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		language string
		info     string
		code     string
	}{
		{
			name:     "tilde fence",
			body:     "~~~python extra\nprint(1)\n~~~",
			language: "python",
			info:     "python extra",
			code:     "print(1)",
		},
		{
			name:     "longer closing fence",
			body:     "```go\nx := 1\n`````",
			language: "go",
			info:     "go",
			code:     "x := 1",
		},
		{
			name:     "shorter inner fence is content",
			body:     "````md\n```\ninner\n```\n````",
			language: "md",
			info:     "md",
			code:     "```\ninner\n```",
		},
		{
			name: "empty fence",
			body: "```\n```",
		},
		{
			name:     "indented fence strips indentation",
			body:     "  ```sh\n  echo hi\n    nested\n  ```",
			language: "sh",
			info:     "sh",
			code:     "echo hi\n  nested",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocks, err := ParseBody(tt.body, 1)
			require.NoError(t, err)
			require.Len(t, blocks, 1)
			assert.Equal(t, models.BlockCode, blocks[0].Kind)
			assert.Equal(t, tt.language, blocks[0].Language)
			assert.Equal(t, tt.info, blocks[0].Info)
			assert.Equal(t, tt.code, blocks[0].Code)
		})
	}
}

func TestParseBodyUnterminatedFence(t *testing.T) {
	tests := []struct {
		name string
		body string
		line int
	}{
		{name: "top level", body: "intro\n\n```go\nfmt.Println()\n", line: 3},
		{name: "closing fence too short", body: "````\ncode\n```", line: 1},
		{name: "wrong closing char", body: "~~~\ncode\n```", line: 1},
		{name: "inside blockquote", body: "> ```\n> code\n\n```", line: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBody(tt.body, 1)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnterminatedCodeFragment))

			var fragErr *UnterminatedCodeFragmentError
			require.ErrorAs(t, err, &fragErr)
			assert.Equal(t, tt.line, fragErr.Line)
		})
	}
}

func TestParseBodyHeadings(t *testing.T) {
	tests := []struct {
		line  string
		kind  models.BlockKind
		level int
		text  string
	}{
		{line: "## Title ##", kind: models.BlockHeading, level: 2, text: "Title"},
		{line: "### C#", kind: models.BlockHeading, level: 3, text: "C#"},
		{line: "#", kind: models.BlockHeading, level: 1, text: ""},
		{line: "#5 not a heading", kind: models.BlockParagraph, text: "#5 not a heading"},
		{line: "####### seven", kind: models.BlockParagraph, text: "####### seven"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			blocks, err := ParseBody(tt.line, 1)
			require.NoError(t, err)
			require.Len(t, blocks, 1)
			assert.Equal(t, tt.kind, blocks[0].Kind)
			assert.Equal(t, tt.level, blocks[0].Level)
			assert.Equal(t, tt.text, blocks[0].Text)
		})
	}
}

func TestParseBodyParagraphInterruptedByHeading(t *testing.T) {
	blocks, err := ParseBody("some text\n## Next\nmore", 1)
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.Equal(t, models.BlockParagraph, blocks[0].Kind)
	assert.Equal(t, models.BlockHeading, blocks[1].Kind)
	assert.Equal(t, "more", blocks[2].Text)
}

func TestScanFootnoteRefs(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{text: "plain", want: nil},
		{text: "a[^1] b[^note]", want: []string{"1", "note"}},
		{text: "code `[^1]` is skipped", want: nil},
		{text: "double ``a ` [^x]`` skipped, [^y] kept", want: []string{"y"}},
		{text: "unclosed `tick [^z]", want: []string{"z"}},
		{text: "[^with space] and [^] ignored", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			var got []string
			for _, ref := range scanFootnoteRefs(tt.text) {
				got = append(got, ref.Label)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

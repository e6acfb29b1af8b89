package services

import (
	"article-renderer/pkg/models"
)

// Parse loads a content unit: the front matter is decoded and validated
// first, then the body is split into blocks and every footnote reference is
// checked against the definitions. Any failure rejects the whole document.
func Parse(raw []byte) (*models.Article, error) {
	content := normalizeLineEndings(raw)

	fm, body, format, offset, err := ParseFrontMatter(content)
	if err != nil {
		return nil, err
	}

	article, err := DecodeMetadata(fm)
	if err != nil {
		return nil, err
	}
	article.Format = format

	blocks, err := ParseBody(body, offset+1)
	if err != nil {
		return nil, err
	}
	if err := resolveFootnotes(blocks); err != nil {
		return nil, err
	}
	article.Body = blocks
	return article, nil
}

func resolveFootnotes(blocks []models.Block) error {
	defined := map[string]bool{}
	var refs []UnresolvedFootnoteReferenceError
	collectFootnotes(blocks, defined, &refs)

	for _, ref := range refs {
		if !defined[ref.Label] {
			return &UnresolvedFootnoteReferenceError{Label: ref.Label, Line: ref.Line}
		}
	}
	return nil
}

func collectFootnotes(blocks []models.Block, defined map[string]bool, refs *[]UnresolvedFootnoteReferenceError) {
	for _, block := range blocks {
		if block.Kind == models.BlockFootnote {
			defined[block.Label] = true
		}
		for _, ref := range scanFootnoteRefs(block.Text) {
			*refs = append(*refs, UnresolvedFootnoteReferenceError{
				Label: ref.Label,
				Line:  block.Line + countNewlines(block.Text[:ref.Start]),
			})
		}
		collectFootnotes(block.Children, defined, refs)
	}
}

func countNewlines(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			n++
		}
	}
	return n
}

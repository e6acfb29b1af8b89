package services

import (
	"regexp"
	"strings"

	"article-renderer/pkg/models"
)

var footnoteDefPattern = regexp.MustCompile(`^ {0,3}\[\^([^\]\s]+)\]:[ \t]*(.*)$`)

type sourceLine struct {
	text string
	num  int
}

type fence struct {
	char   byte
	length int
	indent int
	info   string
}

// ParseBody splits a Markdown body into blocks in source order. firstLine is
// the line number of the first body line within the content unit.
func ParseBody(body string, firstLine int) ([]models.Block, error) {
	if firstLine < 1 {
		firstLine = 1
	}
	raw := strings.Split(body, "\n")
	lines := make([]sourceLine, len(raw))
	for i, text := range raw {
		lines[i] = sourceLine{text: strings.TrimRight(text, " \t\r"), num: firstLine + i}
	}
	return parseBlocks(lines)
}

func parseBlocks(lines []sourceLine) ([]models.Block, error) {
	blocks := []models.Block{}
	i := 0
	for i < len(lines) {
		ln := lines[i]
		if strings.TrimSpace(ln.text) == "" {
			i++
			continue
		}

		if f, ok := openFence(ln.text); ok {
			block, next, err := parseFence(lines, i, f)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)
			i = next
			continue
		}

		if level, text, ok := atxHeading(ln.text); ok {
			blocks = append(blocks, inlineBlock(models.BlockHeading, text, ln.num, level))
			i++
			continue
		}

		if _, ok := quoteContent(ln.text); ok {
			var inner []sourceLine
			for i < len(lines) {
				text, ok := quoteContent(lines[i].text)
				if !ok {
					break
				}
				inner = append(inner, sourceLine{text: text, num: lines[i].num})
				i++
			}
			children, err := parseBlocks(inner)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, models.Block{
				Kind:     models.BlockBlockquote,
				Line:     ln.num,
				Children: children,
			})
			continue
		}

		if m := footnoteDefPattern.FindStringSubmatch(ln.text); m != nil {
			parts := []string{m[2]}
			i++
			for i < len(lines) && isIndented(lines[i].text) && strings.TrimSpace(lines[i].text) != "" {
				parts = append(parts, strings.TrimSpace(lines[i].text))
				i++
			}
			block := inlineBlock(models.BlockFootnote, strings.Join(parts, "\n"), ln.num, 0)
			block.Label = m[1]
			blocks = append(blocks, block)
			continue
		}

		var parts []string
		for i < len(lines) && strings.TrimSpace(lines[i].text) != "" {
			if len(parts) > 0 && interruptsParagraph(lines[i].text) {
				break
			}
			parts = append(parts, lines[i].text)
			i++
		}
		blocks = append(blocks, inlineBlock(models.BlockParagraph, strings.TrimSpace(strings.Join(parts, "\n")), ln.num, 0))
	}
	return blocks, nil
}

func inlineBlock(kind models.BlockKind, text string, line, level int) models.Block {
	block := models.Block{Kind: kind, Line: line, Text: text, Level: level}
	for _, ref := range scanFootnoteRefs(text) {
		if !containsString(block.Refs, ref.Label) {
			block.Refs = append(block.Refs, ref.Label)
		}
	}
	return block
}

func parseFence(lines []sourceLine, start int, f fence) (models.Block, int, error) {
	var code []string
	for i := start + 1; i < len(lines); i++ {
		if closesFence(lines[i].text, f) {
			block := models.Block{
				Kind: models.BlockCode,
				Line: lines[start].num,
				Info: f.info,
				Code: strings.Join(code, "\n"),
			}
			if fields := strings.Fields(f.info); len(fields) > 0 {
				block.Language = fields[0]
			}
			return block, i + 1, nil
		}
		code = append(code, stripIndent(lines[i].text, f.indent))
	}
	return models.Block{}, 0, &UnterminatedCodeFragmentError{
		Line:  lines[start].num,
		Fence: strings.Repeat(string(f.char), f.length),
	}
}

func openFence(text string) (fence, bool) {
	indent := leadingSpaces(text)
	if indent > 3 {
		return fence{}, false
	}
	rest := text[indent:]
	if rest == "" || (rest[0] != '`' && rest[0] != '~') {
		return fence{}, false
	}
	char := rest[0]
	n := 0
	for n < len(rest) && rest[n] == char {
		n++
	}
	if n < 3 {
		return fence{}, false
	}
	info := strings.TrimSpace(rest[n:])
	if char == '`' && strings.ContainsRune(info, '`') {
		return fence{}, false
	}
	return fence{char: char, length: n, indent: indent, info: info}, true
}

func closesFence(text string, f fence) bool {
	indent := leadingSpaces(text)
	if indent > 3 {
		return false
	}
	rest := text[indent:]
	n := 0
	for n < len(rest) && rest[n] == f.char {
		n++
	}
	return n >= f.length && strings.TrimSpace(rest[n:]) == ""
}

func atxHeading(text string) (int, string, bool) {
	indent := leadingSpaces(text)
	if indent > 3 {
		return 0, "", false
	}
	rest := text[indent:]
	level := 0
	for level < len(rest) && rest[level] == '#' {
		level++
	}
	if level == 0 || level > 6 {
		return 0, "", false
	}
	if level < len(rest) && rest[level] != ' ' && rest[level] != '\t' {
		return 0, "", false
	}
	content := strings.TrimSpace(rest[level:])
	// optional closing sequence
	trimmed := strings.TrimRight(content, "#")
	if trimmed == "" || strings.HasSuffix(trimmed, " ") || strings.HasSuffix(trimmed, "\t") {
		content = strings.TrimSpace(trimmed)
	}
	return level, content, true
}

func quoteContent(text string) (string, bool) {
	indent := leadingSpaces(text)
	if indent > 3 || indent >= len(text) || text[indent] != '>' {
		return "", false
	}
	rest := text[indent+1:]
	if strings.HasPrefix(rest, " ") {
		rest = rest[1:]
	}
	return rest, true
}

func interruptsParagraph(text string) bool {
	if _, ok := openFence(text); ok {
		return true
	}
	if _, _, ok := atxHeading(text); ok {
		return true
	}
	if _, ok := quoteContent(text); ok {
		return true
	}
	return footnoteDefPattern.MatchString(text)
}

func isIndented(text string) bool {
	return strings.HasPrefix(text, "\t") || leadingSpaces(text) >= 4
}

func leadingSpaces(text string) int {
	n := 0
	for n < len(text) && text[n] == ' ' {
		n++
	}
	return n
}

func stripIndent(text string, n int) string {
	i := 0
	for i < n && i < len(text) && text[i] == ' ' {
		i++
	}
	return text[i:]
}

type footnoteRef struct {
	Label      string
	Start, End int
}

// scanFootnoteRefs finds [^label] markers in inline text, skipping code spans.
func scanFootnoteRefs(text string) []footnoteRef {
	var refs []footnoteRef
	for i := 0; i < len(text); {
		switch {
		case text[i] == '`':
			n := 0
			for i+n < len(text) && text[i+n] == '`' {
				n++
			}
			if end := closingBackticks(text, i+n, n); end >= 0 {
				i = end
			} else {
				i += n
			}
		case strings.HasPrefix(text[i:], "[^"):
			j := i + 2
			for j < len(text) && text[j] != ']' && text[j] != ' ' && text[j] != '\t' && text[j] != '\n' {
				j++
			}
			if j < len(text) && text[j] == ']' && j > i+2 {
				refs = append(refs, footnoteRef{Label: text[i+2 : j], Start: i, End: j + 1})
				i = j + 1
			} else {
				i += 2
			}
		default:
			i++
		}
	}
	return refs
}

// closingBackticks returns the index just past a run of exactly n backticks
// at or after from, or -1.
func closingBackticks(text string, from, n int) int {
	for i := from; i < len(text); {
		if text[i] != '`' {
			i++
			continue
		}
		run := 0
		for i+run < len(text) && text[i+run] == '`' {
			run++
		}
		if run == n {
			return i + run
		}
		i += run
	}
	return -1
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

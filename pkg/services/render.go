package services

import (
	"bytes"
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode"

	"article-renderer/pkg/models"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

const (
	RenderHTML     = "html"
	RenderText     = "text"
	RenderMarkdown = "markdown"
)

// RenderFormats lists the accepted Render formats.
var RenderFormats = []string{RenderHTML, RenderText, RenderMarkdown}

// blockWriter is implemented once per output format. Render walks the body
// and calls the method matching each block's kind.
type blockWriter interface {
	Heading(b models.Block) error
	Paragraph(b models.Block) error
	Code(b models.Block) error
	Footnote(b models.Block) error
	BeginQuote(b models.Block) error
	EndQuote(b models.Block) error
	Finish() (string, error)
}

// Render produces the target representation of article. It has no side
// effects and identical articles render to identical output.
func Render(article *models.Article, format string) (*models.RenderedDocument, error) {
	if article == nil {
		return nil, fmt.Errorf("render: article is nil")
	}

	var w blockWriter
	switch format {
	case RenderHTML, "":
		format = RenderHTML
		w = newHTMLWriter(article.Body)
	case RenderText:
		w = newTextWriter(article.Body)
	case RenderMarkdown:
		w = newMarkdownWriter(article)
	default:
		return nil, fmt.Errorf("%w: render %q", ErrUnsupportedFormat, format)
	}

	if err := walkBlocks(w, article.Body); err != nil {
		return nil, err
	}
	body, err := w.Finish()
	if err != nil {
		return nil, err
	}

	return &models.RenderedDocument{
		Metadata: article.Metadata(),
		Format:   format,
		Body:     body,
	}, nil
}

func walkBlocks(w blockWriter, blocks []models.Block) error {
	for _, b := range blocks {
		var err error
		switch b.Kind {
		case models.BlockHeading:
			err = w.Heading(b)
		case models.BlockParagraph:
			err = w.Paragraph(b)
		case models.BlockCode:
			err = w.Code(b)
		case models.BlockFootnote:
			err = w.Footnote(b)
		case models.BlockBlockquote:
			if err = w.BeginQuote(b); err != nil {
				return err
			}
			if err = walkBlocks(w, b.Children); err != nil {
				return err
			}
			err = w.EndQuote(b)
		default:
			err = fmt.Errorf("render: unknown block kind %q on line %d", b.Kind, b.Line)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// footnoteIndex numbers footnotes by first reference and keeps the first
// definition of every label.
type footnoteIndex struct {
	numbers     map[string]int
	order       []string
	definitions map[string]models.Block
	defOrder    []string
}

func indexFootnotes(blocks []models.Block) *footnoteIndex {
	idx := &footnoteIndex{
		numbers:     map[string]int{},
		definitions: map[string]models.Block{},
	}
	idx.walk(blocks)
	return idx
}

func (idx *footnoteIndex) walk(blocks []models.Block) {
	for _, b := range blocks {
		for _, ref := range scanFootnoteRefs(b.Text) {
			if _, ok := idx.numbers[ref.Label]; !ok {
				idx.order = append(idx.order, ref.Label)
				idx.numbers[ref.Label] = len(idx.order)
			}
		}
		if b.Kind == models.BlockFootnote {
			if _, ok := idx.definitions[b.Label]; !ok {
				idx.definitions[b.Label] = b
				idx.defOrder = append(idx.defOrder, b.Label)
			}
		}
		idx.walk(b.Children)
	}
}

// sections returns the definitions in output order: referenced ones by
// number, then unreferenced ones in source order.
func (idx *footnoteIndex) sections() []models.Block {
	var out []models.Block
	for _, label := range idx.order {
		if def, ok := idx.definitions[label]; ok {
			out = append(out, def)
		}
	}
	for _, label := range idx.defOrder {
		if _, referenced := idx.numbers[label]; !referenced {
			out = append(out, idx.definitions[label])
		}
	}
	return out
}

func (idx *footnoteIndex) number(label string) string {
	if n, ok := idx.numbers[label]; ok {
		return strconv.Itoa(n)
	}
	return label
}

// replaceFootnoteRefs rewrites every [^label] outside code spans with repl.
func replaceFootnoteRefs(text string, repl func(label string) string) string {
	refs := scanFootnoteRefs(text)
	if len(refs) == 0 {
		return text
	}
	var sb strings.Builder
	last := 0
	for _, ref := range refs {
		sb.WriteString(text[last:ref.Start])
		sb.WriteString(repl(ref.Label))
		last = ref.End
	}
	sb.WriteString(text[last:])
	return sb.String()
}

// quoteStack collects nested output so quoted content can be prefixed once
// its blockquote closes.
type quoteStack struct {
	bufs []*bytes.Buffer
}

func (s *quoteStack) cur() *bytes.Buffer {
	if len(s.bufs) == 0 {
		s.bufs = append(s.bufs, &bytes.Buffer{})
	}
	return s.bufs[len(s.bufs)-1]
}

func (s *quoteStack) push() {
	s.cur()
	s.bufs = append(s.bufs, &bytes.Buffer{})
}

func (s *quoteStack) pop() string {
	top := s.cur()
	s.bufs = s.bufs[:len(s.bufs)-1]
	return top.String()
}

// appendBlock writes a block separated from the previous one by a blank line.
func (s *quoteStack) appendBlock(text string) {
	buf := s.cur()
	if buf.Len() > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString(text)
	buf.WriteString("\n")
}

func prefixLines(text, prefix, blankPrefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		if line == "" {
			lines[i] = blankPrefix
		} else {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}

// htmlWriter renders HTML. Inline Markdown goes through goldmark.
type htmlWriter struct {
	buf       bytes.Buffer
	md        goldmark.Markdown
	footnotes *footnoteIndex
	seenRefs  map[string]bool
	headingID map[string]int
}

func newHTMLWriter(blocks []models.Block) *htmlWriter {
	return &htmlWriter{
		md: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
		),
		footnotes: indexFootnotes(blocks),
		seenRefs:  map[string]bool{},
		headingID: map[string]int{},
	}
}

func (w *htmlWriter) convert(text string) (string, error) {
	text = replaceFootnoteRefs(text, w.footnoteRef)
	var out bytes.Buffer
	if err := w.md.Convert([]byte(text), &out); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return out.String(), nil
}

// inline converts text and unwraps the single paragraph goldmark produces.
func (w *htmlWriter) inline(text string) (string, error) {
	out, err := w.convert(text)
	if err != nil {
		return "", err
	}
	trimmed := strings.TrimSuffix(out, "\n")
	if strings.HasPrefix(trimmed, "<p>") && strings.HasSuffix(trimmed, "</p>") && strings.Count(trimmed, "<p>") == 1 {
		return strings.TrimSuffix(strings.TrimPrefix(trimmed, "<p>"), "</p>"), nil
	}
	return trimmed, nil
}

func (w *htmlWriter) footnoteRef(label string) string {
	n := w.footnotes.number(label)
	esc := html.EscapeString(label)
	if w.seenRefs[label] {
		return fmt.Sprintf(`<sup class="footnote-ref"><a href="#fn:%s">%s</a></sup>`, esc, n)
	}
	w.seenRefs[label] = true
	return fmt.Sprintf(`<sup class="footnote-ref" id="fnref:%s"><a href="#fn:%s">%s</a></sup>`, esc, esc, n)
}

func (w *htmlWriter) Heading(b models.Block) error {
	content, err := w.inline(b.Text)
	if err != nil {
		return err
	}
	id := w.uniqueID(slugify(b.Text))
	fmt.Fprintf(&w.buf, "<h%d id=\"%s\">%s</h%d>\n", b.Level, id, content, b.Level)
	return nil
}

// uniqueID suffixes repeated slugs with -N, skipping ids already taken by
// other headings.
func (w *htmlWriter) uniqueID(slug string) string {
	id := slug
	for n := w.headingID[slug]; w.headingID[id] > 0; n++ {
		id = fmt.Sprintf("%s-%d", slug, n)
		w.headingID[slug] = n + 1
	}
	w.headingID[id] = max(w.headingID[id], 1)
	return id
}

func (w *htmlWriter) Paragraph(b models.Block) error {
	out, err := w.convert(b.Text)
	if err != nil {
		return err
	}
	w.buf.WriteString(out)
	return nil
}

func (w *htmlWriter) Code(b models.Block) error {
	if b.Language != "" {
		lang := html.EscapeString(b.Language)
		fmt.Fprintf(&w.buf, "<pre><code class=\"language-%s\" data-lang=\"%s\">", lang, lang)
	} else {
		w.buf.WriteString("<pre><code>")
	}
	if b.Code != "" {
		w.buf.WriteString(html.EscapeString(b.Code))
		w.buf.WriteString("\n")
	}
	w.buf.WriteString("</code></pre>\n")
	return nil
}

// Footnote definitions are emitted together by Finish.
func (w *htmlWriter) Footnote(models.Block) error { return nil }

func (w *htmlWriter) BeginQuote(models.Block) error {
	w.buf.WriteString("<blockquote>\n")
	return nil
}

func (w *htmlWriter) EndQuote(models.Block) error {
	w.buf.WriteString("</blockquote>\n")
	return nil
}

func (w *htmlWriter) Finish() (string, error) {
	defs := w.footnotes.sections()
	if len(defs) == 0 {
		return w.buf.String(), nil
	}
	w.buf.WriteString("<section class=\"footnotes\">\n<ol>\n")
	for _, def := range defs {
		content, err := w.inline(def.Text)
		if err != nil {
			return "", err
		}
		esc := html.EscapeString(def.Label)
		if _, referenced := w.footnotes.numbers[def.Label]; referenced {
			fmt.Fprintf(&w.buf, "<li id=\"fn:%s\">%s <a href=\"#fnref:%s\" class=\"footnote-backref\">&#8617;</a></li>\n", esc, content, esc)
		} else {
			fmt.Fprintf(&w.buf, "<li id=\"fn:%s\">%s</li>\n", esc, content)
		}
	}
	w.buf.WriteString("</ol>\n</section>\n")
	return w.buf.String(), nil
}

func slugify(text string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			sb.WriteRune(r)
			dash = false
		case sb.Len() > 0 && !dash:
			sb.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(sb.String(), "-")
	if slug == "" {
		return "section"
	}
	return slug
}

// textWriter renders plain structured text.
type textWriter struct {
	out       quoteStack
	footnotes *footnoteIndex
}

func newTextWriter(blocks []models.Block) *textWriter {
	return &textWriter{footnotes: indexFootnotes(blocks)}
}

func (w *textWriter) plain(text string) string {
	return replaceFootnoteRefs(text, func(label string) string {
		return "[" + w.footnotes.number(label) + "]"
	})
}

func (w *textWriter) Heading(b models.Block) error {
	text := w.plain(b.Text)
	switch b.Level {
	case 1:
		w.out.appendBlock(text + "\n" + strings.Repeat("=", len([]rune(text))))
	case 2:
		w.out.appendBlock(text + "\n" + strings.Repeat("-", len([]rune(text))))
	default:
		w.out.appendBlock(strings.Repeat("#", b.Level) + " " + text)
	}
	return nil
}

func (w *textWriter) Paragraph(b models.Block) error {
	w.out.appendBlock(w.plain(b.Text))
	return nil
}

func (w *textWriter) Code(b models.Block) error {
	var sb strings.Builder
	if b.Language != "" {
		sb.WriteString("[" + b.Language + "]\n")
	}
	sb.WriteString(prefixLines(b.Code, "    ", ""))
	w.out.appendBlock(strings.TrimRight(sb.String(), "\n"))
	return nil
}

func (w *textWriter) Footnote(models.Block) error { return nil }

func (w *textWriter) BeginQuote(models.Block) error {
	w.out.push()
	return nil
}

func (w *textWriter) EndQuote(models.Block) error {
	w.out.appendBlock(prefixLines(w.out.pop(), "> ", ">"))
	return nil
}

func (w *textWriter) Finish() (string, error) {
	defs := w.footnotes.sections()
	if len(defs) > 0 {
		notes := []string{"Notes\n-----"}
		for _, def := range defs {
			notes = append(notes, "["+w.footnotes.number(def.Label)+"] "+w.plain(def.Text))
		}
		w.out.appendBlock(strings.Join(notes, "\n"))
	}
	return w.out.cur().String(), nil
}

// markdownWriter re-emits the article as a canonical content unit.
type markdownWriter struct {
	out     quoteStack
	article *models.Article
}

func newMarkdownWriter(article *models.Article) *markdownWriter {
	return &markdownWriter{article: article}
}

func (w *markdownWriter) Heading(b models.Block) error {
	w.out.appendBlock(strings.Repeat("#", b.Level) + " " + b.Text)
	return nil
}

func (w *markdownWriter) Paragraph(b models.Block) error {
	w.out.appendBlock(b.Text)
	return nil
}

func (w *markdownWriter) Code(b models.Block) error {
	char := byte('`')
	if strings.ContainsRune(b.Info, '`') {
		char = '~'
	}
	longest := 0
	for _, line := range strings.Split(b.Code, "\n") {
		trimmed := strings.TrimLeft(line, " ")
		n := 0
		for n < len(trimmed) && trimmed[n] == char {
			n++
		}
		if n > longest {
			longest = n
		}
	}
	marker := strings.Repeat(string(char), max(3, longest+1))
	block := marker + b.Info + "\n"
	if b.Code != "" {
		block += b.Code + "\n"
	}
	w.out.appendBlock(block + marker)
	return nil
}

func (w *markdownWriter) Footnote(b models.Block) error {
	lines := strings.Split(b.Text, "\n")
	for i := 1; i < len(lines); i++ {
		lines[i] = "    " + lines[i]
	}
	w.out.appendBlock("[^" + b.Label + "]: " + strings.Join(lines, "\n"))
	return nil
}

func (w *markdownWriter) BeginQuote(models.Block) error {
	w.out.push()
	return nil
}

func (w *markdownWriter) EndQuote(models.Block) error {
	w.out.appendBlock(prefixLines(w.out.pop(), "> ", ">"))
	return nil
}

func (w *markdownWriter) Finish() (string, error) {
	format := w.article.Format
	if format == "" {
		format = FormatTOML
	}
	body := strings.TrimRight(w.out.cur().String(), "\n")
	content, err := ConstructFileContent(ArticleFrontMatter(w.article), body, format)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"article-renderer/pkg/models"

	"github.com/adrg/frontmatter"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
	FormatJSON = "json"
)

// Keys consumed into typed article fields. Everything else lands in Extra.
var knownKeys = map[string]bool{
	"title":       true,
	"author":      true,
	"authors":     true,
	"date":        true,
	"description": true,
	"summary":     true,
	"tags":        true,
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseFrontMatter splits the front matter block from the body. It returns
// the decoded block, the body, the flavour of the block and the number of
// lines that precede the body.
func ParseFrontMatter(content []byte) (map[string]interface{}, string, string, int, error) {
	if bytes.HasPrefix(content, []byte("{")) {
		return parseJSONObject(content)
	}

	var (
		fm     map[string]interface{}
		format string
	)
	body, err := frontmatter.MustParse(bytes.NewReader(content), &fm, frontMatterFormats(&format)...)
	if err != nil {
		if errors.Is(err, frontmatter.ErrNotFound) {
			return nil, "", "", 0, &MalformedMetadataError{Err: errors.New("no front matter block")}
		}
		return nil, "", "", 0, &MalformedMetadataError{Err: err}
	}

	offset := 0
	if bytes.HasSuffix(content, body) {
		offset = bytes.Count(content[:len(content)-len(body)], []byte("\n"))
	}
	return sanitizeFrontMatter(fm), string(body), format, offset, nil
}

func frontMatterFormats(detected *string) []*frontmatter.Format {
	wrap := func(name string, unmarshal func([]byte, any) error) func([]byte, any) error {
		return func(data []byte, v any) error {
			*detected = name
			return unmarshal(data, v)
		}
	}

	return []*frontmatter.Format{
		frontmatter.NewFormat("+++", "+++", wrap(FormatTOML, toml.Unmarshal)),
		frontmatter.NewFormat("---", "---", wrap(FormatYAML, yaml.Unmarshal)),
		frontmatter.NewFormat(";;;", ";;;", wrap(FormatJSON, json.Unmarshal)),
	}
}

// parseJSONObject reads a bare JSON object at the top of content up to its
// matching brace. The rest of the closing line is dropped.
func parseJSONObject(content []byte) (map[string]interface{}, string, string, int, error) {
	var fm map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(content))
	if err := dec.Decode(&fm); err != nil {
		return nil, "", "", 0, &MalformedMetadataError{Err: err}
	}

	rest := content[dec.InputOffset():]
	if nl := bytes.IndexByte(rest, '\n'); nl >= 0 && len(bytes.TrimSpace(rest[:nl])) == 0 {
		rest = rest[nl+1:]
	} else if len(bytes.TrimSpace(rest)) == 0 {
		rest = nil
	}
	offset := bytes.Count(content[:len(content)-len(rest)], []byte("\n"))
	return sanitizeFrontMatter(fm), string(rest), FormatJSON, offset, nil
}

type metadataFields struct {
	Title       string          `json:"title"`
	Author      string          `json:"author"`
	Date        *toml.LocalDate `json:"date"`
	Description string          `json:"description"`
	Tags        []string        `json:"tags"`
}

func (m *metadataFields) validate(skip validation.Errors) validation.Errors {
	rules := []*validation.FieldRules{}
	if _, ok := skip["title"]; !ok {
		rules = append(rules, validation.Field(&m.Title, validation.Required))
	}
	if _, ok := skip["author"]; !ok {
		rules = append(rules, validation.Field(&m.Author, validation.Required))
	}
	if _, ok := skip["date"]; !ok {
		rules = append(rules, validation.Field(&m.Date, validation.Required))
	}
	if _, ok := skip["tags"]; !ok {
		rules = append(rules, validation.Field(&m.Tags, validation.Each(validation.Required)))
	}

	err := validation.ValidateStruct(m, rules...)
	var errs validation.Errors
	if errors.As(err, &errs) {
		return errs
	}
	if err != nil {
		return validation.Errors{"metadata": err}
	}
	return nil
}

// DecodeMetadata coerces a decoded front matter block into the typed article
// attributes. All problems are reported together.
func DecodeMetadata(fm map[string]interface{}) (*models.Article, error) {
	var (
		fields metadataFields
		errs   = validation.Errors{}
	)

	if v, ok := fm["title"]; ok {
		s, err := asString(v)
		if err != nil {
			errs["title"] = err
		}
		fields.Title = strings.TrimSpace(s)
	}

	author, err := coerceAuthor(fm)
	if err != nil {
		errs["author"] = err
	}
	fields.Author = author

	if v, ok := fm["date"]; ok && v != nil {
		d, err := asDate(v)
		if err != nil {
			errs["date"] = err
		} else {
			fields.Date = &d
		}
	}

	for _, key := range []string{"description", "summary"} {
		if v, ok := fm[key]; ok {
			s, err := asString(v)
			if err != nil {
				errs["description"] = err
			}
			fields.Description = strings.TrimSpace(s)
			break
		}
	}

	tags, err := coerceTags(fm)
	if err != nil {
		errs["tags"] = err
	}
	fields.Tags = tags

	for key, err := range fields.validate(errs) {
		errs[key] = err
	}
	if len(errs) > 0 {
		return nil, &MalformedMetadataError{Fields: errs}
	}

	article := &models.Article{
		Title:       fields.Title,
		Author:      fields.Author,
		Date:        *fields.Date,
		Description: fields.Description,
		Tags:        fields.Tags,
		Extra:       extraFields(fm),
	}
	return article, nil
}

func coerceAuthor(fm map[string]interface{}) (string, error) {
	if v, ok := fm["author"]; ok && v != nil {
		s, err := asString(v)
		return strings.TrimSpace(s), err
	}
	if extra, ok := fm["extra"].(map[string]interface{}); ok {
		if v, ok := extra["author"]; ok && v != nil {
			s, err := asString(v)
			return strings.TrimSpace(s), err
		}
	}
	if v, ok := fm["authors"]; ok && v != nil {
		names, err := asStringList(v)
		if err != nil {
			return "", err
		}
		return strings.Join(names, ", "), nil
	}
	return "", nil
}

func coerceTags(fm map[string]interface{}) ([]string, error) {
	raw, ok := fm["tags"]
	if !ok {
		if tax, isMap := fm["taxonomies"].(map[string]interface{}); isMap {
			raw, ok = tax["tags"]
		}
	}
	if !ok || raw == nil {
		return []string{}, nil
	}
	list, err := asStringList(raw)
	if err != nil {
		return nil, err
	}
	return dedupeTags(list), nil
}

// dedupeTags trims, deduplicates and sorts tags so that equal sets compare equal.
func dedupeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

func asString(v interface{}) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case nil:
		return "", nil
	default:
		return "", validation.NewError("validation_is_string", "must be a string")
	}
}

func asStringList(v interface{}) ([]string, error) {
	switch list := v.(type) {
	case string:
		return []string{list}, nil
	case []string:
		return append([]string(nil), list...), nil
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, validation.NewError("validation_is_string_list", "must be a list of strings")
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, validation.NewError("validation_is_string_list", "must be a list of strings")
	}
}

func asDate(v interface{}) (toml.LocalDate, error) {
	switch d := v.(type) {
	case toml.LocalDate:
		return d, nil
	case toml.LocalDateTime:
		return d.LocalDate, nil
	case time.Time:
		return dateOf(d), nil
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return dateOf(t), nil
			}
		}
	}
	return toml.LocalDate{}, validation.NewError("validation_date_invalid", "must be an ISO-8601 date")
}

func dateOf(t time.Time) toml.LocalDate {
	return toml.LocalDate{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

func extraFields(fm map[string]interface{}) map[string]interface{} {
	extra := make(map[string]interface{})
	for k, v := range fm {
		if knownKeys[k] {
			continue
		}
		if k == "taxonomies" {
			if tax, ok := v.(map[string]interface{}); ok {
				rest := make(map[string]interface{}, len(tax))
				for tk, tv := range tax {
					if tk != "tags" {
						rest[tk] = tv
					}
				}
				if len(rest) == 0 {
					continue
				}
				v = rest
			}
		}
		extra[k] = v
	}
	if len(extra) == 0 {
		return nil
	}
	return extra
}

// ArticleFrontMatter builds the front matter map that re-creates article
// when encoded with ConstructFileContent.
func ArticleFrontMatter(article *models.Article) map[string]interface{} {
	fm := make(map[string]interface{}, len(article.Extra)+5)
	for k, v := range article.Extra {
		fm[k] = v
	}
	fm["title"] = article.Title
	fm["author"] = article.Author
	fm["date"] = article.Date
	fm["description"] = article.Description
	tags := make([]interface{}, len(article.Tags))
	for i, tag := range article.Tags {
		tags[i] = tag
	}
	fm["tags"] = tags

	if pruned, ok := pruneEmptyFields(fm).(map[string]interface{}); ok {
		return pruned
	}
	return fm
}

func ConstructFileContent(fm map[string]interface{}, body string, format string) ([]byte, error) {
	normalizedFM := sanitizeFrontMatter(fm)
	if normalizedFM == nil {
		normalizedFM = map[string]interface{}{}
	}

	var buf bytes.Buffer
	switch format {
	case FormatYAML:
		buf.WriteString("---\n")
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(portableFrontMatter(normalizedFM)); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		buf.WriteString("---\n")
	case FormatTOML:
		buf.WriteString("+++\n")
		enc := toml.NewEncoder(&buf)
		if err := enc.Encode(normalizedFM); err != nil {
			return nil, err
		}
		buf.WriteString("+++\n")
	case FormatJSON:
		buf.WriteString(";;;\n")
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(portableFrontMatter(normalizedFM)); err != nil {
			return nil, err
		}
		buf.WriteString(";;;\n")
	default:
		return nil, fmt.Errorf("%w: front matter %q", ErrUnsupportedFormat, format)
	}

	if body != "" {
		buf.WriteString("\n")
		buf.WriteString(body)
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ScaffoldArticle builds the content of a new article from a collection's
// field defaults. overrides win over defaults; the "body" field becomes the
// article body.
func ScaffoldArticle(collection models.Collection, overrides map[string]interface{}, now time.Time) ([]byte, error) {
	fm := make(map[string]interface{})
	var bodyContent string

	for _, field := range collection.Fields {
		if val, ok := overrides[field.Name]; ok {
			if field.Name == "body" {
				if strVal, ok := val.(string); ok {
					bodyContent = strVal
				}
				continue
			}
			fm[field.Name] = val
			continue
		}

		if field.Name == "body" {
			if val, ok := field.Default.(string); ok {
				bodyContent = val
			}
			continue
		}

		if field.Default != nil {
			fm[field.Name] = field.Default
			continue
		}
		switch field.Widget {
		case "date":
			fm[field.Name] = dateOf(now)
		case "datetime":
			fm[field.Name] = now.Format(time.RFC3339)
		case "boolean":
			fm[field.Name] = false
		case "list":
			fm[field.Name] = []interface{}{}
		default:
			fm[field.Name] = ""
		}
	}

	// Overrides for keys the collection does not declare are kept too.
	for k, v := range overrides {
		if _, declared := fm[k]; declared || k == "body" {
			continue
		}
		fm[k] = v
	}

	format := collection.Format
	if format == "" {
		format = FormatTOML
	}
	return ConstructFileContent(fm, bodyContent, format)
}

func sanitizeFrontMatter(fm map[string]interface{}) map[string]interface{} {
	if fm == nil {
		return nil
	}
	sanitized := make(map[string]interface{}, len(fm))
	for k, v := range fm {
		sanitized[k] = sanitizeFrontMatterValue(v)
	}
	return sanitized
}

func sanitizeFrontMatterValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return sanitizeFrontMatter(v)
	case map[interface{}]interface{}:
		normalized := make(map[string]interface{}, len(v))
		for key, inner := range v {
			normalized[fmt.Sprint(key)] = sanitizeFrontMatterValue(inner)
		}
		return normalized
	case []interface{}:
		slice := make([]interface{}, len(v))
		for i := range v {
			slice[i] = sanitizeFrontMatterValue(v[i])
		}
		return slice
	default:
		return v
	}
}

// portableFrontMatter replaces TOML-only date types with their text form
// for the YAML and JSON encoders.
func portableFrontMatter(fm map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fm))
	for k, v := range fm {
		out[k] = portableValue(v)
	}
	return out
}

func portableValue(value interface{}) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		return portableFrontMatter(v)
	case []interface{}:
		slice := make([]interface{}, len(v))
		for i := range v {
			slice[i] = portableValue(v[i])
		}
		return slice
	case toml.LocalDate:
		return v.String()
	case toml.LocalDateTime:
		return v.String()
	case toml.LocalTime:
		return v.String()
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return v
	}
}

func normalizeLineEndings(input []byte) []byte {
	return bytes.ReplaceAll(input, []byte("\r\n"), []byte("\n"))
}

func pruneEmptyFields(val interface{}) interface{} {
	switch v := val.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{})
		for k, elem := range v {
			if pruned := pruneEmptyFields(elem); pruned != nil {
				out[k] = pruned
			}
		}
		return out
	case []interface{}:
		if len(v) == 0 {
			return nil
		}
		return v
	case []string:
		if len(v) == 0 {
			return nil
		}
		return v
	case string:
		if v == "" {
			return nil
		}
		return v
	default:
		return v
	}
}

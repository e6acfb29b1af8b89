package models

type SiteConfig struct {
	Title       string       `yaml:"title" json:"title"`
	BaseURL     string       `yaml:"base_url" json:"base_url"`
	Collections []Collection `yaml:"collections" json:"collections"`
}

// Collection describes a folder of articles and the front matter a new
// article in it starts with.
type Collection struct {
	Name   string  `yaml:"name" json:"name"`
	Label  string  `yaml:"label" json:"label"`
	Folder string  `yaml:"folder" json:"folder"`
	Format string  `yaml:"format" json:"format"` // toml (default), yaml, json
	Fields []Field `yaml:"fields" json:"fields"`
}

type Field struct {
	Name    string `yaml:"name" json:"name"`
	Widget  string `yaml:"widget" json:"widget"`
	Default any    `yaml:"default,omitempty" json:"default,omitempty"`
}

// FindCollection returns the named collection, or nil.
func (c *SiteConfig) FindCollection(name string) *Collection {
	if c == nil {
		return nil
	}
	for i := range c.Collections {
		if c.Collections[i].Name == name {
			return &c.Collections[i]
		}
	}
	return nil
}

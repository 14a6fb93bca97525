// Package i18n provides the UI translation tables.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Fallback is the language used for missing translations.
const Fallback = "en"

//go:embed locales/*.yaml
var locales embed.FS

type table struct {
	Name     string            `yaml:"name"`
	Messages map[string]string `yaml:"messages"`
}

// Catalog holds every loaded language.
type Catalog struct {
	tables map[string]table
}

// Load parses the embedded translation tables.
func Load() (*Catalog, error) {
	return LoadFS(locales, "locales")
}

// LoadFS parses every <lang>.yaml file in dir.
func LoadFS(fsys fs.FS, dir string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read locales: %w", err)
	}

	c := &Catalog{tables: make(map[string]table)}
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		var t table
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", e.Name(), err)
		}
		c.tables[strings.TrimSuffix(e.Name(), ".yaml")] = t
	}
	if _, ok := c.tables[Fallback]; !ok {
		return nil, fmt.Errorf("missing %s translations", Fallback)
	}
	return c, nil
}

// Supported reports whether lang has a table.
func (c *Catalog) Supported(lang string) bool {
	_, ok := c.tables[lang]
	return ok
}

// Normalize maps lang to a supported language, e.g. "de-AT" to "de".
func (c *Catalog) Normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if c.Supported(lang) {
		return lang
	}
	if i := strings.IndexAny(lang, "-_"); i > 0 && c.Supported(lang[:i]) {
		return lang[:i]
	}
	return Fallback
}

// Language is a selectable language.
type Language struct {
	Code string
	Name string
}

// Languages returns all languages sorted by code.
func (c *Catalog) Languages() []Language {
	out := make([]Language, 0, len(c.tables))
	for code, t := range c.tables {
		out = append(out, Language{Code: code, Name: t.Name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// T translates key into lang, falling back to English and then to the key
// itself. With args the message is used as a format string.
func (c *Catalog) T(lang, key string, args ...any) string {
	msg, ok := c.tables[lang].Messages[key]
	if !ok {
		msg, ok = c.tables[Fallback].Messages[key]
	}
	if !ok {
		msg = key
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

// Translator binds a catalog to one language.
type Translator struct {
	c    *Catalog
	Lang string
}

// For returns a translator for lang.
func (c *Catalog) For(lang string) Translator {
	return Translator{c: c, Lang: c.Normalize(lang)}
}

// T translates key.
func (t Translator) T(key string, args ...any) string {
	return t.c.T(t.Lang, key, args...)
}

package provider

import (
	_ "embed"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var categoriesYAML []byte

// Category maps one internal category slug to provider search terms.
type Category struct {
	Yelp   string `yaml:"yelp"`
	Google string `yaml:"google"`
}

type categoryFile struct {
	Categories map[string]Category `yaml:"categories"`
}

var categories map[string]Category

func init() {
	var f categoryFile
	if err := yaml.Unmarshal(categoriesYAML, &f); err != nil {
		panic("provider: parse categories.yaml: " + err.Error())
	}
	categories = f.Categories
}

// Categories returns all known category slugs in sorted order.
func Categories() []string {
	slugs := make([]string, 0, len(categories))
	for slug := range categories {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}

// Lookup returns the provider search terms for a category slug.
func Lookup(slug string) (Category, bool) {
	c, ok := categories[slug]
	return c, ok
}

// ValidCategory reports whether slug is a known category.
func ValidCategory(slug string) bool {
	_, ok := categories[slug]
	return ok
}

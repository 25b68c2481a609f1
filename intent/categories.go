/*
categories.go - Spending category taxonomy and lookup

PURPOSE:
  Keyword-table categorization of message text plus normalization of
  category values coming back from the fallback model. The taxonomy is
  compiled in but can be replaced from a YAML file so deployments can
  tune keywords without a rebuild.

MATCHING ORDER:
  Text lookup:   first category (in stable table order) with a keyword hit.
  Normalization: exact alias -> keyword inference -> fuzzy match
                 (levenshtein distance <= 2) -> "other".
*/
package intent

import (
	"fmt"
	"os"
	"strings"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"
)

// CategoryOther is the catch-all category for unrecognized values.
const CategoryOther = "other"

// maxFuzzyDistance bounds the edit distance for fuzzy category matching.
const maxFuzzyDistance = 2

// CategorySet is an ordered keyword taxonomy. Order matters: the first
// table with a matching keyword wins, so iteration must be stable.
type CategorySet struct {
	order    []string
	keywords map[string][]string
	aliases  map[string]string
}

// categoryConfigFile mirrors the YAML layout:
//
//	categories:
//	  - name: groceries
//	    keywords: [grocery, supermarket]
//	    aliases: [food shop]
type categoryConfigFile struct {
	Categories []struct {
		Name     string   `yaml:"name"`
		Keywords []string `yaml:"keywords"`
		Aliases  []string `yaml:"aliases"`
	} `yaml:"categories"`
}

// DefaultCategories returns the built-in taxonomy.
func DefaultCategories() *CategorySet {
	c := &CategorySet{
		keywords: make(map[string][]string),
		aliases:  make(map[string]string),
	}
	add := func(name string, keywords []string, aliases ...string) {
		c.order = append(c.order, name)
		c.keywords[name] = keywords
		for _, a := range aliases {
			c.aliases[a] = name
		}
	}

	add("groceries", []string{"grocery", "groceries", "supermarket", "trader joe", "whole foods", "aldi", "lidl", "safeway", "costco"}, "grocery", "food shopping")
	add("dining", []string{"restaurant", "dinner", "lunch", "breakfast", "coffee", "cafe", "takeout", "pizza", "sushi", "bar"}, "food", "eating out", "restaurants")
	add("transport", []string{"uber", "lyft", "taxi", "bus", "train", "metro", "gas", "fuel", "parking"}, "transportation", "travel local", "commute")
	add("shopping", []string{"amazon", "clothes", "clothing", "shoes", "mall", "store", "shopping"}, "shop", "retail")
	add("bills", []string{"rent", "electricity", "electric bill", "water bill", "internet", "phone bill", "utility", "utilities", "insurance"}, "bill", "utilities bill")
	add("entertainment", []string{"movie", "cinema", "netflix", "spotify", "concert", "game", "games", "theater"}, "fun", "leisure")
	add("healthcare", []string{"doctor", "pharmacy", "medicine", "dentist", "hospital", "clinic"}, "health", "medical")
	add("education", []string{"tuition", "course", "books", "textbook", "school", "university", "udemy"}, "study", "learning")
	add("travel", []string{"flight", "hotel", "airbnb", "vacation", "trip", "airline"}, "holiday", "trips")

	return c
}

// LoadCategories reads a taxonomy from a YAML file.
func LoadCategories(path string) (*CategorySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	var cfg categoryConfigFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("load categories: parse yaml: %w", err)
	}
	if len(cfg.Categories) == 0 {
		return nil, fmt.Errorf("load categories: no categories in %s", path)
	}

	c := &CategorySet{
		keywords: make(map[string][]string),
		aliases:  make(map[string]string),
	}
	for _, entry := range cfg.Categories {
		name := strings.ToLower(strings.TrimSpace(entry.Name))
		if name == "" {
			continue
		}
		c.order = append(c.order, name)
		c.keywords[name] = entry.Keywords
		for _, a := range entry.Aliases {
			c.aliases[strings.ToLower(strings.TrimSpace(a))] = name
		}
	}
	return c, nil
}

// Names returns the category names in table order.
func (c *CategorySet) Names() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Match scans lowercased text for the first category with a keyword hit.
func (c *CategorySet) Match(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, name := range c.order {
		for _, kw := range c.keywords[name] {
			if kw != "" && strings.Contains(lower, kw) {
				return name, true
			}
		}
	}
	return "", false
}

// Normalize maps a raw category value (e.g. from the fallback model) onto
// the taxonomy. Returns the canonical name and whether the input changed.
// Unrecognized values collapse to CategoryOther.
func (c *CategorySet) Normalize(raw string) (string, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	if cleaned == "" {
		return CategoryOther, true
	}
	if cleaned == CategoryOther {
		return CategoryOther, false
	}

	// Exact table name.
	for _, name := range c.order {
		if cleaned == name {
			return name, cleaned != raw
		}
	}

	// Direct alias.
	if name, ok := c.aliases[cleaned]; ok {
		return name, true
	}

	// Keyword inference over the raw value.
	if name, ok := c.Match(cleaned); ok {
		return name, true
	}

	// Fuzzy match tolerates small typos ("grocerys" -> "groceries").
	best, bestDist := "", maxFuzzyDistance+1
	for _, name := range c.order {
		if dist := levenshtein.ComputeDistance(cleaned, name); dist < bestDist {
			best, bestDist = name, dist
		}
	}
	if bestDist <= maxFuzzyDistance {
		return best, true
	}

	return CategoryOther, true
}

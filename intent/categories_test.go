package intent_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/intent-engine/intent"
)

// =============================================================================
// KEYWORD MATCHING
// =============================================================================

func TestCategories_Match(t *testing.T) {
	c := intent.DefaultCategories()

	cases := map[string]string{
		"spent $45 at trader joe's":  "groceries",
		"coffee with the team":       "dining",
		"uber home from the airport": "transport",
		"new shoes from the mall":    "shopping",
		"paid the electric bill":     "bills",
		"netflix subscription":       "entertainment",
		"dentist appointment":        "healthcare",
		"udemy course":               "education",
		"booked a flight":            "travel",
	}

	for text, want := range cases {
		got, ok := c.Match(text)
		require.True(t, ok, "text %q", text)
		assert.Equal(t, want, got, "text %q", text)
	}
}

func TestCategories_Match_FirstTableOrderWins(t *testing.T) {
	// "costco" (groceries) and "store" (shopping) both appear; groceries
	// comes first in the table and wins.
	c := intent.DefaultCategories()

	got, ok := c.Match("at the costco store")
	require.True(t, ok)
	assert.Equal(t, "groceries", got)
}

func TestCategories_Match_NoHit(t *testing.T) {
	c := intent.DefaultCategories()
	_, ok := c.Match("thinking about life")
	assert.False(t, ok)
}

// =============================================================================
// NORMALIZATION
// =============================================================================

func TestCategories_Normalize(t *testing.T) {
	c := intent.DefaultCategories()

	cases := []struct {
		raw     string
		want    string
		changed bool
	}{
		{"groceries", "groceries", false},
		{"Groceries", "groceries", true}, // case cleanup counts as a change
		{"food", "dining", true},         // alias
		{"transportation", "transport", true},
		{"grocerys", "groceries", true}, // within fuzzy distance
		{"cryptocurrency", "other", true},
		{"", "other", true},
		{"other", "other", false},
	}

	for _, tc := range cases {
		got, changed := c.Normalize(tc.raw)
		assert.Equal(t, tc.want, got, "raw %q", tc.raw)
		assert.Equal(t, tc.changed, changed, "raw %q", tc.raw)
	}
}

// =============================================================================
// YAML LOADING
// =============================================================================

func TestLoadCategories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "categories.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
categories:
  - name: pets
    keywords: [vet, "dog food", kibble]
    aliases: [pet, animals]
  - name: hobbies
    keywords: [lego, paint]
`), 0o644))

	c, err := intent.LoadCategories(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"pets", "hobbies"}, c.Names())

	got, ok := c.Match("bought dog food")
	require.True(t, ok)
	assert.Equal(t, "pets", got)

	name, changed := c.Normalize("animals")
	assert.Equal(t, "pets", name)
	assert.True(t, changed)
}

func TestLoadCategories_MissingFile(t *testing.T) {
	_, err := intent.LoadCategories("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestLoadCategories_EmptyTaxonomyRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories: []\n"), 0o644))

	_, err := intent.LoadCategories(path)
	assert.Error(t, err)
}

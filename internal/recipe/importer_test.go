package recipe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jsonLDPage = `<html><head>
<script type="application/ld+json">
{"@context": "https://schema.org", "@graph": [
  {"@type": "WebPage", "name": "Site"},
  {"@type": ["Recipe"], "name": "Shakshuka",
   "image": ["https://img.test/shakshuka.jpg"],
   "totalTime": "PT35M", "recipeYield": "4 servings",
   "recipeIngredient": ["4 eggs", " 1 can  tomatoes ", ""],
   "recipeInstructions": [
     {"@type": "HowToStep", "text": "Simmer the tomatoes."},
     {"@type": "HowToSection", "itemListElement": [{"@type": "HowToStep", "text": "Crack in the eggs."}]}
   ]}
]}
</script></head><body><h1>Ignored</h1></body></html>`

const microdataPage = `<html><body>
<div itemscope itemtype="https://schema.org/Recipe">
  <h1 itemprop="name">Pancakes</h1>
  <meta itemprop="totalTime" content="PT1H5M">
  <span itemprop="recipeYield">6</span>
  <ul><li itemprop="recipeIngredient">2 cups flour</li><li itemprop="recipeIngredient">1 egg</li></ul>
  <ol itemprop="recipeInstructions"><li>Mix.</li><li>Fry.</li></ol>
</div></body></html>`

const plainPage = `<html><body>
<nav><h2>Ingredients of the site</h2><ul><li>menu</li></ul></nav>
<h1> Lentil Soup </h1>
<h2>Ingredients</h2><ul><li>1 cup lentils</li><li>1 onion</li></ul>
<h2>Method</h2><ol><li>Boil everything.</li></ol>
<script>var ad = 1;</script>
</body></html>`

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

func TestParse(t *testing.T) {
	t.Run("JSONLDGraph", func(t *testing.T) {
		r := Parse(doc(t, jsonLDPage))
		assert.Equal(t, "Shakshuka", r.Name)
		assert.Equal(t, "https://img.test/shakshuka.jpg", r.Image)
		assert.Equal(t, "35 min", r.Time)
		assert.Equal(t, 4, r.Servings)
		assert.Equal(t, []string{"4 eggs", "1 can tomatoes"}, r.Ingredients)
		assert.Equal(t, []string{"Simmer the tomatoes.", "Crack in the eggs."}, r.Instructions)
	})

	t.Run("Microdata", func(t *testing.T) {
		r := Parse(doc(t, microdataPage))
		assert.Equal(t, "Pancakes", r.Name)
		assert.Equal(t, "1 h 5 min", r.Time)
		assert.Equal(t, 6, r.Servings)
		assert.Equal(t, []string{"2 cups flour", "1 egg"}, r.Ingredients)
		assert.Equal(t, []string{"Mix.", "Fry."}, r.Instructions)
	})

	t.Run("PlainMarkup", func(t *testing.T) {
		r := Parse(doc(t, plainPage))
		assert.Equal(t, "Lentil Soup", r.Name)
		assert.Equal(t, []string{"1 cup lentils", "1 onion"}, r.Ingredients)
		assert.Equal(t, []string{"Boil everything."}, r.Instructions)
	})
}

func TestIsoDuration(t *testing.T) {
	cases := map[string]string{
		"PT20M":      "20 min",
		"PT2H":       "2 h",
		"PT1H30M":    "1 h 30 min",
		"45 minutes": "45 minutes",
		"":           "",
	}
	for in, want := range cases {
		assert.Equal(t, want, isoDuration(in), in)
	}
}

func TestImporterFromURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/shakshuka":
			w.Write([]byte(jsonLDPage))
		case "/empty":
			w.Write([]byte("<html><body><p>nothing here</p></body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	importer := NewImporter()
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		r, err := importer.FromURL(ctx, server.URL+"/shakshuka")
		require.NoError(t, err)
		assert.Equal(t, "Shakshuka", r.Name)
		assert.Equal(t, server.URL+"/shakshuka", r.SourceURL)
		assert.Empty(t, r.ID)
	})

	t.Run("NoRecipe", func(t *testing.T) {
		_, err := importer.FromURL(ctx, server.URL+"/empty")
		assert.ErrorContains(t, err, "no recipe found")
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := importer.FromURL(ctx, server.URL+"/missing")
		assert.ErrorContains(t, err, "status 404")
	})
}

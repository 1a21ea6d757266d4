package recipe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Importer builds a Recipe from a recipe web page.
type Importer struct {
	httpClient *http.Client
}

// NewImporter creates an Importer.
func NewImporter() *Importer {
	return &Importer{httpClient: &http.Client{Timeout: 15 * time.Second}}
}

// FromURL fetches url and extracts the recipe it describes. schema.org
// JSON-LD is preferred, then microdata, then plain headings and lists.
func (i *Importer) FromURL(ctx context.Context, url string) (Recipe, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Recipe{}, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := i.httpClient.Do(req)
	if err != nil {
		return Recipe{}, fmt.Errorf("failed to fetch content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Recipe{}, fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return Recipe{}, fmt.Errorf("failed to parse page: %w", err)
	}

	r := Parse(doc)
	r.SourceURL = url
	if err := r.Validate(); err != nil {
		return Recipe{}, fmt.Errorf("no recipe found at %s: %w", url, err)
	}
	return r, nil
}

// Parse extracts a recipe from an already loaded document.
func Parse(doc *goquery.Document) Recipe {
	if r, ok := fromJSONLD(doc); ok {
		return r
	}
	if r, ok := fromMicrodata(doc); ok {
		return r
	}
	return fromMarkup(doc)
}

type ldRecipe struct {
	Type         any               `json:"@type"`
	Graph        []json.RawMessage `json:"@graph"`
	Name         string            `json:"name"`
	Image        any               `json:"image"`
	TotalTime    string            `json:"totalTime"`
	CookTime     string            `json:"cookTime"`
	RecipeYield  any               `json:"recipeYield"`
	Ingredients  []string          `json:"recipeIngredient"`
	Instructions any               `json:"recipeInstructions"`
}

func (l ldRecipe) isRecipe() bool {
	switch t := l.Type.(type) {
	case string:
		return t == "Recipe"
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s == "Recipe" {
				return true
			}
		}
	}
	return false
}

func fromJSONLD(doc *goquery.Document) (Recipe, bool) {
	var found Recipe
	ok := false
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, candidate := range ldCandidates([]byte(s.Text())) {
			if !candidate.isRecipe() {
				continue
			}
			found = Recipe{
				Name:         strings.TrimSpace(candidate.Name),
				Image:        firstString(candidate.Image),
				Time:         isoDuration(firstNonEmpty(candidate.TotalTime, candidate.CookTime)),
				Servings:     leadingInt(firstString(candidate.RecipeYield)),
				Ingredients:  cleanLines(candidate.Ingredients),
				Instructions: cleanLines(instructionText(candidate.Instructions)),
			}
			ok = found.Name != ""
			return !ok
		}
		return true
	})
	return found, ok
}

// ldCandidates flattens a JSON-LD block that may be an object, an array or
// an @graph container.
func ldCandidates(data []byte) []ldRecipe {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		list = []json.RawMessage{data}
	}
	var out []ldRecipe
	for _, raw := range list {
		var r ldRecipe
		if err := json.Unmarshal(raw, &r); err != nil {
			continue
		}
		out = append(out, r)
		for _, g := range r.Graph {
			out = append(out, ldCandidates(g)...)
		}
	}
	return out
}

func instructionText(v any) []string {
	switch t := v.(type) {
	case string:
		return strings.Split(t, "\n")
	case []any:
		var steps []string
		for _, item := range t {
			switch step := item.(type) {
			case string:
				steps = append(steps, step)
			case map[string]any:
				if text, ok := step["text"].(string); ok {
					steps = append(steps, text)
				}
				if nested, ok := step["itemListElement"]; ok {
					steps = append(steps, instructionText(nested)...)
				}
			}
		}
		return steps
	}
	return nil
}

func fromMicrodata(doc *goquery.Document) (Recipe, bool) {
	scope := doc.Find(`[itemtype*="schema.org/Recipe"]`).First()
	if scope.Length() == 0 {
		return Recipe{}, false
	}
	prop := func(name string) *goquery.Selection {
		return scope.Find(fmt.Sprintf(`[itemprop="%s"]`, name))
	}
	value := func(s *goquery.Selection) string {
		for _, attr := range []string{"content", "src", "datetime"} {
			if v, ok := s.Attr(attr); ok && v != "" {
				return v
			}
		}
		return strings.TrimSpace(s.Text())
	}

	r := Recipe{
		Name:     value(prop("name").First()),
		Image:    value(prop("image").First()),
		Time:     isoDuration(value(prop("totalTime").First())),
		Servings: leadingInt(value(prop("recipeYield").First())),
	}
	ingredients := prop("recipeIngredient")
	if ingredients.Length() == 0 {
		ingredients = prop("ingredients")
	}
	ingredients.Each(func(_ int, s *goquery.Selection) {
		r.Ingredients = append(r.Ingredients, value(s))
	})
	prop("recipeInstructions").Each(func(_ int, s *goquery.Selection) {
		if items := s.Find("li"); items.Length() > 0 {
			items.Each(func(_ int, li *goquery.Selection) {
				r.Instructions = append(r.Instructions, li.Text())
			})
			return
		}
		r.Instructions = append(r.Instructions, value(s))
	})
	r.Ingredients = cleanLines(r.Ingredients)
	r.Instructions = cleanLines(r.Instructions)
	return r, r.Name != ""
}

// fromMarkup handles pages without structured data: the first h1 is the
// name and the lists following "Ingredients" and "Instructions" headings are
// the body.
func fromMarkup(doc *goquery.Document) Recipe {
	doc.Find("script, style, nav, footer, iframe, ads, .ads, #ads").Remove()

	r := Recipe{Name: strings.TrimSpace(doc.Find("h1").First().Text())}
	doc.Find("h2, h3, h4").Each(func(_ int, h *goquery.Selection) {
		heading := strings.ToLower(h.Text())
		list := h.NextAllFiltered("ul, ol").First().Find("li")
		var lines []string
		list.Each(func(_ int, li *goquery.Selection) {
			lines = append(lines, li.Text())
		})
		switch {
		case strings.Contains(heading, "ingredient") && r.Ingredients == nil:
			r.Ingredients = cleanLines(lines)
		case (strings.Contains(heading, "instruction") || strings.Contains(heading, "method") ||
			strings.Contains(heading, "direction")) && r.Instructions == nil:
			r.Instructions = cleanLines(lines)
		}
	})
	return r
}

var (
	isoDurationRe = regexp.MustCompile(`^P(?:T)?(?:(\d+)H)?(?:(\d+)M)?`)
	leadingIntRe  = regexp.MustCompile(`\d+`)
	spaceRe       = regexp.MustCompile(`\s+`)
)

// isoDuration turns "PT1H30M" into "1 h 30 min" and passes anything else
// through.
func isoDuration(s string) string {
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil || (m[1] == "" && m[2] == "") {
		return s
	}
	var parts []string
	if m[1] != "" {
		parts = append(parts, m[1]+" h")
	}
	if m[2] != "" {
		parts = append(parts, m[2]+" min")
	}
	return strings.Join(parts, " ")
}

func leadingInt(s string) int {
	n, _ := strconv.Atoi(leadingIntRe.FindString(s))
	return n
}

func firstString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		if len(t) > 0 {
			return firstString(t[0])
		}
	case map[string]any:
		if url, ok := t["url"].(string); ok {
			return url
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func cleanLines(lines []string) []string {
	var out []string
	for _, l := range lines {
		l = strings.TrimSpace(spaceRe.ReplaceAllString(l, " "))
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

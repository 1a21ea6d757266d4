package shopping

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"mealsync/internal/planner"
	"mealsync/internal/recipe"
)

// Derive flattens the ingredients of every planned meal into shopping items.
// Each meal's recipe is looked up by id, then by name. Meals with no recipe
// at all get ingredients guessed from the meal name. Names are deduplicated
// case-insensitively, keeping the first meal that needs them. The result
// depends only on the arguments.
func Derive(entries []planner.Entry, catalog []recipe.Recipe) []Item {
	seen := make(map[string]bool)
	var items []Item
	for _, e := range entries {
		var ingredients []string
		if r, ok := recipe.Find(catalog, e.RecipeID, e.RecipeName); ok {
			for _, ing := range r.Ingredients {
				ingredients = append(ingredients, cleanIngredient(ing))
			}
		} else {
			ingredients = Guess(e.RecipeName)
		}

		for _, name := range ingredients {
			k := key(name)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			items = append(items, Item{Name: name, Category: Categorize(name), SourceMeal: e.RecipeName})
		}
	}
	return items
}

// Missing returns the derived items whose names are not on the list yet.
func Missing(existing, derived []Item) []Item {
	have := make(map[string]bool, len(existing))
	for _, it := range existing {
		have[key(it.Name)] = true
	}
	var out []Item
	for _, it := range derived {
		if !have[key(it.Name)] {
			out = append(out, it)
		}
	}
	return out
}

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"Meat", []string{"chicken", "beef", "pork", "lamb", "turkey", "bacon", "sausage", "ham", "steak", "mince", "salmon", "tuna", "fish", "shrimp", "prawn"}},
	{"Pasta", []string{"pasta", "spaghetti", "penne", "macaroni", "noodle", "lasagn", "fettuccine", "linguine", "tortellini"}},
	{"Vegetables", []string{"eggplant", "lettuce", "greens", "tomato", "onion", "garlic", "bell pepper", "carrot", "potato", "spinach", "broccoli", "cucumber", "zucchini", "mushroom", "celery", "cabbage", "kale", "salad", "asparagus", "corn"}},
	{"Fruits", []string{"lemon", "lime", "apple", "banana", "orange", "berr", "grape", "mango", "pineapple", "avocado", "cherr", "peach", "pear"}},
	{"Dairy", []string{"milk", "cheese", "cheddar", "butter", "cream", "yogurt", "yoghurt", "egg", "parmesan", "mozzarella", "feta"}},
	{"Beverages", []string{"water", "juice", "coffee", "tea", "wine", "beer", "soda"}},
	{"Pantry", []string{"oil", "flour", "sugar", "salt", "pepper", "rice", "lentil", "vinegar", "sauce", "honey", "spice", "stock", "broth", "oat", "bread", "hummus", "quinoa"}},
}

// Categorize files an ingredient under the first category with a keyword
// that starts one of its words. Anything else is "Other".
func Categorize(name string) string {
	name = " " + key(name)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(name, " "+kw) {
				return c.category
			}
		}
	}
	return "Other"
}

var guesses = []struct {
	keywords    []string
	ingredients []string
}{
	{[]string{"chicken"}, []string{"Chicken Breast"}},
	{[]string{"beef", "steak"}, []string{"Beef"}},
	{[]string{"salmon"}, []string{"Salmon Fillet"}},
	{[]string{"fish"}, []string{"White Fish"}},
	{[]string{"egg", "omelette"}, []string{"Eggs", "Butter"}},
	{[]string{"pasta", "spaghetti", "carbonara"}, []string{"Spaghetti", "Parmesan", "Garlic"}},
	{[]string{"salad"}, []string{"Mixed Greens", "Cherry Tomatoes", "Olive Oil", "Lemon"}},
	{[]string{"soup"}, []string{"Vegetable Stock", "Onion", "Carrot", "Celery"}},
	{[]string{"curry"}, []string{"Curry Paste", "Coconut Milk", "Rice"}},
	{[]string{"pancake"}, []string{"Flour", "Eggs", "Milk"}},
	{[]string{"oatmeal", "porridge"}, []string{"Rolled Oats", "Milk", "Honey"}},
	{[]string{"smoothie"}, []string{"Banana", "Frozen Berries", "Yogurt"}},
	{[]string{"stir fry", "stir-fry"}, []string{"Soy Sauce", "Bell Pepper", "Broccoli", "Rice"}},
	{[]string{"taco"}, []string{"Tortillas", "Ground Beef", "Lettuce", "Cheddar Cheese"}},
	{[]string{"toast"}, []string{"Bread", "Butter"}},
}

// Guess proposes ingredients for a meal with no recipe, from keywords in its
// name. "Chicken Salad" gives the chicken ingredients followed by the salad
// ones.
func Guess(mealName string) []string {
	name := " " + key(mealName)
	seen := make(map[string]bool)
	var out []string
	for _, g := range guesses {
		for _, kw := range g.keywords {
			if !strings.Contains(name, " "+kw) {
				continue
			}
			for _, ing := range g.ingredients {
				if !seen[ing] {
					seen[ing] = true
					out = append(out, ing)
				}
			}
			break
		}
	}
	return out
}

var (
	quantityRe = regexp.MustCompile(`^[\d\s/.,½¼¾⅓⅔-]+`)
	noteRe     = regexp.MustCompile(`\s*(\(.*?\)|,.*)$`)
	units      = map[string]bool{
		"cup": true, "cups": true, "tbsp": true, "tsp": true, "tablespoon": true, "tablespoons": true,
		"teaspoon": true, "teaspoons": true, "g": true, "kg": true, "ml": true, "l": true, "oz": true,
		"lb": true, "lbs": true, "can": true, "cans": true, "clove": true, "cloves": true, "pinch": true,
		"handful": true, "slice": true, "slices": true, "piece": true, "pieces": true, "of": true,
	}
)

// cleanIngredient reduces a recipe line like "2 cups plain flour, sifted" to
// "Plain flour".
func cleanIngredient(line string) string {
	s := strings.TrimSpace(line)
	s = noteRe.ReplaceAllString(s, "")
	s = quantityRe.ReplaceAllString(s, "")
	words := strings.Fields(s)
	for len(words) > 1 && units[strings.ToLower(strings.TrimSuffix(words[0], "."))] {
		words = words[1:]
	}
	s = strings.Join(words, " ")
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return ""
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

package drinks

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestRecipeUnmarshalNormalizesShapes(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected Recipe
	}{
		{
			name:     "list",
			input:    `[{"color":"blue","name":"water","parts":1},{"color":"brown","name":"coffee","parts":3}]`,
			expected: Recipe{{Color: "blue", Name: "water", Parts: 1}, {Color: "brown", Name: "coffee", Parts: 3}},
		},
		{
			name:     "single-object",
			input:    `{"color":"white","name":"milk","parts":2}`,
			expected: Recipe{{Color: "white", Name: "milk", Parts: 2}},
		},
		{
			name:     "null",
			input:    `null`,
			expected: Recipe{},
		},
		{
			name:     "missing-name",
			input:    `[{"color":"blue","parts":1}]`,
			expected: Recipe{{Color: "blue", Parts: 1}},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			var recipe Recipe
			if err := json.Unmarshal([]byte(testCase.input), &recipe); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if recipe == nil {
				t.Fatalf("recipe must never decode to nil")
			}
			if len(recipe) != len(testCase.expected) {
				t.Fatalf("expected %d ingredients, got %d", len(testCase.expected), len(recipe))
			}
			for index := range recipe {
				if recipe[index] != testCase.expected[index] {
					t.Fatalf("ingredient %d mismatch: got %#v want %#v", index, recipe[index], testCase.expected[index])
				}
			}
		})
	}
}

func TestRecipeUnmarshalRejectsScalars(t *testing.T) {
	var recipe Recipe
	err := json.Unmarshal([]byte(`"espresso"`), &recipe)
	if !errors.Is(err, ErrInvalidRecipe) {
		t.Fatalf("expected invalid recipe error, got %v", err)
	}
}

func TestShortProjectionOmitsIngredientName(t *testing.T) {
	drink := Drink{
		ID:    7,
		Title: "Latte",
		Recipe: Recipe{
			{Color: "brown", Name: "espresso", Parts: 1},
			{Color: "white", Name: "milk", Parts: 3},
		},
	}

	shortJSON, err := json.Marshal(drink.Short())
	if err != nil {
		t.Fatalf("marshal short: %v", err)
	}
	longJSON, err := json.Marshal(drink.Long())
	if err != nil {
		t.Fatalf("marshal long: %v", err)
	}

	var short, long map[string]any
	if err := json.Unmarshal(shortJSON, &short); err != nil {
		t.Fatalf("decode short: %v", err)
	}
	if err := json.Unmarshal(longJSON, &long); err != nil {
		t.Fatalf("decode long: %v", err)
	}

	for key := range short {
		if _, ok := long[key]; !ok {
			t.Fatalf("short key %q missing from long projection", key)
		}
	}
	if len(short) != len(long) {
		t.Fatalf("top-level keys should match: short %v long %v", short, long)
	}

	shortRecipe := short["recipe"].([]any)
	longRecipe := long["recipe"].([]any)
	if len(shortRecipe) != 2 || len(longRecipe) != 2 {
		t.Fatalf("unexpected recipe lengths: short %d long %d", len(shortRecipe), len(longRecipe))
	}
	for index := range shortRecipe {
		shortIngredient := shortRecipe[index].(map[string]any)
		longIngredient := longRecipe[index].(map[string]any)
		if _, hasName := shortIngredient["name"]; hasName {
			t.Fatalf("short ingredient must not expose name: %v", shortIngredient)
		}
		if longIngredient["name"] == nil {
			t.Fatalf("long ingredient must expose name: %v", longIngredient)
		}
		for key, value := range shortIngredient {
			if longIngredient[key] != value {
				t.Fatalf("ingredient key %q differs: short %v long %v", key, value, longIngredient[key])
			}
		}
		if len(longIngredient)-len(shortIngredient) != 1 {
			t.Fatalf("long ingredient should differ only by name: %v vs %v", longIngredient, shortIngredient)
		}
	}
}

func TestProjectionsOfEmptyRecipeAreLists(t *testing.T) {
	drink := Drink{ID: 1, Title: "Air"}

	shortJSON, _ := json.Marshal(drink.Short())
	longJSON, _ := json.Marshal(drink.Long())

	if !strings.Contains(string(shortJSON), `"recipe":[]`) {
		t.Fatalf("expected empty list in short projection, got %s", shortJSON)
	}
	if !strings.Contains(string(longJSON), `"recipe":[]`) {
		t.Fatalf("expected empty list in long projection, got %s", longJSON)
	}
}

func TestNormalizeTitle(t *testing.T) {
	title, err := NormalizeTitle("  Flat White ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if title != "Flat White" {
		t.Fatalf("expected trimmed title, got %q", title)
	}

	if _, err := NormalizeTitle("   "); !errors.Is(err, ErrInvalidTitle) {
		t.Fatalf("expected invalid title for blank input, got %v", err)
	}
	if _, err := NormalizeTitle(strings.Repeat("x", maxTitleLength+1)); !errors.Is(err, ErrInvalidTitle) {
		t.Fatalf("expected invalid title for long input, got %v", err)
	}
}

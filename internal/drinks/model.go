package drinks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const maxTitleLength = 80

var (
	// ErrInvalidTitle indicates that a drink title is empty or exceeds storage bounds.
	ErrInvalidTitle = errors.New("drinks: invalid title")
	// ErrInvalidRecipe indicates that a recipe payload is neither an ingredient nor a list of ingredients.
	ErrInvalidRecipe = errors.New("drinks: invalid recipe")
	// ErrDrinkNotFound indicates that no drink exists for the requested identifier.
	ErrDrinkNotFound = errors.New("drinks: drink not found")
)

// Ingredient is a single colored part of a drink recipe.
type Ingredient struct {
	Color string `json:"color"`
	Name  string `json:"name"`
	Parts int    `json:"parts"`
}

// Recipe is the ordered list of ingredients making up a drink.
// It always decodes to a list: a lone ingredient object becomes a one-element recipe
// and null becomes an empty recipe.
type Recipe []Ingredient

// UnmarshalJSON accepts either a list of ingredients or a single ingredient object.
func (r *Recipe) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*r = Recipe{}
		return nil
	}
	switch trimmed[0] {
	case '[':
		var ingredients []Ingredient
		if err := json.Unmarshal(trimmed, &ingredients); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecipe, err)
		}
		if ingredients == nil {
			ingredients = []Ingredient{}
		}
		*r = ingredients
		return nil
	case '{':
		var ingredient Ingredient
		if err := json.Unmarshal(trimmed, &ingredient); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecipe, err)
		}
		*r = Recipe{ingredient}
		return nil
	default:
		return fmt.Errorf("%w: expected list or object", ErrInvalidRecipe)
	}
}

// Drink is the persisted menu entry.
type Drink struct {
	ID     uint   `gorm:"column:id;primaryKey;autoIncrement"`
	Title  string `gorm:"column:title;size:80;not null;uniqueIndex:idx_drinks_title"`
	Recipe Recipe `gorm:"column:recipe;type:text;not null;serializer:json"`
}

// TableName provides the explicit table binding for GORM.
func (Drink) TableName() string {
	return "drinks"
}

// ShortIngredient omits the ingredient name.
type ShortIngredient struct {
	Color string `json:"color"`
	Parts int    `json:"parts"`
}

// ShortDrink is the public projection of a drink.
type ShortDrink struct {
	ID     uint              `json:"id"`
	Title  string            `json:"title"`
	Recipe []ShortIngredient `json:"recipe"`
}

// LongDrink is the full projection of a drink for authorized consumers.
type LongDrink struct {
	ID     uint         `json:"id"`
	Title  string       `json:"title"`
	Recipe []Ingredient `json:"recipe"`
}

// Short returns the public projection.
func (d Drink) Short() ShortDrink {
	recipe := make([]ShortIngredient, 0, len(d.Recipe))
	for _, ingredient := range d.Recipe {
		recipe = append(recipe, ShortIngredient{Color: ingredient.Color, Parts: ingredient.Parts})
	}
	return ShortDrink{ID: d.ID, Title: d.Title, Recipe: recipe}
}

// Long returns the detailed projection.
func (d Drink) Long() LongDrink {
	recipe := make([]Ingredient, 0, len(d.Recipe))
	recipe = append(recipe, d.Recipe...)
	return LongDrink{ID: d.ID, Title: d.Title, Recipe: recipe}
}

// NewDrink describes the input for creating a drink.
type NewDrink struct {
	Title  string
	Recipe Recipe
}

// DrinkPatch describes an in-place update. Nil fields are left untouched.
type DrinkPatch struct {
	Title  *string
	Recipe *Recipe
}

// IsEmpty reports whether the patch changes nothing.
func (p DrinkPatch) IsEmpty() bool {
	return p.Title == nil && p.Recipe == nil
}

// NormalizeTitle validates a raw title and returns its trimmed form.
func NormalizeTitle(rawInput string) (string, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidTitle)
	}
	if len(trimmed) > maxTitleLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidTitle, maxTitleLength)
	}
	return trimmed, nil
}

func normalizeRecipe(recipe Recipe) Recipe {
	if recipe == nil {
		return Recipe{}
	}
	return recipe
}

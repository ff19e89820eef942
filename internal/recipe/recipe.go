// Package recipe holds the static step list of the walkthrough, ingredient
// scaling, and the content-editing overrides applied on top of it.
package recipe

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

//go:embed pain.toml
var defaultTOML string

// ErrInvalidWeight is returned for a non-positive or non-numeric target weight.
var ErrInvalidWeight = errors.New("target weight must be a positive number")

// Recipe is the full step sequence plus the weight the amounts are written for.
type Recipe struct {
	Title string `toml:"title" json:"title"`
	// BaseWeight is the final dough weight in grams the amounts add up to.
	BaseWeight float64 `toml:"base_weight" json:"base_weight"`
	// DefaultWeight is the target weight offered before the user picks one.
	DefaultWeight float64 `toml:"default_weight" json:"default_weight"`
	Steps         []Step  `toml:"steps" json:"steps"`
}

// Step is one card of the walkthrough.
type Step struct {
	ID           int          `toml:"id" json:"id"`
	Title        string       `toml:"title" json:"title"`
	Instructions []string     `toml:"instructions" json:"instructions"`
	Ingredients  []Ingredient `toml:"ingredients" json:"ingredients"`
	// Timer is the countdown length in seconds; 0 means no timer.
	Timer      int      `toml:"timer" json:"timer"`
	TimerLabel string   `toml:"timer_label" json:"timer_label,omitempty"`
	Note       string   `toml:"note" json:"note,omitempty"`
	Images     []string `toml:"images" json:"images,omitempty"`
}

// Ingredient is an amount written for the recipe's BaseWeight.
type Ingredient struct {
	Name   string  `toml:"name" json:"name"`
	Amount float64 `toml:"amount" json:"amount"`
	Unit   string  `toml:"unit" json:"unit"`
}

// ScaledIngredient is an ingredient converted to the user's target weight.
type ScaledIngredient struct {
	Name   string `json:"name"`
	Amount int    `json:"amount"`
	Unit   string `json:"unit"`
}

// Default returns the built-in recipe.
func Default() *Recipe {
	r, err := Parse([]byte(defaultTOML))
	if err != nil {
		panic(fmt.Sprintf("recipe: embedded recipe is invalid: %v", err))
	}
	return r
}

// LoadFile reads a recipe from a TOML file.
func LoadFile(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recipe file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a TOML recipe.
func Parse(data []byte) (*Recipe, error) {
	var r Recipe
	if err := toml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse recipe: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks that the recipe can drive a walkthrough.
func (r *Recipe) Validate() error {
	if len(r.Steps) == 0 {
		return errors.New("recipe has no steps")
	}
	if r.BaseWeight <= 0 {
		return fmt.Errorf("base weight %v: %w", r.BaseWeight, ErrInvalidWeight)
	}
	if err := ValidateWeight(r.DefaultWeight); err != nil {
		return fmt.Errorf("default weight: %w", err)
	}
	seen := make(map[int]bool, len(r.Steps))
	for i, s := range r.Steps {
		if s.Timer < 0 {
			return fmt.Errorf("step %d: negative timer %d", s.ID, s.Timer)
		}
		if seen[s.ID] {
			return fmt.Errorf("step at index %d: duplicate id %d", i, s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// IndexOf returns the position of the step with the given id, or -1.
func (r *Recipe) IndexOf(id int) int {
	for i, s := range r.Steps {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// StepAt returns the step at index with any override applied.
func (r *Recipe) StepAt(index int, o Overrides) (Step, bool) {
	if index < 0 || index >= len(r.Steps) {
		return Step{}, false
	}
	base := r.Steps[index]
	if s, ok := o[base.ID]; ok {
		return s, true
	}
	return base, true
}

// Scaled returns the step's ingredients converted to target grams.
func (s Step) Scaled(base, target float64) []ScaledIngredient {
	out := make([]ScaledIngredient, 0, len(s.Ingredients))
	for _, ing := range s.Ingredients {
		out = append(out, ScaledIngredient{
			Name:   ing.Name,
			Amount: Scale(ing.Amount, base, target),
			Unit:   ing.Unit,
		})
	}
	return out
}

// Scale converts an amount written for base grams to target grams,
// rounded to the nearest unit. Callers validate target first.
func Scale(amount, base, target float64) int {
	return int(math.Round(target / base * amount))
}

// ValidateWeight rejects non-positive and non-finite weights.
func ValidateWeight(w float64) error {
	if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
		return ErrInvalidWeight
	}
	return nil
}

// ParseWeight parses user input into a validated weight.
func ParseWeight(s string) (float64, error) {
	w, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, ErrInvalidWeight
	}
	if err := ValidateWeight(w); err != nil {
		return 0, err
	}
	return w, nil
}

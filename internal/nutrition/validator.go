// Package nutrition checks concept nutrition for structural and range
// validity. Values are always read off the concept being validated, never
// from a parallel array indexed by position.
package nutrition

import (
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"mealforge/internal/domain"
)

// Tolerance for the calories-vs-macros consistency check: the calories a
// model declares may deviate from 4p+4c+9f by at most this fraction.
const macroTolerance = 0.5

// Failure describes one rejected concept. It removes only that concept
// from the chunk, never the chunk itself.
type Failure struct {
	RecipeID int
	Name     string
	Reason   string
}

func (f Failure) String() string {
	return fmt.Sprintf("recipe %d (%s): %s", f.RecipeID, f.Name, f.Reason)
}

// Validator validates recipe concepts before persistence.
type Validator struct {
	validate *validator.Validate
}

// New constructs a Validator.
func New() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate returns nil when the concept is acceptable, or a Failure
// describing the first problem found.
func (v *Validator) Validate(concept domain.RecipeConcept) *Failure {
	if err := v.validate.Struct(concept); err != nil {
		return &Failure{
			RecipeID: concept.RecipeID,
			Name:     concept.Name,
			Reason:   fmt.Sprintf("structural validation: %v", err),
		}
	}

	n := concept.Nutrition
	computed := 4*n.ProteinGrams + 4*n.CarbsGrams + 9*n.FatGrams
	if computed > 0 && math.Abs(computed-n.Calories)/n.Calories > macroTolerance {
		return &Failure{
			RecipeID: concept.RecipeID,
			Name:     concept.Name,
			Reason: fmt.Sprintf("calories %.0f inconsistent with macros (computed %.0f)",
				n.Calories, computed),
		}
	}
	return nil
}

// Filter splits concepts into the valid set and the per-recipe failures.
// The relative order of valid concepts is preserved.
func (v *Validator) Filter(concepts []domain.RecipeConcept) ([]domain.RecipeConcept, []Failure) {
	valid := make([]domain.RecipeConcept, 0, len(concepts))
	var failures []Failure
	for _, concept := range concepts {
		if failure := v.Validate(concept); failure != nil {
			failures = append(failures, *failure)
			continue
		}
		valid = append(valid, concept)
	}
	return valid, failures
}

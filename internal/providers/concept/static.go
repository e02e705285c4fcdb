package concept

import (
	"context"
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"mealforge/internal/domain"
)

var staticDishes = []struct {
	name        string
	description string
	calories    float64
	protein     float64
	carbs       float64
	fat         float64
}{
	{"herbed lemon chicken", "Pan-seared chicken thighs with a bright lemon herb sauce.", 520, 42, 12, 30},
	{"roasted vegetable bowl", "Seasonal vegetables roasted until caramelized, over grains.", 430, 14, 62, 14},
	{"miso glazed salmon", "Salmon fillet lacquered with sweet miso, broiled to finish.", 480, 38, 18, 26},
	{"chickpea curry", "Slow-simmered chickpeas in a spiced tomato coconut base.", 390, 16, 48, 15},
	{"steak and greens", "Seared flank steak over garlicky wilted greens.", 560, 46, 8, 36},
	{"overnight oats", "Rolled oats soaked with yogurt, berries and toasted seeds.", 350, 15, 52, 9},
}

// StaticGenerator produces deterministic concepts without any upstream
// call. Used when no API key is configured so the whole pipeline stays
// operational in local and CI environments.
type StaticGenerator struct {
	titler cases.Caser
}

// NewStaticGenerator creates a deterministic concept generator.
func NewStaticGenerator() *StaticGenerator {
	return &StaticGenerator{titler: cases.Title(language.English)}
}

// Generate returns req.Count concepts cycled from a fixed pool, with
// transient identifiers assigned from req.StartID.
func (g *StaticGenerator) Generate(ctx context.Context, req Request) ([]domain.RecipeConcept, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Count <= 0 {
		return nil, fmt.Errorf("concept: non-positive count %d: %w", req.Count, domain.ErrMalformedInput)
	}

	mealType := "dinner"
	if len(req.MealTypes) > 0 {
		mealType = req.MealTypes[0]
	}

	concepts := make([]domain.RecipeConcept, req.Count)
	for i := 0; i < req.Count; i++ {
		dish := staticDishes[(req.StartID+i)%len(staticDishes)]
		name := g.titler.String(dish.name)
		concepts[i] = domain.RecipeConcept{
			RecipeID:    req.StartID + i,
			Name:        fmt.Sprintf("%s No. %d", name, req.StartID+i),
			Description: dish.description,
			MealType:    mealType,
			Servings:    2,
			PrepMinutes: 15,
			CookMinutes: 25,
			Ingredients: []domain.Ingredient{
				{Name: "main ingredient", Quantity: "400 g"},
				{Name: "olive oil", Quantity: "2 tbsp"},
				{Name: "salt", Quantity: "to taste"},
			},
			Instructions: []string{
				"Prepare and season the main ingredient.",
				"Cook over medium heat until done.",
				"Plate and serve.",
			},
			Nutrition: domain.Nutrition{
				Calories:     dish.calories,
				ProteinGrams: dish.protein,
				CarbsGrams:   dish.carbs,
				FatGrams:     dish.fat,
			},
		}
	}
	return concepts, nil
}

var _ Generator = (*StaticGenerator)(nil)

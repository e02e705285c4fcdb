package concept

import (
	"context"
	"errors"
	"testing"

	"mealforge/internal/domain"
)

const validPayload = `[
  {
    "name": "Lemon Chicken",
    "description": "Bright and simple.",
    "meal_type": "Dinner",
    "servings": 2,
    "prep_minutes": 10,
    "cook_minutes": 20,
    "ingredients": [{"name": "chicken thigh", "quantity": "400 g"}],
    "instructions": ["Sear.", "Sauce.", "Serve."],
    "nutrition": {"calories": 520, "protein_g": 42, "carbs_g": 12, "fat_g": 30}
  },
  {
    "name": "Roasted Bowl",
    "description": "Vegetables over grains.",
    "meal_type": "lunch",
    "servings": 2,
    "prep_minutes": 15,
    "cook_minutes": 30,
    "ingredients": [{"name": "mixed vegetables", "quantity": "500 g"}],
    "instructions": ["Roast.", "Assemble."],
    "nutrition": {"calories": 430, "protein_g": 14, "carbs_g": 62, "fat_g": 14}
  }
]`

func TestDecodeConceptsAssignsTransientIDs(t *testing.T) {
	concepts, err := DecodeConcepts([]byte(validPayload), Request{Count: 2, StartID: 6})
	if err != nil {
		t.Fatalf("DecodeConcepts: %v", err)
	}
	if len(concepts) != 2 {
		t.Fatalf("len = %d, want 2", len(concepts))
	}
	if concepts[0].RecipeID != 6 || concepts[1].RecipeID != 7 {
		t.Fatalf("transient ids = %d,%d, want 6,7", concepts[0].RecipeID, concepts[1].RecipeID)
	}
	if concepts[0].MealType != "dinner" {
		t.Fatalf("MealType = %q, want normalized %q", concepts[0].MealType, "dinner")
	}
}

func TestDecodeConceptsTruncatesOverdelivery(t *testing.T) {
	concepts, err := DecodeConcepts([]byte(validPayload), Request{Count: 1, StartID: 1})
	if err != nil {
		t.Fatalf("DecodeConcepts: %v", err)
	}
	if len(concepts) != 1 {
		t.Fatalf("len = %d, want 1", len(concepts))
	}
}

func TestDecodeConceptsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `the model had a bad day`},
		{"object instead of array", `{"recipes": []}`},
		{"empty array", `[]`},
		{"missing name", `[{"name": "", "ingredients": [{"name":"x"}], "instructions":["y"], "nutrition":{"calories":100}}]`},
		{"no ingredients", `[{"name": "Soup", "ingredients": [], "instructions":["y"], "nutrition":{"calories":100}}]`},
		{"no instructions", `[{"name": "Soup", "ingredients": [{"name":"x"}], "instructions":[], "nutrition":{"calories":100}}]`},
		{"no nutrition", `[{"name": "Soup", "ingredients": [{"name":"x"}], "instructions":["y"]}]`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeConcepts([]byte(tc.raw), Request{Count: 1, StartID: 1})
			if !errors.Is(err, domain.ErrMalformedOutput) {
				t.Fatalf("error = %v, want ErrMalformedOutput", err)
			}
		})
	}
}

func TestStaticGeneratorDeterministic(t *testing.T) {
	gen := NewStaticGenerator()
	req := Request{BatchID: "b", Count: 5, StartID: 1, MealTypes: []string{"lunch"}}

	first, err := gen.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, err := gen.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate (repeat): %v", err)
	}
	if len(first) != 5 {
		t.Fatalf("len = %d, want 5", len(first))
	}
	for i := range first {
		if first[i].RecipeID != i+1 {
			t.Fatalf("RecipeID[%d] = %d, want %d", i, first[i].RecipeID, i+1)
		}
		if first[i].Name != second[i].Name {
			t.Fatalf("non-deterministic name at %d: %q vs %q", i, first[i].Name, second[i].Name)
		}
		if first[i].MealType != "lunch" {
			t.Fatalf("MealType = %q, want lunch", first[i].MealType)
		}
	}
}

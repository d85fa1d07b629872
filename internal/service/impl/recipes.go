package impl

import (
	"context"
	"fmt"

	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/schema"
	"github.com/ting-rn/ting-sync/internal/service"
)

// ListRecipes returns latest recipes, recipes of categories or recipes with tag.
// Tag search is not ordered.
func (s *srv) ListRecipes(ctx context.Context, f service.RecipeFilter) ([]*entities.Recipe, error) {
	if f.Limit <= 0 {
		f.Limit = service.DefaultRecipesLimit
	}

	q := docstore.Collection(schema.Recipes)

	if f.Tag != "" {
		q = q.Where(schema.RecipeTags, docstore.Equal, f.Tag)
	} else {
		if f.FoodCategory != "" {
			q = q.Where(schema.RecipeFoodCategory, docstore.Equal, f.FoodCategory)
		}
		if f.CookingCategory != "" {
			q = q.Where(schema.RecipeCookingCategory, docstore.Equal, f.CookingCategory)
		}
		q = q.OrderBy(schema.CreatedAt, docstore.Desc)
	}

	docs, err := s.store.Query(ctx, q.Limit(f.Limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query recipes: %w", err)
	}

	out := make([]*entities.Recipe, len(docs))
	for i, d := range docs {
		out[i] = schema.RecipeFromDoc(d)
	}

	return out, nil
}

func (s *srv) GetRecipe(ctx context.Context, id string) (*entities.Recipe, error) {
	d, err := s.store.Get(ctx, schema.RecipePath(id))
	if err != nil {
		return nil, fmt.Errorf("failed to get recipe: %w", err)
	}

	if !d.Exists {
		return nil, notFound("recipe", id)
	}

	return schema.RecipeFromDoc(d), nil
}

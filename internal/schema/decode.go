package schema

import (
	"time"

	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/entities"
)

// PostFromDoc ...
func PostFromDoc(d *docstore.Document) *entities.Post {
	m := d.Data

	p := &entities.Post{
		ID:            d.ID,
		OwnerID:       str(m[PostUserID]),
		Title:         str(m[PostTitle]),
		Content:       str(m[PostContent]),
		ImageURLs:     strs(m[PostImageURLs]),
		Visibility:    entities.Visibility(str(m[PostVisibility])),
		Category:      str(m[PostCategory]),
		Value:         str(m[PostValue]),
		RecipeID:      str(m[PostRecipeID]),
		Region:        str(m[PostRegion]),
		LikesCount:    num(m[PostLikesCount]),
		CommentsCount: num(m[PostCommentsCount]),
		Archived:      boolean(m[PostArchived]),
		CreatedAt:     ts(m[CreatedAt]),
		UpdatedAt:     ts(m[UpdatedAt]),
	}

	if !p.Visibility.IsValid() {
		p.Visibility = entities.PublicVisibility
	}

	if v, ok := m[PostCapturedAt]; ok && v != nil {
		t := ts(v)
		p.CapturedAt = &t
	}

	return p
}

// UserFromDoc ...
func UserFromDoc(d *docstore.Document) *entities.User {
	m := d.Data

	return &entities.User{
		ID:            d.ID,
		Name:          str(m[UserName]),
		Location:      str(m[UserLocation]),
		Title:         str(m[UserTitle]),
		StatusMessage: str(m[UserStatusMessage]),
		ProfileImage:  str(m[UserProfileImage]),
		Email:         str(m[UserEmail]),
		Bio:           str(m[UserBio]),
		CountryCode:   str(m[UserCountryCode]),
		CountryName:   str(m[UserCountryName]),
		Provider:      str(m[UserProvider]),
		CreatedAt:     ts(m[CreatedAt]),
	}
}

// CommentFromDoc ...
func CommentFromDoc(d *docstore.Document) *entities.Comment {
	m := d.Data

	return &entities.Comment{
		ID:        d.ID,
		PostID:    str(m[CommentPostID]),
		UserID:    str(m[CommentUserID]),
		Content:   str(m[CommentContent]),
		CreatedAt: ts(m[CreatedAt]),
		UpdatedAt: ts(m[UpdatedAt]),
	}
}

// StickyNoteFromDoc ...
func StickyNoteFromDoc(d *docstore.Document) *entities.StickyNote {
	m := d.Data

	id := str(m[NoteID])
	if id == "" {
		id = d.ID
	}

	return &entities.StickyNote{
		ID:              id,
		AuthorID:        str(m[NoteAuthorID]),
		AuthorName:      str(m[NoteAuthorName]),
		AuthorAvatarURL: str(m[NoteAuthorAvatarURL]),
		Text:            str(m[NoteText]),
		Color:           entities.Color(uint32(num(m[NoteColor]))),
		Pinned:          boolean(m[NotePinned]),
		CreatedAt:       ts(m[NoteCreatedAt]),
	}
}

// MembershipFromDoc ...
func MembershipFromDoc(d *docstore.Document) *entities.Membership {
	return &entities.Membership{
		PeerID:    d.ID,
		CreatedAt: ts(d.Data[CreatedAt]),
	}
}

// RecipeFromDoc ...
func RecipeFromDoc(d *docstore.Document) *entities.Recipe {
	m := d.Data

	r := &entities.Recipe{
		ID:              d.ID,
		Title:           str(m[RecipeTitle]),
		FoodCategory:    str(m[RecipeFoodCategory]),
		CookingCategory: str(m[RecipeCookingCategory]),
		Images:          recipeImage(m[RecipeImages]),
		Tags:            str(m[RecipeTags]),
		Tips:            str(m[RecipeTips]),
		CreatedAt:       ts(m[CreatedAt]),
	}

	for _, v := range list(m[RecipeIngredients]) {
		i := obj(v)
		r.Ingredients = append(r.Ingredients, entities.Ingredient{
			Name:     str(i["name"]),
			Quantity: str(i["quantity"]),
		})
	}

	for _, v := range list(m[RecipeMethods]) {
		method := obj(v)
		r.Methods = append(r.Methods, entities.RecipeMethod{
			Describe: str(method["describe"]),
			Image:    recipeImage(method["image"]),
		})
	}

	n := obj(m[RecipeNutrition])
	r.Nutrition = entities.Nutrition{
		Calories:      str(n["calories"]),
		Protein:       str(n["protein"]),
		Carbohydrates: str(n["carbohydrates"]),
		Fat:           str(n["fat"]),
		Sodium:        str(n["sodium"]),
	}

	return r
}

func recipeImage(v interface{}) entities.RecipeImage {
	m := obj(v)

	return entities.RecipeImage{
		OriginalURL: str(m["original_url"]),
		LocalPath:   str(m["local_path"]),
	}
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}

func boolean(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func num(v interface{}) int64 {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int64:
		return v
	case uint32:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

func ts(v interface{}) time.Time {
	switch v := v.(type) {
	case time.Time:
		return v
	case *time.Time:
		if v != nil {
			return *v
		}
	case string:
		t, err := time.Parse(time.RFC3339Nano, v)
		if err == nil {
			return t
		}
	}

	return time.Time{}
}

func strs(v interface{}) []string {
	switch v := v.(type) {
	case []string:
		return append([]string(nil), v...)
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if s, ok := s.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func list(v interface{}) []interface{} {
	l, _ := v.([]interface{})
	return l
}

func obj(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

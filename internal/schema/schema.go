// Package schema contains collection layout and field names of stored documents.
package schema

import (
	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/entities"
)

// Top level collections.
const (
	Users   = "users"
	Posts   = "posts"
	Recipes = "recipes"
)

// Sub collections.
const (
	PinnedPosts = "pinned_posts"
	Guestbook   = "guestbook"
	Likes       = "likes"
	Comments    = "comments"
)

// Common fields.
const (
	CreatedAt = "created_at"
	UpdatedAt = "updated_at"
)

// Post fields.
const (
	PostUserID        = "user_id"
	PostID            = "post_id"
	PostTitle         = "title"
	PostContent       = "content"
	PostImageURLs     = "image_urls"
	PostLikesCount    = "likes_count"
	PostCommentsCount = "comments_count"
	PostCategory      = "category"
	PostValue         = "value"
	PostRecipeID      = "recipe_id"
	PostRegion        = "region"
	PostCapturedAt    = "captured_at"
	PostVisibility    = "visibility"
	PostArchived      = "archived"
)

// User fields.
const (
	UserID            = "user_id"
	UserName          = "user_name"
	UserLocation      = "location"
	UserTitle         = "user_title"
	UserStatusMessage = "status_message"
	UserProfileImage  = "profile_image"
	UserEmail         = "email"
	UserBio           = "bio"
	UserCountryCode   = "country_code"
	UserCountryName   = "country_name"
	UserProvider      = "provider"
)

// Comment fields.
const (
	CommentID      = "comment_id"
	CommentPostID  = "post_id"
	CommentUserID  = "user_id"
	CommentContent = "content"
)

// Sticky note fields.
const (
	NoteID              = "id"
	NoteAuthorID        = "authorId"
	NoteAuthorName      = "authorName"
	NoteAuthorAvatarURL = "authorAvatarUrl"
	NoteText            = "text"
	NoteColor           = "color"
	NotePinned          = "pinned"
	NoteCreatedAt       = "createdAt"
)

// Recipe fields.
const (
	RecipeTitle           = "title"
	RecipeFoodCategory    = "food_category"
	RecipeCookingCategory = "cooking_category"
	RecipeImages          = "images"
	RecipeTags            = "tags"
	RecipeTips            = "tips"
	RecipeIngredients     = "ingredients"
	RecipeMethods         = "methods"
	RecipeNutrition       = "nutrition"
)

// UserPath ...
func UserPath(uid string) string {
	return docstore.Join(Users, uid)
}

// MembersPath returns collection of uid's relations of kind.
func MembersPath(uid string, kind entities.MembershipKind) string {
	return docstore.Join(Users, uid, string(kind))
}

// MemberPath ...
func MemberPath(uid string, kind entities.MembershipKind, peer string) string {
	return docstore.Join(Users, uid, string(kind), peer)
}

// PinsPath ...
func PinsPath(uid string) string {
	return docstore.Join(Users, uid, PinnedPosts)
}

// PinPath ...
func PinPath(uid, postID string) string {
	return docstore.Join(Users, uid, PinnedPosts, postID)
}

// GuestbookPath ...
func GuestbookPath(uid string) string {
	return docstore.Join(Users, uid, Guestbook)
}

// NotePath ...
func NotePath(uid, noteID string) string {
	return docstore.Join(Users, uid, Guestbook, noteID)
}

// PostPath ...
func PostPath(id string) string {
	return docstore.Join(Posts, id)
}

// LikesPath ...
func LikesPath(postID string) string {
	return docstore.Join(Posts, postID, Likes)
}

// LikePath ...
func LikePath(postID, uid string) string {
	return docstore.Join(Posts, postID, Likes, uid)
}

// CommentsPath ...
func CommentsPath(postID string) string {
	return docstore.Join(Posts, postID, Comments)
}

// CommentPath ...
func CommentPath(postID, commentID string) string {
	return docstore.Join(Posts, postID, Comments, commentID)
}

// RecipePath ...
func RecipePath(id string) string {
	return docstore.Join(Recipes, id)
}

// Membership returns data of a membership record.
func Membership() map[string]interface{} {
	return map[string]interface{}{CreatedAt: docstore.ServerTimestamp}
}

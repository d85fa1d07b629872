// Package service contains the social service interface.
// Every method which acts on behalf of a user takes the actor identity explicitly.
package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/schema"
)

var (
	// ErrSelfAction is returned when a user tries to like their own post or follow themselves.
	ErrSelfAction = errors.New("action on oneself is not allowed")
	// ErrForbidden is returned when the actor does not own the entity.
	ErrForbidden = errors.New("forbidden")
	// ErrBlocked is returned when the actor tries to follow a user they blocked.
	ErrBlocked = errors.New("user is blocked")
	// ErrInvalidArgument ...
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnauthenticated is returned when an operation requires an identity but none was given.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Default page sizes.
const (
	DefaultUserPostsLimit   = 50
	DefaultPinnedPostsLimit = 20
	DefaultMembersLimit     = 30
	DefaultRecipesLimit     = 20
)

// Service is the union of all social operations.
type Service interface {
	Posts
	Likes
	Comments
	Follows
	Guestbook
	Profiles
	Recipes
}

// CreatePostParams ...
type CreatePostParams struct {
	Title      string
	Content    string
	ImageURLs  []string
	Visibility entities.Visibility
	Category   string
	Value      string
	RecipeID   string
	Region     string
	CapturedAt *time.Time
}

// UpdatePostParams contains fields to be changed, nil means unchanged.
type UpdatePostParams struct {
	Title      *string
	Content    *string
	ImageURLs  *[]string
	Visibility *entities.Visibility
	Category   *string
	Value      *string
	RecipeID   *string
	Region     *string
	CapturedAt *time.Time
}

// ListUserPostsParams ...
type ListUserPostsParams struct {
	Limit           int
	IncludeArchived bool
}

// Posts ...
type Posts interface {
	CreatePost(ctx context.Context, actor entities.Identity, p CreatePostParams) (*entities.Post, error)
	GetPost(ctx context.Context, id string) (*entities.Post, error)
	UpdatePost(ctx context.Context, actor entities.Identity, id string, p UpdatePostParams) error
	// ArchivePost soft deletes the post.
	ArchivePost(ctx context.Context, actor entities.Identity, id string) error
	// ListUserPosts returns owner's posts visible to viewer, newest first.
	ListUserPosts(ctx context.Context, viewer entities.Identity, ownerID string, p ListUserPostsParams) ([]*entities.Post, error)
	// PinnedPosts returns owner's pinned posts visible to viewer in pin order.
	PinnedPosts(ctx context.Context, viewer entities.Identity, ownerID string, limit int) ([]*entities.Post, error)
	SetPin(ctx context.Context, actor entities.Identity, postID string, pinned bool) (docstore.Version, error)
	UploadPostImage(ctx context.Context, actor entities.Identity, r io.Reader, size int64, ext string) (string, error)
	DeleteImage(ctx context.Context, actor entities.Identity, url string) error
}

// Likes ...
type Likes interface {
	// SetLike likes the post when currentlyLiked is false and unlikes it otherwise.
	// The like record and the post's counter are written in one transaction.
	SetLike(ctx context.Context, actor entities.Identity, postID string, currentlyLiked bool) (docstore.Version, error)
}

// Comments ...
type Comments interface {
	AddComment(ctx context.Context, actor entities.Identity, postID, content string) (*entities.Comment, error)
	EditComment(ctx context.Context, actor entities.Identity, postID, commentID, content string) error
	DeleteComment(ctx context.Context, actor entities.Identity, postID, commentID string) error
	ListComments(ctx context.Context, postID string, limit int) ([]*entities.Comment, error)
}

// Follows ...
type Follows interface {
	Follow(ctx context.Context, actor entities.Identity, target string) (docstore.Version, error)
	Unfollow(ctx context.Context, actor entities.Identity, target string) (docstore.Version, error)
	// SetFollow follows target when currentlyFollowing is false and unfollows otherwise.
	SetFollow(ctx context.Context, actor entities.Identity, target string, currentlyFollowing bool) (docstore.Version, error)
	// Block adds target to actor's blocks and removes follow edges in both directions.
	Block(ctx context.Context, actor entities.Identity, target string) (docstore.Version, error)
	Unblock(ctx context.Context, actor entities.Identity, target string) (docstore.Version, error)

	CountMembers(ctx context.Context, uid string, kind entities.MembershipKind) (int64, error)
	ListMembers(ctx context.Context, uid string, kind entities.MembershipKind, limit int) ([]*entities.Membership, error)
	// MemberIDs returns the whole relation set, newest first.
	MemberIDs(ctx context.Context, uid string, kind entities.MembershipKind) ([]string, error)
}

// NoteParams ...
type NoteParams struct {
	Text  string
	Color entities.Color
}

// UpdateNoteParams contains fields to be changed, nil means unchanged.
type UpdateNoteParams struct {
	Text   *string
	Color  *entities.Color
	Pinned *bool
}

// Guestbook ...
type Guestbook interface {
	AddNote(ctx context.Context, actor entities.Identity, target string, p NoteParams) (*entities.StickyNote, error)
	// UpdateNote lets the author change text and color and the profile owner change pinned flag.
	UpdateNote(ctx context.Context, actor entities.Identity, target, noteID string, p UpdateNoteParams) error
	// DeleteNote is allowed to the author and the profile owner.
	DeleteNote(ctx context.Context, actor entities.Identity, target, noteID string) error
	ListNotes(ctx context.Context, target string) ([]*entities.StickyNote, error)
}

// RegisterParams ...
type RegisterParams struct {
	UserName        string
	CountryCode     string
	CountryName     string
	ProfileImageURL string
	Bio             string
}

// UpdateProfileParams contains fields to be changed, nil means unchanged.
type UpdateProfileParams struct {
	UserName    *string
	Title       *string
	Location    *string
	Bio         *string
	CountryCode *string
	CountryName *string
}

// Profile is everything a profile screen shows.
type Profile struct {
	Info   *entities.ProfileInfo
	Posts  []*entities.Post
	Pinned []*entities.Post
}

// Profiles ...
type Profiles interface {
	// RegisterUser creates user document if it does not exist yet.
	RegisterUser(ctx context.Context, actor entities.Identity, p RegisterParams) (*entities.User, error)
	GetUser(ctx context.Context, uid string) (*entities.User, error)
	// GetProfile returns user with counts as seen by viewer, private fields are stripped for others.
	GetProfile(ctx context.Context, viewer entities.Identity, uid string) (*entities.ProfileInfo, error)
	LoadProfile(ctx context.Context, viewer entities.Identity, uid string) (*Profile, error)
	UpdateProfile(ctx context.Context, actor entities.Identity, p UpdateProfileParams) error
	UpdateStatusMessage(ctx context.Context, actor entities.Identity, message string) error
	UploadProfileImage(ctx context.Context, actor entities.Identity, r io.Reader, size int64, ext string) (string, error)
	// ListUsers joins uid's relation set with user documents. Missing users are skipped.
	ListUsers(ctx context.Context, uid string, kind entities.MembershipKind, limit int) ([]*entities.UserData, error)
}

// RecipeFilter ...
type RecipeFilter struct {
	FoodCategory    string
	CookingCategory string
	Tag             string
	Limit           int
}

// Recipes ...
type Recipes interface {
	ListRecipes(ctx context.Context, f RecipeFilter) ([]*entities.Recipe, error)
	GetRecipe(ctx context.Context, id string) (*entities.Recipe, error)
}

// CommentsQuery returns the live query of a post's comments, newest first.
func CommentsQuery(postID string, limit int) docstore.Query {
	q := docstore.Collection(schema.CommentsPath(postID)).OrderBy(schema.CreatedAt, docstore.Desc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return q
}

// NotesQuery returns the live query of a profile's guestbook, pinned first then newest first.
func NotesQuery(target string) docstore.Query {
	return docstore.Collection(schema.GuestbookPath(target)).
		OrderBy(schema.NotePinned, docstore.Desc).
		OrderBy(schema.NoteCreatedAt, docstore.Desc)
}

// Package entities contains main entities of service.
package entities

import (
	"sort"
	"time"
)

// Visibility ...
type Visibility string

const (
	// PublicVisibility posts are visible to everyone.
	PublicVisibility Visibility = "PUBLIC"
	// FollowerVisibility posts are visible to the owner and their followers.
	FollowerVisibility Visibility = "FOLLOWER"
	// PrivateVisibility posts are visible to the owner only.
	PrivateVisibility Visibility = "PRIVATE"
)

// IsValid ...
func (v Visibility) IsValid() bool {
	switch v {
	case PublicVisibility, FollowerVisibility, PrivateVisibility:
		return true
	default:
		return false
	}
}

// Identity is the signed-in actor passed explicitly into every call which needs one.
type Identity struct {
	ID       string
	Email    string
	Provider string
}

// IsZero ...
func (i Identity) IsZero() bool {
	return i.ID == ""
}

// Post ...
type Post struct {
	ID            string
	OwnerID       string
	Title         string
	Content       string
	ImageURLs     []string
	Visibility    Visibility
	Category      string
	Value         string
	RecipeID      string
	Region        string
	LikesCount    int64
	CommentsCount int64
	Archived      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CapturedAt    *time.Time
}

// User ...
type User struct {
	ID            string
	Name          string
	Location      string
	Title         string
	StatusMessage string
	ProfileImage  string
	Email         string
	Bio           string
	CountryCode   string
	CountryName   string
	Provider      string
	CreatedAt     time.Time
}

// NeedsOnboarding reports whether the user has not finished profile setup yet.
func (u User) NeedsOnboarding() bool {
	return u.Name == "" || u.CountryCode == ""
}

// ProfileInfo is a user with denormalized counts as seen by one viewer.
type ProfileInfo struct {
	User
	PostCount      int64
	RecipeCount    int64
	FollowerCount  int64
	FollowingCount int64
	ReceivedLikes  int64
	// BlockCount is filled for the owner only.
	BlockCount *int64
}

// Comment ...
type Comment struct {
	ID        string
	PostID    string
	UserID    string
	Content   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Membership is a record whose existence encodes a relation with PeerID.
type Membership struct {
	PeerID    string
	CreatedAt time.Time
}

// MembershipKind ...
type MembershipKind string

const (
	// Followers ...
	Followers MembershipKind = "followers"
	// Following ...
	Following MembershipKind = "following"
	// Blocks ...
	Blocks MembershipKind = "blocks"
)

// IsValid ...
func (k MembershipKind) IsValid() bool {
	switch k {
	case Followers, Following, Blocks:
		return true
	default:
		return false
	}
}

// Color is a packed ARGB color.
type Color uint32

// ARGB unpacks color into components.
func (c Color) ARGB() (a, r, g, b uint8) {
	return uint8(c >> 24), uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// NewColor packs components into color.
func NewColor(a, r, g, b uint8) Color {
	return Color(uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// StickyNote is a guestbook entry left on a profile.
type StickyNote struct {
	ID              string
	AuthorID        string
	AuthorName      string
	AuthorAvatarURL string
	Text            string
	Color           Color
	Pinned          bool
	CreatedAt       time.Time
}

// SortStickyNotes sorts notes pinned first, newest first within each group.
func SortStickyNotes(notes []*StickyNote) {
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].Pinned != notes[j].Pinned {
			return notes[i].Pinned
		}
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})
}

// FeedData is a post joined with its author and viewer-relative state.
// It is rebuilt on every fetch.
type FeedData struct {
	User          User
	Post          Post
	IsPinned      bool
	IsLikedByUser bool
	NumLikes      int64
	NumComments   int64
}

// UserData is a membership entry joined with the peer's user record.
type UserData struct {
	User
	Since time.Time
}

// Ingredient ...
type Ingredient struct {
	Name     string
	Quantity string
}

// RecipeImage ...
type RecipeImage struct {
	OriginalURL string
	LocalPath   string
}

// RecipeMethod ...
type RecipeMethod struct {
	Describe string
	Image    RecipeImage
}

// Nutrition ...
type Nutrition struct {
	Calories      string
	Protein       string
	Carbohydrates string
	Fat           string
	Sodium        string
}

// Recipe ...
type Recipe struct {
	ID              string
	Title           string
	FoodCategory    string
	CookingCategory string
	Images          RecipeImage
	Tags            string
	Tips            string
	Ingredients     []Ingredient
	Methods         []RecipeMethod
	Nutrition       Nutrition
	CreatedAt       time.Time
}

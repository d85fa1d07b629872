package server

import (
	"time"

	"github.com/ting-rn/ting-sync/internal/auth"
	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/live"
	"github.com/ting-rn/ting-sync/internal/service"
)

const maxLimit = 100

// Error ...
// swagger:model
type Error struct {
	Error string `json:"error"`
}

// Post ...
// swagger:model
type Post struct {
	ID            string     `json:"id"`
	OwnerID       string     `json:"owner_id"`
	Title         string     `json:"title"`
	Content       string     `json:"content"`
	ImageURLs     []string   `json:"image_urls"`
	Visibility    string     `json:"visibility"`
	Category      string     `json:"category,omitempty"`
	Value         string     `json:"value,omitempty"`
	RecipeID      string     `json:"recipe_id,omitempty"`
	Region        string     `json:"region,omitempty"`
	LikesCount    int64      `json:"likes_count"`
	CommentsCount int64      `json:"comments_count"`
	Archived      bool       `json:"archived"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CapturedAt    *time.Time `json:"captured_at,omitempty"`
}

// User ...
// swagger:model
type User struct {
	ID            string    `json:"id"`
	Name          string    `json:"user_name"`
	Location      string    `json:"location,omitempty"`
	Title         string    `json:"title,omitempty"`
	StatusMessage string    `json:"status_message,omitempty"`
	ProfileImage  string    `json:"profile_image,omitempty"`
	Email         string    `json:"email,omitempty"`
	Bio           string    `json:"bio,omitempty"`
	CountryCode   string    `json:"country_code,omitempty"`
	CountryName   string    `json:"country_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// Profile is a user as seen by the requester.
// swagger:model
type Profile struct {
	User
	PostCount      int64  `json:"post_count"`
	RecipeCount    int64  `json:"recipe_count"`
	FollowerCount  int64  `json:"follower_count"`
	FollowingCount int64  `json:"following_count"`
	ReceivedLikes  int64  `json:"received_likes"`
	BlockCount     *int64 `json:"block_count,omitempty"`
}

// ProfilePage ...
// swagger:model
type ProfilePage struct {
	Profile Profile `json:"profile"`
	Posts   []Post  `json:"posts"`
	Pinned  []Post  `json:"pinned"`
}

// Stats ...
// swagger:model
type Stats struct {
	FollowerCount  int64 `json:"follower_count"`
	FollowingCount int64 `json:"following_count"`
	PostCount      int64 `json:"post_count"`
}

// FeedItem ...
// swagger:model
type FeedItem struct {
	User          User  `json:"user"`
	Post          Post  `json:"post"`
	IsPinned      bool  `json:"is_pinned"`
	IsLikedByUser bool  `json:"is_liked_by_user"`
	NumLikes      int64 `json:"num_likes"`
	NumComments   int64 `json:"num_comments"`
}

// Comment ...
// swagger:model
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Note is a guestbook sticky note.
// swagger:model
type Note struct {
	ID              string    `json:"id"`
	AuthorID        string    `json:"author_id"`
	AuthorName      string    `json:"author_name"`
	AuthorAvatarURL string    `json:"author_avatar_url,omitempty"`
	Text            string    `json:"text"`
	Color           uint32    `json:"color"`
	Pinned          bool      `json:"pinned"`
	CreatedAt       time.Time `json:"created_at"`
}

// Member is a user of a relation list.
// swagger:model
type Member struct {
	User
	Since time.Time `json:"since"`
}

// Recipe ...
// swagger:model
type Recipe struct {
	ID              string                `json:"id"`
	Title           string                `json:"title"`
	FoodCategory    string                `json:"food_category"`
	CookingCategory string                `json:"cooking_category"`
	Image           string                `json:"image,omitempty"`
	Tags            string                `json:"tags,omitempty"`
	Tips            string                `json:"tips,omitempty"`
	Ingredients     []entities.Ingredient `json:"ingredients"`
	Methods         []RecipeMethod        `json:"methods"`
	Nutrition       entities.Nutrition    `json:"nutrition"`
	CreatedAt       time.Time             `json:"created_at"`
}

// RecipeMethod ...
type RecipeMethod struct {
	Describe string `json:"describe"`
	Image    string `json:"image,omitempty"`
}

// Session ...
// swagger:model
type Session struct {
	Status            auth.Status `json:"status"`
	UserID            string      `json:"user_id,omitempty"`
	User              *User       `json:"user,omitempty"`
	HasLoggedInBefore bool        `json:"has_logged_in_before"`
}

// Version is returned by mutations which commit a store version.
// swagger:model
type Version struct {
	Version uint64 `json:"version"`
}

// URL ...
// swagger:model
type URL struct {
	URL string `json:"url"`
}

// CreatePostRequest ...
// swagger:model
type CreatePostRequest struct {
	Title      string     `json:"title" validate:"required,max=200"`
	Content    string     `json:"content" validate:"max=10000"`
	ImageURLs  []string   `json:"image_urls" validate:"max=10,dive,url"`
	Visibility string     `json:"visibility" validate:"omitempty,oneof=PUBLIC FOLLOWER PRIVATE"`
	Category   string     `json:"category" validate:"max=64"`
	Value      string     `json:"value" validate:"max=64"`
	RecipeID   string     `json:"recipe_id" validate:"max=128"`
	Region     string     `json:"region" validate:"max=64"`
	CapturedAt *time.Time `json:"captured_at"`
}

// UpdatePostRequest ...
// swagger:model
type UpdatePostRequest struct {
	Title      *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Content    *string    `json:"content" validate:"omitempty,max=10000"`
	ImageURLs  *[]string  `json:"image_urls" validate:"omitempty,max=10,dive,url"`
	Visibility *string    `json:"visibility" validate:"omitempty,oneof=PUBLIC FOLLOWER PRIVATE"`
	Category   *string    `json:"category" validate:"omitempty,max=64"`
	Value      *string    `json:"value" validate:"omitempty,max=64"`
	RecipeID   *string    `json:"recipe_id" validate:"omitempty,max=128"`
	Region     *string    `json:"region" validate:"omitempty,max=64"`
	CapturedAt *time.Time `json:"captured_at"`
}

// CommentRequest ...
// swagger:model
type CommentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// NoteRequest ...
// swagger:model
type NoteRequest struct {
	Text  string `json:"text" validate:"required,max=500"`
	Color uint32 `json:"color"`
}

// UpdateNoteRequest ...
// swagger:model
type UpdateNoteRequest struct {
	Text   *string `json:"text" validate:"omitempty,min=1,max=500"`
	Color  *uint32 `json:"color"`
	Pinned *bool   `json:"pinned"`
}

// SessionRequest ...
// swagger:model
type SessionRequest struct {
	Token string `json:"token"`
}

// RegisterRequest ...
// swagger:model
type RegisterRequest struct {
	UserName        string `json:"user_name" validate:"required,max=64"`
	CountryCode     string `json:"country_code" validate:"required,len=2"`
	CountryName     string `json:"country_name" validate:"max=64"`
	ProfileImageURL string `json:"profile_image_url" validate:"omitempty,url"`
	Bio             string `json:"bio" validate:"max=1000"`
}

// UpdateProfileRequest ...
// swagger:model
type UpdateProfileRequest struct {
	UserName    *string `json:"user_name" validate:"omitempty,min=1,max=64"`
	Title       *string `json:"title" validate:"omitempty,max=64"`
	Location    *string `json:"location" validate:"omitempty,max=128"`
	Bio         *string `json:"bio" validate:"omitempty,max=1000"`
	CountryCode *string `json:"country_code" validate:"omitempty,len=2"`
	CountryName *string `json:"country_name" validate:"omitempty,max=64"`
}

// StatusRequest ...
// swagger:model
type StatusRequest struct {
	Message string `json:"message" validate:"max=140"`
}

// Frame is a websocket message. Server frames carry view state in Data, client frames carry commands in Type.
type Frame struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// LikeFrame ...
type LikeFrame struct {
	Liked   bool   `json:"liked"`
	Count   int64  `json:"count"`
	Phase   string `json:"phase"`
	Loading bool   `json:"loading"`
}

// FollowFrame ...
type FollowFrame struct {
	Following bool   `json:"following"`
	Phase     string `json:"phase"`
	Loading   bool   `json:"loading"`
}

// CommentsFrame ...
type CommentsFrame struct {
	Comments []Comment `json:"comments"`
	Loading  bool      `json:"loading"`
}

// GuestbookFrame ...
type GuestbookFrame struct {
	Notes   []Note `json:"notes"`
	Loading bool   `json:"loading"`
}

func toAPIPost(p *entities.Post) Post {
	urls := p.ImageURLs
	if urls == nil {
		urls = []string{}
	}

	return Post{
		ID:            p.ID,
		OwnerID:       p.OwnerID,
		Title:         p.Title,
		Content:       p.Content,
		ImageURLs:     urls,
		Visibility:    string(p.Visibility),
		Category:      p.Category,
		Value:         p.Value,
		RecipeID:      p.RecipeID,
		Region:        p.Region,
		LikesCount:    p.LikesCount,
		CommentsCount: p.CommentsCount,
		Archived:      p.Archived,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		CapturedAt:    p.CapturedAt,
	}
}

func toAPIPosts(posts []*entities.Post) []Post {
	out := make([]Post, len(posts))
	for i, p := range posts {
		out[i] = toAPIPost(p)
	}
	return out
}

func toAPIUser(u *entities.User) User {
	return User{
		ID:            u.ID,
		Name:          u.Name,
		Location:      u.Location,
		Title:         u.Title,
		StatusMessage: u.StatusMessage,
		ProfileImage:  u.ProfileImage,
		Email:         u.Email,
		Bio:           u.Bio,
		CountryCode:   u.CountryCode,
		CountryName:   u.CountryName,
		CreatedAt:     u.CreatedAt,
	}
}

func toAPIProfile(p *entities.ProfileInfo) Profile {
	return Profile{
		User:           toAPIUser(&p.User),
		PostCount:      p.PostCount,
		RecipeCount:    p.RecipeCount,
		FollowerCount:  p.FollowerCount,
		FollowingCount: p.FollowingCount,
		ReceivedLikes:  p.ReceivedLikes,
		BlockCount:     p.BlockCount,
	}
}

func toAPIFeed(items []*entities.FeedData) []FeedItem {
	out := make([]FeedItem, len(items))
	for i, d := range items {
		out[i] = FeedItem{
			User:          toAPIUser(&d.User),
			Post:          toAPIPost(&d.Post),
			IsPinned:      d.IsPinned,
			IsLikedByUser: d.IsLikedByUser,
			NumLikes:      d.NumLikes,
			NumComments:   d.NumComments,
		}
	}
	return out
}

func toAPIComment(c *entities.Comment) Comment {
	return Comment{
		ID:        c.ID,
		PostID:    c.PostID,
		UserID:    c.UserID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func toAPIComments(comments []*entities.Comment) []Comment {
	out := make([]Comment, len(comments))
	for i, c := range comments {
		out[i] = toAPIComment(c)
	}
	return out
}

func toAPINote(n *entities.StickyNote) Note {
	return Note{
		ID:              n.ID,
		AuthorID:        n.AuthorID,
		AuthorName:      n.AuthorName,
		AuthorAvatarURL: n.AuthorAvatarURL,
		Text:            n.Text,
		Color:           uint32(n.Color),
		Pinned:          n.Pinned,
		CreatedAt:       n.CreatedAt,
	}
}

func toAPINotes(notes []*entities.StickyNote) []Note {
	out := make([]Note, len(notes))
	for i, n := range notes {
		out[i] = toAPINote(n)
	}
	return out
}

func toAPIMembers(users []*entities.UserData) []Member {
	out := make([]Member, len(users))
	for i, u := range users {
		out[i] = Member{User: toAPIUser(&u.User), Since: u.Since}
	}
	return out
}

func toAPIRecipe(r *entities.Recipe) Recipe {
	methods := make([]RecipeMethod, len(r.Methods))
	for i, m := range r.Methods {
		methods[i] = RecipeMethod{Describe: m.Describe, Image: m.Image.OriginalURL}
	}

	ingredients := r.Ingredients
	if ingredients == nil {
		ingredients = []entities.Ingredient{}
	}

	return Recipe{
		ID:              r.ID,
		Title:           r.Title,
		FoodCategory:    r.FoodCategory,
		CookingCategory: r.CookingCategory,
		Image:           r.Images.OriginalURL,
		Tags:            r.Tags,
		Tips:            r.Tips,
		Ingredients:     ingredients,
		Methods:         methods,
		Nutrition:       r.Nutrition,
		CreatedAt:       r.CreatedAt,
	}
}

func toAPISession(res auth.Result) Session {
	s := Session{
		Status:            res.Status,
		UserID:            res.Identity.ID,
		HasLoggedInBefore: res.HasLoggedInBefore,
	}

	if res.User != nil {
		u := toAPIUser(res.User)
		s.User = &u
	}

	return s
}

func (r CreatePostRequest) params() service.CreatePostParams {
	return service.CreatePostParams{
		Title:      r.Title,
		Content:    r.Content,
		ImageURLs:  r.ImageURLs,
		Visibility: entities.Visibility(r.Visibility),
		Category:   r.Category,
		Value:      r.Value,
		RecipeID:   r.RecipeID,
		Region:     r.Region,
		CapturedAt: r.CapturedAt,
	}
}

func (r UpdatePostRequest) params() service.UpdatePostParams {
	p := service.UpdatePostParams{
		Title:      r.Title,
		Content:    r.Content,
		ImageURLs:  r.ImageURLs,
		Category:   r.Category,
		Value:      r.Value,
		RecipeID:   r.RecipeID,
		Region:     r.Region,
		CapturedAt: r.CapturedAt,
	}

	if r.Visibility != nil {
		v := entities.Visibility(*r.Visibility)
		p.Visibility = &v
	}

	return p
}

func (r UpdateNoteRequest) params() service.UpdateNoteParams {
	p := service.UpdateNoteParams{Text: r.Text, Pinned: r.Pinned}

	if r.Color != nil {
		c := entities.Color(*r.Color)
		p.Color = &c
	}

	return p
}

func likeFrame(s live.LikeState) LikeFrame {
	return LikeFrame{Liked: s.Liked, Count: s.Count, Phase: s.Phase.String(), Loading: s.Loading}
}

func followFrame(s live.FollowState) FollowFrame {
	return FollowFrame{Following: s.Following, Phase: s.Phase.String(), Loading: s.Loading}
}

func commentsFrame(s live.CommentsState) CommentsFrame {
	return CommentsFrame{Comments: toAPIComments(s.Comments), Loading: s.Loading}
}

func guestbookFrame(s live.GuestbookState) GuestbookFrame {
	return GuestbookFrame{Notes: toAPINotes(s.Notes), Loading: s.Loading}
}

package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi"

	"github.com/ting-rn/ting-sync/internal/docstore"
	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/feed"
	mm "github.com/ting-rn/ting-sync/internal/middleware"
	"github.com/ting-rn/ting-sync/internal/service"
)

func (s server) getFeed(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /feed Feed GetFeed
	//
	// Returns a page of the feed with authors and viewer-relative state.
	//
	// ---
	// produces:
	// - application/json
	// parameters:
	// - name: kind
	//   description: feed variant
	//   in: query
	//   required: false
	//   default: realtime
	//   type: string
	//   enum: [realtime, hot, wack, personal]
	// - name: region
	//   description: filters posts by region, ignored by personal feed
	//   in: query
	//   required: false
	//   type: string
	// - name: limit
	//   description: limits count of returned posts
	//   in: query
	//   required: false
	//   minimum: 1
	//   maximum: 100
	// responses:
	//   '200':
	//     description: Feed page
	//     schema:
	//       type: array
	//       items:
	//         "$ref": "#/definitions/FeedItem"
	//   '400':
	//     description: bad request
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '401':
	//     description: personal feed was requested anonymously
	//     schema:
	//       "$ref": "#/definitions/Error"
	//   '500':
	//     description: internal server error
	//     schema:
	//       "$ref": "#/definitions/Error"

	v := feed.Variant{
		Kind:   feed.Kind(r.URL.Query().Get("kind")),
		Region: r.URL.Query().Get("region"),
	}
	if v.Kind == "" {
		v.Kind = feed.Realtime
	}
	if !v.Kind.IsValid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown kind %q", v.Kind))
		return
	}

	limit, err := getLimit(r, 0)
	if err != nil {
		writeErr(w, err)
		return
	}

	items, err := s.feed.Fetch(r.Context(), mm.IdentityFrom(r.Context()), v, limit)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeOK(w, toAPIFeed(items))
}

func (s server) getPost(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /posts/{postID} Posts GetPost
	//
	// Returns the post.
	//
	// ---
	// produces:
	// - application/json
	// parameters:
	// - name: postID
	//   in: path
	//   required: true
	//   type: string
	// responses:
	//   '200':
	//     description: Post
	//     schema:
	//       "$ref": "#/definitions/Post"
	//   '404':
	//     description: post not found
	//     schema:
	//       "$ref": "#/definitions/Error"

	p, err := s.s.GetPost(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		writeErr(w, err)
		return
	}

	writeOK(w, toAPIPost(p))
}

func (s server) createPost(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /posts Posts CreatePost
	//
	// Creates a post owned by the requester.
	//
	// ---
	// consumes:
	// - application/json
	// produces:
	// - application/json
	// parameters:
	// - name: request
	//   in: body
	//   required: true
	//   schema:
	//     "$ref": "#/definitions/CreatePostRequest"
	// responses:
	//   '201':
	//     description: Created post
	//     schema:
	//       "$ref": "#/definitions/Post"
	//   '400':
	//     description: bad request
	//     schema:
	//       "$ref": "#/definitions/Error"

	var req CreatePostRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	p, err := s.s.CreatePost(r.Context(), mm.IdentityFrom(r.Context()), req.params())
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAPIPost(p))
}

func (s server) updatePost(w http.ResponseWriter, r *http.Request) {
	var req UpdatePostRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	if err := s.s.UpdatePost(r.Context(), mm.IdentityFrom(r.Context()), chi.URLParam(r, "postID"), req.params()); err != nil {
		writeErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) archivePost(w http.ResponseWriter, r *http.Request) {
	if err := s.s.ArchivePost(r.Context(), mm.IdentityFrom(r.Context()), chi.URLParam(r, "postID")); err != nil {
		writeErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) like(w http.ResponseWriter, r *http.Request) {
	s.setLike(w, r, false)
}

func (s server) unlike(w http.ResponseWriter, r *http.Request) {
	s.setLike(w, r, true)
}

// setLike moves the like away from prior. Repeated requests are no-ops.
func (s server) setLike(w http.ResponseWriter, r *http.Request, prior bool) {
	v, err := s.s.SetLike(r.Context(), mm.IdentityFrom(r.Context()), chi.URLParam(r, "postID"), prior)
	writeVersion(w, v, err)
}

func (s server) pin(w http.ResponseWriter, r *http.Request) {
	v, err := s.s.SetPin(r.Context(), mm.IdentityFrom(r.Context()), chi.URLParam(r, "postID"), true)
	writeVersion(w, v, err)
}

func (s server) unpin(w http.ResponseWriter, r *http.Request) {
	v, err := s.s.SetPin(r.Context(), mm.IdentityFrom(r.Context()), chi.URLParam(r, "postID"), false)
	writeVersion(w, v, err)
}

func writeVersion(w http.ResponseWriter, v docstore.Version, err error) {
	if err != nil {
		writeErr(w, err)
		return
	}

	writeOK(w, Version{Version: uint64(v)})
}

func (s server) uploadPostImage(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /images Posts UploadPostImage
	//
	// Uploads a post image and returns its public url.
	//
	// ---
	// consumes:
	// - multipart/form-data
	// produces:
	// - application/json
	// parameters:
	// - name: image
	//   in: formData
	//   required: true
	//   type: file
	// responses:
	//   '201':
	//     description: Image url
	//     schema:
	//       "$ref": "#/definitions/URL"
	//   '400':
	//     description: unsupported image type
	//     schema:
	//       "$ref": "#/definitions/Error"

	s.upload(w, r, s.s.UploadPostImage)
}

func (s server) uploadProfileImage(w http.ResponseWriter, r *http.Request) {
	s.upload(w, r, s.s.UploadProfileImage)
}

type uploader func(ctx context.Context, actor entities.Identity, r io.Reader, size int64, ext string) (string, error)

func (s server) upload(w http.ResponseWriter, r *http.Request, f uploader) {
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read image: %s", err.Error()))
		return
	}
	defer file.Close()

	url, err := f(r.Context(), mm.IdentityFrom(r.Context()), file, header.Size, filepath.Ext(header.Filename))
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, URL{URL: url})
}

func (s server) deleteImage(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	if err := s.s.DeleteImage(r.Context(), mm.IdentityFrom(r.Context()), url); err != nil {
		writeErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) listComments(w http.ResponseWriter, r *http.Request) {
	limit, err := getLimit(r, 0)
	if err != nil {
		writeErr(w, err)
		return
	}

	comments, err := s.s.ListComments(r.Context(), chi.URLParam(r, "postID"), limit)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeOK(w, toAPIComments(comments))
}

func (s server) addComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	c, err := s.s.AddComment(r.Context(), mm.IdentityFrom(r.Context()), chi.URLParam(r, "postID"), req.Content)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAPIComment(c))
}

func (s server) editComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	err := s.s.EditComment(r.Context(), mm.IdentityFrom(r.Context()),
		chi.URLParam(r, "postID"), chi.URLParam(r, "commentID"), req.Content)
	if err != nil {
		writeErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) deleteComment(w http.ResponseWriter, r *http.Request) {
	err := s.s.DeleteComment(r.Context(), mm.IdentityFrom(r.Context()), chi.URLParam(r, "postID"), chi.URLParam(r, "commentID"))
	if err != nil {
		writeErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) listRecipes(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /recipes Recipes ListRecipes
	//
	// Returns recipes, newest first. Tag search is unordered.
	//
	// ---
	// produces:
	// - application/json
	// parameters:
	// - name: food_category
	//   in: query
	//   required: false
	//   type: string
	// - name: cooking_category
	//   in: query
	//   required: false
	//   type: string
	// - name: tag
	//   in: query
	//   required: false
	//   type: string
	// - name: limit
	//   in: query
	//   required: false
	//   minimum: 1
	//   maximum: 100
	// responses:
	//   '200':
	//     description: Recipes
	//     schema:
	//       type: array
	//       items:
	//         "$ref": "#/definitions/Recipe"

	limit, err := getLimit(r, service.DefaultRecipesLimit)
	if err != nil {
		writeErr(w, err)
		return
	}

	q := r.URL.Query()
	recipes, err := s.s.ListRecipes(r.Context(), service.RecipeFilter{
		FoodCategory:    q.Get("food_category"),
		CookingCategory: q.Get("cooking_category"),
		Tag:             q.Get("tag"),
		Limit:           limit,
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	out := make([]Recipe, len(recipes))
	for i, rc := range recipes {
		out[i] = toAPIRecipe(rc)
	}

	writeOK(w, out)
}

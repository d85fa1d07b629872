// Package server ting-sync
//
// The ting-sync is a service which provides feeds, profiles and social interactions of the ting community.
// Mutations require a bearer token, live views are served over websocket.
//
//	Schemes: https
//	BasePath: /v1
//	Version: 1.0.0
//
//	Produces:
//	- application/json
//	Consumes:
//	- application/json
//
// swagger:meta
package server

import (
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/ting-rn/ting-sync/internal/auth"
	"github.com/ting-rn/ting-sync/internal/feed"
	"github.com/ting-rn/ting-sync/internal/live"
	mm "github.com/ting-rn/ting-sync/internal/middleware"
	"github.com/ting-rn/ting-sync/internal/service"
)

//go:generate swagger generate spec -t swagger -m -c . -o ../../static/swagger.json

var log = logrus.WithField("layer", "api").WithField("package", "server")

const (
	maxBodySize  = 64 << 10
	maxImageSize = 10 << 20
	statsTTL     = time.Minute

	defaultTimeout = 30 * time.Second
)

// Config ...
type Config struct {
	Service      service.Service
	Feed         feed.Service
	Live         *live.Factory
	Sessions     *auth.Sessions
	Bootstrapper *auth.Bootstrapper
	RateLimiter  *mm.IPRateLimiter
	Timeout      time.Duration
}

type server struct {
	s            service.Service
	feed         feed.Service
	live         *live.Factory
	sessions     *auth.Sessions
	bootstrapper *auth.Bootstrapper
}

// SetupRouter setups handlers to chi router.
func SetupRouter(r chi.Router, cfg Config) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	r.Use(
		mm.Logger,
		middleware.StripSlashes,
		cors.AllowAll().Handler,
		middleware.RequestID,
		middleware.Recoverer,
		mm.RateLimit(cfg.RateLimiter),
		mm.Authenticate(cfg.Sessions.Verifier()),
	)

	srv := server{
		s:            cfg.Service,
		feed:         cfg.Feed,
		live:         cfg.Live,
		sessions:     cfg.Sessions,
		bootstrapper: cfg.Bootstrapper,
	}

	r.Route("/v1", func(r chi.Router) {
		// websocket connections outlive request timeout
		r.Route("/live", func(r chi.Router) {
			r.Get("/posts/{postID}/like", srv.liveLike)
			r.Get("/posts/{postID}/comments", srv.liveComments)
			r.Get("/users/{userID}/follow", srv.liveFollow)
			r.Get("/users/{userID}/guestbook", srv.liveGuestbook)
		})

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.Timeout(cfg.Timeout),
				mm.BodyLimiter(maxBodySize),
			)

			r.Get("/feed", srv.getFeed)
			r.Get("/recipes", srv.listRecipes)

			r.Get("/posts/{postID}", srv.getPost)
			r.Get("/posts/{postID}/comments", srv.listComments)

			r.Get("/users/{userID}", srv.getProfile)
			r.Get("/users/{userID}/page", srv.getProfilePage)
			r.Get("/users/{userID}/posts", srv.listUserPosts)
			r.Get("/users/{userID}/pinned", srv.listPinnedPosts)
			r.Get("/users/{userID}/stats", mm.Cached(statsTTL, srv.getStats))
			r.Get("/users/{userID}/{kind:followers|following|blocks}", srv.listMembers)
			r.Get("/users/{userID}/guestbook", srv.listNotes)

			r.Post("/session", srv.signIn)

			r.Group(func(r chi.Router) {
				r.Use(mm.RequireIdentity)

				r.Delete("/session", srv.signOut)
				r.Post("/users", srv.register)
				r.Patch("/users/me", srv.updateProfile)
				r.Put("/users/me/status", srv.updateStatus)

				r.Post("/posts", srv.createPost)
				r.Patch("/posts/{postID}", srv.updatePost)
				r.Delete("/posts/{postID}", srv.archivePost)
				r.Put("/posts/{postID}/like", srv.like)
				r.Delete("/posts/{postID}/like", srv.unlike)
				r.Put("/posts/{postID}/pin", srv.pin)
				r.Delete("/posts/{postID}/pin", srv.unpin)
				r.Post("/posts/{postID}/comments", srv.addComment)
				r.Patch("/posts/{postID}/comments/{commentID}", srv.editComment)
				r.Delete("/posts/{postID}/comments/{commentID}", srv.deleteComment)

				r.Put("/users/{userID}/follow", srv.follow)
				r.Delete("/users/{userID}/follow", srv.unfollow)
				r.Put("/users/{userID}/block", srv.block)
				r.Delete("/users/{userID}/block", srv.unblock)

				r.Post("/users/{userID}/guestbook", srv.addNote)
				r.Patch("/users/{userID}/guestbook/{noteID}", srv.updateNote)
				r.Delete("/users/{userID}/guestbook/{noteID}", srv.deleteNote)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(
				mm.RequireIdentity,
				middleware.Timeout(cfg.Timeout),
				mm.BodyLimiter(maxImageSize),
			)

			r.Post("/images", srv.uploadPostImage)
			r.Delete("/images", srv.deleteImage)
			r.Put("/users/me/image", srv.uploadProfileImage)
		})
	})
}

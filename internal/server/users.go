package server

import (
	"net/http"

	"github.com/go-chi/chi"

	"github.com/ting-rn/ting-sync/internal/entities"
	mm "github.com/ting-rn/ting-sync/internal/middleware"
	"github.com/ting-rn/ting-sync/internal/service"
)

func (s server) signIn(w http.ResponseWriter, r *http.Request) {
	// swagger:operation POST /session Session SignIn
	//
	// Verifies the token and resolves the session status. Empty token resumes the cached session.
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
	//     "$ref": "#/definitions/SessionRequest"
	// responses:
	//   '200':
	//     description: Session
	//     schema:
	//       "$ref": "#/definitions/Session"
	//   '500':
	//     description: internal server error
	//     schema:
	//       "$ref": "#/definitions/Error"

	var req SessionRequest
	if r.ContentLength != 0 {
		if err := decode(r, &req); err != nil {
			writeErr(w, err)
			return
		}
	}

	if req.Token == "" {
		req.Token = mm.BearerToken(r)
	}

	res, err := s.bootstrapper.Bootstrap(r.Context(), req.Token)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeOK(w, toAPISession(res))
}

func (s server) signOut(w http.ResponseWriter, r *http.Request) {
	if err := s.bootstrapper.SignOut(r.Context(), mm.IdentityFrom(r.Context())); err != nil {
		writeInternalError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	u, err := s.s.RegisterUser(r.Context(), mm.IdentityFrom(r.Context()), service.RegisterParams{
		UserName:        req.UserName,
		CountryCode:     req.CountryCode,
		CountryName:     req.CountryName,
		ProfileImageURL: req.ProfileImageURL,
		Bio:             req.Bio,
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	writeOK(w, toAPIUser(u))
}

func (s server) getProfile(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /users/{userID} Users GetProfile
	//
	// Returns the user with counts as seen by the requester. Email is returned to the owner only.
	//
	// ---
	// produces:
	// - application/json
	// parameters:
	// - name: userID
	//   in: path
	//   required: true
	//   type: string
	// responses:
	//   '200':
	//     description: Profile
	//     schema:
	//       "$ref": "#/definitions/Profile"
	//   '404':
	//     description: user not found
	//     schema:
	//       "$ref": "#/definitions/Error"

	p, err := s.s.GetProfile(r.Context(), mm.IdentityFrom(r.Context()), chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, err)
		return
	}

	writeOK(w, toAPIProfile(p))
}

func (s server) getProfilePage(w http.ResponseWriter, r *http.Request) {
	p, err := s.s.LoadProfile(r.Context(), mm.IdentityFrom(r.Context()), chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, err)
		return
	}

	writeOK(w, ProfilePage{
		Profile: toAPIProfile(p.Info),
		Posts:   toAPIPosts(p.Posts),
		Pinned:  toAPIPosts(p.Pinned),
	})
}

// getStats returns counts as seen anonymously, so the response can be shared between requesters.
func (s server) getStats(w http.ResponseWriter, r *http.Request) {
	// swagger:operation GET /users/{userID}/stats Users GetStats
	//
	// Returns public counts of the user. The response is cached for a minute.
	//
	// ---
	// produces:
	// - application/json
	// parameters:
	// - name: userID
	//   in: path
	//   required: true
	//   type: string
	// responses:
	//   '200':
	//     description: Stats
	//     schema:
	//       "$ref": "#/definitions/Stats"

	p, err := s.s.GetProfile(r.Context(), entities.Identity{}, chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, err)
		return
	}

	writeOK(w, Stats{
		FollowerCount:  p.FollowerCount,
		FollowingCount: p.FollowingCount,
		PostCount:      p.PostCount,
	})
}

func (s server) listUserPosts(w http.ResponseWriter, r *http.Request) {
	limit, err := getLimit(r, service.DefaultUserPostsLimit)
	if err != nil {
		writeErr(w, err)
		return
	}

	posts, err := s.s.ListUserPosts(r.Context(), mm.IdentityFrom(r.Context()), chi.URLParam(r, "userID"), service.ListUserPostsParams{
		Limit:           limit,
		IncludeArchived: r.URL.Query().Get("include_archived") == "true",
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	writeOK(w, toAPIPosts(posts))
}

func (s server) listPinnedPosts(w http.ResponseWriter, r *http.Request) {
	limit, err := getLimit(r, service.DefaultPinnedPostsLimit)
	if err != nil {
		writeErr(w, err)
		return
	}

	posts, err := s.s.PinnedPosts(r.Context(), mm.IdentityFrom(r.Context()), chi.URLParam(r, "userID"), limit)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeOK(w, toAPIPosts(posts))
}

func (s server) listMembers(w http.ResponseWriter, r *http.Request) {
	kind := entities.MembershipKind(chi.URLParam(r, "kind"))
	if !kind.IsValid() {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	limit, err := getLimit(r, service.DefaultMembersLimit)
	if err != nil {
		writeErr(w, err)
		return
	}

	users, err := s.s.ListUsers(r.Context(), chi.URLParam(r, "userID"), kind, limit)
	if err != nil {
		writeErr(w, err)
		return
	}

	writeOK(w, toAPIMembers(users))
}

func (s server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	err := s.s.UpdateProfile(r.Context(), mm.IdentityFrom(r.Context()), service.UpdateProfileParams{
		UserName:    req.UserName,
		Title:       req.Title,
		Location:    req.Location,
		Bio:         req.Bio,
		CountryCode: req.CountryCode,
		CountryName: req.CountryName,
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req StatusRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	if err := s.s.UpdateStatusMessage(r.Context(), mm.IdentityFrom(r.Context()), req.Message); err != nil {
		writeErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) follow(w http.ResponseWriter, r *http.Request) {
	v, err := s.s.Follow(r.Context(), mm.IdentityFrom(r.Context()), chi.URLParam(r, "userID"))
	writeVersion(w, v, err)
}

func (s server) unfollow(w http.ResponseWriter, r *http.Request) {
	v, err := s.s.Unfollow(r.Context(), mm.IdentityFrom(r.Context()), chi.URLParam(r, "userID"))
	writeVersion(w, v, err)
}

func (s server) block(w http.ResponseWriter, r *http.Request) {
	v, err := s.s.Block(r.Context(), mm.IdentityFrom(r.Context()), chi.URLParam(r, "userID"))
	writeVersion(w, v, err)
}

func (s server) unblock(w http.ResponseWriter, r *http.Request) {
	v, err := s.s.Unblock(r.Context(), mm.IdentityFrom(r.Context()), chi.URLParam(r, "userID"))
	writeVersion(w, v, err)
}

func (s server) listNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.s.ListNotes(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeErr(w, err)
		return
	}

	writeOK(w, toAPINotes(notes))
}

func (s server) addNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	n, err := s.s.AddNote(r.Context(), mm.IdentityFrom(r.Context()), chi.URLParam(r, "userID"), service.NoteParams{
		Text:  req.Text,
		Color: entities.Color(req.Color),
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAPINote(n))
}

func (s server) updateNote(w http.ResponseWriter, r *http.Request) {
	var req UpdateNoteRequest
	if err := decode(r, &req); err != nil {
		writeErr(w, err)
		return
	}

	err := s.s.UpdateNote(r.Context(), mm.IdentityFrom(r.Context()),
		chi.URLParam(r, "userID"), chi.URLParam(r, "noteID"), req.params())
	if err != nil {
		writeErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s server) deleteNote(w http.ResponseWriter, r *http.Request) {
	err := s.s.DeleteNote(r.Context(), mm.IdentityFrom(r.Context()), chi.URLParam(r, "userID"), chi.URLParam(r, "noteID"))
	if err != nil {
		writeErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

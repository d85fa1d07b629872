package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/ting-rn/ting-sync/internal/auth"
	"github.com/ting-rn/ting-sync/internal/entities"
	"github.com/ting-rn/ting-sync/internal/live"
	mm "github.com/ting-rn/ting-sync/internal/middleware"
)

// Frame types.
const (
	StateFrame  = "state"
	ErrorFrame  = "error"
	ToggleFrame = "toggle"
)

const (
	writeTimeout   = 10 * time.Second
	pongTimeout    = 60 * time.Second
	pingInterval   = pongTimeout * 9 / 10
	maxFrameSize   = 1024
	frameQueueSize = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// cors is handled the same way for every route
	CheckOrigin: func(*http.Request) bool { return true },
}

var errSlowConsumer = errors.New("connection can not keep up with updates")

type opener func(ctx context.Context, push func(data interface{})) live.View

func (s server) liveLike(w http.ResponseWriter, r *http.Request) {
	viewer, postID := mm.IdentityFrom(r.Context()), chi.URLParam(r, "postID")

	s.serveLive(w, r, viewer, func(ctx context.Context, push func(interface{})) live.View {
		return s.live.Like(ctx, viewer, postID, func(st live.LikeState) { push(likeFrame(st)) })
	})
}

func (s server) liveFollow(w http.ResponseWriter, r *http.Request) {
	viewer, target := mm.IdentityFrom(r.Context()), chi.URLParam(r, "userID")

	s.serveLive(w, r, viewer, func(ctx context.Context, push func(interface{})) live.View {
		return s.live.Follow(ctx, viewer, target, func(st live.FollowState) { push(followFrame(st)) })
	})
}

func (s server) liveComments(w http.ResponseWriter, r *http.Request) {
	limit, err := getLimit(r, 0)
	if err != nil {
		writeErr(w, err)
		return
	}

	viewer, postID := mm.IdentityFrom(r.Context()), chi.URLParam(r, "postID")

	s.serveLive(w, r, viewer, func(ctx context.Context, push func(interface{})) live.View {
		return s.live.Comments(ctx, postID, limit, func(st live.CommentsState) { push(commentsFrame(st)) })
	})
}

func (s server) liveGuestbook(w http.ResponseWriter, r *http.Request) {
	viewer, target := mm.IdentityFrom(r.Context()), chi.URLParam(r, "userID")

	s.serveLive(w, r, viewer, func(ctx context.Context, push func(interface{})) live.View {
		return s.live.Guestbook(ctx, target, func(st live.GuestbookState) { push(guestbookFrame(st)) })
	})
}

// serveLive binds a view to the websocket connection. The view is closed when the connection is closed
// or when viewer signs out.
func (s server) serveLive(w http.ResponseWriter, r *http.Request, viewer entities.Identity, open opener) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("failed to upgrade connection")
		return
	}
	defer ws.Close()

	l := log.WithFields(logrus.Fields{"path": r.URL.Path, "user": viewer.ID})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if !viewer.IsZero() {
		unsubscribe := s.sessions.Subscribe(viewer.ID, func(e auth.Event) {
			if e.Kind == auth.SignedOut {
				l.Debug("viewer signed out")
				cancel()
			}
		})
		defer unsubscribe()
	}

	frames := make(chan Frame, frameQueueSize)
	send := func(f Frame) {
		select {
		case frames <- f:
		default:
			l.WithError(errSlowConsumer).Warn("closing live connection")
			cancel()
		}
	}

	view := open(ctx, func(data interface{}) {
		send(Frame{Type: StateFrame, Data: data})
	})
	defer view.Close()

	go s.readFrames(ctx, cancel, ws, view, send)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeTimeout))
			return
		case f := <-frames:
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := ws.WriteJSON(f); err != nil {
				l.WithError(err).Debug("failed to write frame")
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				l.WithError(err).Debug("failed to ping")
				return
			}
		}
	}
}

// readFrames handles client commands until the connection fails.
func (s server) readFrames(ctx context.Context, cancel context.CancelFunc, ws *websocket.Conn, view live.View, send func(Frame)) {
	defer cancel()

	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		var f Frame
		if err := ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("failed to read frame")
			}
			return
		}

		if f.Type != ToggleFrame {
			send(Frame{Type: ErrorFrame, Error: "unknown frame type"})
			continue
		}

		// toggles are not awaited, so a second one observes the pending mutation
		go func() {
			if err := view.Toggle(ctx); err != nil {
				if statusOf(err) == 0 {
					log.WithError(err).Error("failed to toggle")
				}
				send(Frame{Type: ErrorFrame, Error: err.Error()})
			}
		}()
	}
}

package middleware

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/ting-rn/ting-sync/internal/auth"
	"github.com/ting-rn/ting-sync/internal/auth/mock"
	"github.com/ting-rn/ting-sync/internal/entities"
)

func TestCached(t *testing.T) {
	calls := 0
	h := Cached(time.Minute, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"calls":%d}`, calls)
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/v1/users/u/stats", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"calls":1}`, w.Body.String())
	}

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/v1/users/v/stats", nil))
	assert.JSONEq(t, `{"calls":2}`, w.Body.String())
}

func TestCached_Errors(t *testing.T) {
	calls := 0
	h := Cached(time.Minute, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	}

	assert.Equal(t, 2, calls)
}

func TestBearerToken(t *testing.T) {
	tt := []struct {
		name   string
		header string
		url    string
		token  string
	}{
		{name: "header", header: "Bearer abc", url: "/", token: "abc"},
		{name: "lower case", header: "bearer abc", url: "/", token: "abc"},
		{name: "other scheme", header: "Basic abc", url: "/?access_token=q", token: ""},
		{name: "query", url: "/?access_token=q", token: "q"},
		{name: "none", url: "/", token: ""},
	}

	for i := range tt {
		tc := tt[i]
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tc.url, nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			assert.Equal(t, tc.token, BearerToken(r))
		})
	}
}

func TestAuthenticate(t *testing.T) {
	alice := entities.Identity{ID: "alice", Provider: "password"}

	tt := []struct {
		name     string
		header   string
		verify   func(v *mock.MockVerifierMockRecorder)
		require  bool
		status   int
		identity entities.Identity
	}{
		{
			name:   "anonymous",
			status: http.StatusOK,
		},
		{
			name:    "anonymous required",
			require: true,
			status:  http.StatusUnauthorized,
		},
		{
			name:   "valid",
			header: "Bearer good",
			verify: func(v *mock.MockVerifierMockRecorder) {
				v.Verify(gomock.Any(), "good").Return(alice, nil)
			},
			require:  true,
			status:   http.StatusOK,
			identity: alice,
		},
		{
			name:   "invalid",
			header: "Bearer bad",
			verify: func(v *mock.MockVerifierMockRecorder) {
				v.Verify(gomock.Any(), "bad").Return(entities.Identity{}, auth.ErrInvalidToken)
			},
			status: http.StatusUnauthorized,
		},
		{
			name:   "verifier failure",
			header: "Bearer x",
			verify: func(v *mock.MockVerifierMockRecorder) {
				v.Verify(gomock.Any(), "x").Return(entities.Identity{}, errors.New("network"))
			},
			status: http.StatusUnauthorized,
		},
	}

	for i := range tt {
		tc := tt[i]
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			v := mock.NewMockVerifier(ctrl)
			if tc.verify != nil {
				tc.verify(v.EXPECT())
			}

			var got entities.Identity
			var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = IdentityFrom(r.Context())
			})
			if tc.require {
				h = RequireIdentity(h)
			}
			h = Authenticate(v)(h)

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)

			require.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.identity, got)
		})
	}
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(NewIPRateLimiter(rate.Every(time.Hour), 2))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	do := func(ip string) int {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1"))
	assert.Equal(t, http.StatusOK, do("10.0.0.2"))
}

func TestRateLimit_Disabled(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})
	h := RateLimit(NewIPRateLimiter(0, 0))(next)

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestBodyLimiter(t *testing.T) {
	h := BodyLimiter(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 16)
		var err error
		for err == nil {
			_, err = r.Body.Read(buf)
		}
		if err != io.EOF {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
		}
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("too long body")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("ok")))
	assert.Equal(t, http.StatusOK, w.Code)
}

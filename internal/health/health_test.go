package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ting-rn/ting-sync/internal/docstore/memory"
)

func TestHandler(t *testing.T) {
	tt := []struct {
		name   string
		p      []Pinger
		status int
		errors map[string]string
	}{
		{
			name: "ok",
			p: []Pinger{
				memory.New(),
				PingerFunc("localstate", func(context.Context) error { return nil }),
			},
			status: http.StatusOK,
		},
		{
			name: "failed",
			p: []Pinger{
				memory.New(),
				PingerFunc("localstate", func(context.Context) error { return errors.New("disk is full") }),
			},
			status: http.StatusServiceUnavailable,
			errors: map[string]string{"localstate": "disk is full"},
		},
	}

	for i := range tt {
		tc := tt[i]

		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Handler(time.Second, tc.p...)(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tc.status, w.Code)

			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "dev", resp.Version)
			assert.Contains(t, resp.Meta, "memory")
			assert.Equal(t, tc.errors, resp.Errors)
		})
	}
}

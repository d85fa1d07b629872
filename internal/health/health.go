// Package health contains the health check handler.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var log = logrus.WithField("layer", "api").WithField("package", "health")

// nolint:gochecknoglobals
var (
	version = "dev"
	commit  = "undefined"
)

// GetVersion returns service's version and commit.
func GetVersion() string {
	return fmt.Sprintf("%s-%s", version, commit)
}

// Pinger pings a dependency.
type Pinger interface {
	// Ping returns meta information of the dependency.
	Ping(ctx context.Context) (interface{}, error)
	Name() string
}

type funcPinger struct {
	name string
	f    func(ctx context.Context) error
}

func (p funcPinger) Ping(ctx context.Context) (interface{}, error) {
	return nil, p.f(ctx)
}

func (p funcPinger) Name() string {
	return p.name
}

// PingerFunc wraps a plain ping function, e.g. (*localstate.Store).Ping.
func PingerFunc(name string, f func(ctx context.Context) error) Pinger {
	return funcPinger{name: name, f: f}
}

// Response ...
type Response struct {
	Version string                 `json:"version"`
	Commit  string                 `json:"commit"`
	Meta    map[string]interface{} `json:"meta"`
	Errors  map[string]string      `json:"errors,omitempty"`
}

// Handler runs pingers in parallel. It responds 503 when any of them fails.
func Handler(timeout time.Duration, p ...Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		var (
			mu   sync.Mutex
			resp = Response{
				Version: version,
				Commit:  commit,
				Meta:    map[string]interface{}{},
				Errors:  map[string]string{},
			}
		)

		gr, ctx := errgroup.WithContext(ctx)
		for i := range p {
			v := p[i]
			gr.Go(func() error {
				m, err := v.Ping(ctx)

				mu.Lock()
				defer mu.Unlock()

				resp.Meta[v.Name()] = m
				if err != nil {
					log.WithError(err).WithField("pinger", v.Name()).Error("health check failed")
					resp.Errors[v.Name()] = err.Error()
				}

				return nil
			})
		}
		_ = gr.Wait()

		w.Header().Set("Content-Type", "application/json")
		if len(resp.Errors) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		data, _ := json.Marshal(resp)
		_, _ = w.Write(data)
	}
}

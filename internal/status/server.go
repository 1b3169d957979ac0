// Package status serves a small HTTP view of a running node: a plain-text
// summary, the roster as JSON and Prometheus metrics.
package status

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Handler builds the router. provider is called once per request.
func Handler(provider func() Data, gatherer prometheus.Gatherer) (http.Handler, error) {
	tmpl, err := loadTemplate()
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, provide(provider)); err != nil {
			http.Error(w, "Status Template Error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	})
	r.Get("/roster", func(w http.ResponseWriter, r *http.Request) {
		slots := provide(provider).Slots
		if slots == nil {
			slots = []Slot{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(slots)
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return r, nil
}

func provide(p func() Data) Data {
	if p == nil {
		return Data{}
	}
	return p()
}

// Start listens on addr and serves until ctx is done.
func Start(ctx context.Context, addr string, provider func() Data, gatherer prometheus.Gatherer) (*Server, error) {
	if addr == "" {
		return nil, fmt.Errorf("status addr is empty")
	}
	h, err := Handler(provider, gatherer)
	if err != nil {
		return nil, err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("status listen %s: %w", addr, err)
	}

	s := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	ss := &Server{srv: s, ln: ln}
	go func() {
		<-ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	}()

	go func() { _ = s.Serve(ln) }()
	return ss, nil
}

func (s *Server) Addr() string { return s.ln.Addr().String() }

package www

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/icodeforyou/bessquote/config"
	"github.com/icodeforyou/bessquote/database"
	"github.com/icodeforyou/bessquote/logging"
	"github.com/icodeforyou/bessquote/metrics"
	"github.com/icodeforyou/bessquote/quote"
)

// Store is the part of database.Database the handlers use.
type Store interface {
	SaveQuote(ctx context.Context, industry string, q *quote.AuthenticatedQuote) (string, error)
	GetQuote(ctx context.Context, id string) (database.QuoteRow, error)
	ListQuotes(ctx context.Context, page, pageSize int) ([]database.QuoteRow, error)
	GetLogEntries(ctx context.Context, q database.LogQuery) ([]logging.LogEntry, error)
}

type Server struct {
	logger  *slog.Logger
	config  config.AppConfigApi
	db      Store
	engine  atomic.Pointer[quote.Engine]
	hub     *Hub
	rtm     *RealTimeManager
	metrics *metrics.Metrics
	sysInfo SysInfo
	router  chi.Router
}

func NewServer(
	db Store,
	engine *quote.Engine,
	m *metrics.Metrics,
	publisher Publisher,
	sysInfo SysInfo,
	config config.AppConfigApi,
) *Server {
	logger := slog.Default().With("module", "www")
	hub := NewHub(logger)

	s := &Server{
		logger:  logger,
		config:  config,
		db:      db,
		hub:     hub,
		rtm:     NewRealTimeManager(hub, publisher, m),
		metrics: m,
		sysInfo: sysInfo,
	}
	s.engine.Store(engine)

	go s.hub.Run()

	logReqMW := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Debug("http request",
				slog.String("method", r.Method),
				slog.String("url", r.URL.String()),
				slog.String("remoteAddr", r.RemoteAddr))
			next.ServeHTTP(w, r)
		})
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logReqMW)

	r.Route("/api", func(r chi.Router) {
		r.Post("/quotes", s.handleCreateQuote)
		r.Get("/quotes", s.handleListQuotes)
		r.Get("/quotes/{id}", s.handleGetQuote)
		r.Get("/quotes/{id}/verify", s.handleVerifyStoredQuote)
		r.Post("/verify", s.handleVerifyQuote)
		r.Get("/industries", s.handleIndustries)
		r.Get("/log", NewLogHandler(logger.With(slog.String("handler", "log")), db))
		r.Get("/sys_info", NewSysInfoHandler(s.sysInfo))
	})

	r.Handle("/metrics", m.Handler())

	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		l, err := NewListener(s.hub, w, r)
		if err != nil {
			s.logger.Error("websocket upgrade failed", slog.Any("error", err))
			return
		}
		if !s.hub.join(l) {
			l.conn.Close()
			return
		}
		go l.WritePump()
	})

	s.router = r
	return s
}

// SetEngine replaces the engine used by requests that start after the call.
func (s *Server) SetEngine(e *quote.Engine) {
	s.engine.Store(e)
}

func (s *Server) Engine() *quote.Engine {
	return s.engine.Load()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Address, strconv.Itoa(int(s.config.Port)))
	s.logger.Info("starting server...", slog.String("address", addr))
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErrors := make(chan error, 1)

	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-srvErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		s.hub.Stop()
		err := srv.Shutdown(shutdownCtx)
		s.rtm.Wait()
		if err != nil {
			s.logger.Error("server shutdown failed", slog.Any("error", err))
		}
		return err
	}
}

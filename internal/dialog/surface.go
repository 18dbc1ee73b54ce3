// Package dialog is the process-wide crop dialog surface: a local HTTP
// server hosting the embedded UI and mediating every session transition.
package dialog

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/rs/zerolog/log"

	"recrop/internal/blob"
	"recrop/internal/config"
	"recrop/internal/session"
	"recrop/internal/source"
)

//go:embed static
var staticFS embed.FS
var isDebug = os.Getenv("DEBUG") == "1"

type Config struct {
	Sessions *session.Store
	Blobs    *blob.Store
	Loader   *source.Loader
	Defaults config.Options

	// GalleryRoot enables browse mode over a directory when non-empty.
	GalleryRoot string
	// Listen defaults to localhost:0 (OS-assigned port).
	Listen string

	OnReady          func(addr string)
	OnBeforeShutdown func()
	// OnSave receives the result of gallery-initiated sessions.
	OnSave func(*session.Result)
}

// Surface is the singleton dialog shell. One per process; all caller
// interaction goes through RequestCrop and the session store.
type Surface struct {
	config       Config
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

func New(cfg Config) *Surface {
	if cfg.Listen == "" {
		cfg.Listen = "localhost:0"
	}
	return &Surface{
		config:     cfg,
		shutdownCh: make(chan struct{}),
	}
}

func (s *Surface) Shutdown() {
	s.shutdownOnce.Do(func() {
		close(s.shutdownCh)
	})
}

// RequestCrop opens a crop session for imageURL and returns its deferred
// result. A session already open is superseded. The deferred rejects with
// session.ErrCancelled, session.ErrSuperseded, *source.LoadError,
// geometry.ErrUnavailable, raster.ErrRender or raster.ErrEncode.
func (s *Surface) RequestCrop(imageURL string, o *config.Overrides) (*session.Deferred, error) {
	deferred, _, err := s.requestCrop(imageURL, o)
	return deferred, err
}

// requestCrop additionally returns the new session's token for handlers
// that must answer with it; reading it back from the store would race a
// concurrent open.
func (s *Surface) requestCrop(imageURL string, o *config.Overrides) (*session.Deferred, string, error) {
	opts, err := o.Resolve(s.config.Defaults)
	if err != nil {
		return nil, "", fmt.Errorf("invalid crop options: %w", err)
	}
	deferred, token := s.config.Sessions.Open(imageURL, opts)
	return deferred, token, nil
}

// Run serves the dialog until ctx is done or Shutdown is called. Any
// session still open at shutdown is cancelled so no promise is orphaned.
func (s *Surface) Run(ctx context.Context) error {
	app := s.buildApp()

	app.Hooks().OnListen(func(listen fiber.ListenData) error {
		if fn := s.config.OnReady; fn != nil {
			fn(fmt.Sprintf("http://%s:%s", listen.Host, listen.Port))
		}
		return nil
	})

	go func() {
		select {
		case <-ctx.Done():
		case <-s.shutdownCh:
		}
		if fn := s.config.OnBeforeShutdown; fn != nil {
			fn()
		}
		if s.config.Sessions.CancelCurrent(nil) {
			log.Ctx(ctx).Debug().Msg("cancelled open session on shutdown")
		}
		if err := app.ShutdownWithTimeout(5 * time.Second); err != nil {
			log.Ctx(ctx).Error().Err(err).Msg("Failed to shutdown dialog surface")
		}
	}()

	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}

	if err := app.Listener(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func (s *Surface) buildApp() *fiber.App {
	app := fiber.New(fiber.Config{
		Immutable:             true,
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			log.Ctx(c.Context()).Error().
				Err(err).
				Str("path", c.Path()).
				Str("method", c.Method()).
				Msg("Request failed")
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				if fiberErr.Code == http.StatusNotFound && c.Path() == "/favicon.ico" {
					return nil
				}
				return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
			}
			return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"error": "Internal Server Error"})
		},
	})

	s.registerRoutes(app)

	if isDebug {
		log.Debug().Msg("Debug mode enabled, serving static files from './static' directory")
		app.Static("/", "static")
	} else {
		log.Debug().Msg("Serving static files from embedded filesystem")
		app.Use("/", filesystem.New(filesystem.Config{
			Root:       http.FS(staticFS),
			PathPrefix: "/static",
		}))
	}

	return app
}

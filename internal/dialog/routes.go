package dialog

import (
	"context"
	"image"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/rs/zerolog/log"

	"recrop/internal/gallery"
	"recrop/internal/geometry"
	"recrop/internal/raster"
	"recrop/internal/session"
	"recrop/internal/source"
)

type confirmRequest struct {
	Token     string           `json:"token"`
	Selection geometry.Rect    `json:"selection"`
	Rendered  geometry.Size    `json:"rendered"`
	Transform raster.Transform `json:"transform"`
}

func (s *Surface) registerRoutes(app *fiber.App) {
	app.Get("/api/session", s.handleSession)
	app.Get("/api/image", s.handleImage)
	app.Post("/api/confirm", s.handleConfirm)
	app.Post("/api/cancel", s.handleCancel)
	app.Get("/api/blobs/:handle", s.handleBlob)
	app.Post("/api/shutdown", func(c *fiber.Ctx) error {
		s.Shutdown()
		return nil
	})

	if s.config.GalleryRoot != "" {
		app.Get("/api/gallery", s.handleGallery)
		app.Get("/api/view", s.handleView)
		app.Post("/api/open", s.handleOpen)
	}
}

func (s *Surface) handleSession(c *fiber.Ctx) error {
	snap, ok := s.config.Sessions.Current()
	if !ok {
		return c.JSON(fiber.Map{"open": false})
	}
	return c.JSON(fiber.Map{
		"open":    true,
		"token":   snap.Token,
		"image":   "/api/image?token=" + url.QueryEscape(snap.Token),
		"options": snap.Options,
	})
}

// handleImage streams the session's source image to the UI, fetching and
// caching it on first use. A fetch failure is terminal for the session.
func (s *Surface) handleImage(c *fiber.Ctx) error {
	token := c.Query("token")
	snap, ok := s.config.Sessions.Current()
	if !ok || snap.Token != token {
		return fiber.NewError(http.StatusConflict, "no such session")
	}

	data, contentType, err := s.sourceBytes(c.Context(), token, snap.ImageURL)
	if err != nil {
		s.config.Sessions.Cancel(token, err)
		return fiber.NewError(http.StatusBadGateway, err.Error())
	}

	c.Set(fiber.HeaderContentType, contentType)
	return c.Send(data)
}

func (s *Surface) sourceBytes(ctx context.Context, token, imageURL string) ([]byte, string, error) {
	if data, contentType, ok := s.config.Sessions.Source(token); ok {
		return data, contentType, nil
	}
	data, contentType, err := s.config.Loader.Fetch(ctx, imageURL)
	if err != nil {
		return nil, "", err
	}
	s.config.Sessions.SetSource(token, data, contentType)
	return data, contentType, nil
}

// handleConfirm runs the export pipeline: geometry, compositing, encoding,
// tracking, save. Every failure cancels the session with the categorized
// reason, so cleanup runs on each exit path. A session superseded while
// the pipeline was running is caught by the token guard on Save, and the
// terminal tracker revokes the late handle.
func (s *Surface) handleConfirm(c *fiber.Ctx) error {
	var req confirmRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	snap, ok := s.config.Sessions.Current()
	if !ok || snap.Token != req.Token {
		return fiber.NewError(http.StatusConflict, "session is no longer open")
	}
	tracker, ok := s.config.Sessions.Tracker(req.Token)
	if !ok {
		return fiber.NewError(http.StatusConflict, "session is no longer open")
	}

	data, _, err := s.sourceBytes(c.Context(), req.Token, snap.ImageURL)
	if err != nil {
		return s.failSession(req.Token, http.StatusBadGateway, err)
	}
	img, err := source.Decode(snap.ImageURL, data)
	if err != nil {
		return s.failSession(req.Token, http.StatusBadGateway, err)
	}

	natural := image.Pt(img.Bounds().Dx(), img.Bounds().Dy())
	rect, err := geometry.CropRect(req.Selection, req.Rendered, natural)
	if err != nil {
		return s.failSession(req.Token, http.StatusUnprocessableEntity, err)
	}

	out, err := raster.Composite(img, rect, req.Transform)
	if err != nil {
		return s.failSession(req.Token, http.StatusInternalServerError, err)
	}
	encoded, err := raster.EncodeBytes(out, snap.Options.Format, snap.Options.Quality)
	if err != nil {
		return s.failSession(req.Token, http.StatusInternalServerError, err)
	}

	handle := tracker.Put(encoded, snap.Options.Format.MIMEType())
	meta := session.Metadata{
		Viewport:  req.Selection,
		Natural:   geometry.FromRectangle(rect),
		Transform: req.Transform,
	}

	if !s.config.Sessions.Save(req.Token, handle, meta) {
		// Superseded mid-pipeline; the handle is already revoked.
		return fiber.NewError(http.StatusConflict, "session was superseded")
	}

	log.Ctx(c.Context()).Info().
		Str("handle", handle).
		Str("image", snap.ImageURL).
		Interface("natural", meta.Natural).
		Msg("crop saved")

	return c.JSON(fiber.Map{
		"handle":   handle,
		"url":      "/api/blobs/" + handle,
		"metadata": meta,
	})
}

// failSession cancels the session with the categorized reason and maps it
// onto an HTTP status for the UI.
func (s *Surface) failSession(token string, status int, err error) error {
	s.config.Sessions.Cancel(token, err)
	return fiber.NewError(status, err.Error())
}

func (s *Surface) handleCancel(c *fiber.Ctx) error {
	var req struct {
		Token string `json:"token"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	// Duplicate or stale cancels are fine; the transition is idempotent.
	s.config.Sessions.Cancel(req.Token, nil)
	return c.SendStatus(http.StatusNoContent)
}

func (s *Surface) handleBlob(c *fiber.Ctx) error {
	entry, ok := s.config.Blobs.Get(c.Params("handle"))
	if !ok {
		return fiber.ErrNotFound
	}
	c.Set(fiber.HeaderContentType, entry.ContentType)
	return c.Send(entry.Data)
}

func (s *Surface) handleGallery(c *fiber.Ctx) error {
	dir, err := gallery.Scan(c.Context(), s.config.GalleryRoot)
	if err != nil {
		return err
	}

	for i := range dir.Files {
		dir.Files[i].URL = "/api/view?file=" + url.QueryEscape(dir.Files[i].Name)
	}
	return c.JSON(dir)
}

func (s *Surface) handleView(c *fiber.Ctx) error {
	file, ok := galleryPath(c.Query("file"))
	if !ok {
		return fiber.ErrBadRequest
	}
	return filesystem.SendFile(c, http.Dir(s.config.GalleryRoot), file)
}

// handleOpen starts a session for a gallery pick. The result is consumed
// by the surface itself: a goroutine awaits the deferred and forwards a
// save to OnSave.
func (s *Surface) handleOpen(c *fiber.Ctx) error {
	var req struct {
		File string `json:"file"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	file, ok := galleryPath(req.File)
	if !ok {
		return fiber.ErrBadRequest
	}

	deferred, token, err := s.requestCrop(file, nil)
	if err != nil {
		return err
	}

	go func() {
		res, err := deferred.Await(context.Background())
		if err != nil {
			log.Debug().Err(err).Str("file", file).Msg("gallery session ended without save")
			return
		}
		if fn := s.config.OnSave; fn != nil {
			fn(res)
		}
	}()

	return c.JSON(fiber.Map{"token": token})
}

// galleryPath rejects paths that would escape the gallery root.
func galleryPath(file string) (string, bool) {
	if file == "" || filepath.IsAbs(file) {
		return "", false
	}
	clean := filepath.ToSlash(filepath.Clean(file))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", false
	}
	return clean, true
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"recrop/internal/blob"
	"recrop/internal/config"
	"recrop/internal/dialog"
	"recrop/internal/session"
	"recrop/internal/source"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func run() error {
	_ = godotenv.Load()

	var args cliArgs
	cliCtx := kong.Parse(
		&args,
		kong.Name("recrop"),
		kong.UsageOnError(),
	)
	if err := cliCtx.Run(); err != nil {
		return err
	}

	return nil
}

type cliArgs struct {
	Serve serveCmd `cmd:"" help:"Browse a directory of images and crop the ones you pick."`
	Crop  cropCmd  `cmd:"" help:"Crop a single image and print the crop metadata."`
}

type commonFlags struct {
	Listen  string `help:"Address to listen on (default localhost:0)" env:"RECROP_LISTEN"`
	Open    bool   `help:"Open the browser automatically when the server starts" default:"true"`
	Verbose bool   `help:"Enable verbose logging" default:"false"`
	Config  string `help:"Path to a recrop.yaml config file" env:"RECROP_CONFIG"`
}

// setup configures logging and loads the optional config file. The
// returned options are the session defaults before per-command overrides.
func (f commonFlags) setup() (config.Options, config.File, error) {
	level := zerolog.InfoLevel
	if f.Verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = log.Output(zerolog.NewConsoleWriter()).Level(level)
	zerolog.DefaultContextLogger = &log.Logger

	var file config.File
	if f.Config != "" {
		var err error
		file, err = config.LoadFile(f.Config)
		if err != nil {
			return config.Options{}, config.File{}, err
		}
	}

	fileOverrides := file.Overrides()
	defaults, err := fileOverrides.Resolve(config.Defaults())
	if err != nil {
		return config.Options{}, config.File{}, fmt.Errorf("invalid config file: %w", err)
	}
	return defaults, file, nil
}

// listenAddr applies the flags > file > built-in precedence.
func (f commonFlags) listenAddr(file config.File) string {
	if f.Listen != "" {
		return f.Listen
	}
	if file.Listen != "" {
		return file.Listen
	}
	return "localhost:0"
}

type serveCmd struct {
	commonFlags
	RootDir string `arg:"" help:"Root directory to serve images from" type:"existingdir"`
	Output  string `help:"Directory to write saved crops into (default <dir>/output)"`
	JSON    bool   `help:"Print save records as JSON lines instead of writing files"`
	Once    bool   `help:"Exit after the first save" default:"false"`
}

func (cmd *serveCmd) Run() error {
	defaults, file, err := cmd.setup()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = log.Logger.WithContext(ctx)

	outputDir := cmd.Output
	if outputDir == "" {
		if file.Output != "" {
			outputDir = file.Output
		} else {
			outputDir = filepath.Join(cmd.RootDir, "output")
		}
	}

	blobs := blob.NewStore()
	sessions := session.NewStore(blobs)

	surface := dialog.New(dialog.Config{
		Sessions:    sessions,
		Blobs:       blobs,
		Loader:      &source.Loader{Root: cmd.RootDir},
		Defaults:    defaults,
		GalleryRoot: cmd.RootDir,
		Listen:      cmd.listenAddr(file),
		OnReady: func(addr string) {
			log.Ctx(ctx).Info().Msgf("Server started at %s", addr)
			if cmd.Open {
				if err := openBrowser(addr); err != nil {
					log.Error().Err(err).Msg("Failed to open browser")
				}
			}
		},
		OnBeforeShutdown: func() {
			log.Ctx(ctx).Info().Msg("Shutting down...")
		},
		OnSave: func(res *session.Result) {
			record := saveRecord{File: res.ImageURL, Handle: res.Handle, Metadata: res.Metadata}
			entry, ok := blobs.Get(res.Handle)
			if !ok {
				log.Ctx(ctx).Error().Str("handle", res.Handle).Msg("saved handle is gone")
				return
			}

			if cmd.JSON {
				printRecord(record)
			} else {
				path, err := writeCrop(outputDir, res.ImageURL, entry)
				if err != nil {
					log.Ctx(ctx).Error().Err(err).Msg("Failed to write crop")
				} else {
					record.Output = path
					log.Ctx(ctx).Info().Str("path", path).Msg("crop written")
					printRecord(record)
				}
			}

			// Ownership of the saved handle is ours now; drop it once the
			// bytes are on disk or printed.
			blobs.Revoke(res.Handle)

			if cmd.Once {
				cancel()
			}
		},
	})

	return surface.Run(ctx)
}

type cropCmd struct {
	commonFlags
	URL         string   `arg:"" help:"Image URL or file path to crop"`
	Format      string   `help:"Output format: png, jpeg or webp"`
	Quality     *float64 `help:"Encoding quality in [0,1] for lossy formats"`
	MinZoom     *float64 `help:"Lower zoom bound"`
	MaxZoom     *float64 `help:"Upper zoom bound"`
	AspectRatio *float64 `help:"Lock the selection aspect ratio (width/height)" name:"aspect-ratio"`
	Output      string   `help:"Output file path (default derived from the source name)"`
}

func (cmd *cropCmd) Run() error {
	defaults, file, err := cmd.setup()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = log.Logger.WithContext(ctx)

	blobs := blob.NewStore()
	sessions := session.NewStore(blobs)

	surface := dialog.New(dialog.Config{
		Sessions: sessions,
		Blobs:    blobs,
		Loader:   &source.Loader{},
		Defaults: defaults,
		Listen:   cmd.listenAddr(file),
		OnReady: func(addr string) {
			log.Ctx(ctx).Info().Msgf("Server started at %s", addr)
			if cmd.Open {
				if err := openBrowser(addr); err != nil {
					log.Error().Err(err).Msg("Failed to open browser")
				}
			}
		},
		OnBeforeShutdown: func() {
			log.Ctx(ctx).Info().Msg("Shutting down...")
		},
	})

	overrides := &config.Overrides{
		Quality:     cmd.Quality,
		MinZoom:     cmd.MinZoom,
		MaxZoom:     cmd.MaxZoom,
		AspectRatio: cmd.AspectRatio,
	}
	if cmd.Format != "" {
		overrides.Format = &cmd.Format
	}

	deferred, err := surface.RequestCrop(cmd.URL, overrides)
	if err != nil {
		return err
	}

	runErr := make(chan error, 1)
	go func() {
		runErr <- surface.Run(ctx)
	}()

	select {
	case serveErr := <-runErr:
		// Server stopped before the session settled.
		if serveErr != nil {
			return serveErr
		}
		return session.ErrCancelled
	case <-deferred.Done():
	}

	surface.Shutdown()
	if serveErr := <-runErr; serveErr != nil {
		log.Ctx(ctx).Error().Err(serveErr).Msg("dialog surface failed")
	}

	res, err := deferred.Await(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			err = session.ErrCancelled
		}
		return err
	}

	entry, ok := blobs.Get(res.Handle)
	if !ok {
		return fmt.Errorf("saved handle %s is gone", res.Handle)
	}

	record := saveRecord{File: res.ImageURL, Handle: res.Handle, Metadata: res.Metadata}
	if cmd.Output != "" {
		if err := os.MkdirAll(filepath.Dir(cmd.Output), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(cmd.Output, entry.Data, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		record.Output = cmd.Output
	} else {
		path, err := writeCrop(".", res.ImageURL, entry)
		if err != nil {
			return err
		}
		record.Output = path
	}
	blobs.Revoke(res.Handle)

	printRecord(record)
	return nil
}

type saveRecord struct {
	File     string           `json:"file"`
	Handle   string           `json:"handle"`
	Output   string           `json:"output,omitempty"`
	Metadata session.Metadata `json:"metadata"`
}

func printRecord(v any) {
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode record to JSON")
	}
}

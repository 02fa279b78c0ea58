// Package preprocess implements the first pipeline stage: validating,
// fetching, and normalizing raw image references into the canonical encoding
// the extraction stage consumes.
package preprocess

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/adalundhe/prism/core/errors"
	"github.com/adalundhe/prism/core/token"
	"github.com/google/uuid"
)

// Config configures the preprocessing agent.
type Config struct {
	// MaxPayloadBytes is the hard ceiling on raw image size.
	MaxPayloadBytes int64 `yaml:"max_payload_bytes"`

	// MaxPixelDimension rejects source images with a larger side.
	MaxPixelDimension int `yaml:"max_pixel_dimension"`

	// TargetDimension is the bounded maximum side after resizing.
	TargetDimension int `yaml:"target_dimension"`

	// FetchTimeout bounds a single remote fetch.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`

	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns the default preprocessing limits.
func DefaultConfig() Config {
	return Config{
		MaxPayloadBytes:   20 << 20,
		MaxPixelDimension: 8192,
		TargetDimension:   1568,
		FetchTimeout:      30 * time.Second,
	}
}

// PreparedImage is the immutable output of preprocessing: a normalized,
// canonically encoded image ready for extraction.
type PreparedImage struct {
	ID        string
	Data      []byte
	MediaType string
	Width     int
	Height    int

	// SourceFormat is the encoding the image arrived in.
	SourceFormat ImageFormat

	// SourceURL is set when the image was fetched remotely.
	SourceURL string
}

// Agent is the preprocessing stage. It is stateless and reentrant; every
// call produces a new PreparedImage and never mutates its input.
type Agent struct {
	config  Config
	guard   *Guard
	fetcher *Fetcher
	logger  *slog.Logger
}

// NewAgent creates a preprocessing agent.
func NewAgent(cfg Config) *Agent {
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = DefaultConfig().MaxPayloadBytes
	}
	if cfg.MaxPixelDimension <= 0 {
		cfg.MaxPixelDimension = DefaultConfig().MaxPixelDimension
	}
	if cfg.TargetDimension <= 0 {
		cfg.TargetDimension = DefaultConfig().TargetDimension
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultConfig().FetchTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Agent{
		config:  cfg,
		guard:   NewGuard(),
		fetcher: NewFetcher(cfg.MaxPayloadBytes, cfg.FetchTimeout),
		logger:  cfg.Logger,
	}
}

// WithGuard replaces the agent's URL guard, for tests.
func (a *Agent) WithGuard(g *Guard) *Agent {
	a.guard = g
	return a
}

// Process validates, fetches if remote, and normalizes one image reference.
func (a *Agent) Process(ctx context.Context, ref token.ImageReference) (*PreparedImage, error) {
	data, sourceURL, err := a.resolveBytes(ctx, ref)
	if err != nil {
		return nil, err
	}

	if int64(len(data)) > a.config.MaxPayloadBytes {
		return nil, errors.New(errors.KindValidation,
			fmt.Sprintf("payload of %d bytes exceeds %d byte limit", len(data), a.config.MaxPayloadBytes), nil)
	}

	format, err := SniffFormat(data)
	if err != nil {
		return nil, err
	}

	img, err := decode(data, format)
	if err != nil {
		return nil, err
	}

	if err := a.checkDimensions(img); err != nil {
		return nil, err
	}

	img = applyOrientation(img, orientationOf(data, format))
	normalized := stretchContrast(resizeToFit(img, a.config.TargetDimension))

	encoded, err := encodePNG(normalized)
	if err != nil {
		return nil, err
	}

	prepared := &PreparedImage{
		ID:           uuid.NewString(),
		Data:         encoded,
		MediaType:    "image/png",
		Width:        normalized.Bounds().Dx(),
		Height:       normalized.Bounds().Dy(),
		SourceFormat: format,
		SourceURL:    sourceURL,
	}

	a.logger.Debug("image prepared",
		"id", prepared.ID,
		"source_format", format,
		"width", prepared.Width,
		"height", prepared.Height)

	return prepared, nil
}

// resolveBytes returns the raw image bytes, fetching when the reference is
// remote. URL safety is validated strictly before the fetch.
func (a *Agent) resolveBytes(ctx context.Context, ref token.ImageReference) ([]byte, string, error) {
	if !ref.IsRemote() {
		if len(ref.Data) == 0 {
			return nil, "", errors.New(errors.KindValidation, "image reference has neither url nor data", nil)
		}
		return ref.Data, "", nil
	}

	if err := a.guard.ValidateURL(ctx, ref.URL); err != nil {
		return nil, "", err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.config.FetchTimeout)
	defer cancel()

	data, err := a.fetcher.Fetch(fetchCtx, ref.URL)
	if err != nil {
		return nil, "", err
	}
	return data, ref.URL, nil
}

// checkDimensions enforces the source pixel limits.
func (a *Agent) checkDimensions(img image.Image) error {
	b := img.Bounds()
	if b.Dx() > a.config.MaxPixelDimension || b.Dy() > a.config.MaxPixelDimension {
		return errors.New(errors.KindValidation,
			fmt.Sprintf("image %dx%d exceeds %d pixel dimension limit",
				b.Dx(), b.Dy(), a.config.MaxPixelDimension), nil)
	}
	return nil
}

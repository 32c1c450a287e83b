// Command spritebench drives the sprite renderer with concurrent producers
// and reports frame throughput.
//
// Usage:
//
//	spritebench -frames 600 -producers 8 -quads 2000 -config layers.yaml
//
// Frames are submitted to a registered recording submitter ("discard" by
// default), so no GPU is required. With -gpu they go through gpu.Submitter
// on the noop HAL device, which exercises pipelines, page uploads and
// vertex buffers without a real adapter.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math/rand/v2"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"

	"github.com/gogpu/sprite"
	"github.com/gogpu/sprite/atlas"
	"github.com/gogpu/sprite/recording"
)

type options struct {
	config    string
	submitter string
	frames    int
	producers int
	quads     int
	textures  int
	gpu       bool
	verbose   bool
	quiet     bool
}

func main() {
	var o options
	flag.StringVar(&o.config, "config", "", "renderer configuration (YAML)")
	flag.StringVar(&o.submitter, "submitter", "discard", fmt.Sprintf("submitter, one of %v", recording.Submitters()))
	flag.IntVar(&o.frames, "frames", 300, "number of frames")
	flag.IntVar(&o.producers, "producers", 4, "concurrent producers per frame")
	flag.IntVar(&o.quads, "quads", 1000, "quads per producer per frame")
	flag.IntVar(&o.textures, "textures", 16, "distinct textures in the atlas")
	flag.BoolVar(&o.gpu, "gpu", false, "submit through the GPU submitter on the noop HAL device")
	flag.BoolVar(&o.verbose, "v", false, "debug logging")
	flag.BoolVar(&o.quiet, "q", false, "no progress bar")
	flag.Parse()

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	sprite.SetLogger(log)

	if err := run(context.Background(), o, log); err != nil {
		log.Error("spritebench failed", "err", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (sprite.Config, error) {
	if path == "" {
		cfg := sprite.DefaultConfig()
		cfg.Viewport = sprite.ViewportSize{Width: 1280, Height: 720}
		cfg.PageBatching = true
		cfg.Layers = []sprite.LayerConfig{
			{Name: "world"},
			{Name: "fx", Blend: "additive", Order: "overlap"},
		}
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return sprite.Config{}, err
	}
	defer f.Close()
	return sprite.LoadConfig(f)
}

// newAtlas fills an atlas with n solid textures of varying size.
func newAtlas(n int) (*atlas.Atlas, []sprite.TextureID, error) {
	a := atlas.New()
	ids := make([]sprite.TextureID, 0, n)
	for i := range n {
		size := 8 + (i%8)*4
		img := image.NewRGBA(image.Rect(0, 0, size, size))
		c := color.RGBA{R: uint8(i * 37), G: uint8(i * 91), B: uint8(i * 53), A: 0xff} //nolint:gosec // wrapping is fine
		for p := 0; p < len(img.Pix); p += 4 {
			img.Pix[p], img.Pix[p+1], img.Pix[p+2], img.Pix[p+3] = c.R, c.G, c.B, c.A
		}
		id, err := a.Add(img)
		if err != nil {
			return nil, nil, fmt.Errorf("add texture %d: %w", i, err)
		}
		ids = append(ids, id)
	}
	return a, ids, nil
}

func run(ctx context.Context, o options, log *slog.Logger) error {
	if o.frames <= 0 || o.producers <= 0 || o.quads < 0 || o.textures <= 0 {
		return fmt.Errorf("frames, producers and textures must be positive")
	}
	cfg, err := loadConfig(o.config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if len(cfg.Layers) == 0 {
		return fmt.Errorf("config has no layers")
	}
	a, textures, err := newAtlas(o.textures)
	if err != nil {
		return err
	}
	var sub sprite.Submitter
	if o.gpu {
		w, h := uint32(max(cfg.Viewport.Width, 1)), uint32(max(cfg.Viewport.Height, 1))
		gsub, release, err := newGPUSubmitter(a, w, h, log)
		if err != nil {
			return fmt.Errorf("gpu submitter: %w", err)
		}
		defer release()
		sub, o.submitter = gsub, "gpu"
	} else {
		sub, err = recording.NewSubmitter(o.submitter)
		if err != nil {
			return err
		}
	}

	opts := append(cfg.Options(), sprite.WithResolver(a), sprite.WithSubmitter(sub))
	r := sprite.NewRenderer(opts...)
	defer r.Close()
	layers, err := cfg.NewLayers(r)
	if err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if !o.quiet {
		bar = progressbar.Default(int64(o.frames), "frames")
	}

	var reported int
	var drawTime, frameTime time.Duration
	var batches, commands uint64
	start := time.Now()
	for f := range o.frames {
		t0 := time.Now()
		g, gctx := errgroup.WithContext(ctx)
		for p := range o.producers {
			g.Go(func() error {
				return produce(gctx, layers, textures, f, p, o.quads)
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("frame %d: %w", f, err)
		}
		t1 := time.Now()

		if _, err := r.Frame(); err != nil {
			return fmt.Errorf("frame %d: %w", f, err)
		}
		stats := r.Stats()
		batches += uint64(stats.Batches)   //nolint:gosec // counts are non-negative
		commands += uint64(stats.Commands) //nolint:gosec // counts are non-negative
		drawTime += t1.Sub(t0)
		frameTime += time.Since(t1)
		reported += drainErrors(r, log)

		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	elapsed := time.Since(start)
	log.Info("spritebench done",
		"submitter", o.submitter,
		"frames", o.frames,
		"commands", commands,
		"batches", batches,
		"commands_per_batch", float64(commands)/float64(max(batches, 1)),
		"draw_avg", drawTime/time.Duration(o.frames),
		"frame_avg", frameTime/time.Duration(o.frames),
		"fps", float64(o.frames)/elapsed.Seconds(),
		"reported", reported,
		"dropped", r.Reporter().Dropped(),
		"atlas_pages", len(a.Pages()),
	)
	if rec, ok := sub.(*recording.Recorder); ok {
		log.Info("recorder totals", "totals", rec.Totals())
	}
	return nil
}

// produce queues n quads from one producer into the layers round-robin.
func produce(ctx context.Context, layers []*sprite.Layer, textures []sprite.TextureID, frame, producer, n int) error {
	rng := rand.New(rand.NewPCG(uint64(frame), uint64(producer))) //nolint:gosec // benchmark data
	for i := range n {
		if i%256 == 0 && ctx.Err() != nil {
			return ctx.Err()
		}
		l := layers[i%len(layers)]
		a := sprite.Attrs{
			X:        rng.Float32() * 1280,
			Y:        rng.Float32() * 720,
			Width:    16,
			Height:   16,
			Rotation: rng.Float32() * 6.283185,
			OriginX:  0.5,
			OriginY:  0.5,
			Texture:  textures[rng.IntN(len(textures))],
			Depth:    float32(rng.IntN(4)),
			Tag:      uint64(producer)<<32 | uint64(i), //nolint:gosec // ids are small
		}
		var err error
		if i%10 == 9 {
			err = l.DrawRect(a.X, a.Y, 8, 8, sprite.RGBA8{R: 255, A: 255}, sprite.Attrs{Tag: a.Tag})
		} else {
			err = l.Draw(a)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// drainErrors logs reported errors without blocking and returns how many
// there were.
func drainErrors(r *sprite.Renderer, log *slog.Logger) int {
	n := 0
	for {
		select {
		case err := <-r.Errors():
			n++
			log.Debug("reported", "err", err)
		default:
			return n
		}
	}
}

package sprite

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Config is the serializable form of the renderer options.
//
//	capacity: 4096
//	max_capacity: 1048576
//	workers: 4
//	viewport: {width: 1280, height: 720}
//	page_batching: true
//	layers:
//	  - name: world
//	  - name: fx
//	    blend: additive
//	    order: overlap
type Config struct {
	Capacity     int           `yaml:"capacity"`
	MaxCapacity  int           `yaml:"max_capacity"`
	Workers      int           `yaml:"workers"`
	ErrorBuffer  int           `yaml:"error_buffer"`
	PageBatching bool          `yaml:"page_batching"`
	Lookback     int           `yaml:"lookback"`
	Viewport     ViewportSize  `yaml:"viewport"`
	Layers       []LayerConfig `yaml:"layers"`
}

// ViewportSize is a target size in pixels.
type ViewportSize struct {
	Width  float32 `yaml:"width"`
	Height float32 `yaml:"height"`
}

// LayerConfig describes one layer.
type LayerConfig struct {
	Name  string `yaml:"name"`
	Blend string `yaml:"blend"`
	Order string `yaml:"order"`
	Color string `yaml:"color"` // #rrggbb or #rrggbbaa
}

// DefaultConfig returns the configuration matching the defaults of
// NewRenderer.
func DefaultConfig() Config {
	return Config{
		Capacity:    DefaultCapacity,
		ErrorBuffer: DefaultErrorBuffer,
		Lookback:    DefaultLookback,
	}
}

// LoadConfig decodes a YAML configuration on top of DefaultConfig.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("sprite: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	if c.Capacity < 0 || c.MaxCapacity < 0 {
		return fmt.Errorf("sprite: negative capacity")
	}
	if c.MaxCapacity > 0 && c.Capacity > c.MaxCapacity {
		return fmt.Errorf("sprite: capacity %d above max_capacity %d", c.Capacity, c.MaxCapacity)
	}
	seen := make(map[string]bool, len(c.Layers))
	for _, lc := range c.Layers {
		if lc.Name == "" {
			return fmt.Errorf("sprite: layer without name")
		}
		if seen[lc.Name] {
			return fmt.Errorf("sprite: duplicate layer %q", lc.Name)
		}
		seen[lc.Name] = true
		if _, err := lc.options(); err != nil {
			return err
		}
	}
	return nil
}

// Options converts the configuration to renderer options.
func (c Config) Options() []Option {
	opts := []Option{
		WithCapacity(c.Capacity),
		WithMaxCapacity(c.MaxCapacity),
		WithWorkers(c.Workers),
		WithPageBatching(c.PageBatching),
	}
	if c.ErrorBuffer > 0 {
		opts = append(opts, WithErrorBuffer(c.ErrorBuffer))
	}
	if c.Lookback > 0 {
		opts = append(opts, WithLookback(c.Lookback))
	}
	if c.Viewport.Width > 0 && c.Viewport.Height > 0 {
		opts = append(opts, WithViewport(c.Viewport.Width, c.Viewport.Height))
	}
	return opts
}

func (lc LayerConfig) options() ([]LayerOption, error) {
	var opts []LayerOption
	if lc.Blend != "" {
		b, err := ParseBlendMode(lc.Blend)
		if err != nil {
			return nil, fmt.Errorf("sprite: layer %q: %w", lc.Name, err)
		}
		opts = append(opts, WithLayerBlend(b))
	}
	switch lc.Order {
	case "", "strict":
	case "overlap":
		opts = append(opts, WithLayerOrder(OrderOverlap))
	default:
		return nil, fmt.Errorf("sprite: layer %q: unknown order %q", lc.Name, lc.Order)
	}
	if lc.Color != "" {
		if _, err := ParseHex(lc.Color); err != nil {
			return nil, fmt.Errorf("sprite: layer %q: %w", lc.Name, err)
		}
	}
	return opts, nil
}

// NewLayers creates the configured layers on r in order.
func (c Config) NewLayers(r *Renderer) ([]*Layer, error) {
	layers := make([]*Layer, 0, len(c.Layers))
	for _, lc := range c.Layers {
		opts, err := lc.options()
		if err != nil {
			return nil, err
		}
		l, err := r.NewLayer(lc.Name, opts...)
		if err != nil {
			return nil, err
		}
		if lc.Color != "" {
			col, _ := ParseHex(lc.Color)
			l.SetColor(col)
		}
		layers = append(layers, l)
	}
	return layers, nil
}

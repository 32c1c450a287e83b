package sprite

// Option configures a Renderer during creation.
//
// Example:
//
//	r := sprite.NewRenderer(
//	    sprite.WithSubmitter(sub),
//	    sprite.WithViewport(1280, 720),
//	    sprite.WithMaxCapacity(1 << 20),
//	)
type Option func(*options)

type options struct {
	capacity     int
	maxCapacity  int
	resolver     Resolver
	shaders      ShaderSet
	submitter    Submitter
	workers      int
	width        float32
	height       float32
	errorBuffer  int
	pageBatching bool
	lookback     int
}

func defaultOptions() options {
	return options{
		capacity:    DefaultCapacity,
		workers:     0, // GOMAXPROCS
		errorBuffer: DefaultErrorBuffer,
		lookback:    DefaultLookback,
	}
}

// WithCapacity sets the initial buffer capacity of layers created with
// Renderer.NewLayer.
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

// WithMaxCapacity bounds buffer growth of layers created with
// Renderer.NewLayer. Pushes beyond it fail with ErrCapacityExceeded.
func WithMaxCapacity(n int) Option {
	return func(o *options) { o.maxCapacity = n }
}

// WithResolver sets the texture resolver, typically an *atlas.Atlas.
func WithResolver(r Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithShaders sets the shader set, typically a *shader.Registry.
func WithShaders(s ShaderSet) Option {
	return func(o *options) { o.shaders = s }
}

// WithSubmitter sets where batches are sent. Without one the renderer
// builds batches and vertices but submits nothing.
func WithSubmitter(s Submitter) Option {
	return func(o *options) { o.submitter = s }
}

// WithWorkers sets the number of goroutines expanding vertices.
// One disables parallel expansion; zero uses GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithViewport sets the target size in pixels, which defines the
// projection to clip space.
func WithViewport(width, height float32) Option {
	return func(o *options) { o.width, o.height = width, height }
}

// WithErrorBuffer sets the capacity of the Errors channel.
func WithErrorBuffer(n int) Option {
	return func(o *options) { o.errorBuffer = n }
}

// WithPageBatching merges textures that share an atlas page.
func WithPageBatching(on bool) Option {
	return func(o *options) { o.pageBatching = on }
}

// WithLookback bounds the batch search of layers using OrderOverlap.
func WithLookback(n int) Option {
	return func(o *options) { o.lookback = n }
}

package sprite

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestLayer_DrawDefaults(t *testing.T) {
	l := NewLayer("world")
	if err := l.Draw(Attrs{X: 1, Y: 2, Width: 8, Height: 8, Texture: 3}); err != nil {
		t.Fatal(err)
	}
	cmds := l.Swap()
	if len(cmds) != 1 {
		t.Fatalf("Swap() len = %d, want 1", len(cmds))
	}
	c := cmds[0]
	if c.Scale != V2(1, 1) {
		t.Errorf("Scale = %v, want {1 1}", c.Scale)
	}
	if c.Color != White {
		t.Errorf("Color = %v, want white", c.Color)
	}
	if c.UV != UnitRect {
		t.Errorf("UV = %v, want UnitRect", c.UV)
	}
	if c.Blend != BlendNormal {
		t.Errorf("Blend = %v, want normal", c.Blend)
	}
	if c.Shader != ShaderSprite {
		t.Errorf("Shader = %d, want %d", c.Shader, ShaderSprite)
	}
}

func TestLayer_AttributesPerLayer(t *testing.T) {
	a := NewLayer("a")
	b := NewLayer("b", WithLayerBlend(BlendAdditive))
	a.SetBlendMode(BlendMultiply)

	if a.BlendMode() != BlendMultiply {
		t.Errorf("a.BlendMode() = %v, want multiply", a.BlendMode())
	}
	if b.BlendMode() != BlendAdditive {
		t.Errorf("b.BlendMode() = %v, want additive", b.BlendMode())
	}

	_ = a.Draw(Attrs{Texture: 1})
	_ = a.Draw(Attrs{Texture: 1, Blend: BlendScreen})
	_ = b.Draw(Attrs{Texture: 1})
	ca, cb := a.Swap(), b.Swap()
	if ca[0].Blend != BlendMultiply || ca[1].Blend != BlendScreen {
		t.Errorf("layer a blends = %v, %v; want multiply, screen", ca[0].Blend, ca[1].Blend)
	}
	if cb[0].Blend != BlendAdditive {
		t.Errorf("layer b blend = %v, want additive", cb[0].Blend)
	}
}

func TestLayer_ShaderOverride(t *testing.T) {
	l := NewLayer("fx")
	l.SetShader(ShaderID(9))
	_ = l.Draw(Attrs{Texture: 1})
	_ = l.Draw(Attrs{Texture: 1, Shader: ShaderGlyph})
	l.SetShader(ShaderDefault)
	_ = l.DrawRect(0, 0, 1, 1, Black, Attrs{})

	cmds := l.Swap()
	want := []ShaderID{9, ShaderGlyph, ShaderShape}
	for i, c := range cmds {
		if c.Shader != want[i] {
			t.Errorf("cmds[%d].Shader = %d, want %d", i, c.Shader, want[i])
		}
	}
}

func TestLayer_SwapDefersLatePushes(t *testing.T) {
	l := NewLayer("ui")
	_ = l.Draw(Attrs{Texture: 1, Tag: 1})
	first := l.Swap()
	_ = l.Draw(Attrs{Texture: 1, Tag: 2})

	if len(first) != 1 || first[0].Tag != 1 {
		t.Fatalf("first frame = %v, want only tag 1", first)
	}
	if l.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", l.Pending())
	}
	second := l.Swap()
	if len(second) != 1 || second[0].Tag != 2 {
		t.Fatalf("second frame = %v, want only tag 2", second)
	}
	if third := l.Swap(); len(third) != 0 {
		t.Errorf("third frame len = %d, want 0", len(third))
	}
}

func TestLayer_DrawSprite(t *testing.T) {
	l := NewLayer("world")
	s := NewPaddedSprite(48, 32, 4, 10, 64, 64)

	_ = l.DrawSprite(s, 6, Attrs{X: 100, Y: 50})
	c := l.Swap()[0]

	if c.Texture != 12 {
		t.Errorf("Texture = %d, want 12 (frame 6 of 4 wraps to 2)", c.Texture)
	}
	if c.Size != V2(48, 32) {
		t.Errorf("Size = %v, want {48 32}", c.Size)
	}
	if c.Origin != V2(0.5, 0.5) {
		t.Errorf("Origin = %v, want {0.5 0.5}", c.Origin)
	}
	if c.UV != R(0, 0, 0.75, 0.5) {
		t.Errorf("UV = %v, want (0,0)-(0.75,0.5)", c.UV)
	}
	if b := c.Bounds(); b != R(76, 34, 124, 66) {
		t.Errorf("Bounds() = %v, want (76,34)-(124,66)", b)
	}
}

func TestLayer_DrawRect(t *testing.T) {
	l := NewLayer("hud")
	_ = l.DrawRect(5, 6, 10, 20, RGB(255, 0, 0), Attrs{Texture: 7})
	c := l.Swap()[0]

	if c.Kind != KindShape {
		t.Errorf("Kind = %v, want shape", c.Kind)
	}
	if c.Texture != NoTexture {
		t.Errorf("Texture = %d, want NoTexture", c.Texture)
	}
	if b := c.Bounds(); b != R(5, 6, 15, 26) {
		t.Errorf("Bounds() = %v, want (5,6)-(15,26)", b)
	}
}

func TestLayer_CapacityExceededReported(t *testing.T) {
	l := NewLayer("small", WithLayerCapacity(2), WithLayerMaxCapacity(2))
	rep := NewReporter(4)
	l.reporter.Store(rep)

	for i := range 2 {
		if err := l.Draw(Attrs{Texture: 1, Tag: uint64(i)}); err != nil {
			t.Fatalf("Draw(%d) error = %v", i, err)
		}
	}
	err := l.Draw(Attrs{Texture: 1, Tag: 2})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("Draw() error = %v, want ErrCapacityExceeded", err)
	}

	select {
	case got := <-rep.Errors():
		var ce *CapacityError
		if !errors.As(got, &ce) || ce.Layer != "small" {
			t.Errorf("reported %v, want *CapacityError for layer small", got)
		}
	default:
		t.Error("no error reported")
	}
	if n := len(l.Swap()); n != 2 {
		t.Errorf("Swap() len = %d, want 2", n)
	}
}

func TestLayer_ColorViewModel(t *testing.T) {
	l := NewLayer("cam")
	if l.Color() != White {
		t.Errorf("default Color() = %v, want white", l.Color())
	}
	l.SetColor(RGBA8{10, 20, 30, 40})
	if got := l.Color(); got != (RGBA8{10, 20, 30, 40}) {
		t.Errorf("Color() = %v, want #0a141e28", got)
	}

	l.SetView(Translate(10, 0))
	l.SetModel(Scale(2, 2))
	if p := l.Transform().Apply(V2(1, 1)); p != V2(12, 2) {
		t.Errorf("Transform().Apply(1,1) = %v, want {12 2}", p)
	}
}

func TestLayer_Generation(t *testing.T) {
	l := NewLayer("g")
	g0 := l.Generation()
	_ = l.Draw(Attrs{Texture: 1})
	g1 := l.Generation()
	l.Swap()
	g2 := l.Generation()
	if g1 == g0 || g2 == g1 {
		t.Errorf("Generation() = %d, %d, %d; want strictly changing", g0, g1, g2)
	}
}

// TestLayer_ConcurrentSwap pushes from many goroutines while the frame
// driver swaps continuously; every command must be drained exactly once.
func TestLayer_ConcurrentSwap(t *testing.T) {
	const (
		producers = 8
		perProd   = 5000
	)
	l := NewLayer("stress", WithLayerCapacity(64))

	var (
		wg   sync.WaitGroup
		done atomic.Bool
	)
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProd {
				_ = l.Draw(Attrs{Texture: 1, Tag: uint64(p)<<32 | uint64(i)})
			}
		}()
	}
	go func() {
		wg.Wait()
		done.Store(true)
	}()

	seen := make(map[uint64]bool, producers*perProd)
	last := make([]int64, producers)
	for i := range last {
		last[i] = -1
	}
	collect := func(cmds []DrawCommand) {
		for _, c := range cmds {
			if seen[c.Tag] {
				t.Fatalf("tag %#x drained twice", c.Tag)
			}
			seen[c.Tag] = true
			p, i := c.Tag>>32, int64(c.Tag&0xffffffff)
			if i <= last[p] {
				t.Fatalf("producer %d: command %d drained after %d", p, i, last[p])
			}
			last[p] = i
		}
	}
	for !done.Load() {
		collect(l.Swap())
	}
	collect(l.Swap())

	if len(seen) != producers*perProd {
		t.Errorf("drained %d commands, want %d", len(seen), producers*perProd)
	}
}

func TestLayer_Discard(t *testing.T) {
	l := NewLayer("d")
	for i := range 3 {
		_ = l.Draw(Attrs{Texture: 1, Tag: uint64(i)})
	}
	g := l.Generation()
	l.Discard()
	if l.Generation() == g {
		t.Error("Discard() did not bump the generation")
	}
	if l.Pending() != 0 {
		t.Errorf("Pending() after Discard = %d, want 0", l.Pending())
	}
	_ = l.Draw(Attrs{Texture: 1, Tag: 7})

	cmds := l.Swap()
	if len(cmds) != 1 || cmds[0].Tag != 7 {
		t.Fatalf("Swap() = %v, want only tag 7", cmds)
	}
	// The cutoff belongs to the drained buffer only.
	_ = l.Draw(Attrs{Texture: 1, Tag: 8})
	_ = l.Draw(Attrs{Texture: 1, Tag: 9})
	if cmds := l.Swap(); len(cmds) != 2 {
		t.Errorf("second Swap() len = %d, want 2", len(cmds))
	}
	l.Discard()
	if cmds := l.Swap(); len(cmds) != 0 {
		t.Errorf("Swap() after Discard on empty layer = %d commands", len(cmds))
	}
}

// TestLayer_DiscardConcurrent discards while producers push and the frame
// driver swaps; nothing may be drained twice or out of producer order.
func TestLayer_DiscardConcurrent(t *testing.T) {
	const (
		producers = 4
		perProd   = 4000
	)
	l := NewLayer("discard", WithLayerCapacity(32))

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perProd {
				_ = l.Draw(Attrs{Texture: 1, Tag: uint64(p)<<32 | uint64(i)})
			}
		}()
	}
	stop := make(chan struct{})
	discarder := make(chan struct{})
	go func() {
		defer close(discarder)
		for {
			select {
			case <-stop:
				return
			default:
				l.Discard()
			}
		}
	}()

	seen := make(map[uint64]bool)
	last := make([]int64, producers)
	for i := range last {
		last[i] = -1
	}
	check := func(cmds []DrawCommand) {
		for _, c := range cmds {
			if seen[c.Tag] {
				t.Fatalf("tag %#x drained twice", c.Tag)
			}
			seen[c.Tag] = true
			p, i := c.Tag>>32, int64(c.Tag&0xffffffff)
			if i <= last[p] {
				t.Fatalf("producer %d: command %d drained after %d", p, i, last[p])
			}
			last[p] = i
		}
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
		}
		check(l.Swap())
	}
	close(stop)
	<-discarder
	check(l.Swap())
}

package sprite

import (
	"image/color"
	"testing"
)

func TestRGBA8Pack(t *testing.T) {
	c := RGBA8{R: 0x11, G: 0x22, B: 0x33, A: 0x44}
	if got := c.Pack(); got != 0x44332211 {
		t.Errorf("Pack() = %#x, want 0x44332211", got)
	}
	if got := unpack(c.Pack()); got != c {
		t.Errorf("unpack(Pack()) = %v, want %v", got, c)
	}
}

func TestRGBA8Modulate(t *testing.T) {
	tests := []struct {
		a, b, want RGBA8
	}{
		{White, White, White},
		{White, Black, Black},
		{RGBA8{128, 64, 255, 255}, White, RGBA8{128, 64, 255, 255}},
		{RGBA8{255, 255, 255, 255}, RGBA8{128, 128, 128, 128}, RGBA8{128, 128, 128, 128}},
		{Transparent, White, Transparent},
	}
	for _, tt := range tests {
		if got := tt.a.Modulate(tt.b); got != tt.want {
			t.Errorf("%v.Modulate(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		in      string
		want    RGBA8
		wantErr bool
	}{
		{"#ff8000", RGBA8{255, 128, 0, 255}, false},
		{"ff800080", RGBA8{255, 128, 0, 128}, false},
		{"#fff", RGBA8{}, true},
		{"#gg0000", RGBA8{}, true},
	}
	for _, tt := range tests {
		got, err := ParseHex(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseHex(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseHex(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFromColor(t *testing.T) {
	got := FromColor(color.RGBA{R: 128, A: 128})
	if got.A != 128 || got.R != 255 {
		t.Errorf("FromColor(premultiplied) = %v, want straight alpha #ff000080", got)
	}
	if got.String() != "#ff000080" {
		t.Errorf("String() = %q, want #ff000080", got.String())
	}
}

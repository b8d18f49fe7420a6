package core

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Color is an RGBA color with 8 bits per channel.
type Color struct {
	R, G, B, A uint8
}

// Yellow is the fallback color for annotations whose stored color cannot be decoded.
var Yellow = Color{R: 0xFF, G: 0xFF, B: 0x00, A: 0xFF}

// Hex encodes the color as "#RRGGBBAA".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X%02X", c.R, c.G, c.B, c.A)
}

// String implements fmt.Stringer.
func (c Color) String() string {
	return c.Hex()
}

// ParseColor decodes "#RRGGBBAA" or "#RRGGBB" (opaque). The leading '#' is optional.
func ParseColor(s string) (Color, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(s), "#")
	switch len(raw) {
	case 6:
		raw += "FF"
	case 8:
	default:
		return Color{}, fmt.Errorf("invalid color %q: expected 6 or 8 hex digits", s)
	}

	b, err := hex.DecodeString(raw)
	if err != nil {
		return Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return Color{R: b[0], G: b[1], B: b[2], A: b[3]}, nil
}

// DecodeColor is ParseColor without the error: undecodable input yields Yellow.
func DecodeColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		return Yellow
	}
	return c
}

// Package tiler is a small sample layout generator with a main/stack tile
// layout and a spiral layout.
package tiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bryanchriswhite/RiverLayout/internal/logger"
	"github.com/bryanchriswhite/RiverLayout/pkg/layout"
)

// Kind selects the arrangement the Tiler produces.
type Kind int

const (
	Tile Kind = iota
	Spiral
)

const (
	MinMainRatio     = 0.1
	MaxMainRatio     = 0.9
	DefaultMainRatio = 0.5
)

// String returns the kind's config name.
func (k Kind) String() string {
	switch k {
	case Spiral:
		return "spiral"
	default:
		return "tile"
	}
}

// Symbol returns the layout name shown by the compositor.
func (k Kind) Symbol() string {
	switch k {
	case Spiral:
		return "(@)"
	default:
		return "[]="
	}
}

// ParseKind parses a config name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tile", "":
		return Tile, nil
	case "spiral":
		return Spiral, nil
	}
	return Tile, fmt.Errorf("unknown layout %q (use tile or spiral)", s)
}

// Tiler implements layout.Generator.
type Tiler struct {
	kind      Kind
	mainRatio float64
}

var _ layout.Generator = (*Tiler)(nil)

// New creates a Tiler. mainRatio is clamped to [MinMainRatio, MaxMainRatio].
func New(kind Kind, mainRatio float64) *Tiler {
	return &Tiler{kind: kind, mainRatio: clampRatio(mainRatio)}
}

// Kind returns the current arrangement.
func (t *Tiler) Kind() Kind {
	return t.kind
}

// MainRatio returns the share of the width given to the main view.
func (t *Tiler) MainRatio() float64 {
	return t.mainRatio
}

// UserCommand understands:
//
//	toggle_layout        switch between tile and spiral
//	layout tile|spiral   select an arrangement
//	main_ratio R         set the main ratio; +R / -R adjust it
func (t *Tiler) UserCommand(command string, tags *uint32, output string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return fmt.Errorf("empty command")
	}

	switch fields[0] {
	case "toggle_layout":
		if t.kind == Tile {
			t.kind = Spiral
		} else {
			t.kind = Tile
		}
	case "layout":
		if len(fields) != 2 {
			return fmt.Errorf("usage: layout tile|spiral")
		}
		kind, err := ParseKind(fields[1])
		if err != nil {
			return err
		}
		t.kind = kind
	case "main_ratio":
		if len(fields) != 2 {
			return fmt.Errorf("usage: main_ratio [+|-]RATIO")
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("invalid ratio %q: %w", fields[1], err)
		}
		if strings.HasPrefix(fields[1], "+") || strings.HasPrefix(fields[1], "-") {
			v += t.mainRatio
		}
		t.mainRatio = clampRatio(v)
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}

	logger.WithComponent("tiler").Debug().
		Str("output", output).
		Str("layout", t.kind.String()).
		Float64("main_ratio", t.mainRatio).
		Msg("Tiler updated")
	return nil
}

// GenerateLayout arranges viewCount views in the usable area.
func (t *Tiler) GenerateLayout(viewCount, usableWidth, usableHeight, tags uint32, output string) (*layout.GeneratedLayout, error) {
	generated := &layout.GeneratedLayout{
		Name:  t.kind.Symbol(),
		Views: make([]layout.Rectangle, 0, viewCount),
	}
	if viewCount == 0 {
		return generated, nil
	}

	switch t.kind {
	case Spiral:
		generated.Views = spiral(generated.Views, viewCount, usableWidth, usableHeight)
	default:
		generated.Views = tile(generated.Views, viewCount, usableWidth, usableHeight, t.mainRatio)
	}
	return generated, nil
}

// tile puts the first view in a main column on the left and stacks the
// rest evenly on the right.
func tile(views []layout.Rectangle, n, width, height uint32, ratio float64) []layout.Rectangle {
	if n == 1 {
		return append(views, layout.Rectangle{Width: width, Height: height})
	}

	mainWidth := uint32(float64(width) * ratio)
	stackWidth := width - mainWidth
	stackHeight := height / (n - 1)

	views = append(views, layout.Rectangle{Width: mainWidth, Height: height})
	for i := uint32(0); i < n-1; i++ {
		views = append(views, layout.Rectangle{
			X:      int32(mainWidth),
			Y:      int32(stackHeight * i),
			Width:  stackWidth,
			Height: stackHeight,
		})
	}
	return views
}

// spiral halves the remaining area for every view but the last, alternating
// between vertical and horizontal splits.
func spiral(views []layout.Rectangle, n, width, height uint32) []layout.Rectangle {
	var x, y int32
	for i := uint32(0); i < n; i++ {
		if i+1 != n {
			if i%2 == 0 {
				width /= 2
			} else {
				height /= 2
			}
		}
		views = append(views, layout.Rectangle{X: x, Y: y, Width: width, Height: height})
		if i%2 == 0 {
			x += int32(width)
		} else {
			y += int32(height)
		}
	}
	return views
}

func clampRatio(r float64) float64 {
	switch {
	case r < MinMainRatio:
		return MinMainRatio
	case r > MaxMainRatio:
		return MaxMainRatio
	}
	return r
}

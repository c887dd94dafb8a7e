// Package layout defines the interface a layout generator implements to be
// driven by the river layout bridge.
package layout

// Generator produces window placements for one compositor.
//
// A Generator is owned by a single bridge and is only ever called from the
// bridge's dispatch loop, so implementations need no locking.
type Generator interface {
	// GenerateLayout is called whenever the compositor demands a layout.
	// The returned layout must contain exactly viewCount rectangles; the
	// i-th rectangle is applied to the i-th view. A nil layout with a nil
	// error ends the run, even when viewCount is 0: return an empty
	// GeneratedLayout with a Name instead.
	GenerateLayout(viewCount, usableWidth, usableHeight, tags uint32, output string) (*GeneratedLayout, error)

	// UserCommand is called whenever the user sends a command through
	// `riverctl send-layout-cmd`. tags is nil if the compositor has not
	// announced any tags yet.
	UserCommand(command string, tags *uint32, output string) error
}

// GeneratedLayout is the answer to one layout demand.
type GeneratedLayout struct {
	// Name is shown by the compositor (e.g. in a status bar).
	Name  string      `json:"name"`
	Views []Rectangle `json:"views"`
}

// Rectangle is the position and size of one view, relative to the usable
// area of the output.
type Rectangle struct {
	X      int32  `json:"x"`
	Y      int32  `json:"y"`
	Width  uint32 `json:"width"`
	Height uint32 `json:"height"`
}

// Package river runs a layout.Generator as a river layout generator.
//
//	func main() {
//		if err := river.Run(myLayout{}, "my-layout"); err != nil {
//			log.Fatal(err)
//		}
//	}
package river

import (
	"github.com/bryanchriswhite/RiverLayout/internal/bridge"
	"github.com/bryanchriswhite/RiverLayout/internal/wayland"
	"github.com/bryanchriswhite/RiverLayout/pkg/layout"
)

// Errors Run can return. Use errors.Is / errors.As to tell them apart.
var (
	ErrConnect                = bridge.ErrConnect
	ErrNoLayoutManager        = bridge.ErrNoLayoutManager
	ErrInvalidGeneratedLayout = bridge.ErrInvalidGeneratedLayout
	ErrNilLayout              = bridge.ErrNilLayout
	ErrInconsistent           = bridge.ErrInconsistent
)

type (
	NamespaceInUseError = bridge.NamespaceInUseError
	InvalidLayoutError  = bridge.InvalidLayoutError
	LayoutError         = bridge.LayoutError
	ProtocolError       = wayland.ProtocolError
	Event               = bridge.Event
	EventType           = bridge.EventType
	Observer            = bridge.Observer
	ObserverFunc        = bridge.ObserverFunc
)

type options struct {
	socket    string
	observers []bridge.Observer
}

// Option configures Run.
type Option func(*options)

// WithSocket connects to the named Wayland socket instead of
// $WAYLAND_DISPLAY. Relative names are resolved in $XDG_RUNTIME_DIR.
func WithSocket(name string) Option {
	return func(o *options) {
		o.socket = name
	}
}

// WithObserver registers an observer of bridge events. Observers are called
// from the dispatch loop and must not block.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observers = append(o.observers, obs)
	}
}

// Run connects to the compositor and serves gen under namespace until a
// fatal error occurs. It always returns a non-nil error.
func Run(gen layout.Generator, namespace string, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	conn, err := wayland.Connect(o.socket)
	if err != nil {
		return err
	}

	bopts := make([]bridge.Option, 0, len(o.observers))
	for _, obs := range o.observers {
		bopts = append(bopts, bridge.WithObserver(obs))
	}

	b := bridge.New(conn, gen, namespace, bopts...)
	defer b.Close()
	return b.Run()
}

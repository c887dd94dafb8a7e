// Package bridge connects a layout.Generator to a river compositor.
//
// The bridge tracks the compositor's outputs, opens one river_layout_v3
// object per named output under a fixed namespace, and answers every
// layout demand by calling the generator. All state is owned by the
// dispatch loop; nothing in this package is safe for concurrent use.
package bridge

import (
	"fmt"
	"time"

	"github.com/bryanchriswhite/RiverLayout/internal/logger"
	"github.com/bryanchriswhite/RiverLayout/pkg/layout"
	"github.com/rs/zerolog"
)

// Bridge is the process-wide state of one layout generator.
type Bridge struct {
	conn      Conn
	gen       layout.Generator
	namespace string
	log       *zerolog.Logger

	manager LayoutManagerHandle
	// tags is the last value announced by user_command_tags. It is kept
	// after a command consumes it until the next announcement.
	tags *uint32

	outputs []*output
	// globals maps every advertised registry name to its interface.
	globals map[uint32]string
	// initial holds the globals seen before the handshake finished.
	initial []global
	ready   bool

	observers []Observer
	now       func() time.Time
}

type global struct {
	name    uint32
	iface   string
	version uint32
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithObserver registers an observer for bridge events.
func WithObserver(o Observer) Option {
	return func(b *Bridge) {
		b.observers = append(b.observers, o)
	}
}

// WithClock overrides the time source used to stamp events.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		b.now = now
	}
}

// New creates a bridge serving gen under namespace. The bridge takes
// ownership of conn.
func New(conn Conn, gen layout.Generator, namespace string, opts ...Option) *Bridge {
	b := &Bridge{
		conn:      conn,
		gen:       gen,
		namespace: namespace,
		log:       logger.WithComponent("bridge"),
		globals:   make(map[uint32]string),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start performs the initial handshake: it collects the globals the
// compositor already has, binds the layout manager and binds every output
// present at startup.
func (b *Bridge) Start() error {
	if b.ready {
		return nil
	}

	b.conn.SetHandler(b)
	if err := b.conn.Roundtrip(); err != nil {
		return fmt.Errorf("failed to collect initial globals: %w", err)
	}

	var manager *global
	for i := range b.initial {
		if b.initial[i].iface == LayoutManagerInterface {
			manager = &b.initial[i]
			break
		}
	}
	if manager == nil {
		return ErrNoLayoutManager
	}

	handle, err := b.conn.BindLayoutManager(manager.name, min(manager.version, maxLayoutManagerVersion))
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", LayoutManagerInterface, err)
	}
	b.manager = handle
	b.ready = true

	b.log.Info().
		Uint32("version", min(manager.version, maxLayoutManagerVersion)).
		Str("namespace", b.namespace).
		Msg("Bound layout manager")

	initial := b.initial
	b.initial = nil
	for _, g := range initial {
		if g.iface != OutputInterface {
			continue
		}
		if err := b.addOutput(g.name, g.version); err != nil {
			return err
		}
	}

	return nil
}

// Run performs the handshake if needed and then flushes, receives and
// dispatches events until a fatal error occurs. It never returns nil.
func (b *Bridge) Run() error {
	if err := b.Start(); err != nil {
		return err
	}

	for {
		if err := b.conn.Flush(); err != nil {
			return fmt.Errorf("failed to flush requests: %w", err)
		}
		if err := b.conn.Dispatch(); err != nil {
			return err
		}
	}
}

// Close releases the compositor connection.
func (b *Bridge) Close() error {
	return b.conn.Close()
}

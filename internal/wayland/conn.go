// Package wayland implements bridge.Conn over a Wayland socket using
// go-wayland.
package wayland

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bryanchriswhite/RiverLayout/internal/bridge"
	"github.com/bryanchriswhite/RiverLayout/internal/logger"
	"github.com/bryanchriswhite/RiverLayout/internal/wayland/riverlayout"
	"github.com/rajveermalviya/go-wayland/wayland/client"
	"github.com/rs/zerolog"
)

// ProtocolError is a wl_display.error sent by the compositor. The
// connection is unusable afterwards.
type ProtocolError struct {
	Code    uint32
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wayland protocol error %d: %s", e.Code, e.Message)
}

// Conn is a compositor connection.
type Conn struct {
	display  *client.Display
	registry *client.Registry
	manager  *riverlayout.LayoutManager
	handler  bridge.Handler
	log      *zerolog.Logger

	// retired holds the ids of objects the client destroyed or released.
	// Events for them may still be in flight and are dropped.
	retired map[uint32]struct{}

	// err is the first error raised while dispatching. Events arriving
	// after it are dropped.
	err error
}

var _ bridge.Conn = (*Conn)(nil)

// SocketPath resolves a socket name the way libwayland does: absolute paths
// are used as is, anything else is relative to $XDG_RUNTIME_DIR. An empty
// name means $WAYLAND_DISPLAY, then "wayland-0".
func SocketPath(name string) (string, error) {
	if name == "" {
		name = os.Getenv("WAYLAND_DISPLAY")
	}
	if name == "" {
		name = "wayland-0"
	}
	if filepath.IsAbs(name) {
		return name, nil
	}
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, name), nil
}

// Connect opens a connection to the compositor listening on socket.
func Connect(socket string) (*Conn, error) {
	log := logger.WithComponent("wayland")

	path, err := SocketPath(socket)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bridge.ErrConnect, err)
	}

	display, err := client.Connect(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", bridge.ErrConnect, path, err)
	}

	c := &Conn{display: display, log: log, retired: make(map[uint32]struct{})}
	display.SetErrorHandler(func(e client.DisplayErrorEvent) {
		c.fail(&ProtocolError{Code: e.Code, Message: e.Message})
	})

	registry, err := display.GetRegistry()
	if err != nil {
		display.Context().Close()
		return nil, fmt.Errorf("%w: failed to get registry: %v", bridge.ErrConnect, err)
	}
	registry.SetGlobalHandler(func(e client.RegistryGlobalEvent) {
		c.deliver(registry.ID(), func(h bridge.Handler) error {
			return h.HandleGlobal(e.Name, e.Interface, e.Version)
		})
	})
	registry.SetGlobalRemoveHandler(func(e client.RegistryGlobalRemoveEvent) {
		c.deliver(registry.ID(), func(h bridge.Handler) error {
			return h.HandleGlobalRemove(e.Name)
		})
	})
	c.registry = registry

	log.Info().Str("socket", path).Msg("Connected to compositor")
	return c, nil
}

// SetHandler sets the receiver of protocol events.
func (c *Conn) SetHandler(h bridge.Handler) {
	c.handler = h
}

// Roundtrip sends wl_display.sync and dispatches until its callback fires.
func (c *Conn) Roundtrip() error {
	callback, err := c.display.Sync()
	if err != nil {
		return fmt.Errorf("failed to sync: %w", err)
	}
	done := false
	callback.SetDoneHandler(func(client.CallbackDoneEvent) {
		done = true
	})
	for !done {
		if err := c.Dispatch(); err != nil {
			return err
		}
	}
	return nil
}

// Flush is a no-op: go-wayland writes every request to the socket as it is
// made.
func (c *Conn) Flush() error {
	return c.err
}

// Dispatch blocks until a message arrives and dispatches it.
func (c *Conn) Dispatch() error {
	if c.err != nil {
		return c.err
	}
	if err := c.display.Context().Dispatch(); err != nil {
		return fmt.Errorf("failed to dispatch events: %w", err)
	}
	return c.err
}

// BindOutput binds the wl_output global name.
func (c *Conn) BindOutput(name, version uint32) (bridge.OutputHandle, error) {
	o := &output{Output: client.NewOutput(c.display.Context()), conn: c}
	o.SetNameHandler(func(e client.OutputNameEvent) {
		c.deliver(o.ID(), func(h bridge.Handler) error {
			return h.HandleOutputName(o, e.Name)
		})
	})
	if err := c.registry.Bind(name, bridge.OutputInterface, version, o.Output); err != nil {
		c.display.Context().Unregister(o.Output)
		return nil, err
	}
	return o, nil
}

// BindLayoutManager binds the river_layout_manager_v3 global name.
func (c *Conn) BindLayoutManager(name, version uint32) (bridge.LayoutManagerHandle, error) {
	m := riverlayout.NewLayoutManager(c.display.Context())
	if err := c.registry.Bind(name, bridge.LayoutManagerInterface, version, m); err != nil {
		c.display.Context().Unregister(m)
		return nil, err
	}
	c.manager = m
	return &layoutManager{conn: c, manager: m}, nil
}

// Close destroys the layout manager, if bound, and closes the socket.
func (c *Conn) Close() error {
	if c.manager != nil && c.err == nil {
		if err := c.manager.Destroy(); err != nil {
			c.log.Debug().Err(err).Msg("Failed to destroy layout manager")
		}
		c.manager = nil
	}
	return c.display.Context().Close()
}

// deliver hands an event for object id to the handler unless the object
// was retired or the connection already failed.
func (c *Conn) deliver(id uint32, fn func(bridge.Handler) error) {
	if c.err != nil || c.handler == nil {
		return
	}
	if _, ok := c.retired[id]; ok {
		c.log.Debug().Uint32("object_id", id).Msg("Dropping event for destroyed object")
		return
	}
	if err := fn(c.handler); err != nil {
		c.fail(err)
	}
}

func (c *Conn) retire(id uint32) {
	c.retired[id] = struct{}{}
}

func (c *Conn) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

// wl_output.release, since version 3.
const outputReleaseOpcode = 0

type output struct {
	*client.Output
	conn *Conn
}

// Release sends wl_output.release. client.Output.Release would also
// unregister the proxy, turning events already in flight into dispatch
// errors.
func (o *output) Release() error {
	o.conn.retire(o.ID())
	var buf [8]byte
	client.PutUint32(buf[0:4], o.ID())
	client.PutUint32(buf[4:8], uint32(len(buf))<<16|outputReleaseOpcode)
	return o.Context().WriteMsg(buf[:], nil)
}

// Forget stops delivering events for an output bound below version 3,
// which has no release request.
func (o *output) Forget() {
	o.conn.retire(o.ID())
}

// layout is a river_layout_v3 handed to the bridge.
type layout struct {
	*riverlayout.Layout
	conn *Conn
}

func (l *layout) Destroy() error {
	l.conn.retire(l.ID())
	return l.Layout.Destroy()
}

type layoutManager struct {
	conn    *Conn
	manager *riverlayout.LayoutManager
}

// GetLayout creates the layout object for out and routes its events to the
// connection's handler.
func (m *layoutManager) GetLayout(out bridge.OutputHandle, namespace string) (bridge.LayoutHandle, error) {
	o, ok := out.(*output)
	if !ok {
		return nil, fmt.Errorf("output handle %T does not belong to this connection", out)
	}

	proxy, err := m.manager.GetLayout(o.Output, namespace)
	if err != nil {
		return nil, err
	}

	c := m.conn
	l := &layout{Layout: proxy, conn: c}
	l.SetNamespaceInUseHandler(func() {
		c.deliver(l.ID(), func(h bridge.Handler) error {
			return h.HandleNamespaceInUse(l)
		})
	})
	l.SetLayoutDemandHandler(func(e riverlayout.LayoutDemandEvent) {
		c.deliver(l.ID(), func(h bridge.Handler) error {
			return h.HandleLayoutDemand(l, bridge.Demand{
				ViewCount:    e.ViewCount,
				UsableWidth:  e.UsableWidth,
				UsableHeight: e.UsableHeight,
				Tags:         e.Tags,
				Serial:       e.Serial,
			})
		})
	})
	l.SetUserCommandHandler(func(command string) {
		c.deliver(l.ID(), func(h bridge.Handler) error {
			return h.HandleUserCommand(l, command)
		})
	})
	l.SetUserCommandTagsHandler(func(tags uint32) {
		c.deliver(l.ID(), func(h bridge.Handler) error {
			return h.HandleUserCommandTags(l, tags)
		})
	})

	c.log.Debug().
		Uint32("layout_id", l.ID()).
		Uint32("output_id", o.ID()).
		Str("namespace", namespace).
		Msg("Requested layout object")
	return l, nil
}

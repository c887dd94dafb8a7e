package bridge

import (
	"errors"
	"fmt"

	"github.com/bryanchriswhite/RiverLayout/pkg/layout"
)

// errDrained ends Run once a fakeConn has no queued events left.
var errDrained = errors.New("no more events")

// fakeConn is an in-memory compositor. Requests are recorded as strings in
// the order they are sent.
type fakeConn struct {
	handler  Handler
	initial  []global
	queue    []func(Handler) error
	requests []string

	outputs  map[uint32]*fakeOutput
	layouts  []*fakeLayout
	flushErr error
	closed   bool
}

func newFakeConn(globals ...global) *fakeConn {
	return &fakeConn{initial: globals, outputs: make(map[uint32]*fakeOutput)}
}

func (c *fakeConn) SetHandler(h Handler) { c.handler = h }

func (c *fakeConn) Roundtrip() error {
	for _, g := range c.initial {
		if err := c.handler.HandleGlobal(g.name, g.iface, g.version); err != nil {
			return err
		}
	}
	return nil
}

func (c *fakeConn) Flush() error { return c.flushErr }

func (c *fakeConn) Dispatch() error {
	if len(c.queue) == 0 {
		return errDrained
	}
	batch := c.queue
	c.queue = nil
	for _, ev := range batch {
		if err := ev(c.handler); err != nil {
			return err
		}
	}
	return nil
}

func (c *fakeConn) BindOutput(name, version uint32) (OutputHandle, error) {
	o := &fakeOutput{conn: c, name: name, version: version}
	c.outputs[name] = o
	c.requests = append(c.requests, fmt.Sprintf("bind wl_output %d v%d", name, version))
	return o, nil
}

func (c *fakeConn) BindLayoutManager(name, version uint32) (LayoutManagerHandle, error) {
	c.requests = append(c.requests, fmt.Sprintf("bind %s %d v%d", LayoutManagerInterface, name, version))
	return &fakeManager{conn: c}, nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

// push queues one dispatch batch.
func (c *fakeConn) push(events ...func(Handler) error) {
	c.queue = append(c.queue, events...)
}

func (c *fakeConn) drainRequests() []string {
	r := c.requests
	c.requests = nil
	return r
}

func (c *fakeConn) layoutFor(registryName uint32) *fakeLayout {
	for _, l := range c.layouts {
		if l.output.name == registryName {
			return l
		}
	}
	return nil
}

type fakeOutput struct {
	conn      *fakeConn
	name      uint32
	version   uint32
	released  bool
	forgotten bool
}

func (o *fakeOutput) Release() error {
	o.released = true
	o.conn.requests = append(o.conn.requests, fmt.Sprintf("release wl_output %d", o.name))
	return nil
}

func (o *fakeOutput) Forget() { o.forgotten = true }

type fakeManager struct {
	conn *fakeConn
}

func (m *fakeManager) GetLayout(output OutputHandle, namespace string) (LayoutHandle, error) {
	fo := output.(*fakeOutput)
	l := &fakeLayout{conn: m.conn, output: fo, namespace: namespace}
	m.conn.layouts = append(m.conn.layouts, l)
	m.conn.requests = append(m.conn.requests, fmt.Sprintf("get_layout %d %s", fo.name, namespace))
	return l, nil
}

type fakeLayout struct {
	conn      *fakeConn
	output    *fakeOutput
	namespace string
	destroyed bool
}

func (l *fakeLayout) PushViewDimensions(x, y int32, width, height, serial uint32) error {
	l.conn.requests = append(l.conn.requests, fmt.Sprintf("push %d %d %d %d serial=%d", x, y, width, height, serial))
	return nil
}

func (l *fakeLayout) Commit(layoutName string, serial uint32) error {
	l.conn.requests = append(l.conn.requests, fmt.Sprintf("commit %s serial=%d", layoutName, serial))
	return nil
}

func (l *fakeLayout) Destroy() error {
	l.destroyed = true
	l.conn.requests = append(l.conn.requests, fmt.Sprintf("destroy layout %d", l.output.name))
	return nil
}

// Event constructors for fakeConn.push.

func globalAdded(name uint32, iface string, version uint32) func(Handler) error {
	return func(h Handler) error { return h.HandleGlobal(name, iface, version) }
}

func globalRemoved(name uint32) func(Handler) error {
	return func(h Handler) error { return h.HandleGlobalRemove(name) }
}

func (c *fakeConn) outputNamed(registryName uint32, name string) func(Handler) error {
	return func(h Handler) error { return h.HandleOutputName(c.outputs[registryName], name) }
}

func (c *fakeConn) namespaceInUse(registryName uint32) func(Handler) error {
	return func(h Handler) error { return h.HandleNamespaceInUse(c.layoutFor(registryName)) }
}

func (c *fakeConn) userCommandTags(registryName, tags uint32) func(Handler) error {
	return func(h Handler) error { return h.HandleUserCommandTags(c.layoutFor(registryName), tags) }
}

func (c *fakeConn) userCommand(registryName uint32, cmd string) func(Handler) error {
	return func(h Handler) error { return h.HandleUserCommand(c.layoutFor(registryName), cmd) }
}

func (c *fakeConn) layoutDemand(registryName uint32, d Demand) func(Handler) error {
	return func(h Handler) error { return h.HandleLayoutDemand(c.layoutFor(registryName), d) }
}

// fakeGenerator records its calls and answers from function fields.
type fakeGenerator struct {
	generate func(n, w, h, tags uint32, output string) (*layout.GeneratedLayout, error)
	command  func(cmd string, tags *uint32, output string) error

	commands []recordedCommand
	demands  []string
}

type recordedCommand struct {
	Command string
	Tags    *uint32
	Output  string
}

func (g *fakeGenerator) GenerateLayout(n, w, h, tags uint32, output string) (*layout.GeneratedLayout, error) {
	g.demands = append(g.demands, output)
	if g.generate != nil {
		return g.generate(n, w, h, tags, output)
	}
	views := make([]layout.Rectangle, n)
	for i := range views {
		views[i] = layout.Rectangle{X: int32(i), Y: 0, Width: w, Height: h}
	}
	return &layout.GeneratedLayout{Name: "fake", Views: views}, nil
}

func (g *fakeGenerator) UserCommand(cmd string, tags *uint32, output string) error {
	g.commands = append(g.commands, recordedCommand{Command: cmd, Tags: tags, Output: output})
	if g.command != nil {
		return g.command(cmd, tags, output)
	}
	return nil
}

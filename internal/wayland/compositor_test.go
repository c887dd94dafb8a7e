package wayland

import (
	"errors"
	"fmt"
	"io"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/bryanchriswhite/RiverLayout/internal/bridge"
	"github.com/bryanchriswhite/RiverLayout/internal/tiler"
	"github.com/google/go-cmp/cmp"
	"github.com/rajveermalviya/go-wayland/wayland/client"
)

// Object ids and opcodes the fake compositor speaks.
const (
	displayID = 1

	displaySync        = 0
	displayGetRegistry = 1
	displayError       = 0

	registryBind         = 0
	registryGlobal       = 0
	registryGlobalRemove = 1

	callbackDone = 0

	outputRelease = 0
	outputName    = 4

	managerDestroy   = 0
	managerGetLayout = 1

	layoutDestroy            = 0
	layoutPushViewDimensions = 1
	layoutCommit             = 2
	layoutNamespaceInUse     = 0
	layoutDemand             = 1
)

// encodeMsg builds one wire message. Arguments may be uint32, int32 or
// string.
func encodeMsg(object, opcode uint32, args ...interface{}) []byte {
	var body []byte
	word := func(v uint32) {
		var b [4]byte
		client.PutUint32(b[:], v)
		body = append(body, b[:]...)
	}
	for _, a := range args {
		switch v := a.(type) {
		case uint32:
			word(v)
		case int32:
			word(uint32(v))
		case string:
			word(uint32(len(v) + 1))
			body = append(body, v...)
			body = append(body, make([]byte, (len(v)+1+3)&^3-len(v))...)
		default:
			panic(fmt.Sprintf("unsupported argument %T", a))
		}
	}
	msg := make([]byte, 8, 8+len(body))
	client.PutUint32(msg[0:4], object)
	client.PutUint32(msg[4:8], uint32(8+len(body))<<16|opcode)
	return append(msg, body...)
}

type wireMsg struct {
	object uint32
	opcode uint32
	raw    []byte
	// args is the unread part of the body.
	args []byte
}

func (m *wireMsg) word() uint32 {
	v := client.Uint32(m.args[0:4])
	m.args = m.args[4:]
	return v
}

func (m *wireMsg) text() string {
	n := int(m.word())
	s := string(m.args[:n-1])
	m.args = m.args[(n+3)&^3:]
	return s
}

type fakeCompositor struct {
	t    *testing.T
	conn net.Conn
}

// listenCompositor serves a single client on a socket in a temporary
// directory.
func listenCompositor(t *testing.T) (string, <-chan *fakeCompositor) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wayland-test")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	ch := make(chan *fakeCompositor, 1)
	go func() {
		defer close(ch)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.SetDeadline(time.Now().Add(5 * time.Second))
		ch <- &fakeCompositor{t: t, conn: conn}
	}()
	return path, ch
}

// connect dials the fake compositor and returns both ends.
func connect(t *testing.T) (*Conn, *fakeCompositor) {
	t.Helper()
	path, ch := listenCompositor(t)
	c, err := Connect(path)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { c.Close() })

	comp, ok := <-ch
	if !ok {
		t.Fatal("compositor never accepted the client")
	}
	t.Cleanup(func() { comp.conn.Close() })
	return c, comp
}

func (f *fakeCompositor) read() wireMsg {
	f.t.Helper()
	var header [8]byte
	if _, err := io.ReadFull(f.conn, header[:]); err != nil {
		f.t.Fatalf("reading request header: %v", err)
	}
	word := client.Uint32(header[4:8])
	body := make([]byte, int(word>>16)-8)
	if _, err := io.ReadFull(f.conn, body); err != nil {
		f.t.Fatalf("reading request body: %v", err)
	}
	return wireMsg{
		object: client.Uint32(header[0:4]),
		opcode: word & 0xffff,
		raw:    append(header[:], body...),
		args:   body,
	}
}

func (f *fakeCompositor) expect(object, opcode uint32) wireMsg {
	f.t.Helper()
	m := f.read()
	if m.object != object || m.opcode != opcode {
		f.t.Fatalf("got request %d.%d, want %d.%d", m.object, m.opcode, object, opcode)
	}
	return m
}

func (f *fakeCompositor) expectRaw(want []byte) {
	f.t.Helper()
	m := f.read()
	if diff := cmp.Diff(want, m.raw); diff != "" {
		f.t.Errorf("request bytes mismatch (-want +got):\n%s", diff)
	}
}

func (f *fakeCompositor) send(object, opcode uint32, args ...interface{}) {
	f.t.Helper()
	if _, err := f.conn.Write(encodeMsg(object, opcode, args...)); err != nil {
		f.t.Fatalf("sending event %d.%d: %v", object, opcode, err)
	}
}

// rest reads everything the client sends until it closes the socket.
func (f *fakeCompositor) rest() []byte {
	f.t.Helper()
	b, err := io.ReadAll(f.conn)
	if err != nil {
		f.t.Fatalf("reading until close: %v", err)
	}
	return b
}

type advertised struct {
	name    uint32
	iface   string
	version uint32
}

// handshake answers get_registry and the first sync with globals and
// returns the registry id.
func (f *fakeCompositor) handshake(globals ...advertised) uint32 {
	f.t.Helper()
	getRegistry := f.expect(displayID, displayGetRegistry)
	registry := getRegistry.word()
	sync := f.expect(displayID, displaySync)
	callback := sync.word()

	for _, g := range globals {
		f.send(registry, registryGlobal, g.name, g.iface, g.version)
	}
	f.send(callback, callbackDone, uint32(0))
	return registry
}

// expectBind reads a wl_registry.bind and returns the new object id.
func (f *fakeCompositor) expectBind(registry uint32, g advertised) uint32 {
	f.t.Helper()
	m := f.expect(registry, registryBind)
	name, iface, version := m.word(), m.text(), m.word()
	id := m.word()
	if name != g.name || iface != g.iface || version != g.version {
		f.t.Fatalf("bind(%d, %q, v%d), want bind(%d, %q, v%d)", name, iface, version, g.name, g.iface, g.version)
	}
	return id
}

func waitRun(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not stop")
		return nil
	}
}

var (
	riverManager = advertised{name: 1, iface: bridge.LayoutManagerInterface, version: 2}
	edp          = advertised{name: 2, iface: bridge.OutputInterface, version: 4}
)

// session runs a bridge over c up to an open layout object for edp.
func session(t *testing.T, c *Conn, comp *fakeCompositor) (errc chan error, registry, manager, output, layoutID uint32) {
	t.Helper()
	b := bridge.New(c, tiler.New(tiler.Tile, tiler.DefaultMainRatio), "riverlayout")
	errc = make(chan error, 1)
	go func() { errc <- b.Run() }()

	registry = comp.handshake(riverManager, edp)
	manager = comp.expectBind(registry, riverManager)
	output = comp.expectBind(registry, edp)

	comp.send(output, outputName, "eDP-1")
	getLayout := comp.expect(manager, managerGetLayout)
	layoutID = client.Uint32(getLayout.args[0:4])
	if diff := cmp.Diff(encodeMsg(manager, managerGetLayout, layoutID, output, "riverlayout"), getLayout.raw); diff != "" {
		t.Errorf("get_layout bytes mismatch (-want +got):\n%s", diff)
	}
	return errc, registry, manager, output, layoutID
}

func TestConnLayoutDemandRoundTrip(t *testing.T) {
	c, comp := connect(t)
	errc, registry, _, output, layoutID := session(t, c, comp)

	comp.send(layoutID, layoutDemand, uint32(1), uint32(1920), uint32(1080), uint32(1), uint32(7))
	comp.expectRaw(encodeMsg(layoutID, layoutPushViewDimensions, int32(0), int32(0), uint32(1920), uint32(1080), uint32(7)))
	comp.expectRaw(encodeMsg(layoutID, layoutCommit, "[]=", uint32(7)))

	// The output goes away while events for it and its layout object are
	// still on the wire.
	comp.send(registry, registryGlobalRemove, edp.name)
	comp.send(layoutID, layoutDemand, uint32(2), uint32(1920), uint32(1080), uint32(1), uint32(8))
	comp.send(output, outputName, "eDP-1")
	comp.expectRaw(encodeMsg(layoutID, layoutDestroy))
	comp.expectRaw(encodeMsg(output, outputRelease))

	comp.send(displayID, displayError, uint32(displayID), uint32(3), "test shutdown")
	err := waitRun(t, errc)

	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("Run() error = %v, want *ProtocolError", err)
	}
	if protoErr.Code != 3 || protoErr.Message != "test shutdown" {
		t.Errorf("protocol error = %+v", protoErr)
	}

	c.Close()
	if rest := comp.rest(); len(rest) != 0 {
		t.Errorf("client sent %d more bytes after the output was removed", len(rest))
	}
}

func TestConnOldOutputForgotten(t *testing.T) {
	c, comp := connect(t)
	old := advertised{name: 2, iface: bridge.OutputInterface, version: 2}

	b := bridge.New(c, tiler.New(tiler.Tile, tiler.DefaultMainRatio), "riverlayout")
	errc := make(chan error, 1)
	go func() { errc <- b.Run() }()

	registry := comp.handshake(riverManager, old)
	comp.expectBind(registry, riverManager)
	output := comp.expectBind(registry, old)

	comp.send(registry, registryGlobalRemove, old.name)
	comp.send(output, outputName, "DP-1")
	comp.send(displayID, displayError, uint32(displayID), uint32(1), "done")

	var protoErr *ProtocolError
	if err := waitRun(t, errc); !errors.As(err, &protoErr) {
		t.Fatalf("Run() error = %v, want *ProtocolError", err)
	}
	c.Close()
	if rest := comp.rest(); len(rest) != 0 {
		t.Errorf("client sent %x for an output without release", rest)
	}
}

func TestConnNamespaceInUse(t *testing.T) {
	c, comp := connect(t)
	errc, _, _, _, layoutID := session(t, c, comp)

	comp.send(layoutID, layoutNamespaceInUse)

	var inUse *bridge.NamespaceInUseError
	if err := waitRun(t, errc); !errors.As(err, &inUse) {
		t.Fatalf("Run() error = %v, want *NamespaceInUseError", err)
	}
	if inUse.Namespace != "riverlayout" {
		t.Errorf("namespace = %q", inUse.Namespace)
	}
}

func TestConnNoLayoutManager(t *testing.T) {
	c, comp := connect(t)
	b := bridge.New(c, tiler.New(tiler.Tile, tiler.DefaultMainRatio), "riverlayout")
	errc := make(chan error, 1)
	go func() { errc <- b.Run() }()

	comp.handshake(edp)
	if err := waitRun(t, errc); !errors.Is(err, bridge.ErrNoLayoutManager) {
		t.Fatalf("Run() error = %v, want ErrNoLayoutManager", err)
	}

	c.Close()
	if rest := comp.rest(); len(rest) != 0 {
		t.Errorf("client bound globals without a layout manager: %x", rest)
	}
}

func TestConnCloseDestroysLayoutManager(t *testing.T) {
	c, comp := connect(t)
	b := bridge.New(c, tiler.New(tiler.Tile, tiler.DefaultMainRatio), "riverlayout")
	errc := make(chan error, 1)
	go func() { errc <- b.Start() }()

	registry := comp.handshake(riverManager)
	manager := comp.expectBind(registry, riverManager)
	if err := waitRun(t, errc); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	comp.expectRaw(encodeMsg(manager, managerDestroy))
	if rest := comp.rest(); len(rest) != 0 {
		t.Errorf("unexpected bytes after destroy: %x", rest)
	}
}

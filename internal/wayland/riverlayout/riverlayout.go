// Package riverlayout implements the client side of river's
// river-layout-v3 protocol on top of go-wayland's proxy model.
package riverlayout

import (
	"errors"
	"strings"

	"github.com/rajveermalviya/go-wayland/wayland/client"
)

// ErrNulInString is returned for string arguments the wire format cannot
// carry.
var ErrNulInString = errors.New("string argument contains a NUL byte")

// LayoutManager is river_layout_manager_v3. It has no events.
type LayoutManager struct {
	client.BaseProxy
}

// NewLayoutManager registers a new, unbound layout manager proxy.
func NewLayoutManager(ctx *client.Context) *LayoutManager {
	m := &LayoutManager{}
	ctx.Register(m)
	return m
}

// Destroy tells the compositor the manager is no longer used. Existing
// layout objects stay valid.
func (m *LayoutManager) Destroy() error {
	defer m.Context().Unregister(m)
	var buf [8]byte
	putHeader(buf[:], m.ID(), 0, len(buf))
	return m.Context().WriteMsg(buf[:], nil)
}

// GetLayout creates the layout object for output under namespace.
func (m *LayoutManager) GetLayout(output *client.Output, namespace string) (*Layout, error) {
	if strings.IndexByte(namespace, 0) >= 0 {
		return nil, ErrNulInString
	}

	l := NewLayout(m.Context())
	size := 8 + 4 + 4 + stringSize(namespace)
	buf := make([]byte, size)
	putHeader(buf, m.ID(), 1, size)
	client.PutUint32(buf[8:12], l.ID())
	client.PutUint32(buf[12:16], output.ID())
	putString(buf[16:], namespace)

	if err := m.Context().WriteMsg(buf, nil); err != nil {
		m.Context().Unregister(l)
		return nil, err
	}
	return l, nil
}

// LayoutDemandEvent asks for the dimensions of ViewCount views.
type LayoutDemandEvent struct {
	ViewCount    uint32
	UsableWidth  uint32
	UsableHeight uint32
	Tags         uint32
	Serial       uint32
}

type (
	NamespaceInUseHandlerFunc  func()
	LayoutDemandHandlerFunc    func(LayoutDemandEvent)
	UserCommandHandlerFunc     func(command string)
	UserCommandTagsHandlerFunc func(tags uint32)
)

// Layout is river_layout_v3, one per output and namespace.
type Layout struct {
	client.BaseProxy
	namespaceInUseHandler  NamespaceInUseHandlerFunc
	layoutDemandHandler    LayoutDemandHandlerFunc
	userCommandHandler     UserCommandHandlerFunc
	userCommandTagsHandler UserCommandTagsHandlerFunc
}

// NewLayout registers a new layout proxy. Use LayoutManager.GetLayout.
func NewLayout(ctx *client.Context) *Layout {
	l := &Layout{}
	ctx.Register(l)
	return l
}

func (l *Layout) SetNamespaceInUseHandler(f NamespaceInUseHandlerFunc) {
	l.namespaceInUseHandler = f
}

func (l *Layout) SetLayoutDemandHandler(f LayoutDemandHandlerFunc) {
	l.layoutDemandHandler = f
}

func (l *Layout) SetUserCommandHandler(f UserCommandHandlerFunc) {
	l.userCommandHandler = f
}

func (l *Layout) SetUserCommandTagsHandler(f UserCommandTagsHandlerFunc) {
	l.userCommandTagsHandler = f
}

// Destroy destroys the layout object. The proxy stays registered with the
// context: the compositor may have sent events before it read the request,
// and those still need a receiver.
func (l *Layout) Destroy() error {
	l.namespaceInUseHandler = nil
	l.layoutDemandHandler = nil
	l.userCommandHandler = nil
	l.userCommandTagsHandler = nil
	var buf [8]byte
	putHeader(buf[:], l.ID(), 0, len(buf))
	return l.Context().WriteMsg(buf[:], nil)
}

// PushViewDimensions proposes the position and size of the next view for
// the demand identified by serial.
func (l *Layout) PushViewDimensions(x, y int32, width, height, serial uint32) error {
	var buf [28]byte
	putHeader(buf[:], l.ID(), 1, len(buf))
	client.PutUint32(buf[8:12], uint32(x))
	client.PutUint32(buf[12:16], uint32(y))
	client.PutUint32(buf[16:20], width)
	client.PutUint32(buf[20:24], height)
	client.PutUint32(buf[24:28], serial)
	return l.Context().WriteMsg(buf[:], nil)
}

// Commit ends the response to the demand identified by serial.
func (l *Layout) Commit(layoutName string, serial uint32) error {
	if strings.IndexByte(layoutName, 0) >= 0 {
		return ErrNulInString
	}
	size := 8 + stringSize(layoutName) + 4
	buf := make([]byte, size)
	putHeader(buf, l.ID(), 2, size)
	n := putString(buf[8:], layoutName)
	client.PutUint32(buf[8+n:12+n], serial)
	return l.Context().WriteMsg(buf, nil)
}

// Dispatch decodes an event and calls its handler.
func (l *Layout) Dispatch(opcode uint32, fd int, data []byte) {
	switch opcode {
	case 0:
		if l.namespaceInUseHandler != nil {
			l.namespaceInUseHandler()
		}
	case 1:
		if l.layoutDemandHandler == nil || len(data) < 20 {
			return
		}
		l.layoutDemandHandler(LayoutDemandEvent{
			ViewCount:    client.Uint32(data[0:4]),
			UsableWidth:  client.Uint32(data[4:8]),
			UsableHeight: client.Uint32(data[8:12]),
			Tags:         client.Uint32(data[12:16]),
			Serial:       client.Uint32(data[16:20]),
		})
	case 2:
		if l.userCommandHandler == nil {
			return
		}
		command, _ := readString(data)
		l.userCommandHandler(command)
	case 3:
		if l.userCommandTagsHandler == nil || len(data) < 4 {
			return
		}
		l.userCommandTagsHandler(client.Uint32(data[0:4]))
	}
}

// putHeader writes the object id and the size/opcode word.
func putHeader(buf []byte, id, opcode uint32, size int) {
	client.PutUint32(buf[0:4], id)
	client.PutUint32(buf[4:8], uint32(size)<<16|opcode&0xffff)
}

// stringSize is the encoded size of s: length word, bytes, NUL, padding.
func stringSize(s string) int {
	return 4 + padded(len(s)+1)
}

// putString encodes s and returns the number of bytes written.
func putString(buf []byte, s string) int {
	client.PutUint32(buf[0:4], uint32(len(s)+1))
	copy(buf[4:], s)
	n := stringSize(s)
	for i := 4 + len(s); i < n; i++ {
		buf[i] = 0
	}
	return n
}

// readString decodes a string argument and returns it with the number of
// bytes consumed.
func readString(data []byte) (string, int) {
	if len(data) < 4 {
		return "", len(data)
	}
	l := int(client.Uint32(data[0:4]))
	n := 4 + padded(l)
	if l == 0 || len(data) < 4+l {
		return "", min(n, len(data))
	}
	return string(data[4 : 4+l-1]), n
}

func padded(n int) int {
	return (n + 3) &^ 3
}

package bridge

// Interface names of the globals the bridge cares about.
const (
	OutputInterface        = "wl_output"
	LayoutManagerInterface = "river_layout_manager_v3"
)

const (
	// maxOutputVersion is the highest wl_output version the bridge speaks.
	maxOutputVersion = 4
	// outputNameSince is the wl_output version that introduced the name event.
	outputNameSince = 4
	// outputReleaseSince is the wl_output version that introduced release.
	outputReleaseSince = 3

	maxLayoutManagerVersion = 2
)

// Conn is the compositor connection the bridge is driven over.
//
// Implementations deliver events by calling the Handler registered with
// SetHandler, from within Roundtrip and Dispatch only. The first error a
// Handler returns must be returned by the Roundtrip or Dispatch call that
// delivered it.
type Conn interface {
	SetHandler(h Handler)

	// Roundtrip blocks until every request sent so far has been processed
	// by the compositor and all resulting events have been dispatched.
	Roundtrip() error

	// Flush blocks until all queued requests have been written.
	Flush() error

	// Dispatch blocks until events are available and dispatches them.
	Dispatch() error

	BindOutput(name, version uint32) (OutputHandle, error)
	BindLayoutManager(name, version uint32) (LayoutManagerHandle, error)

	Close() error
}

// OutputHandle is a bound wl_output.
type OutputHandle interface {
	// Release sends wl_output.release. Only valid for version 3 and up.
	Release() error
	// Forget drops the handle without telling the compositor.
	Forget()
}

// LayoutManagerHandle is the bound river_layout_manager_v3 global.
type LayoutManagerHandle interface {
	GetLayout(output OutputHandle, namespace string) (LayoutHandle, error)
}

// LayoutHandle is a river_layout_v3 object, one per output.
type LayoutHandle interface {
	PushViewDimensions(x, y int32, width, height, serial uint32) error
	Commit(layoutName string, serial uint32) error
	Destroy() error
}

// Demand carries the arguments of a layout_demand event.
type Demand struct {
	ViewCount    uint32
	UsableWidth  uint32
	UsableHeight uint32
	Tags         uint32
	Serial       uint32
}

// Handler receives the protocol events the bridge reacts to.
type Handler interface {
	HandleGlobal(name uint32, iface string, version uint32) error
	HandleGlobalRemove(name uint32) error
	HandleOutputName(output OutputHandle, name string) error
	HandleNamespaceInUse(layout LayoutHandle) error
	HandleUserCommandTags(layout LayoutHandle, tags uint32) error
	HandleUserCommand(layout LayoutHandle, command string) error
	HandleLayoutDemand(layout LayoutHandle, demand Demand) error
}

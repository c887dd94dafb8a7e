package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrConnect is returned when the compositor cannot be reached.
	ErrConnect = errors.New("wayland connect failed")

	// ErrNoLayoutManager is returned when the compositor does not advertise
	// a compatible river_layout_manager_v3.
	ErrNoLayoutManager = errors.New("compositor does not support river_layout_manager_v3")

	// ErrInvalidGeneratedLayout is matched by *InvalidLayoutError and
	// ErrNilLayout.
	ErrInvalidGeneratedLayout = errors.New("invalid generated layout")

	// ErrNilLayout is returned when a generator answers a demand with
	// neither a layout nor an error.
	ErrNilLayout = fmt.Errorf("%w: generator returned a nil layout", ErrInvalidGeneratedLayout)

	// ErrInconsistent marks events that contradict the bridge's view of the
	// compositor state. These indicate a bug, not a user error.
	ErrInconsistent = errors.New("internal consistency violation")
)

// NamespaceInUseError is returned when another layout generator already
// owns the namespace on some output.
type NamespaceInUseError struct {
	Namespace string
}

func (e *NamespaceInUseError) Error() string {
	return fmt.Sprintf("namespace '%s' is in use", e.Namespace)
}

// InvalidLayoutError is returned when a generator answers a demand with the
// wrong number of views.
type InvalidLayoutError struct {
	Want int
	Got  int
}

func (e *InvalidLayoutError) Error() string {
	return fmt.Sprintf("%s: demanded %d views, generated %d", ErrInvalidGeneratedLayout, e.Want, e.Got)
}

func (e *InvalidLayoutError) Is(target error) bool {
	return target == ErrInvalidGeneratedLayout
}

// LayoutError wraps an error returned by Generator.GenerateLayout.
type LayoutError struct {
	Err error
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("layout error: %v", e.Err)
}

func (e *LayoutError) Unwrap() error {
	return e.Err
}

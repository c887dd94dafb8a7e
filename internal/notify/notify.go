// Package notify posts desktop notifications over the D-Bus session bus.
package notify

import (
	"fmt"

	"github.com/bryanchriswhite/RiverLayout/internal/logger"
	"github.com/godbus/dbus/v5"
)

// org.freedesktop.Notifications D-Bus constants
const (
	notificationsService   = "org.freedesktop.Notifications"
	notificationsPath      = "/org/freedesktop/Notifications"
	notificationsInterface = "org.freedesktop.Notifications"

	urgencyCritical = byte(2)
)

// Caller is the subset of dbus.BusObject the notifier needs.
type Caller interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// Notifier sends notifications on behalf of appName.
type Notifier struct {
	appName string
	obj     Caller
	conn    *dbus.Conn
}

// New connects to the session bus.
func New(appName string) (*Notifier, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Notifier{
		appName: appName,
		obj:     conn.Object(notificationsService, dbus.ObjectPath(notificationsPath)),
		conn:    conn,
	}, nil
}

// NewWithCaller builds a Notifier on an existing bus object.
func NewWithCaller(appName string, obj Caller) *Notifier {
	return &Notifier{appName: appName, obj: obj}
}

// Notify shows a notification and returns its id.
func (n *Notifier) Notify(summary, body string, critical bool) (uint32, error) {
	hints := map[string]dbus.Variant{}
	if critical {
		hints["urgency"] = dbus.MakeVariant(urgencyCritical)
	}

	var id uint32
	call := n.obj.Call(notificationsInterface+".Notify", 0,
		n.appName,  // app_name
		uint32(0),  // replaces_id
		"",         // app_icon
		summary,    // summary
		body,       // body
		[]string{}, // actions
		hints,      // hints
		int32(-1),  // expire_timeout: server default
	)
	if call.Err != nil {
		return 0, fmt.Errorf("notify failed: %w", call.Err)
	}
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("failed to read notification id: %w", err)
	}
	return id, nil
}

// Close closes the bus connection if the notifier owns one.
func (n *Notifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}

// ExitCause notifies that the layout generator stopped because of cause.
// Failures are logged only.
func ExitCause(appName, namespace string, cause error) {
	log := logger.WithComponent("notify")

	n, err := New(appName)
	if err != nil {
		log.Warn().Err(err).Msg("Cannot send exit notification")
		return
	}
	defer n.Close()

	if _, err := n.Notify(
		fmt.Sprintf("Layout generator %q stopped", namespace),
		cause.Error(),
		true,
	); err != nil {
		log.Warn().Err(err).Msg("Cannot send exit notification")
	}
}

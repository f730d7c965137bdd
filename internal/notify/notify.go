// Package notify posts desktop notifications for milestone alerts over the
// D-Bus session bus. A machine without a session bus (headless daemon,
// container) degrades to log lines; notifications are decoration, never a
// failure surface.
package notify

import (
	"fmt"
	"log"

	"github.com/godbus/dbus/v5"
)

const (
	busName    = "org.freedesktop.Notifications"
	objectPath = "/org/freedesktop/Notifications"
	method     = "org.freedesktop.Notifications.Notify"
	appName    = "steptrack"
)

type Notifier interface {
	Notify(summary, body string) error
}

// DBus delivers notifications through org.freedesktop.Notifications.
type DBus struct {
	conn *dbus.Conn
}

// NewDBus connects to the session bus.
func NewDBus() (*DBus, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("session bus: %w", err)
	}
	return &DBus{conn: conn}, nil
}

func (d *DBus) Notify(summary, body string) error {
	obj := d.conn.Object(busName, dbus.ObjectPath(objectPath))
	call := obj.Call(method, 0,
		appName,
		uint32(0), // not replacing an earlier notification
		"",        // no icon
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{},
		int32(-1), // server-default expiry
	)
	if call.Err != nil {
		return fmt.Errorf("notify: %w", call.Err)
	}
	return nil
}

// Log is the fallback Notifier.
type Log struct{}

func (Log) Notify(summary, body string) error {
	log.Printf("Notification: %s: %s", summary, body)
	return nil
}

// Milestone formats the alert text shown when a step threshold is crossed.
func Milestone(threshold int) (summary, body string) {
	summary = fmt.Sprintf("%d steps", threshold)
	body = fmt.Sprintf("You just passed %d steps this session. Keep going!", threshold)
	return summary, body
}

package fprintd

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/godbus/dbus/v5"
)

const (
	service         = "net.reactivated.Fprint"
	managerPath     = "/net/reactivated/Fprint/Manager"
	managerIface    = "net.reactivated.Fprint.Manager"
	deviceIface     = "net.reactivated.Fprint.Device"
	propName        = deviceIface + ".name"
	propScanType    = deviceIface + ".scan-type"
	propEnrollStage = deviceIface + ".num-enroll-stages"
)

// ErrUnavailable reports that fprintd is not reachable on the system bus.
var ErrUnavailable = errors.New("fprintd unavailable")

// Reader is one fingerprint reader registered with fprintd.
type Reader struct {
	Path         string
	Name         string
	ScanType     string
	EnrollStages int32
	Default      bool
}

// object is the subset of dbus.BusObject the client calls.
type object interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call
	GetProperty(p string) (dbus.Variant, error)
}

// Client lists readers through fprintd.
type Client struct {
	object func(path dbus.ObjectPath) object
}

// Connect opens the system bus.
func Connect() (*Client, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("%w: connect system bus: %v", ErrUnavailable, err)
	}
	return &Client{object: func(path dbus.ObjectPath) object {
		return conn.Object(service, path)
	}}, nil
}

// Readers returns every reader fprintd knows about, sorted by object path.
func (c *Client) Readers(ctx context.Context) ([]Reader, error) {
	manager := c.object(dbus.ObjectPath(managerPath))

	var paths []dbus.ObjectPath
	if err := manager.CallWithContext(ctx, managerIface+".GetDevices", 0).Store(&paths); err != nil {
		return nil, fmt.Errorf("%w: list devices: %v", ErrUnavailable, err)
	}

	var defaultPath dbus.ObjectPath
	if err := manager.CallWithContext(ctx, managerIface+".GetDefaultDevice", 0).Store(&defaultPath); err != nil {
		defaultPath = ""
	}

	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })
	readers := make([]Reader, 0, len(paths))
	for _, path := range paths {
		if path == "" || path == "/" {
			continue
		}
		dev := c.object(path)
		reader := Reader{Path: string(path), Default: path == defaultPath}
		if v, err := dev.GetProperty(propName); err == nil {
			reader.Name, _ = v.Value().(string)
		}
		if v, err := dev.GetProperty(propScanType); err == nil {
			reader.ScanType, _ = v.Value().(string)
		}
		if v, err := dev.GetProperty(propEnrollStage); err == nil {
			reader.EnrollStages, _ = v.Value().(int32)
		}
		readers = append(readers, reader)
	}
	return readers, nil
}

// EnrolledFingers lists the fingers username has enrolled on the reader at path.
func (c *Client) EnrolledFingers(ctx context.Context, path, username string) ([]string, error) {
	var fingers []string
	err := c.object(dbus.ObjectPath(path)).
		CallWithContext(ctx, deviceIface+".ListEnrolledFingers", 0, username).
		Store(&fingers)
	if err != nil {
		return nil, fmt.Errorf("list enrolled fingers: %w", err)
	}
	return fingers, nil
}

package hotplug

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"scanmatch/internal/config"
	"scanmatch/internal/logging"
)

// Event is a USB scanner attach or detach.
type Event struct {
	Action    string
	VendorID  string
	ProductID string
	DevPath   string
}

// Monitor listens for udev netlink events for USB devices and reports the
// ones whose vendor ID is configured.
type Monitor struct {
	logger  *slog.Logger
	vendors map[string]struct{}
	handler func(Event)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

// New returns a monitor, or nil when hotplug is disabled in cfg.
func New(cfg *config.Config, logger *slog.Logger, handler func(Event)) *Monitor {
	if cfg == nil || !cfg.Scanner.Hotplug {
		return nil
	}
	vendors := make(map[string]struct{}, len(cfg.Scanner.USBVendorIDs))
	for _, id := range cfg.Scanner.USBVendorIDs {
		vendors[normalizeID(id)] = struct{}{}
	}
	return &Monitor{
		logger:  logging.NewComponentLogger(logger, "hotplug-monitor"),
		vendors: vendors,
		handler: handler,
	}
}

// Start begins listening for udev netlink events. Failure to connect is
// logged and not fatal; refresh still works on demand.
func (m *Monitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; scanner hotplug disabled",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "device list refreshes only on request"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, conn, quit)

	m.logger.Info("hotplug monitor started",
		logging.String(logging.FieldEventType, "hotplug_monitor_started"),
		logging.Int("vendor_filters", len(m.vendors)),
	)
	return nil
}

// Stop shuts down the monitor.
func (m *Monitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("hotplug monitor stopped",
		logging.String(logging.FieldEventType, "hotplug_monitor_stopped"),
	)
}

// Running reports whether the monitor is active.
func (m *Monitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Monitor) monitorLoop(ctx context.Context, conn *netlink.UEventConn, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)
	monitorQuit := conn.Monitor(queue, errs, buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"),
				logging.String(logging.FieldErrorHint, "check kernel netlink subsystem"),
				logging.String(logging.FieldImpact, "scanner attach events may be missed"),
			)
		}
	}
}

// buildMatcher matches SUBSYSTEM=usb, DEVTYPE=usb_device, ACTION=add|remove.
func buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "usb",
			"DEVTYPE":   "usb_device",
		},
	})
	return rules
}

func (m *Monitor) handleEvent(uevent netlink.UEvent) {
	evt, ok := parseEvent(uevent)
	if !ok {
		m.logger.Debug("ignoring usb event without product id",
			logging.String("action", string(uevent.Action)),
			logging.String("kobj", uevent.KObj),
		)
		return
	}
	if !m.accepts(evt.VendorID) {
		m.logger.Debug("ignoring usb event for unlisted vendor",
			logging.String("vendor_id", evt.VendorID),
		)
		return
	}

	m.logger.Info("scanner usb event",
		logging.String(logging.FieldEventType, "hotplug_"+evt.Action),
		logging.String("vendor_id", evt.VendorID),
		logging.String("product_id", evt.ProductID),
		logging.String("devpath", evt.DevPath),
	)
	if m.handler != nil {
		m.handler(evt)
	}
}

func (m *Monitor) accepts(vendor string) bool {
	if len(m.vendors) == 0 {
		return true
	}
	_, ok := m.vendors[vendor]
	return ok
}

// parseEvent reads PRODUCT=<vendor>/<product>/<bcd> from a usb uevent.
func parseEvent(uevent netlink.UEvent) (Event, bool) {
	parts := strings.Split(uevent.Env["PRODUCT"], "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Event{}, false
	}
	return Event{
		Action:    string(uevent.Action),
		VendorID:  normalizeID(parts[0]),
		ProductID: normalizeID(parts[1]),
		DevPath:   uevent.Env["DEVPATH"],
	}, true
}

// normalizeID pads a hex ID to four lowercase digits; the kernel omits
// leading zeros in PRODUCT.
func normalizeID(id string) string {
	id = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(id), "0x"))
	for len(id) < 4 {
		id = "0" + id
	}
	return id
}

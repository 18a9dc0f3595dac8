package hotplug

import (
	"context"
	"testing"

	"github.com/pilebones/go-udev/netlink"

	"scanmatch/internal/config"
	"scanmatch/internal/logging"
)

func hotplugConfig(vendors ...string) *config.Config {
	cfg := config.Default()
	cfg.Scanner.Hotplug = true
	cfg.Scanner.USBVendorIDs = vendors
	return &cfg
}

func TestNewMonitor(t *testing.T) {
	t.Run("nil config returns nil", func(t *testing.T) {
		if m := New(nil, nil, nil); m != nil {
			t.Error("expected nil monitor for nil config")
		}
	})

	t.Run("hotplug disabled returns nil", func(t *testing.T) {
		cfg := config.Default()
		if m := New(&cfg, nil, nil); m != nil {
			t.Error("expected nil monitor when hotplug is off")
		}
	})

	t.Run("enabled config creates monitor", func(t *testing.T) {
		m := New(hotplugConfig("ABCD"), nil, nil)
		if m == nil {
			t.Fatal("expected non-nil monitor")
		}
		if _, ok := m.vendors["abcd"]; !ok {
			t.Errorf("expected normalized vendor filter, got %v", m.vendors)
		}
	})
}

func TestNilMonitorIsSafe(t *testing.T) {
	var m *Monitor
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start on nil monitor should return nil, got: %v", err)
	}
	m.Stop()
	if m.Running() {
		t.Error("expected Running() to return false for nil monitor")
	}
}

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		ok      bool
		vendor  string
		product string
	}{
		{"full product", map[string]string{"PRODUCT": "abcd/1005/100", "DEVPATH": "/devices/usb1/1-1"}, true, "abcd", "1005"},
		{"short ids padded", map[string]string{"PRODUCT": "5ac/12a8/0"}, true, "05ac", "12a8"},
		{"missing product", map[string]string{"DEVPATH": "/devices/usb1"}, false, "", ""},
		{"empty vendor", map[string]string{"PRODUCT": "/1005/100"}, false, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			evt, ok := parseEvent(netlink.UEvent{Action: netlink.ADD, Env: tt.env})
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if evt.VendorID != tt.vendor || evt.ProductID != tt.product {
				t.Fatalf("got %s/%s, want %s/%s", evt.VendorID, evt.ProductID, tt.vendor, tt.product)
			}
			if evt.Action != "add" {
				t.Fatalf("unexpected action %q", evt.Action)
			}
		})
	}
}

func TestHandleEventFiltersVendors(t *testing.T) {
	var got []Event
	m := New(hotplugConfig("abcd"), logging.NewNop(), func(e Event) { got = append(got, e) })

	m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"PRODUCT": "abcd/1005/100"}})
	m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"PRODUCT": "046d/c52b/1200"}})
	m.handleEvent(netlink.UEvent{Action: netlink.REMOVE, Env: map[string]string{"PRODUCT": "abcd/1005/100"}})

	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Action != "add" || got[1].Action != "remove" {
		t.Fatalf("unexpected actions %q %q", got[0].Action, got[1].Action)
	}
}

func TestEmptyVendorListAcceptsAll(t *testing.T) {
	count := 0
	m := New(hotplugConfig(), logging.NewNop(), func(Event) { count++ })
	m.handleEvent(netlink.UEvent{Action: netlink.ADD, Env: map[string]string{"PRODUCT": "046d/c52b/1200"}})
	if count != 1 {
		t.Fatalf("expected event to pass, got %d", count)
	}
}

// Package hotplug turns USB add and remove uevents into scanner refreshes.
package hotplug

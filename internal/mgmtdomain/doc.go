// Package mgmtdomain picks the management subnet a device should be given,
// based on the tiers of its one or two uplink devices.
package mgmtdomain

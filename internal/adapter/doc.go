// Package adapter implements probes against the live management network.
//
// # Probers
//
// A Prober reports which addresses of a subnet currently answer on the
// network. Onboarding consults it before handing out a management address,
// so that an address still held by a device missing from the directory
// (a replaced switch, a stray lab box) is never assigned twice.
//
// NmapProber runs an nmap ping scan (-sn) over the subnet. The nmap binary
// must be in PATH; Available reports whether it is.
package adapter

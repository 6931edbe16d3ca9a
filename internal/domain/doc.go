// Package domain defines the core domain types for the fabricnms network
// fabric lifecycle system.
//
// This package contains the entities that the settings and management-domain
// engines read and classify. They are owned by the device directory; nothing
// here touches a database, the filesystem or the network.
//
// # Core Types
//
// Device represents a fabric switch (core, distribution or access) with its
// tier, lifecycle state, management address and platform.
//
// Mgmtdomain represents a management subnet shared by an uplink pair. The pair
// is unordered: (A, B) and (B, A) are the same domain.
//
// Link represents an adjacency between two devices in the topology graph.
// Links are undirected and carry a deterministic ID derived from the endpoints.
//
// # Hostnames
//
// ValidHostname enforces the hostname syntax shared by the directory, the
// settings repository layout and the management-domain resolver.
package domain

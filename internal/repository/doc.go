// Package repository defines the device directory interfaces for fabricnms.
//
// The directory holds the devices of the fabric, the management domains
// shared by uplink pairs, and the links between devices that make up the
// topology graph. The actual implementation is in the sqlite subpackage.
//
// # Transactions
//
// Repository.WithTx runs a function against a Directory bound to a single
// transaction. The transaction commits when the function returns nil and
// rolls back on any error, so multi-step lookups such as management domain
// resolution see one consistent snapshot.
//
// # Schema Migration
//
// The sqlite repository migrates the schema on startup.
package repository

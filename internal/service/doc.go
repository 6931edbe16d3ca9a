// Package service implements business logic for fabricnms.
//
// Services coordinate between the HTTP handlers and CLI on one side and the
// settings engine, the management-domain resolver and the device directory
// on the other.
//
// # Services
//
// FleetService resolves device settings and runs the fleet-wide collision
// check. It serializes checks against settings repository updates: a check
// never observes a repository that changes under it.
//
// OnboardingService registers devices seen by DHCP, resolves the management
// domain of a new device's uplinks and allocates its management address.
//
// # Event System
//
// Services publish events via EventBus (cache invalidation, collision check
// results, device registration) for anything that wants to follow them.
package service

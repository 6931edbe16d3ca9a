// Package handler implements HTTP request handlers for the fabricnms API.
//
// # Handlers
//
// Handler serves settings resolution, group membership and the fleet
// collision check, management domain lookups, management address
// allocation and the DHCP registration hook.
//
// Middleware provides request logging and panic recovery.
//
// # Response Format
//
// Success responses return JSON data with appropriate status codes (200, 201).
// Error responses return JSON with {error, details} structure. Lookup
// failures map to 404, malformed requests to 400, invalid settings to 422
// and collisions or conflicting records to 409.
package handler

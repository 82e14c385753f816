// Package registry holds the named subsystems of a framekit process and runs
// their lifecycle.
//
// Subsystems are kept in registration order. Init runs every Initializer,
// then every CrossWirer, so cross-wiring can rely on peers having completed
// their own setup. Remove and Shutdown call OnRemove; Shutdown walks the
// registry in reverse order. Role and Ticker resolve well-known roles to
// concrete types.
package registry

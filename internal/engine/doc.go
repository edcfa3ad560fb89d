// Package engine defines the capability contract that every pluggable
// simulation engine implements, the read-only type registry built at
// startup, and the built-in echo and diffusion engines.
package engine

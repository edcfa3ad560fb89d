// Package manager owns the server-side wrapper registry. It creates engine
// instances from serialized configuration bundles, schedules their runs as
// background goroutines, derives lifecycle state from execution-handle
// completion without blocking the dispatch path, and broadcasts transitions
// on the notification broker.
package manager

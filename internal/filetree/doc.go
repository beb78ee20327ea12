// Package filetree turns the engine's filetree listing into an immutable
// in-memory tree of folders and file entries.
//
// A built Tree is never mutated afterwards and may be shared freely between goroutines.
package filetree

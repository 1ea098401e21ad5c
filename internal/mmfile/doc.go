// Package mmfile provides platform-specific helpers for mapping zone memory.
//
// Zones are mapped anonymously so that large backing regions stay outside the Go heap
// and are not scanned by the garbage collector.
package mmfile

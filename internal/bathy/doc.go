// Package bathy turns scattered depth soundings into isobath (depth contour)
// lines.
//
// Pipeline: SampleSet -> SelectLevels -> Interpolate (IDW grid) -> Extract
// (marching squares) -> FallbackRing when nothing was traced. Generate runs
// the whole pipeline and is the only entry point callers normally need.
//
// Everything here is a pure function of its inputs. No I/O, and no shared
// mutable state apart from the log streams set once by SetLogWriters, so
// independent surveys can be contoured concurrently without locks.
// Persistence and sample retrieval belong to internal/survey and the stores.
package bathy

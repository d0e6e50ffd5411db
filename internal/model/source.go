// Package model defines the data structures shared by instrumentation, coverage and test impact.
package model

import "time"

// Path represents a file system path.
type Path string

// ModuleName is the stable name of a compiled module: its slash-separated path
// relative to the project root.
type ModuleName string

// File represents a source file discovered on disk.
type File struct {
	ShortPath Path // relative to the project root
	FullPath  Path
	Hash      string
	ModTime   time.Time
}

// Source is a module candidate found while scanning the requested paths.
type Source struct {
	Module  ModuleName
	Origin  *File
	Package string
}

// Package version exposes build identification, overridable at link time.
package version

//nolint:gochecknoglobals // set through -ldflags -X
var (
	name    = "auricle"
	version = "dev"
	commit  = "unknown"
)

// Name returns the program name.
func Name() string {
	return name
}

// Version returns the release version.
func Version() string {
	return version
}

// Commit returns the VCS revision the binary was built from.
func Commit() string {
	return commit
}

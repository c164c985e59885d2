// Package buildinfo contains build-time metadata separate from user configuration
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// Set through -ldflags "-X github.com/hazardwatch/hazardwatch/internal/buildinfo.version=..."
var (
	version   string
	buildDate string
)

// BuildInfo provides an interface for accessing build-time metadata.
type BuildInfo interface {
	Version() string
	BuildDate() string
	Revision() string
}

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	version   string
	buildDate string
	revision  string
}

// NewContext creates a Context from explicit values.
func NewContext(version, buildDate, revision string) *Context {
	return &Context{version: version, buildDate: buildDate, revision: revision}
}

// Current returns the metadata of the running binary. The VCS revision is
// taken from the Go build info when the binary was built inside a checkout.
func Current() *Context {
	return NewContext(version, buildDate, vcsRevision())
}

func vcsRevision() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownValue
	}
	return s
}

// Version returns the release version.
func (c *Context) Version() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.version)
}

// BuildDate returns the build timestamp.
func (c *Context) BuildDate() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.buildDate)
}

// Revision returns the VCS revision the binary was built from.
func (c *Context) Revision() string {
	if c == nil {
		return UnknownValue
	}
	return orUnknown(c.revision)
}

// Release is the identifier reported to error telemetry, e.g. "hazardwatch@1.2.0".
func (c *Context) Release() string {
	return "hazardwatch@" + c.Version()
}

// String formats the metadata for the version command.
func (c *Context) String() string {
	return fmt.Sprintf("hazardwatch %s (built %s, revision %s)", c.Version(), c.BuildDate(), c.Revision())
}

// Package buildinfo contains build-time metadata separate from user
// configuration.
package buildinfo

import "fmt"

// UnknownValue is reported when a field was not injected at build time.
const UnknownValue = "unknown"

// Version and BuildDate are injected at build time:
//
//	go build -ldflags "-X github.com/tphakala/passby-go/internal/buildinfo.Version=v1.2.3"
var (
	// Version holds the Git version tag from build
	Version = UnknownValue

	// BuildDate is the time when the binary was built
	BuildDate = UnknownValue
)

// String formats the metadata for version output.
func String() string {
	return fmt.Sprintf("%s (built %s)", Version, BuildDate)
}

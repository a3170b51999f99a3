package version

import "fmt"

// Name is the binary/product name reported by the CLI and the health endpoint.
const Name = "rampkit"

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func String() string {
	return fmt.Sprintf("%s %s (%s, %s)", Name, Version, Commit, Date)
}

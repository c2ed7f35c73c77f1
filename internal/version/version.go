package version

import (
	"fmt"
	"runtime"
)

// Name is the binary name reported in user agents and version output
const Name = "k8sfs"

var (
	// Version is set at build time with -ldflags "-X .../internal/version.Version=..."
	Version = "v0.1.0-dev"
	// GitCommit is the git commit that was compiled
	GitCommit = "unknown"
	// BuildDate is the date the binary was built
	BuildDate = "unknown"
)

// Info represents version information
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns the version information
func Get() Info {
	return Info{
		Name:      Name,
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns a one-line version string
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s, %s)",
		i.Name, i.Version, i.GitCommit, i.BuildDate, i.GoVersion, i.Platform)
}

// UserAgent returns the user agent sent to the Kubernetes API server
func UserAgent() string {
	return fmt.Sprintf("%s/%s (%s/%s)", Name, Version, runtime.GOOS, runtime.GOARCH)
}

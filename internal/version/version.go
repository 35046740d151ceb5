package version

import (
	"runtime"
	rdebug "runtime/debug"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GitCommit        string
	GitBranch        string
	GitSummary       string
	BuildDate        string
	AppVersion       string
	RetryablehttpVer = depVersion("go-retryablehttp")
	GoVersion        = runtime.Version()
)

// Version is the build information of the running binary.
type Version struct {
	GitCommit        string `json:"git_commit"`
	GitBranch        string `json:"git_branch"`
	GitSummary       string `json:"git_summary"`
	BuildDate        string `json:"build_date"`
	AppVersion       string `json:"app_version"`
	GoVersion        string `json:"go_version"`
	RetryablehttpVer string `json:"retryablehttp_version"`
}

// Current returns the build information set at link time.
func Current() Version {
	return Version{
		GitBranch:        GitBranch,
		GitCommit:        GitCommit,
		GitSummary:       GitSummary,
		BuildDate:        BuildDate,
		AppVersion:       AppVersion,
		GoVersion:        GoVersion,
		RetryablehttpVer: RetryablehttpVer,
	}
}

func ExportBuildInfoMetric() {
	buildInfo := promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "regiongen_build_info",
			Help: "A metric with a constant '1' value, labeled by branch, commit, summary, builddate, version, Go version from which regiongen was built.",
		},
		[]string{"branch", "commit", "summary", "builddate", "version", "goversion"},
	)

	buildInfo.WithLabelValues(GitBranch, GitCommit, GitSummary, BuildDate, AppVersion, GoVersion).Set(1)
}

// depVersion returns the version of the first module dependency whose path contains name.
func depVersion(name string) string {
	buildInfo, ok := rdebug.ReadBuildInfo()
	if !ok {
		return ""
	}

	for _, d := range buildInfo.Deps {
		if strings.Contains(d.Path, name) {
			return d.Version
		}
	}

	return ""
}

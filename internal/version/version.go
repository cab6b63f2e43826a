// Package version хранит сведения о сборке, которые проставляются через -ldflags:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/pos/internal/version.version=v1.2.0 \
//	  -X github.com/vladislavdragonenkov/pos/internal/version.commit=$(git rev-parse --short HEAD)"
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// BuildInfo описывает бинарь: версию, commit, дату сборки и версию Go.
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
}

// Get возвращает сведения о текущей сборке.
// Если commit не передан через -ldflags, берётся vcs.revision из debug.ReadBuildInfo.
func Get() BuildInfo {
	info := BuildInfo{
		Version:   version,
		Commit:    commit,
		Date:      date,
		GoVersion: runtime.Version(),
	}
	if info.Commit == "unknown" {
		if rev, ok := vcsRevision(); ok {
			info.Commit = rev
		}
	}
	return info
}

// GetVersion возвращает версию сборки.
func GetVersion() string { return version }

func (b BuildInfo) String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s go=%s", b.Version, b.Commit, b.Date, b.GoVersion)
}

// Fields возвращает поля для структурированного лога при старте сервиса.
func (b BuildInfo) Fields() map[string]any {
	return map[string]any{
		"version":    b.Version,
		"commit":     b.Commit,
		"build_date": b.Date,
		"go_version": b.GoVersion,
	}
}

func vcsRevision() (string, bool) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", false
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 12 {
				return s.Value[:12], true
			}
			return s.Value, true
		}
	}
	return "", false
}

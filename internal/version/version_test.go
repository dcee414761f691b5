package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

func TestResolveFromBuildInfo(t *testing.T) {
	orig := readBuildInfo
	t.Cleanup(func() { readBuildInfo = orig })
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			GoVersion: "go1.26.0",
			Main:      debug.Module{Version: "v0.3.1"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef0123"},
				{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			},
		}, true
	}

	info := Resolve()
	if info.Version != "v0.3.1" || info.GoVersion != "go1.26.0" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if got := String(); got != "v0.3.1 (0123456789ab)" {
		t.Fatalf("String: got %q", got)
	}
}

func TestResolveDevelBuild(t *testing.T) {
	orig := readBuildInfo
	t.Cleanup(func() { readBuildInfo = orig })
	readBuildInfo = func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}, true
	}

	info := Resolve()
	if !strings.HasPrefix(info.Version, "devel-") {
		t.Fatalf("devel version: got %q", info.Version)
	}
	if info.Commit != "" {
		t.Fatalf("commit: got %q", info.Commit)
	}
}

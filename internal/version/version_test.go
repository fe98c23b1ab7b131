package version

import (
	"runtime/debug"
	"testing"
)

func TestFillFromBuildInfo(t *testing.T) {
	origCommit, origTime := Commit, BuildTime
	t.Cleanup(func() { Commit, BuildTime = origCommit, origTime })

	Commit, BuildTime = "unknown", "unknown"
	fillFromBuildInfo(&debug.BuildInfo{Settings: []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123456789abcdef"},
		{Key: "vcs.time", Value: "2024-01-15T12:30:45Z"},
	}})
	if Commit != "0123456" {
		t.Errorf("Commit = %q, want 0123456", Commit)
	}
	if BuildTime != "2024-01-15T12:30:45Z" {
		t.Errorf("BuildTime = %q", BuildTime)
	}

	// ldflags values win
	Commit = "abc1234"
	fillFromBuildInfo(&debug.BuildInfo{Settings: []debug.BuildSetting{
		{Key: "vcs.revision", Value: "fedcba9876543210"},
	}})
	if Commit != "abc1234" {
		t.Errorf("Commit = %q, want abc1234", Commit)
	}
}

func TestString(t *testing.T) {
	origVersion, origCommit, origTime := Version, Commit, BuildTime
	t.Cleanup(func() { Version, Commit, BuildTime = origVersion, origCommit, origTime })

	Version, Commit, BuildTime = "1.0.0", "abc1234", "2024-01-15T12:30:45Z"
	if got, want := String(), "1.0.0 (abc1234) built 2024-01-15T12:30:45Z"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

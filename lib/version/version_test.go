// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime/debug"
	"strings"
	"testing"
)

var vcsSettings = []debug.BuildSetting{
	{Key: "vcs", Value: "git"},
	{Key: "vcs.revision", Value: "3f9c2a17be0d44e1a2c5f6b7d8e9f0a1b2c3d4e5"},
	{Key: "vcs.time", Value: "2026-03-01T12:00:00Z"},
	{Key: "vcs.modified", Value: "true"},
}

func TestMergeSettingsFillsUnknownFields(t *testing.T) {
	got := mergeSettings(stamp{commit: "unknown", buildTime: "unknown"}, vcsSettings)
	want := stamp{commit: "3f9c2a1", dirty: true, buildTime: "2026-03-01T12:00:00Z"}
	if got != want {
		t.Errorf("mergeSettings = %+v, want %+v", got, want)
	}
}

func TestMergeSettingsKeepsInjectedValues(t *testing.T) {
	injected := stamp{commit: "abc1234", buildTime: "2026-02-10T08:00:00Z"}
	if got := mergeSettings(injected, vcsSettings); got != injected {
		t.Errorf("mergeSettings = %+v, want the injected %+v", got, injected)
	}
}

func TestInfoFormat(t *testing.T) {
	got := stamp{commit: "abc1234", dirty: true, buildTime: "2026-02-10T08:00:00Z"}.info()
	want := Version + " (abc1234-dirty, 2026-02-10T08:00:00Z)"
	if got != want {
		t.Errorf("info = %q, want %q", got, want)
	}
}

func TestFullIncludesPlatform(t *testing.T) {
	full := Full()
	if !strings.HasPrefix(full, Info()) || !strings.Contains(full, "Platform: ") {
		t.Errorf("Full = %q", full)
	}
}

package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_FollowsSemverOrDev(t *testing.T) {
	// Given a build with or without ldflags
	if IsDev() {
		t.Log("development build without ldflags")
		return
	}

	// Then a release version is semver, optionally v-prefixed
	semver := regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	require.True(t, semver.MatchString(Version), "got %s", Version)
}

func TestString_IncludesBuildDetails(t *testing.T) {
	str := String()

	assert.Contains(t, str, Name)
	assert.Contains(t, str, Version)
	assert.Contains(t, str, "commit: "+Commit)
	assert.Contains(t, str, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestShort_ReturnsVersion(t *testing.T) {
	assert.Equal(t, Version, Short())
}

func TestIsDev(t *testing.T) {
	saved := Version
	t.Cleanup(func() { Version = saved })

	tests := []struct {
		version string
		want    bool
	}{
		{"dev", true},
		{"", true},
		{"v0.3.1", false},
		{"1.0.0-rc.1", false},
	}
	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			Version = tt.version
			assert.Equal(t, tt.want, IsDev())
		})
	}
}

func TestGetInfo_JSON(t *testing.T) {
	// Given the build info
	info := GetInfo()

	// When marshalled
	data, err := json.Marshal(info)
	require.NoError(t, err)

	// Then the snake_case keys are present
	var decoded map[string]string
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, Name, decoded["name"])
	assert.Equal(t, Version, decoded["version"])
	assert.Equal(t, runtime.Version(), decoded["go_version"])
	assert.Equal(t, runtime.GOOS, decoded["os"])
	assert.Equal(t, runtime.GOARCH, decoded["arch"])
}

package version

import (
	"encoding/json"
	"regexp"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_SemverOrDev(t *testing.T) {
	if Version == "dev" {
		return
	}
	semver := regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[a-zA-Z0-9.]+)?$`)
	assert.Regexp(t, semver, Version)
}

func TestString(t *testing.T) {
	s := String()

	assert.Contains(t, s, "claimrag "+Version)
	assert.Contains(t, s, "commit: "+Commit)
}

func TestGetInfo_JSON(t *testing.T) {
	// Given the build info
	info := GetInfo()
	assert.Equal(t, runtime.GOOS, info.OS)

	// When serialized
	data, err := json.Marshal(info)
	require.NoError(t, err)

	// Then every field is present
	var parsed map[string]string
	require.NoError(t, json.Unmarshal(data, &parsed))
	for _, key := range []string{"version", "commit", "date", "go_version", "os", "arch"} {
		assert.Contains(t, parsed, key)
	}
}

package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hakim/brandwatch/internal/config"
)

func TestNew_FileTeeJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bw.log")
	log, closer, err := New(config.LogConfig{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)

	log.WithField("scan_id", "s1").Debug("probing")
	require.NoError(t, closer.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"scan_id":"s1"`)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := New(config.LogConfig{Level: "loud", Format: "text"})
	assert.Error(t, err)
}

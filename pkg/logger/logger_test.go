package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSetLevelFromString(t *testing.T) {
	defer SetLevelFromString("info")

	SetLevelFromString("debug")
	assert.True(t, IsDebugEnabled())

	SetLevelFromString("WARNING")
	assert.False(t, IsDebugEnabled())

	SetLevelFromString("bogus")
	assert.False(t, IsDebugEnabled())

	EnableDebug()
	assert.True(t, IsDebugEnabled())
}

func TestNewWritesToFile(t *testing.T) {
	defer SetLevelFromString("info")

	path := filepath.Join(t.TempDir(), "sync.log")
	l := New(&Config{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: path,
		MaxSize:  1,
	})
	l.Info("hook failed", zap.String("phase", "beforeCommand"))
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hook failed"`)
	assert.Contains(t, string(data), `"phase":"beforeCommand"`)
}

func TestOrDefault(t *testing.T) {
	nop := zap.NewNop()
	assert.Same(t, nop, OrDefault(nop, "x"))
	assert.NotNil(t, OrDefault(nil, "x"))
	assert.NotNil(t, L())
}

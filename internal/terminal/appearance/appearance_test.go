package appearance

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appearance.toml")
	writeFile(t, path, `
font_family = "JetBrains Mono"
font_size = 13.5
color_theme = "solarized-light"

[colors]
background = "#fdf6e3"
foreground = "#657b83"
`)

	a, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "JetBrains Mono", a.FontFamily)
	assert.Equal(t, 13.5, a.FontSize)
	assert.Equal(t, "normal", a.FontWeight)
	assert.Equal(t, "solarized-light", a.ColorTheme)
	assert.Equal(t, "#fdf6e3", a.Colors["background"])
}

func TestLoadDefaults(t *testing.T) {
	a, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), a)

	a, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), a)
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appearance.toml")
	writeFile(t, path, `font_size = "big`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSourceReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appearance.toml")
	writeFile(t, path, `color_theme = "dark"`)

	src, err := NewSource(path)
	require.NoError(t, err)

	changed, err := src.Reload()
	require.NoError(t, err)
	assert.False(t, changed)

	writeFile(t, path, `color_theme = "light"`)
	changed, err = src.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "light", src.Current().ColorTheme)

	writeFile(t, path, `color_theme = `)
	_, err = src.Reload()
	assert.Error(t, err)
	assert.Equal(t, "light", src.Current().ColorTheme)
}

func TestWatcherDebouncesChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appearance.toml")
	writeFile(t, path, `color_theme = "dark"`)

	src, err := NewSource(path)
	require.NoError(t, err)

	var calls atomic.Int32
	var last atomic.Value
	w, err := NewWatcher(src, 50*time.Millisecond, func(a Appearance) {
		calls.Add(1)
		last.Store(a.ColorTheme)
	}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer w.Stop()

	for _, theme := range []string{"a", "b", "light"} {
		writeFile(t, path, `color_theme = "`+theme+`"`)
	}

	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "light", last.Load())
}

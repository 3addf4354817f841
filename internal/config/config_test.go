package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields and default filling.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing host.
	cfg := new(Config)

	err := Validate(cfg)
	require.Error(t, err)

	// Port out of range.
	cfg = &Config{
		Host: "ftp.example.com",
		Port: 70000,
	}

	err = Validate(cfg)
	require.Error(t, err)

	// Defaults filled in.
	cfg = &Config{
		Host: "ftp.example.com",
	}

	err = Validate(cfg)
	require.NoError(t, err)
	require.Equal(t, DefaultPort, cfg.Port)
	require.Equal(t, DefaultUser, cfg.User)
	require.Equal(t, DefaultDepsDir, cfg.DepsDir)
	require.Equal(t, DefaultTargetName, cfg.TargetName)
	require.Equal(t, DefaultTimeout, cfg.Timeout)
}

// TestLoadMissingDefaultsToBuiltin ensures a missing default file is a valid zero-setup run.
func TestLoadMissingDefaultsToBuiltin(t *testing.T) {
	// Not parallel: the test changes the working directory.
	dir := t.TempDir()
	prev, err := os.Getwd()
	require.NoError(t, err)

	require.NoError(t, os.Chdir(dir))

	t.Cleanup(func() {
		_ = os.Chdir(prev)
	})

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, DefaultHost, cfg.Host)

	// An explicit path must exist.
	_, err = Load(filepath.Join(dir, "nope.yaml"))
	require.Error(t, err)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		Host:      "ftp.internal.example",
		Port:      2121,
		RemoteDir: "/pub/libxl",
		Timeout:   10 * time.Second,
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Host, loaded.Host)
	require.Equal(t, cfg.Port, loaded.Port)
	require.Equal(t, cfg.RemoteDir, loaded.RemoteDir)

	// File exists.
	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestHelpers covers address and layout rendering.
func TestHelpers(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.Equal(t, "ftp.xlware.com:21", cfg.ServerAddress())
	require.Equal(t, filepath.Join("deps", "libxl"), cfg.TargetPath())
}

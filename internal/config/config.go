package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the connection and layout parameters for a fetch run.
type Config struct {
	// Host is the FTP server publishing the libxl archives.
	Host string `yaml:"ftp_host"`
	// Port is the FTP control port.
	Port int `yaml:"ftp_port"`
	// User is the FTP login name.
	User string `yaml:"ftp_user"`
	// Password is the FTP login password.
	Password string `yaml:"ftp_password"`
	// RemoteDir is the remote directory holding the archives.
	// Empty means the server's login directory.
	RemoteDir string `yaml:"remote_dir"`
	// DepsDir is the local directory archives are downloaded and extracted into.
	DepsDir string `yaml:"deps_dir"`
	// TargetName is the final directory name under DepsDir that the
	// extracted release is renamed to.
	TargetName string `yaml:"target_name"`
	// Timeout bounds FTP dial and per-command waits.
	Timeout time.Duration `yaml:"timeout"`
}

const (
	// DefaultConfigFilename is the default filename for fetch settings.
	DefaultConfigFilename = "libxl-fetch.yaml"

	// ArchiveOverrideEnv names the environment variable that, when set to a
	// local archive path, bypasses the network fetch entirely.
	ArchiveOverrideEnv = "LIBXL_ARCHIVE"

	// DefaultHost is the FTP host the libxl vendor publishes releases on.
	DefaultHost = "ftp.xlware.com"

	// DefaultPort is the standard FTP control port.
	DefaultPort = 21

	// DefaultUser and DefaultPassword perform an anonymous login.
	DefaultUser     = "anonymous"
	DefaultPassword = "anonymous"

	// DefaultDepsDir is where archives are downloaded and unpacked.
	DefaultDepsDir = "deps"

	// DefaultTargetName is the fixed directory name the build step expects.
	DefaultTargetName = "libxl"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 30 * time.Second

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600

	// maxPort is the highest valid TCP port.
	maxPort = 65535
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errHostRequired is returned when the FTP host is missing.
	errHostRequired = errors.New("ftp host must be provided")
	// errInvalidPort is returned when the FTP port is out of range.
	errInvalidPort = errors.New("ftp port is out of range")
)

// Default returns a configuration pointing at the vendor's public FTP host
// with the standard local layout.
func Default() *Config {
	return &Config{
		Host:       DefaultHost,
		Port:       DefaultPort,
		User:       DefaultUser,
		Password:   DefaultPassword,
		DepsDir:    DefaultDepsDir,
		TargetName: DefaultTargetName,
		Timeout:    DefaultTimeout,
	}
}

// Load reads configuration from the provided path and validates it.
// A missing file at the default path is not an error: the tool is expected to
// run with zero setup, so built-in defaults are returned instead. A path the
// caller asked for explicitly must exist.
func Load(path string) (*Config, error) {
	explicit := path != "" && path != DefaultConfigFilename

	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}

		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults for the optional ones.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Host == "" {
		return errHostRequired
	}

	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	if cfg.Port < 0 || cfg.Port > maxPort {
		return fmt.Errorf("%w: %d", errInvalidPort, cfg.Port)
	}

	if cfg.User == "" {
		cfg.User = DefaultUser
	}

	if cfg.Password == "" {
		cfg.Password = DefaultPassword
	}

	if cfg.DepsDir == "" {
		cfg.DepsDir = DefaultDepsDir
	}

	if cfg.TargetName == "" {
		cfg.TargetName = DefaultTargetName
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return nil
}

// ServerAddress renders the host:port pair FTP dialing expects.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TargetPath is the fixed directory the extracted release ends up at.
func (c *Config) TargetPath() string {
	return filepath.Join(c.DepsDir, c.TargetName)
}

// ArchiveOverride returns a local archive path supplied via the environment,
// or "" when the network fetch should run.
func ArchiveOverride() string {
	return os.Getenv(ArchiveOverrideEnv)
}

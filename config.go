package sftpdeploy

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides such as SFTP_DEPLOY_PASSWORD.
const EnvPrefix = "SFTP_DEPLOY"

// SyncItem pairs a local path with its target below the remote root.
// A directory item whose Remote is "." uploads its contents straight into the root.
type SyncItem struct {
	Local  string `mapstructure:"local"`
	Remote string `mapstructure:"remote"`
}

// DefaultManifest is used when the configuration does not list any items.
var DefaultManifest = []SyncItem{
	{Local: ".htaccess", Remote: ".htaccess"},
	{Local: "404.html", Remote: "404.html"},
	{Local: "config.json", Remote: "config.json"},
	{Local: "favicon.ico", Remote: "favicon.ico"},
	{Local: "index.php", Remote: "index.php"},
}

// ConnectionSpec holds what is needed to open an SFTP session.
type ConnectionSpec struct {
	// Host is the target SSH server hostname or IP address.
	Host string

	// Port is the SSH port (default 22).
	Port int

	// Username is the SSH login.
	Username string

	// Password enables password authentication when set.
	Password string

	// PrivateKeyPath is the path to a PEM or OpenSSH private key.
	PrivateKeyPath string

	// Passphrase decrypts PrivateKeyPath when it is encrypted.
	Passphrase string

	// KnownHostsFile is the path to a known_hosts file for host key verification.
	// If not set, defaults to ~/.ssh/known_hosts if it exists.
	KnownHostsFile string

	// InsecureIgnoreHostKey skips host key verification.
	InsecureIgnoreHostKey bool

	// Timeout bounds the TCP dial and SSH handshake (default 30s).
	Timeout time.Duration
}

// Address returns host:port.
func (s ConnectionSpec) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WithDefaults returns a copy of the spec with default values applied.
func (s ConnectionSpec) WithDefaults() ConnectionSpec {
	if s.Port == 0 {
		s.Port = 22
	}
	if s.Timeout == 0 {
		s.Timeout = 30 * time.Second
	}
	return s
}

// Config is the full deploy configuration, normally read from deploy.json.
type Config struct {
	Host                  string        `mapstructure:"host"`
	Port                  int           `mapstructure:"port"`
	Username              string        `mapstructure:"username"`
	Password              string        `mapstructure:"password"`
	PrivateKeyPath        string        `mapstructure:"privateKeyPath"`
	Passphrase            string        `mapstructure:"passphrase"`
	KnownHostsFile        string        `mapstructure:"knownHostsFile"`
	InsecureIgnoreHostKey bool          `mapstructure:"insecureIgnoreHostKey"`
	Timeout               time.Duration `mapstructure:"timeout"`

	// RemoteRoot is the directory every manifest target is resolved under.
	RemoteRoot string `mapstructure:"remoteRoot"`

	// LocalRoot anchors relative manifest paths. Empty means the working directory.
	LocalRoot string `mapstructure:"localRoot"`

	// Sync is the ordered manifest. DefaultManifest is used when it is empty.
	Sync []SyncItem `mapstructure:"sync"`
}

// WithDefaults returns a copy of the config with default values applied.
func (c Config) WithDefaults() Config {
	if c.Port == 0 {
		c.Port = 22
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if len(c.Sync) == 0 {
		c.Sync = append([]SyncItem(nil), DefaultManifest...)
	}
	return c
}

// Validate reports the first problem that would prevent a deploy.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("%w: host is required", ErrConfig)
	}
	if strings.TrimSpace(c.Username) == "" {
		return fmt.Errorf("%w: username is required", ErrConfig)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrConfig, c.Port)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrConfig)
	}
	for i, item := range c.Sync {
		if item.Local == "" || item.Remote == "" {
			return fmt.Errorf("%w: sync[%d] needs both local and remote", ErrConfig, i)
		}
	}
	return nil
}

// Connection extracts the session parameters.
func (c Config) Connection() ConnectionSpec {
	return ConnectionSpec{
		Host:                  c.Host,
		Port:                  c.Port,
		Username:              c.Username,
		Password:              c.Password,
		PrivateKeyPath:        c.PrivateKeyPath,
		Passphrase:            c.Passphrase,
		KnownHostsFile:        c.KnownHostsFile,
		InsecureIgnoreHostKey: c.InsecureIgnoreHostKey,
		Timeout:               c.Timeout,
	}.WithDefaults()
}

// LoadConfig reads a JSON or YAML deploy file. Secrets may come from
// SFTP_DEPLOY_PASSWORD and SFTP_DEPLOY_PASSPHRASE instead of the file.
// Relative key and local paths are resolved against the file's directory.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"password", "passphrase", "host", "port", "username", "privateKeyPath"} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("%w: failed to read %s: %v", ErrConfig, path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: failed to decode %s: %v", ErrConfig, path, err)
	}

	base := filepath.Dir(path)
	if cfg.PrivateKeyPath != "" {
		cfg.PrivateKeyPath = resolveLocal(base, cfg.PrivateKeyPath)
	}
	if cfg.KnownHostsFile != "" {
		cfg.KnownHostsFile = resolveLocal(base, cfg.KnownHostsFile)
	}
	if cfg.LocalRoot == "" {
		cfg.LocalRoot = base
	} else {
		cfg.LocalRoot = resolveLocal(base, cfg.LocalRoot)
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// resolveLocal expands ~ and anchors relative paths at base.
func resolveLocal(base, p string) string {
	if expanded, err := homedir.Expand(p); err == nil {
		p = expanded
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

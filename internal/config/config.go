package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/smartmarks/smartmarks/internal/backend"
	"github.com/smartmarks/smartmarks/internal/email"
	"github.com/smartmarks/smartmarks/internal/grader"
)

var envRefPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v *viper.Viper

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a new config manager and loads initial config.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:         viper.New(),
		callbacks: make([]func(*Config), 0),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	v := cm.v
	setDefaults(v, DefaultConfig())

	// Environment variables with SMARTMARKS_ prefix, e.g. SMARTMARKS_BACKEND_URL
	v.SetEnvPrefix("SMARTMARKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.smartmarks")
	}

	// Try to read config file (not required)
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// setDefaults registers every leaf key so env overrides and partial files
// merge with the defaults.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.cookie_secure", d.Server.CookieSecure)
	v.SetDefault("server.session_ttl_minutes", d.Server.SessionTTLMinutes)

	v.SetDefault("backend.url", d.Backend.URL)
	v.SetDefault("backend.timeout_seconds", d.Backend.TimeoutSeconds)
	v.SetDefault("backend.wait_seconds", d.Backend.WaitSeconds)
	v.SetDefault("backend.managed", d.Backend.Managed)
	v.SetDefault("backend.image", d.Backend.Image)
	v.SetDefault("backend.container_name", d.Backend.ContainerName)
	v.SetDefault("backend.port", d.Backend.Port)
	v.SetDefault("backend.openai_api_key", d.Backend.OpenAIAPIKey)

	v.SetDefault("upload.max_file_bytes", d.Upload.MaxFileBytes)
	v.SetDefault("upload.max_files", d.Upload.MaxFiles)

	v.SetDefault("email.endpoint", d.Email.Endpoint)
	v.SetDefault("email.service_id", d.Email.ServiceID)
	v.SetDefault("email.template_id", d.Email.TemplateID)
	v.SetDefault("email.public_key", d.Email.PublicKey)
	v.SetDefault("email.private_key", d.Email.PrivateKey)

	v.SetDefault("ui.default_language", d.UI.DefaultLanguage)
	v.SetDefault("ui.default_theme", d.UI.DefaultTheme)
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ConfigFile returns the path of the loaded config file, or "" when running on defaults.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRefPattern.ReplaceAllStringFunc(value, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// Addr returns host:port for the HTTP listener.
func (c *Config) Addr() (host, port string) {
	return c.Server.Host, c.Server.Port
}

// SessionTTL returns the idle lifetime of a browser session.
func (c *Config) SessionTTL() time.Duration {
	if c.Server.SessionTTLMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Server.SessionTTLMinutes) * time.Minute
}

// ToGraderConfig converts the backend section into grading client settings.
func (c *Config) ToGraderConfig() grader.Config {
	return grader.Config{
		BaseURL: c.Backend.URL,
		Timeout: time.Duration(c.Backend.TimeoutSeconds) * time.Second,
	}
}

// ToEmailConfig converts the email section, resolving ${ENV_VAR} references.
func (c *Config) ToEmailConfig() email.Config {
	return email.Config{
		Endpoint:   c.Email.Endpoint,
		ServiceID:  ResolveEnvVars(c.Email.ServiceID),
		TemplateID: ResolveEnvVars(c.Email.TemplateID),
		PublicKey:  ResolveEnvVars(c.Email.PublicKey),
		PrivateKey: ResolveEnvVars(c.Email.PrivateKey),
	}
}

// ToDockerConfig builds the managed backend container settings.
// dataPath is bind-mounted as the backend's working data directory.
func (c *Config) ToDockerConfig(dataPath string) backend.DockerConfig {
	env := map[string]string{}
	if key := ResolveEnvVars(c.Backend.OpenAIAPIKey); key != "" {
		env["OPENAI_API_KEY"] = key
	}
	return backend.DockerConfig{
		ContainerName: c.Backend.ContainerName,
		Image:         c.Backend.Image,
		DataPath:      dataPath,
		HostPort:      c.Backend.Port,
		Env:           env,
	}
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# SmartMarks configuration
# Secrets use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export OPENAI_API_KEY=xxx EMAILJS_SERVICE_ID=xxx EMAILJS_TEMPLATE_ID=xxx EMAILJS_PUBLIC_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}

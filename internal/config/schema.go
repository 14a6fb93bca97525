package config

// Config holds smartmarks configuration.
// Stored at: ~/.smartmarks/config.yaml (or ./config.yaml)
type Config struct {
	Server  ServerCfg  `mapstructure:"server" yaml:"server"`
	Backend BackendCfg `mapstructure:"backend" yaml:"backend"`
	Upload  UploadCfg  `mapstructure:"upload" yaml:"upload"`
	Email   EmailCfg   `mapstructure:"email" yaml:"email"`
	UI      UICfg      `mapstructure:"ui" yaml:"ui"`
}

// ServerCfg configures the HTTP front-end.
type ServerCfg struct {
	Host              string `mapstructure:"host" yaml:"host"`
	Port              string `mapstructure:"port" yaml:"port"`
	CookieSecure      bool   `mapstructure:"cookie_secure" yaml:"cookie_secure"`             // Set Secure on the session cookie
	SessionTTLMinutes int    `mapstructure:"session_ttl_minutes" yaml:"session_ttl_minutes"` // Idle session lifetime
}

// BackendCfg configures the external grading backend.
type BackendCfg struct {
	URL            string `mapstructure:"url" yaml:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // HTTP timeout; OCR calls are slow
	WaitSeconds    int    `mapstructure:"wait_seconds" yaml:"wait_seconds"`       // Block serve until backend answers (0 = don't wait)

	// Managed runs the backend as a local Docker container.
	Managed       bool   `mapstructure:"managed" yaml:"managed"`
	Image         string `mapstructure:"image" yaml:"image"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	Port          string `mapstructure:"port" yaml:"port"`
	OpenAIAPIKey  string `mapstructure:"openai_api_key" yaml:"openai_api_key"` // Passed to the managed container (supports ${ENV_VAR})
}

// UploadCfg limits what the grade form accepts.
type UploadCfg struct {
	MaxFileBytes int64 `mapstructure:"max_file_bytes" yaml:"max_file_bytes"`
	MaxFiles     int   `mapstructure:"max_files" yaml:"max_files"`
}

// EmailCfg configures the EmailJS grade mailer. Keys support ${ENV_VAR} syntax.
type EmailCfg struct {
	Endpoint   string `mapstructure:"endpoint" yaml:"endpoint"`
	ServiceID  string `mapstructure:"service_id" yaml:"service_id"`
	TemplateID string `mapstructure:"template_id" yaml:"template_id"`
	PublicKey  string `mapstructure:"public_key" yaml:"public_key"`
	PrivateKey string `mapstructure:"private_key" yaml:"private_key"`
}

// UICfg holds presentation defaults for new sessions.
type UICfg struct {
	DefaultLanguage string `mapstructure:"default_language" yaml:"default_language"` // "en" or "de"
	DefaultTheme    string `mapstructure:"default_theme" yaml:"default_theme"`       // "dark" or "light"
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host:              "127.0.0.1",
			Port:              "3000",
			SessionTTLMinutes: 24 * 60,
		},
		Backend: BackendCfg{
			URL:            "http://127.0.0.1:5000",
			TimeoutSeconds: 300,
			Image:          "smartmarks/grader:latest",
			ContainerName:  "smartmarks-grader",
			Port:           "5000",
			OpenAIAPIKey:   "${OPENAI_API_KEY}",
		},
		Upload: UploadCfg{
			MaxFileBytes: 5 << 20,
			MaxFiles:     20,
		},
		Email: EmailCfg{
			Endpoint:   "https://api.emailjs.com/api/v1.0/email/send",
			ServiceID:  "${EMAILJS_SERVICE_ID}",
			TemplateID: "${EMAILJS_TEMPLATE_ID}",
			PublicKey:  "${EMAILJS_PUBLIC_KEY}",
			PrivateKey: "${EMAILJS_PRIVATE_KEY}",
		},
		UI: UICfg{
			DefaultLanguage: "en",
			DefaultTheme:    "dark",
		},
	}
}

package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Vault     VaultConfig       `yaml:"vault"`
	Hierarchy HierarchyConfig   `yaml:"hierarchy"`
	Catalog   CatalogConfig     `yaml:"catalog"`
	Auth      AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.Hierarchy.Validate(); err != nil {
		return err
	}
	if err := c.Catalog.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the Markdown vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// HierarchyConfig holds the entity directory layout and inheritance
// behavior of the vault.
//
// GoalsDir and TasksDir are required. ProjectsDir may be empty, which
// enables the two-level Goal/Task layout. The debounce, rename settle,
// and scan worker settings fall back to built-in defaults when zero.
type HierarchyConfig struct {
	GoalsDir    string `yaml:"goals_dir"`
	ProjectsDir string `yaml:"projects_dir"`
	TasksDir    string `yaml:"tasks_dir"`

	GoalProperty       string   `yaml:"goal_property"`
	ProjectProperty    string   `yaml:"project_property"`
	ExcludedProperties []string `yaml:"excluded_properties"`

	DebounceMS     int `yaml:"debounce_ms"`
	RenameSettleMS int `yaml:"rename_settle_ms"`
	ScanWorkers    int `yaml:"scan_workers"`
}

// Validate validates the hierarchy configuration.
func (c *HierarchyConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.GoalsDir, validation.Required),
		validation.Field(&c.TasksDir, validation.Required),
		validation.Field(&c.DebounceMS, validation.Min(0)),
		validation.Field(&c.RenameSettleMS, validation.Min(0)),
		validation.Field(&c.ScanWorkers, validation.Min(0)),
	)
}

// CatalogConfig holds the SQLite catalog configuration.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		Hierarchy: HierarchyConfig{
			GoalsDir:        "Goals",
			ProjectsDir:     "Projects",
			TasksDir:        "Tasks",
			GoalProperty:    "Goal",
			ProjectProperty: "Project",
		},
		Catalog: CatalogConfig{
			Path: "./telos.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}

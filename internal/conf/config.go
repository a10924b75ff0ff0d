// Package conf loads and owns the application settings. Configuration is
// read with viper from config.yaml in platform config paths, with an
// embedded default written on first run.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/passby-go/internal/errors"
)

//go:embed config.yaml
var configFiles embed.FS

const osWindows = "windows"

// LogConfig defines a file log destination for a service.
type LogConfig struct {
	Enabled bool   `yaml:"enabled"` // true to enable this log
	Path    string `yaml:"path"`    // path to log file
}

// SQLiteSettings holds SQLite output settings.
type SQLiteSettings struct {
	Enabled bool   `yaml:"enabled"` // true to enable SQLite storage
	Path    string `yaml:"path"`    // path to database file
}

// MySQLSettings holds MySQL output settings.
type MySQLSettings struct {
	Enabled  bool   `yaml:"enabled"`  // true to enable MySQL storage
	Username string `yaml:"username"` // MySQL username
	Password string `yaml:"password"` // MySQL password
	Database string `yaml:"database"` // MySQL database name
	Host     string `yaml:"host"`     // MySQL host
	Port     string `yaml:"port"`     // MySQL port
}

// OutputSettings selects the persistence backend.
type OutputSettings struct {
	SQLite SQLiteSettings `yaml:"sqlite"`
	MySQL  MySQLSettings  `yaml:"mysql"`
}

// DataSettings locates the on-disk data directory. Staged uploads live under
// <path>/uploads, event JSON snapshots under <path>/events.
type DataSettings struct {
	Path string `yaml:"path"`
}

// CORSSettings controls cross-origin access for the UI client.
type CORSSettings struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowedorigins"`
}

// RateLimitSettings throttles upload and ingest requests.
type RateLimitSettings struct {
	Enabled bool    `yaml:"enabled"`
	RPS     float64 `yaml:"rps"`   // sustained requests per second
	Burst   int     `yaml:"burst"` // burst size
}

// WebServerSettings holds HTTP server settings.
type WebServerSettings struct {
	Debug     bool              `yaml:"debug"`     // true to enable debug logging
	Enabled   bool              `yaml:"enabled"`   // true to enable the HTTP server
	Port      string            `yaml:"port"`      // port for HTTP server
	BodyLimit string            `yaml:"bodylimit"` // request body size cap, e.g. "256M"
	CORS      CORSSettings      `yaml:"cors"`
	RateLimit RateLimitSettings `yaml:"ratelimit"`
	Log       LogConfig         `yaml:"log"`
}

// IngestSettings holds ingestion pipeline settings.
type IngestSettings struct {
	UploadPath string `yaml:"uploadpath"` // staging directory override; empty = <data>/uploads
	BatchSize  int    `yaml:"batchsize"`  // sample rows per insert batch
}

// VehiclesSettings locates the static vehicle-type catalog.
type VehiclesSettings struct {
	ConfigPath  string `yaml:"configpath"`  // path to vehicles.json
	CacheTTLMin int    `yaml:"cachettlmin"` // catalog cache TTL in minutes
}

// MQTTSettings configures optional event publication.
type MQTTSettings struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`      // e.g. tcp://localhost:1883
	TopicPrefix string `yaml:"topicprefix"` // prefix for event topics
	ClientID    string `yaml:"clientid"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	Retain      bool   `yaml:"retain"`
}

// ArchiveTargetSettings describes one archive destination.
type ArchiveTargetSettings struct {
	Type     string `yaml:"type"`     // local, ftp or sftp
	Path     string `yaml:"path"`     // destination directory (local) or remote path
	Host     string `yaml:"host"`     // remote host for ftp/sftp
	Port     int    `yaml:"port"`     // remote port for ftp/sftp
	Username string `yaml:"username"` // remote username
	Password string `yaml:"password"` // remote password
	KeyFile  string `yaml:"keyfile"`  // private key file for sftp
}

// ArchiveSettings configures optional export of events and snapshots.
type ArchiveSettings struct {
	Enabled bool                    `yaml:"enabled"`
	Targets []ArchiveTargetSettings `yaml:"targets"`
}

// Settings contains all configuration options for the annotation backend.
type Settings struct {
	Debug bool `yaml:"debug"` // true to enable debug mode

	Main struct {
		Name string    `yaml:"name"` // name of this node, can be used to identify the source
		Log  LogConfig `yaml:"log"`  // main log configuration
	} `yaml:"main"`

	Data      DataSettings      `yaml:"data"`
	Output    OutputSettings    `yaml:"output"`
	WebServer WebServerSettings `yaml:"webserver"`
	Ingest    IngestSettings    `yaml:"ingest"`
	Vehicles  VehiclesSettings  `yaml:"vehicles"`
	MQTT      MQTTSettings      `yaml:"mqtt"`
	Archive   ArchiveSettings   `yaml:"archive"`
}

// UploadDir returns the staging directory for uploaded files.
func (s *Settings) UploadDir() string {
	if s.Ingest.UploadPath != "" {
		return s.Ingest.UploadPath
	}
	return filepath.Join(s.Data.Path, "uploads")
}

// EventSnapshotDir returns the directory for event JSON snapshots.
func (s *Settings) EventSnapshotDir() string {
	return filepath.Join(s.Data.Path, "events")
}

// settingsInstance is the current settings instance
var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}

	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Set default values for each configuration parameter
	// function defined in defaults.go
	setDefaultConfig()

	err = viper.ReadInConfig()
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// Config file not found, create config with defaults
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig creates a default config file and writes it to the default config path
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	defaultConfig := getDefaultConfig()

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	fmt.Println("Created default config file at:", configPath)
	return viper.ReadInConfig()
}

// getDefaultConfig reads the default configuration from the embedded config.yaml file.
func getDefaultConfig() string {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		log.Fatalf("Error reading config file: %v", err)
	}
	return string(data)
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, initializing it if necessary
func Setting() *Settings {
	once.Do(func() {
		if settingsInstance == nil {
			_, err := Load()
			if err != nil {
				log.Fatalf("Error loading settings: %v", err)
			}
		}
	})
	return GetSettings()
}

// GetDefaultConfigPaths returns a list of default configuration paths for the
// current operating system. It determines paths based on standard conventions
// for storing application configuration files.
func GetDefaultConfigPaths() ([]string, error) {
	var configPaths []string

	exePath, err := os.Executable()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-executable-path").
			Build()
	}
	exeDir := filepath.Dir(exePath)

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	switch runtime.GOOS {
	case osWindows:
		configPaths = []string{
			exeDir,
			filepath.Join(homeDir, "AppData", "Roaming", "passby-go"),
		}
	default:
		configPaths = []string{
			filepath.Join(homeDir, ".config", "passby-go"),
			"/etc/passby-go",
		}
	}

	// If a config file already exists in one of the paths, prefer that path.
	for _, path := range configPaths {
		configFile := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configFile); err == nil {
			return []string{path}, nil
		}
	}

	return configPaths, nil
}

// FindConfigFile locates the active config.yaml, failing if none exists yet.
func FindConfigFile() (string, error) {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return "", err
	}
	for _, path := range configPaths {
		configFile := filepath.Join(path, "config.yaml")
		if _, err := os.Stat(configFile); err == nil {
			return configFile, nil
		}
	}
	return "", errors.Newf("config.yaml not found in %v", configPaths).
		Category(errors.CategoryConfiguration).
		Build()
}

// SaveYAMLConfig writes settings to the YAML configuration file. The write is
// atomic: data goes to a temporary file which then replaces the original.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary config file: %w", err)
	}
	tempName := tempFile.Name()

	if _, err := tempFile.Write(yamlData); err != nil {
		tempFile.Close()
		os.Remove(tempName)
		return fmt.Errorf("error writing temporary config file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error closing temporary config file: %w", err)
	}

	if err := os.Rename(tempName, configPath); err != nil {
		os.Remove(tempName)
		return fmt.Errorf("error replacing config file: %w", err)
	}

	return nil
}

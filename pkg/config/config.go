// Package config loads the optional driftfs settings file. Settings feed
// the auth constructors and supply defaults for entity options; nothing
// in the core requires a settings file to exist.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Settings is the complete configuration surface.
type Settings struct {
	AWS      AWSSettings     `yaml:"aws"`
	Azure    AzureSettings   `yaml:"azure"`
	GCP      GCPSettings     `yaml:"gcp"`
	SSH      SSHSettings     `yaml:"ssh"`
	Defaults DefaultSettings `yaml:"defaults"`
}

// AWSSettings configures S3 and SQS access.
type AWSSettings struct {
	Region          string `yaml:"region"`
	Profile         string `yaml:"profile"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
	Endpoint        string `yaml:"endpoint"`
}

// AzureSettings configures Blob Storage and Queue Storage access.
type AzureSettings struct {
	ConnectionString string `yaml:"connection_string"`
	AccountName      string `yaml:"account_name"`
	AccountKey       string `yaml:"account_key"`
	ServiceURL       string `yaml:"service_url"`
}

// GCPSettings configures Cloud Storage access.
type GCPSettings struct {
	CredentialsFile string `yaml:"credentials_file"`
	ProjectID       string `yaml:"project_id"`
}

// SSHSettings configures SFTP access.
type SSHSettings struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	PrivateKeyFile string `yaml:"private_key_file"`
}

// DefaultSettings supplies entity and channel option defaults.
type DefaultSettings struct {
	Cache            bool          `yaml:"cache"`
	CreateIfMissing  bool          `yaml:"create_if_missing"`
	LoadMetadata     bool          `yaml:"load_metadata"`
	ChunkSize        int64         `yaml:"chunk_size"`
	PollingFrequency time.Duration `yaml:"polling_frequency"`
	MetricsNamespace string        `yaml:"metrics_namespace"`
}

// Default returns the settings used when no file is given.
func Default() *Settings {
	return &Settings{
		Defaults: DefaultSettings{
			MetricsNamespace: "driftfs",
		},
	}
}

// Load reads a YAML settings file and applies environment overrides.
func Load(path string) (*Settings, error) {
	s := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings file: %w", err)
	}
	s.applyEnvOverrides()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// applyEnvOverrides lets the standard provider environment variables win
// over file contents.
func (s *Settings) applyEnvOverrides() {
	if v := os.Getenv("AWS_REGION"); v != "" {
		s.AWS.Region = v
	}
	if v := os.Getenv("AWS_PROFILE"); v != "" {
		s.AWS.Profile = v
	}
	if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
		s.AWS.AccessKeyID = v
	}
	if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
		s.AWS.SecretAccessKey = v
	}
	if v := os.Getenv("AZURE_STORAGE_CONNECTION_STRING"); v != "" {
		s.Azure.ConnectionString = v
	}
	if v := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); v != "" {
		s.GCP.CredentialsFile = v
	}
}

// Validate rejects settings combinations that cannot work.
func (s *Settings) Validate() error {
	if s.Azure.ConnectionString == "" && s.Azure.AccountName != "" && s.Azure.AccountKey == "" {
		return fmt.Errorf("azure: account_name set without account_key or connection_string")
	}
	if s.SSH.Host != "" && s.SSH.Username == "" {
		return fmt.Errorf("ssh: host set without username")
	}
	if s.Defaults.ChunkSize < 0 {
		return fmt.Errorf("defaults: chunk_size must not be negative")
	}
	if s.Defaults.PollingFrequency < 0 {
		return fmt.Errorf("defaults: polling_frequency must not be negative")
	}
	return nil
}

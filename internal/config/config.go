// Package config handles configuration loading for the SMP.
//
// Configuration is loaded from a YAML file with support for environment
// variable expansion (${VAR} or $VAR syntax), so credentials such as the
// MongoDB URI can be injected at runtime.
//
// # Configuration Sections
//
//   - server: operational HTTP listener (health, readiness, metrics)
//   - smp: SMP identity and identifier policy
//   - storage: persistence backend (memory or mongodb)
//   - sml: SML registration client and DNS verification
//   - directory: business card directory indexer
//   - import: bulk import defaults
//   - users: known service group owners
//   - observability: metrics and tracing
//
// # Example Configuration
//
//	smp:
//	  id: SMP-EXAMPLE
//
//	storage:
//	  type: mongodb
//	  mongodb:
//	    uri: ${MONGODB_URI}
//	    database: smp
//
//	sml:
//	  enabled: true
//	  url: https://acc.edelivery.tech.ec.europa.eu/edelivery-sml
//	  certFile: /etc/smp/sml.crt
//	  keyFile: /etc/smp/sml.key
//	  dns:
//	    zone: acc.edelivery.tech.ec.europa.eu
//
//	users:
//	  - id: admin
//	    name: Administrator
//
// See [Load] for loading configuration from a file.
package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/go-smp/internal/tracing"
	"github.com/sirosfoundation/go-smp/internal/users"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

// Storage types
const (
	StorageMemory  = "memory"
	StorageMongoDB = "mongodb"
)

// Config is the root configuration structure
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	SMP           SMPConfig           `yaml:"smp"`
	Storage       StorageConfig       `yaml:"storage"`
	SML           SMLConfig           `yaml:"sml"`
	Directory     DirectoryConfig     `yaml:"directory"`
	Import        ImportConfig        `yaml:"import"`
	Users         []users.User        `yaml:"users"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds the operational HTTP listener settings
type ServerConfig struct {
	Port            int           `yaml:"port"`
	AdminKey        string        `yaml:"adminKey"` // API key for admin endpoints
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// SMPConfig identifies this SMP
type SMPConfig struct {
	ID string `yaml:"id"`

	// Participant schemes whose values are compared case-insensitively
	CaseInsensitiveParticipantSchemes []string `yaml:"caseInsensitiveParticipantSchemes"`
	CaseInsensitiveDocumentSchemes    []string `yaml:"caseInsensitiveDocumentSchemes"`
}

// StorageConfig holds persistence settings
type StorageConfig struct {
	// Type is memory or mongodb
	Type    string        `yaml:"type"`
	MongoDB MongoDBConfig `yaml:"mongodb"`
}

// MongoDBConfig holds MongoDB connection settings
type MongoDBConfig struct {
	URI      string        `yaml:"uri"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SMLConfig holds SML client settings
type SMLConfig struct {
	Enabled  bool          `yaml:"enabled"`
	URL      string        `yaml:"url"`
	CertFile string        `yaml:"certFile"`
	KeyFile  string        `yaml:"keyFile"`
	CAFile   string        `yaml:"caFile"`
	Timeout  time.Duration `yaml:"timeout"`
	DNS      struct {
		Zone   string `yaml:"zone"`
		Server string `yaml:"server"`
	} `yaml:"dns"`
}

// DirectoryConfig holds the business card directory settings
type DirectoryConfig struct {
	Enabled bool          `yaml:"enabled"`
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ImportConfig holds bulk import defaults
type ImportConfig struct {
	Workers       int           `yaml:"workers"`
	DefaultOwner  string        `yaml:"defaultOwner"`
	OwnerCacheTTL time.Duration `yaml:"ownerCacheTTL"`
}

// ObservabilityConfig holds metrics and tracing settings
type ObservabilityConfig struct {
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
	Tracing tracing.Config `yaml:"tracing"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse reads configuration from YAML data
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns the configuration of an empty file
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.SMP.ID == "" {
		c.SMP.ID = "SMP"
	}
	if c.SMP.CaseInsensitiveParticipantSchemes == nil {
		c.SMP.CaseInsensitiveParticipantSchemes = []string{identifier.SchemeParticipantISO6523}
	}
	if c.Storage.Type == "" {
		c.Storage.Type = StorageMemory
	}
	if c.Storage.MongoDB.Database == "" {
		c.Storage.MongoDB.Database = "smp"
	}
	if c.Storage.MongoDB.Timeout == 0 {
		c.Storage.MongoDB.Timeout = 10 * time.Second
	}
	if c.SML.Timeout == 0 {
		c.SML.Timeout = 30 * time.Second
	}
	if c.Directory.Timeout == 0 {
		c.Directory.Timeout = 30 * time.Second
	}
	if c.Import.Workers == 0 {
		c.Import.Workers = 8
	}
	if c.Import.OwnerCacheTTL == 0 {
		c.Import.OwnerCacheTTL = 5 * time.Minute
	}
	if c.Observability.Metrics.Path == "" {
		c.Observability.Metrics.Path = "/metrics"
	}
	if c.Observability.Tracing.Exporter == "" {
		c.Observability.Tracing.Exporter = tracing.ExporterNone
	}
}

func (c *Config) validate() error {
	switch c.Storage.Type {
	case StorageMemory:
	case StorageMongoDB:
		if c.Storage.MongoDB.URI == "" {
			return fmt.Errorf("storage.mongodb.uri is required when type is 'mongodb'")
		}
	default:
		return fmt.Errorf("storage.type must be 'memory' or 'mongodb', got '%s'", c.Storage.Type)
	}

	if c.SML.Enabled {
		if c.SML.URL == "" {
			return fmt.Errorf("sml.url is required when sml is enabled")
		}
		if (c.SML.CertFile == "") != (c.SML.KeyFile == "") {
			return fmt.Errorf("sml.certFile and sml.keyFile must be set together")
		}
	}

	if c.Directory.Enabled && c.Directory.URL == "" {
		return fmt.Errorf("directory.url is required when directory is enabled")
	}

	if c.Import.Workers < 1 {
		return fmt.Errorf("import.workers must be positive, got %d", c.Import.Workers)
	}

	return nil
}

// IdentifierFactory builds the identifier factory for the configured
// case policy
func (c *Config) IdentifierFactory() *identifier.Factory {
	return identifier.NewFactory(identifier.FactoryConfig{
		CaseInsensitiveParticipantSchemes: c.SMP.CaseInsensitiveParticipantSchemes,
		CaseInsensitiveDocumentSchemes:    c.SMP.CaseInsensitiveDocumentSchemes,
	})
}

// UserDirectory returns the configured owners, including the default
// import owner
func (c *Config) UserDirectory() *users.StaticDirectory {
	d := users.NewStaticDirectory(c.Users...)
	if c.Import.DefaultOwner != "" {
		if _, ok := d.Resolve(context.Background(), c.Import.DefaultOwner); !ok {
			d.Add(users.User{ID: c.Import.DefaultOwner})
		}
	}
	return d
}

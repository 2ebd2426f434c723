package config

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config application configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	NATS      NATSConfig      `yaml:"nats"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Custodian CustodianConfig `yaml:"custodian"`
	Yield     YieldConfig     `yaml:"yield"`
	Auth      AuthConfig      `yaml:"auth"`
	CORS      CORSConfig      `yaml:"cors"`
}

// ServerConfig server configuration
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig database configuration
type DatabaseConfig struct {
	DSN    string `yaml:"dsn"`
	Driver string `yaml:"driver"`
}

// NATSConfig audit event stream configuration
type NATSConfig struct {
	URL     string `yaml:"url"`
	Stream  string `yaml:"stream"`
	Subject string `yaml:"subject_prefix"`
	Timeout int    `yaml:"timeout"` // seconds
}

// LedgerConfig home ledger configuration
type LedgerConfig struct {
	NetworkID uint32 `yaml:"network_id"`
	Identity  string `yaml:"identity"` // hex address used in local id derivation
	FeeBps    uint32 `yaml:"fee_bps"`
	FeeVault  string `yaml:"fee_vault"` // hex address receiving fee shares
	Paused    bool   `yaml:"paused"`
}

// GatewayConfig remote gateway role configuration. When Enabled the service
// also runs a gateway custody ledger for the configured network.
type GatewayConfig struct {
	Enabled   bool   `yaml:"enabled"`
	NetworkID uint32 `yaml:"network_id"`
	Identity  string `yaml:"identity"`
}

// CustodianConfig points at the custody executor that actually moves the
// underlying asset. Empty base URL disables transport calls, leaving the
// ledger in pure accounting mode.
type CustodianConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"` // seconds
}

// YieldConfig configures the external yield vault integration.
type YieldConfig struct {
	BaseURL       string   `yaml:"base_url"`
	Timeout       int      `yaml:"timeout"` // seconds
	AllowedVaults []string `yaml:"allowed_vaults"`
}

// AuthConfig JWT authentication for relayer and admin callers
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
}

// CORSConfig CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins"`
	AllowCredentials bool     `yaml:"allow_credentials"`
	MaxAge           int      `yaml:"max_age"`
}

// AppConfig global application configuration
var AppConfig *Config

// LoadConfig loads configuration from a YAML file, falling back to
// config.local.yaml when present, then applies environment overrides.
func LoadConfig(configPath string) error {
	if configPath == "" {
		configPath = "config.yaml"
		if _, err := os.Stat("config.local.yaml"); err == nil {
			configPath = "config.local.yaml"
			log.Printf("Using local configuration file: config.local.yaml")
		}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	overrideFromEnv(&config)

	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Ledger.NetworkID == 0 {
		return fmt.Errorf("ledger.network_id is required")
	}

	AppConfig = &config
	log.Printf("✅ Configuration loaded from %s", configPath)
	return nil
}

// overrideFromEnv applies environment variable overrides on top of the file.
func overrideFromEnv(config *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		config.Database.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		config.NATS.URL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("LEDGER_PAUSED"); v != "" {
		if paused, err := strconv.ParseBool(v); err == nil {
			config.Ledger.Paused = paused
		}
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/feral-file/ff-minter/internal/domain"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`     // Maximum number of open connections to the database
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`     // Maximum number of idle connections in the pool
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`  // Maximum amount of time a connection may be reused (e.g., "5m", "1h")
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"` // Maximum amount of time a connection may be idle (e.g., "10m", "30m")
	ReplicaDSNs     []string      `mapstructure:"replica_dsns"`       // Optional read replicas, comma separated in env
}

// ChainConfig holds the EVM chain and mint contract configuration
type ChainConfig struct {
	RPCURL             string        `mapstructure:"rpc_url"`
	ChainID            domain.Chain  `mapstructure:"chain_id"`
	ContractAddress    string        `mapstructure:"contract_address"`
	SignerPrivateKey   string        `mapstructure:"signer_private_key"`
	MintPrice          string        `mapstructure:"mint_price"` // in ether, e.g. "0.01"
	ReceiptTimeout     time.Duration `mapstructure:"receipt_timeout"`
	GasLimitMultiplier float64       `mapstructure:"gas_limit_multiplier"`
}

// PinataConfig holds the metadata pinning service configuration
// Either JWT, or APIKey together with SecretAPIKey, must be set
type PinataConfig struct {
	APIURL       string        `mapstructure:"api_url"`
	GatewayURL   string        `mapstructure:"gateway_url"`
	JWT          string        `mapstructure:"jwt"`
	APIKey       string        `mapstructure:"api_key"`
	SecretAPIKey string        `mapstructure:"secret_api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// IdentityConfig holds the host session token verification configuration
type IdentityConfig struct {
	PublicKey string `mapstructure:"public_key"` // PEM encoded RSA, ECDSA or Ed25519 public key
	Issuer    string `mapstructure:"issuer"`
	Audience  string `mapstructure:"audience"`
}

// CollectionConfig holds the collectible pool configuration
type CollectionConfig struct {
	Name                string        `mapstructure:"name"`
	PoolSize            int           `mapstructure:"pool_size"`
	MaxSupply           int           `mapstructure:"max_supply"`
	ImageBaseURL        string        `mapstructure:"image_base_url"`
	GenerateDelay       time.Duration `mapstructure:"generate_delay"`
	MintedCountFallback int64         `mapstructure:"minted_count_fallback"`
	FrameURL            string        `mapstructure:"frame_url"` // post url of the frame embed
	FrameImageURL       string        `mapstructure:"frame_image_url"`
}

// SessionConfig holds the per-session guard configuration
type SessionConfig struct {
	TTL              time.Duration `mapstructure:"ttl"`
	GenerateDebounce time.Duration `mapstructure:"generate_debounce"`
	MintDebounce     time.Duration `mapstructure:"mint_debounce"`
}

// NATSConfig holds NATS JetStream configuration
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	StreamName     string        `mapstructure:"stream_name"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectionName string        `mapstructure:"connection_name"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds

	AllowedOrigins []string `mapstructure:"allowed_origins"` // empty allows every origin
}

// APIConfig holds configuration for the API server
type APIConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Chain      ChainConfig      `mapstructure:"chain"`
	Pinata     PinataConfig     `mapstructure:"pinata"`
	Identity   IdentityConfig   `mapstructure:"identity"`
	Collection CollectionConfig `mapstructure:"collection"`
	Session    SessionConfig    `mapstructure:"session"`
	NATS       NATSConfig       `mapstructure:"nats"`
}

// LoadAPIConfig loads configuration for the API server
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 180) // mint waits for the receipt
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("chain.rpc_url", "https://mainnet.base.org")
	v.SetDefault("chain.chain_id", string(domain.ChainBaseMainnet))
	v.SetDefault("chain.mint_price", "0.01")
	v.SetDefault("chain.receipt_timeout", "2m")
	v.SetDefault("chain.gas_limit_multiplier", 1.2)
	v.SetDefault("pinata.api_url", "https://api.pinata.cloud")
	v.SetDefault("pinata.gateway_url", domain.DEFAULT_IPFS_GATEWAY)
	v.SetDefault("pinata.timeout", "30s")
	v.SetDefault("collection.name", "Farcaster XBT")
	v.SetDefault("collection.pool_size", 1)
	v.SetDefault("collection.max_supply", 1000)
	v.SetDefault("collection.generate_delay", "5s")
	v.SetDefault("collection.minted_count_fallback", 67)
	v.SetDefault("session.ttl", "30m")
	v.SetDefault("session.generate_debounce", "600ms")
	v.SetDefault("session.mint_debounce", "800ms")
	v.SetDefault("nats.stream_name", "MINT_EVENTS")
	v.SetDefault("nats.max_reconnects", 10)
	v.SetDefault("nats.reconnect_wait", "2s")
	v.SetDefault("nats.connection_name", "ff-minter-api")

	if err := v.ReadInConfig(); err != nil {
		var error viper.ConfigFileNotFoundError
		if errors.As(err, &error) || errors.Is(err, os.ErrNotExist) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config APIConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// Validate checks the settings the API server cannot start without
func (c *APIConfig) Validate() error {
	var errs []error

	if c.Database.Host == "" {
		errs = append(errs, errors.New("database.host is required"))
	}
	if c.Database.DBName == "" {
		errs = append(errs, errors.New("database.dbname is required"))
	}
	if c.Chain.RPCURL == "" {
		errs = append(errs, errors.New("chain.rpc_url is required"))
	}
	if !domain.IsValidChain(c.Chain.ChainID) {
		errs = append(errs, fmt.Errorf("chain.chain_id %q is not supported", c.Chain.ChainID))
	}
	if c.Chain.ContractAddress == "" {
		errs = append(errs, errors.New("chain.contract_address is required"))
	}
	if c.Chain.SignerPrivateKey == "" {
		errs = append(errs, errors.New("chain.signer_private_key is required"))
	}
	if c.Identity.PublicKey == "" {
		errs = append(errs, errors.New("identity.public_key is required"))
	}
	if c.Collection.PoolSize <= 0 {
		errs = append(errs, errors.New("collection.pool_size must be positive"))
	}
	if c.Collection.ImageBaseURL == "" {
		errs = append(errs, errors.New("collection.image_base_url is required"))
	}
	if !c.Pinata.HasCredentials() {
		errs = append(errs, fmt.Errorf("pinata: %w", domain.ErrMissingCredentials))
	}

	return errors.Join(errs...)
}

// HasCredentials reports whether one of the two credential shapes is configured
func (c *PinataConfig) HasCredentials() bool {
	return c.JWT != "" || (c.APIKey != "" && c.SecretAPIKey != "")
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("FF_MINTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables
// This is required for viper to map env vars to config struct fields when no config file exists
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		"server.allowed_origins",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		"database.replica_dsns",
		// Chain
		"chain.rpc_url",
		"chain.chain_id",
		"chain.contract_address",
		"chain.signer_private_key",
		"chain.mint_price",
		"chain.receipt_timeout",
		"chain.gas_limit_multiplier",
		// Pinata
		"pinata.api_url",
		"pinata.gateway_url",
		"pinata.jwt",
		"pinata.api_key",
		"pinata.secret_api_key",
		"pinata.timeout",
		// Identity
		"identity.public_key",
		"identity.issuer",
		"identity.audience",
		// Collection
		"collection.name",
		"collection.pool_size",
		"collection.max_supply",
		"collection.image_base_url",
		"collection.generate_delay",
		"collection.minted_count_fallback",
		"collection.frame_url",
		"collection.frame_image_url",
		// Session
		"session.ttl",
		"session.generate_debounce",
		"session.mint_debounce",
		// NATS
		"nats.url",
		"nats.stream_name",
		"nats.max_reconnects",
		"nats.reconnect_wait",
		"nats.connection_name",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

package main

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/neverpay/creditledger/internal/logger"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultLoggingLevel    = logger.LevelInfo
	defaultOracleAddr      = "http://localhost:3000"
	defaultOracleAsset     = "usdc"
	defaultEnvironment     = logger.EnvProduction
	defaultCreditRate      = "50"
	defaultBaseShare       = "0.8"
	defaultAssetDecimals   = 6
	defaultRefreshInterval = time.Minute
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the creditledger service will be run
	ListenAddr string

	// Yield-source oracle address to connect to
	OracleAddr string

	// Asset identifier the oracle is queried for
	OracleAsset string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Platform access tokens are signed symmetrically with this key
	SecretKey string

	// Environment
	Environment string

	// Credits granted per whole unit deposited
	CreditRate string

	// Share of the credit rate granted upfront at deposit
	BaseShare string

	// Decimals of the deposited asset
	AssetDecimals int

	// Interval between background yield refresh rounds
	RefreshInterval time.Duration
}

func NewConfig() *Config {
	return &Config{
		LogLevel:        defaultLoggingLevel,
		ListenAddr:      defaultListenAddr,
		OracleAddr:      defaultOracleAddr,
		OracleAsset:     defaultOracleAsset,
		Environment:     defaultEnvironment,
		CreditRate:      defaultCreditRate,
		BaseShare:       defaultBaseShare,
		AssetDecimals:   defaultAssetDecimals,
		RefreshInterval: defaultRefreshInterval,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		c.LoadEnv(func(key string) string {
			return envMap[key]
		})
		return nil
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) {
		return func(value string) {
			if value != "" {
				*o = value
			}
		}
	}

	setInt := func(o *int) func(value string) {
		return func(value string) {
			if parsed, err := strconv.Atoi(value); err == nil {
				*o = parsed
			}
		}
	}

	setDuration := func(o *time.Duration) func(value string) {
		return func(value string) {
			if parsed, err := time.ParseDuration(value); err == nil {
				*o = parsed
			}
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":      setString(&c.ListenAddr),
		"DATABASE_URI":     setString(&c.DatabaseDSN),
		"SECRET_KEY":       setString(&c.SecretKey),
		"LOG_LEVEL":        setString(&c.LogLevel),
		"ORACLE_ADDRESS":   setString(&c.OracleAddr),
		"ORACLE_ASSET":     setString(&c.OracleAsset),
		"ENVIRONMENT":      setString(&c.Environment),
		"CREDIT_RATE":      setString(&c.CreditRate),
		"BASE_SHARE":       setString(&c.BaseShare),
		"ASSET_DECIMALS":   setInt(&c.AssetDecimals),
		"REFRESH_INTERVAL": setDuration(&c.RefreshInterval),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("creditledger", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.OracleAddr, "oracle", "r", c.OracleAddr, "Yield-source oracle address")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")
	fs.StringVar(&c.CreditRate, "credit-rate", c.CreditRate, "Credits per whole unit deposited")
	fs.StringVar(&c.BaseShare, "base-share", c.BaseShare, "Share of credits granted upfront")
	fs.IntVar(&c.AssetDecimals, "asset-decimals", c.AssetDecimals, "Decimals of the deposited asset")
	fs.DurationVar(&c.RefreshInterval, "refresh-interval", c.RefreshInterval, "Background yield refresh interval")

	return fs.Parse(args)
}

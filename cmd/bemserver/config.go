package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/bemserver/internal/handlers/middleware"
	"github.com/nkiryanov/bemserver/internal/logger"
	"github.com/nkiryanov/bemserver/internal/service/auth"
)

const (
	defaultListenAddr   = "localhost:8000"
	defaultLoggingLevel = logger.LevelInfo
	defaultEnvironment  = logger.EnvProduction
)

var defaultAuthMethods = []string{string(auth.SchemeBearer)}

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the server will be run
	ListenAddr string

	// Database to connect to
	DatabaseDSN string

	// Secret key
	// Some internal parts (like signing JWT tokens) uses symmetric encryption, so this key is used for that purpose
	SecretKey string

	// Enabled credential schemes: Bearer, Basic
	AuthMethods []string

	// Reverse proxies allowed to set X-Forwarded-For (CIDR or address)
	// Empty means client address is the connection address
	TrustedProxies []string

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:    defaultLoggingLevel,
		ListenAddr:  defaultListenAddr,
		AuthMethods: defaultAuthMethods,
		Environment: defaultEnvironment,
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

	// Set option to comma separated values if not empty
	setStrings := func(o *[]string) func(value string) {
		return func(value string) {
			if value == "" {
				return
			}
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			*o = parts
		}
	}

	envMap := map[string]func(string){
		"RUN_ADDRESS":     setString(&c.ListenAddr),
		"DATABASE_URI":    setString(&c.DatabaseDSN),
		"SECRET_KEY":      setString(&c.SecretKey),
		"AUTH_METHODS":    setStrings(&c.AuthMethods),
		"TRUSTED_PROXIES": setStrings(&c.TrustedProxies),
		"LOG_LEVEL":       setString(&c.LogLevel),
		"ENVIRONMENT":     setString(&c.Environment),
	}

	for key, parseFn := range envMap {
		parseFn(getenv(key))
	}
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("bemserver", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringSliceVarP(&c.AuthMethods, "auth-methods", "m", c.AuthMethods, "Enabled auth methods (Bearer, Basic)")
	fs.StringSliceVarP(&c.TrustedProxies, "trusted-proxies", "p", c.TrustedProxies, "Trusted reverse proxies (CIDR or address)")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}

// Check options that can't be checked by their consumers later
func (c *Config) Validate() error {
	if c.SecretKey == "" {
		return errors.New("secret key must be set")
	}
	if c.DatabaseDSN == "" {
		return errors.New("database must be set")
	}
	if _, err := auth.ParseSchemes(c.AuthMethods); err != nil {
		return err
	}
	if _, err := middleware.NewIPResolver(c.TrustedProxies); err != nil {
		return err
	}
	return nil
}

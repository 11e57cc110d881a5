// Package config resolves the fixed locations and settings of a scaffold run.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// FileName is the optional settings file looked up in the project root.
const FileName = "scaffold.toml"

// Config holds the settings of one run.
type Config struct {
	ModelsDir   string `toml:"models_dir"`
	OutputDir   string `toml:"output_dir"`
	OwnerTable  string `toml:"owner_table"`
	AppModule   string `toml:"app_module"`
	AppName     string `toml:"app_name"`
	SQLiteDSN   string `toml:"sqlite_dsn"`
	EnsureOwner bool   `toml:"ensure_owner"`

	// Provider forces the entity source: "cue", "sqlite" or "ent". Empty
	// selects sqlite when SQLiteDSN is set and cue otherwise.
	Provider string `toml:"provider"`
}

// Source returns the effective provider name.
func (c Config) Source() string {
	if c.Provider != "" {
		return c.Provider
	}
	if c.SQLiteDSN != "" {
		return "sqlite"
	}
	return "cue"
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		ModelsDir:  filepath.Join("app", "models"),
		OutputDir:  "app",
		OwnerTable: "users",
		AppModule:  "example.com/app",
		AppName:    "App",
	}
}

// Load starts from Default and applies, in order: a .env file in root,
// root/scaffold.toml, and SCAFFOLD_* environment variables. Both files are
// optional. Relative directories are resolved against root.
func Load(root string) (Config, error) {
	cfg := Default()

	envPath := filepath.Join(root, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return cfg, fmt.Errorf("load %s: %w", envPath, err)
		}
	}

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		if unknown := md.Undecoded(); len(unknown) > 0 {
			keys := make([]string, len(unknown))
			for i, k := range unknown {
				keys[i] = k.String()
			}
			return cfg, fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
		}
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	cfg.ModelsDir = resolve(root, cfg.ModelsDir)
	cfg.OutputDir = resolve(root, cfg.OutputDir)
	return cfg, nil
}

func (c *Config) applyEnv() error {
	for key, dst := range map[string]*string{
		"SCAFFOLD_MODELS_DIR":  &c.ModelsDir,
		"SCAFFOLD_OUTPUT_DIR":  &c.OutputDir,
		"SCAFFOLD_OWNER_TABLE": &c.OwnerTable,
		"SCAFFOLD_APP_MODULE":  &c.AppModule,
		"SCAFFOLD_APP_NAME":    &c.AppName,
		"SCAFFOLD_SQLITE_DSN":  &c.SQLiteDSN,
		"SCAFFOLD_PROVIDER":    &c.Provider,
	} {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	if v, ok := os.LookupEnv("SCAFFOLD_ENSURE_OWNER"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SCAFFOLD_ENSURE_OWNER: %w", err)
		}
		c.EnsureOwner = b
	}
	return nil
}

func (c *Config) validate() error {
	c.OwnerTable = strings.TrimSpace(c.OwnerTable)
	if c.OwnerTable == "" {
		return fmt.Errorf("owner_table is required")
	}
	c.AppModule = strings.TrimSpace(c.AppModule)
	if c.AppModule == "" {
		return fmt.Errorf("app_module is required")
	}
	switch c.Source() {
	case "cue":
		if c.ModelsDir == "" {
			return fmt.Errorf("models_dir is required")
		}
	case "sqlite":
		if c.SQLiteDSN == "" {
			return fmt.Errorf("sqlite_dsn is required for the sqlite provider")
		}
	case "ent":
	default:
		return fmt.Errorf("provider must be one of: cue, sqlite, ent")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	return nil
}

func resolve(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

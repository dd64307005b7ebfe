// Package config reads the YAML batch file that lists the schema cases to
// analyze, with environment variable overrides for secrets and output settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"

	"github.com/tordrt/schemausage/internal/annotation"
	"github.com/tordrt/schemausage/internal/loader"
	"github.com/tordrt/schemausage/internal/schema"
)

const (
	CurrentVersion = 1
	DefaultPath    = "cases.yaml"
)

// Config is the top-level batch configuration
type Config struct {
	Version  int            `yaml:"version" env-default:"1"`
	Logging  LogConfig      `yaml:"logging"`
	Output   OutputConfig   `yaml:"output"`
	Analysis AnalysisConfig `yaml:"analysis"`
	// RowCount holds defaults merged into every case that asks for row counts
	RowCount RowCountConfig `yaml:"rowcount"`
	Cases    []Case         `yaml:"cases"`
}

// LogConfig defines logging settings
type LogConfig struct {
	Level string `yaml:"level" env:"SCHEMAUSAGE_LOG_LEVEL" env-default:"info"` // debug, info, warn, error
}

// OutputConfig defines where and how the report is written
type OutputConfig struct {
	Format string `yaml:"format" env:"SCHEMAUSAGE_FORMAT" env-default:"text"` // text, markdown or json
	Path   string `yaml:"path,omitempty" env:"SCHEMAUSAGE_OUTPUT"`
	Dir    string `yaml:"dir,omitempty" env:"SCHEMAUSAGE_OUTPUT_DIR"`
	Plot   bool   `yaml:"plot,omitempty"`
}

// AnalysisConfig tunes the schema loader
type AnalysisConfig struct {
	ForeignKeyAnnotations string `yaml:"fkey_annotations" env-default:"last-key"` // last-key or foreign-key
	NameMatch             string `yaml:"name_match" env-default:"contains"`       // contains or contained-in
	Whitelist             string `yaml:"whitelist" env-default:"historical"`      // historical or corrected

	// Replace the built-in exclusion lists when set
	InfrastructureSchemas []string `yaml:"infrastructure_schemas,omitempty"`
	NonDomainSchemas      []string `yaml:"non_domain_schemas,omitempty"`
	TableNamePattern      *string  `yaml:"table_name_pattern,omitempty"`
}

// RowCountConfig selects the row counter: an ERMrest server or a SQL database
type RowCountConfig struct {
	Server     string        `yaml:"server,omitempty"`
	API        string        `yaml:"api,omitempty"`
	Catalog    string        `yaml:"catalog,omitempty"`
	Cookie     string        `yaml:"cookie,omitempty" env:"WEBAUTHN_COOKIE"`
	CountDBURL string        `yaml:"count_db_url,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

// Enabled reports whether a counter is configured
func (r RowCountConfig) Enabled() bool {
	return r.Server != "" || r.CountDBURL != ""
}

// Case is one schema to analyze
type Case struct {
	Name   string   `yaml:"name"`
	Schema string   `yaml:"schema"` // catalog JSON path or database URL
	Logs   []string `yaml:"logs,omitempty"`
	// TableMap renames logged schema:table ids to their current id
	TableMap map[string]string `yaml:"table_map,omitempty"`
	// FKMap renames logged schema:constraint names to their current name
	FKMap    map[string]string `yaml:"fk_map,omitempty"`
	RowCount *RowCountConfig   `yaml:"rowcount,omitempty"`
}

// ForeignKeyMapping parses FKMap
func (c Case) ForeignKeyMapping() (map[string]schema.ConstraintName, error) {
	out := make(map[string]schema.ConstraintName, len(c.FKMap))
	for from, to := range c.FKMap {
		if _, err := schema.ParseConstraintName(from); err != nil {
			return nil, err
		}
		name, err := schema.ParseConstraintName(to)
		if err != nil {
			return nil, err
		}
		out[from] = name
	}
	return out, nil
}

// Load reads and validates the batch file at path, with environment variable overrides
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := &Config{}
	if err := cleanenv.ReadConfig(ExpandHome(path), cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if cfg.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentVersion)
	}

	if err := cfg.resolveSecrets(); err != nil {
		return nil, fmt.Errorf("resolving secrets: %w", err)
	}

	cfg.applyDefaults(filepath.Dir(path))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Save writes the config to the given path
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath
	}
	path = ExpandHome(path)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(path, data, 0o600)
}

// Sample returns a starter configuration for init-config
func Sample() *Config {
	return &Config{
		Version:  CurrentVersion,
		Logging:  LogConfig{Level: "info"},
		Output:   OutputConfig{Format: "text"},
		Analysis: AnalysisConfig{ForeignKeyAnnotations: string(loader.FKAnnotationsLastKey), NameMatch: "contains", Whitelist: string(annotation.WhitelistHistorical)},
		RowCount: RowCountConfig{
			API:     "ermrest",
			Timeout: 30 * time.Second,
		},
		Cases: []Case{
			{
				Name:   "facebase",
				Schema: "schemas/facebase.json",
				Logs:   []string{"logs/facebase-2019.csv", "logs/facebase-2020.csv"},
				TableMap: map[string]string{
					"isa:imaging_data": "isa:imaging_file",
				},
				FKMap: map[string]string{
					"isa:dataset_project_fkey": "isa:dataset_project_id_fkey",
				},
				RowCount: &RowCountConfig{Server: "www.facebase.org", Catalog: "1"},
			},
			{
				Name:     "local",
				Schema:   "sqlite://local.db",
				RowCount: &RowCountConfig{CountDBURL: "sqlite://local.db"},
			},
		},
	}
}

// LoaderOptions builds the schema loader options from the analysis settings
func (c *Config) LoaderOptions() (loader.Options, error) {
	opts := loader.DefaultOptions()

	fk, err := loader.ParseForeignKeyAnnotationSource(c.Analysis.ForeignKeyAnnotations)
	if err != nil {
		return opts, err
	}
	opts.ForeignKeyAnnotations = fk

	match, err := loader.ParseNameMatch(c.Analysis.NameMatch)
	if err != nil {
		return opts, err
	}
	opts.Exclusion.NameMatch = match

	variant, err := annotation.ParseWhitelistVariant(c.Analysis.Whitelist)
	if err != nil {
		return opts, err
	}
	opts.Whitelist = annotation.WhitelistFor(variant)

	if c.Analysis.InfrastructureSchemas != nil {
		opts.Exclusion.InfrastructureSchemas = c.Analysis.InfrastructureSchemas
	}
	if c.Analysis.NonDomainSchemas != nil {
		opts.Exclusion.NonDomainSchemas = c.Analysis.NonDomainSchemas
	}
	if c.Analysis.TableNamePattern != nil {
		opts.Exclusion.TableNamePattern = *c.Analysis.TableNamePattern
	}

	return opts, nil
}

// Validate checks the cases and analysis settings
func (c *Config) Validate() error {
	if _, err := c.LoaderOptions(); err != nil {
		return err
	}

	if len(c.Cases) == 0 {
		return fmt.Errorf("no cases defined")
	}

	seen := make(map[string]bool, len(c.Cases))
	for i, cs := range c.Cases {
		if cs.Schema == "" {
			return fmt.Errorf("case %d (%s): schema is required", i+1, cs.Name)
		}
		if seen[cs.Name] {
			return fmt.Errorf("case %d: duplicate case name %q", i+1, cs.Name)
		}
		seen[cs.Name] = true

		for from, to := range cs.TableMap {
			if _, _, ok := schema.SplitTableID(from); !ok {
				return fmt.Errorf("case %s: invalid table_map key %q (expected schema:table)", cs.Name, from)
			}
			if _, _, ok := schema.SplitTableID(to); !ok {
				return fmt.Errorf("case %s: invalid table_map value %q (expected schema:table)", cs.Name, to)
			}
		}
		if _, err := cs.ForeignKeyMapping(); err != nil {
			return fmt.Errorf("case %s: fk_map: %w", cs.Name, err)
		}
		if cs.RowCount != nil && cs.RowCount.Server != "" && cs.RowCount.Catalog == "" {
			return fmt.Errorf("case %s: rowcount catalog is required with a server", cs.Name)
		}
	}

	return nil
}

// applyDefaults names unnamed cases, resolves relative paths against the
// config directory and merges the row-count defaults into each case
func (c *Config) applyDefaults(baseDir string) {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Output.Format == "" {
		c.Output.Format = "text"
	}

	for i := range c.Cases {
		cs := &c.Cases[i]
		if cs.Name == "" {
			cs.Name = strings.TrimSuffix(filepath.Base(cs.Schema), filepath.Ext(cs.Schema))
		}
		if !isDatabaseURL(cs.Schema) {
			cs.Schema = resolvePath(baseDir, cs.Schema)
		}
		for j, log := range cs.Logs {
			cs.Logs[j] = resolvePath(baseDir, log)
		}
		if cs.RowCount != nil {
			merged := c.RowCount.merge(*cs.RowCount)
			cs.RowCount = &merged
		}
	}
}

// merge fills the empty fields of override from r
func (r RowCountConfig) merge(override RowCountConfig) RowCountConfig {
	if override.Server == "" {
		override.Server = r.Server
	}
	if override.API == "" {
		override.API = r.API
	}
	if override.Catalog == "" {
		override.Catalog = r.Catalog
	}
	if override.Cookie == "" {
		override.Cookie = r.Cookie
	}
	if override.CountDBURL == "" {
		override.CountDBURL = r.CountDBURL
	}
	if override.Timeout == 0 {
		override.Timeout = r.Timeout
	}
	return override
}

func (c *Config) resolveSecrets() error {
	var err error
	c.RowCount.Cookie, err = ResolveValue(c.RowCount.Cookie)
	if err != nil {
		return fmt.Errorf("rowcount cookie: %w", err)
	}
	c.RowCount.CountDBURL, err = ResolveValue(c.RowCount.CountDBURL)
	if err != nil {
		return fmt.Errorf("rowcount count_db_url: %w", err)
	}

	for i := range c.Cases {
		cs := &c.Cases[i]
		cs.Schema, err = ResolveValue(cs.Schema)
		if err != nil {
			return fmt.Errorf("case %s schema: %w", cs.Name, err)
		}
		if cs.RowCount == nil {
			continue
		}
		cs.RowCount.Cookie, err = ResolveValue(cs.RowCount.Cookie)
		if err != nil {
			return fmt.Errorf("case %s rowcount cookie: %w", cs.Name, err)
		}
		cs.RowCount.CountDBURL, err = ResolveValue(cs.RowCount.CountDBURL)
		if err != nil {
			return fmt.Errorf("case %s rowcount count_db_url: %w", cs.Name, err)
		}
	}
	return nil
}

var secretPattern = regexp.MustCompile(`\$\{ENV:([^}]+)\}`)

// ResolveValue replaces every ${ENV:NAME} reference in val with the variable's value
func ResolveValue(val string) (string, error) {
	var missing []string
	resolved := secretPattern.ReplaceAllStringFunc(val, func(m string) string {
		name := secretPattern.FindStringSubmatch(m)[1]
		v := os.Getenv(name)
		if v == "" {
			missing = append(missing, name)
		}
		return v
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("environment variable %s not set", strings.Join(missing, ", "))
	}
	return resolved, nil
}

// ExpandHome expands ~ to the user's home directory
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

func resolvePath(baseDir, path string) string {
	path = ExpandHome(path)
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

func isDatabaseURL(s string) bool {
	for _, prefix := range []string{"postgres://", "postgresql://", "mysql://", "sqlite://"} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

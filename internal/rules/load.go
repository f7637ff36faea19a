package rules

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/spf13/viper"
)

//go:embed default_rules.yaml
var defaultRules []byte

type ruleFile struct {
	Rules []Definition `mapstructure:"rules"`
}

// DefaultTable returns the built-in rule table. Each call compiles a fresh
// table.
func DefaultTable() (Table, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewReader(defaultRules)); err != nil {
		return Table{}, fmt.Errorf("read default rules: %w", err)
	}
	return fromViper(v)
}

// LoadFile reads a rule table from a YAML, TOML or JSON file with a
// top-level "rules" list.
func LoadFile(path string) (Table, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Table{}, fmt.Errorf("read rule file %s: %w", path, err)
	}
	t, err := fromViper(v)
	if err != nil {
		return Table{}, fmt.Errorf("rule file %s: %w", path, err)
	}
	return t, nil
}

// Load returns the table from path, or the default table when path is empty.
func Load(path string) (Table, error) {
	if path == "" {
		return DefaultTable()
	}
	return LoadFile(path)
}

func fromViper(v *viper.Viper) (Table, error) {
	var f ruleFile
	if err := v.Unmarshal(&f); err != nil {
		return Table{}, fmt.Errorf("decode rules: %w", err)
	}
	return Compile(f.Rules)
}

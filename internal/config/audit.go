package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// AuditConfig holds settings for the audit command.
type AuditConfig struct {
	In        string
	Out       string
	PGDSN     string
	BatchSize int
	StateFile string
	StateName string
	EmitOK    bool
	Workers   int
	LogLevel  string
}

func LoadAudit(cfgFile string, flags *pflag.FlagSet) (AuditConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"out":        "./data/audit_findings.jsonl",
		"batch-size": 1000,
		"state-name": "audit",
		"workers":    4,
	})
	if err != nil {
		return AuditConfig{}, err
	}

	cfg := AuditConfig{
		In:        v.GetString("in"),
		Out:       v.GetString("out"),
		PGDSN:     v.GetString("pg-dsn"),
		BatchSize: v.GetInt("batch-size"),
		StateFile: v.GetString("state-file"),
		StateName: v.GetString("state-name"),
		EmitOK:    v.GetBool("emit-ok"),
		Workers:   v.GetInt("workers"),
		LogLevel:  v.GetString("log-level"),
	}
	if cfg.In == "" {
		return cfg, fmt.Errorf("input path is required")
	}
	if cfg.Workers <= 0 {
		return cfg, fmt.Errorf("workers must be > 0")
	}
	return cfg, nil
}

// ConvertConfig holds settings for the tick and sqrt commands.
type ConvertConfig struct {
	Decimals0 int32
	Decimals1 int32
	LogLevel  string
}

func LoadConvert(cfgFile string, flags *pflag.FlagSet) (ConvertConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"decimals0": 18,
		"decimals1": 18,
	})
	if err != nil {
		return ConvertConfig{}, err
	}
	cfg := ConvertConfig{
		Decimals0: v.GetInt32("decimals0"),
		Decimals1: v.GetInt32("decimals1"),
		LogLevel:  v.GetString("log-level"),
	}
	if cfg.Decimals0 < 0 || cfg.Decimals1 < 0 || cfg.Decimals0 > 77 || cfg.Decimals1 > 77 {
		return cfg, fmt.Errorf("token decimals must be within [0, 77]")
	}
	return cfg, nil
}

package main

import (
	"mone/internal/config"
	"mone/internal/core"
)

type options struct {
	cfg            *config.Config
	importDefaults core.ImportOptions
}

func cfgToOptions(cfg *config.Config) options {
	return options{
		cfg: cfg,
		importDefaults: core.ImportOptions{
			Delimiter:  cfg.ImportDelimiterRune(),
			Thousands:  cfg.ImportThousands,
			Decimal:    cfg.ImportDecimal,
			DateFormat: cfg.ImportDateFormat,
		},
	}
}

package config

import (
	_ "embed"
)

// default chainaide config
//
//go:embed default.config.yml
var DefaultConfigYml string

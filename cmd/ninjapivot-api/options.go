package main

import (
	"github.com/spf13/pflag"

	"github.com/spaghetti-software-inc/ninjapivot/internal/config"
)

// RunOptions are command line overrides applied on top of the environment
// configuration.
type RunOptions struct {
	Address  string
	LogLevel string
}

func DefaultRunOptions() RunOptions {
	return RunOptions{}
}

func (o *RunOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Address, "address", "a", o.Address, "Bind address of the API server")
	fs.StringVarP(&o.LogLevel, "log-level", "l", o.LogLevel, "Log level (debug, info, warn, error)")
}

func (o *RunOptions) Apply(cfg *config.Config) {
	if o.Address != "" {
		cfg.Service.Address = o.Address
	}
	if o.LogLevel != "" {
		cfg.Service.LogLevel = o.LogLevel
	}
}

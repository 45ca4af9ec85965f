package config

import (
	"github.com/spf13/pflag"
)

const (
	FlagURL               = "url"
	FlagUsername          = "username"
	FlagCertFile          = "certfile"
	FlagInsecure          = "insecure"
	FlagClient            = "client"
	FlagTimeout           = "timeout"
	FlagExportDomain      = "export-domain"
	FlagTargetDomain      = "target-domain"
	FlagCluster           = "cluster"
	FlagClone             = "clone"
	FlagCollapseSnapshots = "collapse-snapshots"
	FlagExclusive         = "exclusive"
	FlagDryRun            = "dry-run"
	FlagContinueOnError   = "continue-on-error"
	FlagRetries           = "retries"
	FlagLogFile           = "log-file"
	FlagLogLevel          = "log-level"
)

// overlays copy one flag-bound field from src to dst.
var overlays = map[string]func(dst, src *Config){
	FlagURL:               func(dst, src *Config) { dst.Engine.URL = src.Engine.URL },
	FlagUsername:          func(dst, src *Config) { dst.Engine.Username = src.Engine.Username },
	FlagCertFile:          func(dst, src *Config) { dst.Engine.CAFile = src.Engine.CAFile },
	FlagInsecure:          func(dst, src *Config) { dst.Engine.Insecure = src.Engine.Insecure },
	FlagClient:            func(dst, src *Config) { dst.Engine.Client = src.Engine.Client },
	FlagTimeout:           func(dst, src *Config) { dst.Engine.Timeout = src.Engine.Timeout },
	FlagExportDomain:      func(dst, src *Config) { dst.Import.ExportDomain = src.Import.ExportDomain },
	FlagTargetDomain:      func(dst, src *Config) { dst.Import.TargetDomain = src.Import.TargetDomain },
	FlagCluster:           func(dst, src *Config) { dst.Import.Cluster = src.Import.Cluster },
	FlagClone:             func(dst, src *Config) { dst.Import.Clone = src.Import.Clone },
	FlagCollapseSnapshots: func(dst, src *Config) { dst.Import.CollapseSnapshots = src.Import.CollapseSnapshots },
	FlagExclusive:         func(dst, src *Config) { dst.Import.Exclusive = src.Import.Exclusive },
	FlagDryRun:            func(dst, src *Config) { dst.Import.DryRun = src.Import.DryRun },
	FlagContinueOnError:   func(dst, src *Config) { dst.Import.ContinueOnError = src.Import.ContinueOnError },
	FlagRetries:           func(dst, src *Config) { dst.Import.Retries = src.Import.Retries },
	FlagLogFile:           func(dst, src *Config) { dst.Log.File = src.Log.File },
	FlagLogLevel:          func(dst, src *Config) { dst.Log.Level = src.Log.Level },
}

func BindFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.Engine.URL, FlagURL, "l", cfg.Engine.URL, "oVirt engine API URL, e.g. https://engine.example.com/ovirt-engine/api")
	fs.StringVarP(&cfg.Engine.Username, FlagUsername, "u", cfg.Engine.Username, "Username, e.g. admin@internal")
	fs.StringVarP(&cfg.Engine.CAFile, FlagCertFile, "c", cfg.Engine.CAFile, "Path to the engine CA certificate (PEM)")
	fs.BoolVar(&cfg.Engine.Insecure, FlagInsecure, cfg.Engine.Insecure, "Skip TLS certificate verification")
	fs.StringVar(&cfg.Engine.Client, FlagClient, cfg.Engine.Client, "Engine client. One of sdk|rest")
	fs.DurationVar(&cfg.Engine.Timeout, FlagTimeout, cfg.Engine.Timeout, "Timeout for each engine request")

	fs.StringVar(&cfg.Import.ExportDomain, FlagExportDomain, cfg.Import.ExportDomain, "Name of the export storage domain")
	fs.StringVar(&cfg.Import.TargetDomain, FlagTargetDomain, cfg.Import.TargetDomain, "Name of the storage domain the VMs are imported to")
	fs.StringVar(&cfg.Import.Cluster, FlagCluster, cfg.Import.Cluster, "Name of the cluster that owns the imported VMs")
	fs.BoolVar(&cfg.Import.Clone, FlagClone, cfg.Import.Clone, "Import the VMs as clones with new identifiers")
	fs.BoolVar(&cfg.Import.CollapseSnapshots, FlagCollapseSnapshots, cfg.Import.CollapseSnapshots, "Collapse the VM snapshots on import")
	fs.BoolVar(&cfg.Import.Exclusive, FlagExclusive, cfg.Import.Exclusive, "Take an exclusive lock on the VMs while importing")
	fs.BoolVar(&cfg.Import.DryRun, FlagDryRun, cfg.Import.DryRun, "List the VMs that would be imported without importing them")
	fs.BoolVar(&cfg.Import.ContinueOnError, FlagContinueOnError, cfg.Import.ContinueOnError, "Keep importing after a VM fails")
	fs.IntVar(&cfg.Import.Retries, FlagRetries, cfg.Import.Retries, "Retries for lookups and listing (imports are never retried)")

	fs.StringVar(&cfg.Log.File, FlagLogFile, cfg.Log.File, "Log file, - for stderr")
	fs.StringVar(&cfg.Log.Level, FlagLogLevel, cfg.Log.Level, "Log level. One of trace|debug|info|warn|error")
}

// Overlay copies onto dst every flag the user set explicitly, reading the
// values from the flag-bound src.
func Overlay(dst, src *Config, fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		if apply, ok := overlays[f.Name]; ok {
			apply(dst, src)
		}
	})
}

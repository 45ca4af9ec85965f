package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"ovirt-import/internal/config"
	"ovirt-import/internal/domain"
	"ovirt-import/internal/engine"
	"ovirt-import/internal/engine/rest"
	"ovirt-import/internal/engine/sdk"
	"ovirt-import/internal/logger"
	"ovirt-import/internal/service"
)

const (
	ExitCodeSuccess = 0
	ExitCodeFailure = 1
	ExitCodeUsage   = 2

	flagConfig = "config"
)

var openers = map[string]engine.Opener{
	config.ClientSDK:  openSDK,
	config.ClientREST: openREST,
}

func openSDK(ctx context.Context, cfg *config.EngineConfig) (engine.Engine, error) {
	c, err := sdk.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func openREST(ctx context.Context, cfg *config.EngineConfig) (engine.Engine, error) {
	c, err := rest.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// usageError marks command line misuse.
type usageError struct {
	err error
}

func (e *usageError) Error() string {
	return e.err.Error()
}

func (e *usageError) Unwrap() error {
	return e.err
}

type command struct {
	cfg        *config.Config
	configFile string
	helpShown  bool
	stdout     io.Writer
	stderr     io.Writer
}

// Execute runs the command line and returns the process exit code.
func Execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &command{
		cfg:    config.NewConfig(),
		stdout: stdout,
		stderr: stderr,
	}

	root := c.rootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)

	if c.helpShown {
		return ExitCodeUsage
	}

	if err == nil {
		return ExitCodeSuccess
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)

	var uerr *usageError
	if errors.As(err, &uerr) {
		return ExitCodeUsage
	}

	return ExitCodeFailure
}

func (c *command) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "ovirt-import -l <url> -u <username> [-c <cert_file>]",
		Short: "Import the VMs staged on an oVirt export storage domain",
		Long: `Import every VM found on an oVirt export storage domain into a target
storage domain and cluster.

The password is read from the OVIRT_PASSWORD environment variable, or
prompted for when it is not set.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				_ = cmd.Usage()
				return &usageError{fmt.Errorf("unexpected arguments: %v", args)}
			}
			return nil
		},
		PreRunE: c.validate,
		RunE:    c.run,
	}

	root.SetOut(c.stdout)
	root.SetErr(c.stderr)

	root.Flags().StringVar(&c.configFile, flagConfig, "", "Path to a YAML config file; flags override its values")
	config.BindFlags(root.Flags(), c.cfg)

	defaultHelp := root.HelpFunc()
	root.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		c.helpShown = true
		defaultHelp(cmd, args)
	})

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		_ = cmd.Usage()
		return &usageError{err}
	})

	return root
}

func (c *command) validate(cmd *cobra.Command, _ []string) error {
	if c.configFile != "" {
		fileCfg, err := config.LoadFile(c.configFile)
		if err != nil {
			return err
		}
		config.Overlay(fileCfg, c.cfg, cmd.Flags())
		c.cfg = fileCfg
	}

	if err := c.cfg.Validate(); err != nil {
		_ = cmd.Usage()
		return &usageError{err}
	}

	return nil
}

func (c *command) run(cmd *cobra.Command, _ []string) (err error) {
	closeLog, err := logger.Setup(logger.Options{
		File:       c.cfg.Log.File,
		Level:      c.cfg.Log.Level,
		MaxSizeMB:  c.cfg.Log.MaxSizeMB,
		MaxBackups: c.cfg.Log.MaxBackups,
	})
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Invoke(closeLog))

	log := logger.NewLogger("CLI")

	c.cfg.Engine.Password, err = getPassword(c.stderr)
	if err != nil {
		log.Error("Failed to get password: %v", err)
		return err
	}

	ctx := cmd.Context()
	open := openers[c.cfg.Engine.Client]

	log.Info("Importing from %s to %s on cluster %s via %s (%s client)",
		c.cfg.Import.ExportDomain, c.cfg.Import.TargetDomain, c.cfg.Import.Cluster, c.cfg.Engine.URL, c.cfg.Engine.Client)

	var report *domain.ImportReport
	err = engine.WithEngine(ctx, open, c.cfg.Engine, func(e engine.Engine) error {
		var runErr error
		report, runErr = service.NewImportService(c.cfg.Import, e, c.stdout).Run(ctx)
		return runErr
	})

	if report != nil {
		service.WriteImportReport(c.stdout, report)
	}

	if err != nil {
		log.Error("Import failed: %v", err)
		return err
	}

	log.Info("Import completed")
	return nil
}

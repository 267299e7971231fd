// Package cli implements the kura command line tool.
package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/edwinsyarief/kura"
	"github.com/edwinsyarief/kura/internal/config"
)

// RootOptions holds global flags and the state they produce.
type RootOptions struct {
	ConfigPath string
	Verbose    bool

	Config *config.Config
	Log    *logrus.Logger
}

// NewRootCommand creates the root command of the kura CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "kura",
		Short: "kura - inspect and convert world snapshots",
		Long: `Tools for kura world snapshots: inspect their structure, convert them
between formats and compressions, and keep them in a SQLite store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			if opts.Verbose {
				cfg.Log.Level = "debug"
			}
			opts.Config = cfg
			opts.Log = cfg.Logger()
			opts.Log.SetOutput(cmd.ErrOrStderr())
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to a TOML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewRecompressCommand(opts))
	cmd.AddCommand(NewStoreCommand(opts))

	return cmd
}

// openWorld returns a world able to hold any raw-encoded stream without the
// Go types behind it.
func (o *RootOptions) openWorld() *kura.World {
	w := kura.NewWorld(o.Config.WorldOptions(o.Log)...)
	w.Types().SetAllowOpaque(true)
	return w
}

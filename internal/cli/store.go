package cli

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/edwinsyarief/kura/snapshot"
)

// StoreOptions holds the store flags.
type StoreOptions struct {
	DB string
}

// NewStoreCommand creates the store command group.
func NewStoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{}
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage named snapshots in a SQLite store",
	}
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "store path (default from config)")

	open := func() (*snapshot.Store, error) {
		path := opts.DB
		if path == "" {
			path = rootOpts.Config.Snapshot.Store
		}
		rootOpts.Log.WithField("db", path).Debug("opening snapshot store")
		return snapshot.OpenStore(path)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			entries, err := s.List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tFORMAT\tCOMPRESSION\tSIZE\tSAVED")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Name, e.Format, e.Compression,
					humanize.IBytes(uint64(e.Size)), humanize.Time(e.CreatedAt))
			}
			return tw.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "put <name> <snapshot>",
		Short: "Store a snapshot file under a name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			h, err := s.Put(cmd.Context(), args[0], data)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "stored %s as %q\n", h.ID, args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "get <name> <snapshot>",
		Short: "Write a stored snapshot to a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			data, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return os.WriteFile(args[1], data, 0o644)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <name>",
		Short: "Delete a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			return s.Delete(cmd.Context(), args[0])
		},
	})

	return cmd
}

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/edwinsyarief/kura"
	"github.com/edwinsyarief/kura/snapshot"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	var headerOnly bool
	cmd := &cobra.Command{
		Use:   "inspect <snapshot>",
		Short: "Print a snapshot's header and storage layout",
		Long: `Print a snapshot's header, then reconstruct it and print its archetypes,
chunksets and chunks. Types are opened as opaque byte layouts, so only
snapshots whose values are raw-encoded can be reconstructed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return runInspect(rootOpts, f, cmd.OutOrStdout(), headerOnly)
		},
	}
	cmd.Flags().BoolVar(&headerOnly, "header", false, "print the header only")
	return cmd
}

func runInspect(opts *RootOptions, r io.Reader, out io.Writer, headerOnly bool) error {
	h, payload, err := snapshot.Unpack(r)
	if err != nil {
		return err
	}
	writeHeader(out, h)
	if headerOnly {
		return nil
	}
	w := opts.openWorld()
	if err := snapshot.Decode(w, h.Format, payload); err != nil {
		return errors.Wrap(err, "inspect")
	}
	fmt.Fprintln(out)
	return kura.WriteSummary(out, w)
}

func writeHeader(out io.Writer, h snapshot.Header) {
	ratio := 1.0
	if h.Size > 0 {
		ratio = float64(h.RawSize) / float64(h.Size)
	}
	fmt.Fprintf(out, "id:          %s\n", h.ID)
	fmt.Fprintf(out, "version:     %d\n", h.Version)
	fmt.Fprintf(out, "format:      %s\n", h.Format)
	fmt.Fprintf(out, "compression: %s\n", h.Compression)
	fmt.Fprintf(out, "size:        %s (%s raw, ratio %.2f)\n", humanize.IBytes(h.Size), humanize.IBytes(h.RawSize), ratio)
	fmt.Fprintf(out, "checksum:    %016x\n", h.Checksum)
}

package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/edwinsyarief/kura/snapshot"
)

// RecompressOptions holds the recompress flags. Empty values fall back to
// the configuration.
type RecompressOptions struct {
	Format      string
	Compression string
}

// NewRecompressCommand creates the recompress command.
func NewRecompressCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecompressOptions{}
	cmd := &cobra.Command{
		Use:   "recompress <in> <out>",
		Short: "Rewrite a snapshot with another compression or format",
		Long: `Rewrite a snapshot with another compression or format. Changing only the
compression copies the payload; changing the format reconstructs the
snapshot, which requires raw-encoded values.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer in.Close()
			var buf bytes.Buffer
			h, err := runRecompress(rootOpts, opts, in, &buf)
			if err != nil {
				return err
			}
			if err := os.WriteFile(args[1], buf.Bytes(), 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %s, %s\n", args[1], h.Format, h.Compression, humanize.IBytes(uint64(buf.Len())))
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Format, "format", "", "payload format (msgpack|yaml)")
	cmd.Flags().StringVar(&opts.Compression, "compression", "", "payload compression (none|lz4|zstd)")
	return cmd
}

func runRecompress(root *RootOptions, opts *RecompressOptions, r io.Reader, w io.Writer) (snapshot.Header, error) {
	format := opts.Format
	if format == "" {
		format = root.Config.Snapshot.Format
	}
	compression := opts.Compression
	if compression == "" {
		compression = root.Config.Snapshot.Compression
	}
	f, err := snapshot.ParseFormat(format)
	if err != nil {
		return snapshot.Header{}, err
	}
	c, err := snapshot.ParseCompression(compression)
	if err != nil {
		return snapshot.Header{}, err
	}

	h, payload, err := snapshot.Unpack(r)
	if err != nil {
		return snapshot.Header{}, err
	}
	if f != h.Format {
		world := root.openWorld()
		if err := snapshot.Decode(world, h.Format, payload); err != nil {
			return snapshot.Header{}, err
		}
		if payload, err = snapshot.Encode(world, f); err != nil {
			return snapshot.Header{}, err
		}
	}
	root.Log.WithField("id", h.ID).Debugf("recompress %s/%s -> %s/%s", h.Format, h.Compression, f, c)
	return snapshot.Pack(w, payload, snapshot.WithID(h.ID), snapshot.WithFormat(f), snapshot.WithCompression(c))
}

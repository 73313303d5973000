package cli

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"time"

	"panostitch/internal/config"
	"panostitch/internal/pipeline"
	"panostitch/internal/storage"
	"panostitch/internal/watch"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root Cobra command
func NewRootCmd(cfg *config.Config, log *slog.Logger, store *storage.Store, pipe *pipeline.Pipeline) *cobra.Command {
	root := NewRoot(pipe, cfg, log, store)

	rootCmd := &cobra.Command{
		Use:   "panostitch",
		Short: "Panostitch assembles cylindrical panoramas from rotating image sequences",
		Long: `Panostitch warps image sequences onto a cylinder, aligns neighbors by
feature matching, corrects rotation drift, and blends the result into a
single panorama.`,
	}

	rootCmd.AddCommand(newStitchCmd(root))
	rootCmd.AddCommand(newScanCmd(root))
	rootCmd.AddCommand(newRawCmd(root))
	rootCmd.AddCommand(newWatchCmd(root))
	rootCmd.AddCommand(newServeCmd(root))
	rootCmd.AddCommand(newConfigCmd(root))
	rootCmd.AddCommand(newVersionCmd(root))

	return rootCmd
}

func newStitchCmd(root *Root) *cobra.Command {
	var (
		output            string
		focal             float64
		blend             string
		drift             bool
		saveIntermediates bool
	)

	cmd := &cobra.Command{
		Use:   "stitch <input_directory> [output_path]",
		Short: "Stitch an image sequence into a cylindrical panorama",
		Long: `Stitch a directory of overlapping photos taken while rotating the camera.
Images are processed in filename order, so name them by capture order.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]

			if len(args) > 1 {
				output = args[1]
			}
			if output == "" {
				base := filepath.Base(filepath.Clean(input))
				output = filepath.Join(root.cfg.Paths.DefaultOutput, base+"_panorama.jpg")
			}

			options := map[string]any{
				"source":            "cli",
				"saveIntermediates": saveIntermediates,
			}
			if focal > 0 {
				options["focal"] = focal
			}
			if blend != "" {
				options["blend"] = blend
			}
			if cmd.Flags().Changed("drift") {
				options["drift"] = drift
			}

			job := pipeline.Job{
				ID:        newID("stitch"),
				Type:      pipeline.JobStitch,
				InputPath: input,
				Output:    output,
				Options:   options,
			}
			return root.enqueueAndWait(context.Background(), job)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output panorama path")
	cmd.Flags().Float64Var(&focal, "focal", 0, "focal length in pixels, overrides EXIF and config")
	cmd.Flags().StringVarP(&blend, "blend", "b", "", "blending method (average|linear|multiband)")
	cmd.Flags().BoolVar(&drift, "drift", true, "correct rotation drift across the sequence")
	cmd.Flags().BoolVar(&saveIntermediates, "save-intermediates", false, "save warped frames next to the panorama")

	return cmd
}

func newScanCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <input_directory>",
		Short: "Inventory a directory and record image metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := pipeline.Job{
				ID:        newID("scan"),
				Type:      pipeline.JobScan,
				InputPath: args[0],
				Options:   map[string]any{"source": "cli"},
			}
			return root.enqueueAndWait(context.Background(), job)
		},
	}
	return cmd
}

func newRawCmd(root *Root) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "raw <input_directory>",
		Short: "Convert RAW files in a directory to a stitchable format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job := pipeline.Job{
				ID:        newID("raw"),
				Type:      pipeline.JobRaw,
				InputPath: args[0],
				Options:   map[string]any{"source": "cli"},
			}
			return root.enqueueAndWait(context.Background(), job)
		},
	}
	return cmd
}

func newWatchCmd(root *Root) *cobra.Command {
	var (
		output string
		settle time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [inbox_directory]",
		Short: "Watch an inbox and stitch each sequence dropped into it",
		Long: `Watch a directory for incoming image sequences. Once no new frames have
arrived for the settle window, the whole inbox is stitched into a new
panorama in the output directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inbox := root.cfg.Watch.InboxDir
			if len(args) > 0 {
				inbox = args[0]
			}
			if inbox == "" {
				return fmt.Errorf("watch requires an inbox directory")
			}
			if output == "" {
				output = root.cfg.Paths.DefaultOutput
			}
			if settle == 0 {
				settle = time.Duration(root.cfg.Watch.SettleSeconds) * time.Second
			}

			w := watch.New(inbox, output, settle, root.pipeline, func() string {
				return newID("watch")
			}, root.log)
			return w.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "directory for finished panoramas")
	cmd.Flags().DurationVar(&settle, "settle", 0, "quiet period before a dropped sequence is stitched")

	return cmd
}

func newServeCmd(root *Root) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API for job status and alignment records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = root.cfg.Server.Addr
			}
			return root.serveFn(cmd.Context(), addr, root.store, root.pipeline, root.log)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address")

	return cmd
}

func newVersionCmd(root *Root) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Printf("panostitch v1.0.0-dev\n")
			cmd.Printf("Built with Go %s\n", runtime.Version())
			return nil
		},
	}
}

package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/technosupport/protect-dl/internal/protect"
)

func newCamerasCommand(a *app) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:     "cameras",
		Aliases: []string{"list-cameras"},
		Short:   "List the cameras known to the console",
		Example: `  protect-dl cameras --host 192.168.1.1 --user admin --pass secret
  protect-dl cameras --format json`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "table", "json", "yaml":
			default:
				return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
			}
			return a.requireConsole(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			cams, err := client.ListCameras(cmd.Context())
			if err != nil {
				return err
			}
			return printCameras(cmd.OutOrStdout(), format, cams)
		},
	}

	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json or yaml")
	return cmd
}

func printCameras(w io.Writer, format string, cams []protect.Camera) error {
	if cams == nil {
		cams = []protect.Camera{}
	}

	switch format {
	case "json":
		out, err := json.MarshalIndent(cams, "", "  ")
		if err != nil {
			return fmt.Errorf("encode cameras: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(cams); err != nil {
			return fmt.Errorf("encode cameras: %w", err)
		}
		return enc.Close()
	}

	if len(cams) == 0 {
		_, err := fmt.Fprintln(w, "No cameras found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "NAME\tID\tMAC")
	fmt.Fprintln(tw, "----\t--\t---")
	for _, cam := range cams {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", cam.Name, cam.ID, cam.Mac)
	}
	return tw.Flush()
}

package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/go-aquestalk/internal/tts"
)

func newVoicesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List factory and manifest voices",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			voices, err := listVoices(cfg.Voices.ManifestPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(voices)
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tDESCRIPTION")
			for _, v := range voices {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", v.ID, v.Type, v.Description)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print voices as JSON")

	return cmd
}

// listVoices reads the manifest without loading the native libraries.
// A missing manifest lists only the factory voices.
func listVoices(manifestPath string) ([]tts.Voice, error) {
	if manifestPath == "" || !fileExists(manifestPath) {
		return tts.FactoryVoices(), nil
	}
	vm, err := tts.NewVoiceManager(manifestPath)
	if err != nil {
		return nil, err
	}
	return vm.ListVoices(), nil
}

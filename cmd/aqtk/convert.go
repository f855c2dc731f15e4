package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConvertCmd() *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert kanji-kana text to koe and print it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			input, err := readSynthText(text, cmd.InOrStdin())
			if err != nil {
				return err
			}

			svc, err := openService(cfg)
			if err != nil {
				return mapSynthError(err)
			}
			defer func() { _ = svc.Close() }()

			koe, err := svc.Convert(input)
			if err != nil {
				return mapSynthError(err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), koe)
			return err
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to convert (if empty, read from stdin)")

	return cmd
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/go-aquestalk/internal/aquestalk"
)

func newLicenseCmd() *cobra.Command {
	types := make([]string, 0, len(aquestalk.LicenseTypes))
	for _, t := range aquestalk.LicenseTypes {
		types = append(types, string(t))
	}

	cmd := &cobra.Command{
		Use:   "license <type> <key>",
		Short: "Register one license key and print the native status code",
		Long: "Register a license key with the loaded library and print the code it returns.\n" +
			"Type is one of: " + strings.Join(types, ", ") + ".",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			lib, err := openLibrary(cfg)
			if err != nil {
				return mapSynthError(err)
			}
			defer func() { _ = lib.Close() }()

			engine := aquestalk.NewEngine(lib)
			code, err := engine.SetLicenseKey(aquestalk.LicenseType(args[0]), args[1])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if code != 0 {
				_, err = fmt.Fprintf(out, "%s: rejected (code %d)\n", args[0], code)
				return err
			}
			_, err = fmt.Fprintf(out, "%s: ok\n", args[0])
			return err
		},
	}

	return cmd
}

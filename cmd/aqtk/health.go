package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/example/go-aquestalk/internal/server"
)

func newHealthCmd() *cobra.Command {
	var addr string
	var licenses bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check a running server's health and license state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.ListenAddr
			}

			h, err := server.FetchHealth(addr)
			if err != nil {
				return fmt.Errorf("server at %s is not healthy: %w", addr, err)
			}
			out := cmd.OutOrStdout()
			if _, err := fmt.Fprintf(out, "ok (version %s)\n", h.Version); err != nil {
				return err
			}
			if !licenses {
				return nil
			}

			status, err := server.FetchLicenses(addr)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(status))
			for name := range status {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				state := "not configured"
				if status[name] {
					state = "configured"
				}
				fmt.Fprintf(out, "%s: %s\n", name, state)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP server address to probe")
	cmd.Flags().BoolVar(&licenses, "licenses", false, "Also report which license keys the server has configured")

	return cmd
}

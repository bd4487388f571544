package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snpedia-variant-pipeline/internal/setup"
)

func newSetupCmd(opts *RootOptions) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register the lite MCP server with a desktop MCP client",
	}
	cmd.PersistentFlags().StringVar(&configPath, "client-config", "", "client config file (default: the desktop client's config for this OS)")

	var binaryPath string
	install := &cobra.Command{
		Use:   "install",
		Short: "Add or replace the " + setup.ServerName + " server entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := setup.Configure(setup.Options{
				ConfigPath: configPath,
				BinaryPath: binaryPath,
				DataDir:    opts.liteConfig().DataDir,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "registered %s in %s; restart the client to load it\n", setup.ServerName, written)
			return nil
		},
	}
	install.Flags().StringVar(&binaryPath, "binary", "", "path to "+setup.BinaryName+" (default: searched on PATH)")

	remove := &cobra.Command{
		Use:   "remove",
		Short: "Remove the " + setup.ServerName + " server entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := setup.Remove(configPath)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]bool{"removed": removed})
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the current registration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := setup.GetStatus(configPath)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), st)
		},
	}

	cmd.AddCommand(install, remove, status)
	return cmd
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wagnerlima/memory-cloud/memory-store/internal/server"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects that hold entities or memory items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		projects, err := store.ListProjects(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(projects) == 0 {
			fmt.Fprintln(out, "(no projects)")
			return nil
		}
		for _, p := range projects {
			fmt.Fprintln(out, p)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", server.Name, server.Version)
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Open the database, apply migrations and print the schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		v, err := store.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: schema version %d\n", store.Path(), v)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(projectsCmd)
	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(schemaCmd)
}

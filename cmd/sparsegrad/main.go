// Package main provides the sparsegrad CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/born-ml/sparsegrad/internal/envconfig"
	"github.com/born-ml/sparsegrad/internal/logutil"
)

const version = "v0.0.1-dev"

func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI builds the root command.
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "sparsegrad",
		Short:         "Sparse reverse-mode differentiation of tensor expressions",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(logutil.NewLogger(cmd.ErrOrStderr(), envconfig.LogLevel()))
		},
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Print(cmd.UsageString())
		},
	}

	demoCmd := newDemoCmd()
	checkCmd := newCheckCmd()
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sparsegrad %s\n", version)
		},
	}

	envVars := envconfig.AsMap()
	envs := []envconfig.EnvVar{envVars["SPARSEGRAD_DEBUG"], envVars["SPARSEGRAD_SQUEEZE"]}
	for _, cmd := range []*cobra.Command{demoCmd, checkCmd} {
		appendEnvDocs(cmd, envs)
	}

	rootCmd.AddCommand(demoCmd, checkCmd, versionCmd)
	return rootCmd
}

func main() {
	if err := NewCLI().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

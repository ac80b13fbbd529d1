// Command examctl takes an assigned exam from a terminal.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stemsi/exstem-assessment/internal/client"
	"github.com/stemsi/exstem-assessment/internal/logger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "examctl",
		Short:        "Take a proctored exam from the terminal",
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.String("server", "http://localhost:8080/api/v1", "Assessment API base URL")
	pf.String("token", "", "Bearer token (or set EXAMCTL_TOKEN)")
	pf.String("log-level", "warn", "Log level (debug, info, warn, error)")
	pf.String("log-format", "pretty", "Log format (pretty, json)")

	root.AddCommand(takeCmd(), stateCmd())
	return root
}

func refFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int64("quiz", 0, "Quiz ID (or EXAMCTL_QUIZ)")
	f.Int64("session", 0, "Quiz session ID (or EXAMCTL_SESSION)")
	f.Int64("assignment", 0, "Assignment ID (or EXAMCTL_ASSIGNMENT)")
	f.Int64("user", 0, "Your user ID (or EXAMCTL_USER)")
}

// viperForCmd binds a command's flags and EXAMCTL_* environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())
	_ = v.BindPFlags(cmd.InheritedFlags())

	v.SetEnvPrefix("EXAMCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func setup(cmd *cobra.Command) (*viper.Viper, *client.Client, zerolog.Logger) {
	v := viperForCmd(cmd)
	log := logger.New(os.Stderr, v.GetString("log-level"), v.GetString("log-format"))
	return v, client.New(v.GetString("server"), v.GetString("token"), nil), log
}

// requireIDs checks IDs after flags and EXAMCTL_* variables are merged.
func requireIDs(v *viper.Viper, names ...string) error {
	for _, name := range names {
		if v.GetInt64(name) <= 0 {
			return fmt.Errorf("--%s or EXAMCTL_%s must be a positive ID", name, strings.ToUpper(name))
		}
	}
	return nil
}

func refFrom(v *viper.Viper) client.Ref {
	return client.Ref{
		QuizID:       v.GetInt64("quiz"),
		SessionID:    v.GetInt64("session"),
		UserID:       v.GetInt64("user"),
		AssignmentID: v.GetInt64("assignment"),
	}
}

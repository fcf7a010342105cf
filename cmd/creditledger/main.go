// Command creditledger serves the credit ledger API and runs its maintenance jobs.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/paperdesk/creditledger/internal/app"
	"github.com/paperdesk/creditledger/internal/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "creditledger",
	Short:         "Credit accounting ledger",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(resetDailyCmd)
	rootCmd.AddCommand(grantBonusCmd)
	rootCmd.AddCommand(createAdminCmd)

	resetDailyCmd.Flags().String("day", "", "Day to reset as YYYY-MM-DD (default today)")
	grantBonusCmd.Flags().String("day", "", "Day to grant as YYYY-MM-DD (default today)")
	createAdminCmd.Flags().StringP("username", "u", "", "Admin username")
	createAdminCmd.Flags().StringP("password", "p", "", "Admin password (generated when empty)")
	_ = createAdminCmd.MarkFlagRequired("username")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run the daily scheduler",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return app.RunServer(cmd.Context(), appConfig())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return app.Migrate(cmd.Context(), appConfig())
	},
}

var resetDailyCmd = &cobra.Command{
	Use:   "reset-daily",
	Short: "Reset daily usage of every due account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		day, _ := cmd.Flags().GetString("day")
		summary, errRun := app.RunResetDaily(cmd.Context(), appConfig(), day)
		if errPrint := printJSON(summary); errPrint != nil {
			return errPrint
		}
		return errRun
	},
}

var grantBonusCmd = &cobra.Command{
	Use:   "grant-bonus",
	Short: "Grant the daily bonus to paid users",
	RunE: func(cmd *cobra.Command, _ []string) error {
		day, _ := cmd.Flags().GetString("day")
		summary, errRun := app.GrantBonus(cmd.Context(), appConfig(), day)
		if errPrint := printJSON(summary); errPrint != nil {
			return errPrint
		}
		return errRun
	},
}

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an administrator account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		generated := password == ""
		stored, errCreate := app.CreateAdmin(cmd.Context(), appConfig(), username, password)
		if errCreate != nil {
			return errCreate
		}
		if generated {
			fmt.Fprintf(os.Stdout, "admin %s created, password: %s\n", username, stored)
			return nil
		}
		fmt.Fprintf(os.Stdout, "admin %s created\n", username)
		return nil
	},
}

func appConfig() config.AppConfig {
	return config.AppConfig{ConfigPath: configPath}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if errExec := rootCmd.ExecuteContext(ctx); errExec != nil {
		log.WithError(errExec).Error("creditledger failed")
		stop()
		os.Exit(1)
	}
}

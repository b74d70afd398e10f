package cmd

import (
	"fmt"
	"os"

	"github.com/nguyentranbao-ct/crm-console/internal/app"
	"github.com/nguyentranbao-ct/crm-console/internal/kafka"
	"github.com/nguyentranbao-ct/crm-console/internal/logger"
	"github.com/nguyentranbao-ct/crm-console/internal/server"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "crm-console",
	Short:         "Multi-operator CRM and chat console",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		defer logger.Sync()
		app.Invoke(
			server.StartServer,
			kafka.StartConsumer,
		).Run()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

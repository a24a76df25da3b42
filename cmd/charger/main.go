// Command charger runs automated charges against payers' saved payment methods.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:           "charger",
		Short:         "Charge saved payment methods without the payer present",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (env vars override it)")

	rootCmd.AddCommand(chargeCmd())
	rootCmd.AddCommand(checkValidCmd())
	rootCmd.AddCommand(checkRepeatCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(healthCmd())

	if err := rootCmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			if exitErr.err != nil {
				fmt.Fprintln(os.Stderr, "Error:", exitErr.err)
			}
			os.Exit(exitErr.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitFailure)
	}
}

// Package cmd contains the wallet app commands.
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

var (
	privateKeyName string
	walletPath     string
	url            string
)

const (
	keyExtension = ".ecdsa"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Your simple wallet",
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&privateKeyName, "wallet", "w", "private.ecdsa", "Name of the private key file.")
	rootCmd.PersistentFlags().StringVarP(&walletPath, "wallet-path", "p", "zblock/accounts/", "Path to the directory with private keys.")
	rootCmd.PersistentFlags().StringVarP(&url, "url", "u", "http://localhost:3001", "Url of the node.")
}

func getPrivateKeyPath() string {
	name := privateKeyName
	if !strings.HasSuffix(name, keyExtension) {
		name += keyExtension
	}
	return filepath.Join(walletPath, name)
}

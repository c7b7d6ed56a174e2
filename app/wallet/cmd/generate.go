package cmd

import (
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ledgerlab/minichain/foundation/nameservice"
	"github.com/spf13/cobra"
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate new key pair",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := crypto.GenerateKey()
		if err != nil {
			log.Fatal(err)
		}

		path := getPrivateKeyPath()
		if err := crypto.SaveECDSA(path, privateKey); err != nil {
			log.Fatal(err)
		}

		fmt.Println("Key:", path)
		fmt.Println("Address:", nameservice.Address(privateKey))
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

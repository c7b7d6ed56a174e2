package cmd

import (
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ledgerlab/minichain/foundation/nameservice"
	"github.com/spf13/cobra"
)

// addressCmd represents the address command
var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print address for the specific wallet",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(nameservice.Address(privateKey))
	},
}

func init() {
	rootCmd.AddCommand(addressCmd)
}

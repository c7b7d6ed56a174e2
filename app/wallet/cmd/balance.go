package cmd

import (
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ledgerlab/minichain/foundation/nameservice"
	"github.com/spf13/cobra"
)

// balanceCmd represents the balance command
var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance.",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			log.Fatal(err)
		}
		address := nameservice.Address(privateKey)

		var bal struct {
			Name    string `json:"name"`
			Balance uint64 `json:"balance"`
		}
		if err := get(fmt.Sprintf("%s/v1/balance/%s", url, address), &bal); err != nil {
			log.Fatal(err)
		}

		fmt.Println("For Address:", address)
		fmt.Println(bal.Balance)
	},
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

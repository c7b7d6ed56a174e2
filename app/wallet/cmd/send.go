package cmd

import (
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ledgerlab/minichain/foundation/blockchain/database"
	"github.com/ledgerlab/minichain/foundation/blockchain/signature"
	"github.com/ledgerlab/minichain/foundation/blockchain/utxo"
	"github.com/ledgerlab/minichain/foundation/nameservice"
	"github.com/spf13/cobra"
)

var (
	to     string
	amount uint64
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send coins and mine the transaction into a block",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			log.Fatal(err)
		}

		if !signature.IsValidPublicKey(to) {
			log.Fatalf("invalid receiver address %q", to)
		}

		address := nameservice.Address(privateKey)

		var unspent []utxo.UnspentTxOut
		if err := get(fmt.Sprintf("%s/v1/utxos/%s", url, address), &unspent); err != nil {
			log.Fatal(err)
		}

		tx, err := utxo.NewTransfer(signature.ToHexString(crypto.FromECDSA(privateKey)), to, amount, utxo.NewSetFromList(unspent))
		if err != nil {
			log.Fatal(err)
		}

		req := struct {
			Transactions []utxo.Transaction `json:"transactions"`
		}{
			Transactions: []utxo.Transaction{tx},
		}

		var block database.Block
		if err := post(fmt.Sprintf("%s/v1/blocks/mine", url), req, &block); err != nil {
			log.Fatal(err)
		}

		fmt.Println("Transaction:", tx.ID)
		fmt.Printf("Mined in block %d: %s\n", block.Index, block.Hash)
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Address of the receiver.")
	sendCmd.MarkFlagRequired("to")
	sendCmd.Flags().Uint64VarP(&amount, "amount", "a", 0, "Amount to send.")
	sendCmd.MarkFlagRequired("amount")
}

package main

import "github.com/ledgerlab/minichain/app/wallet/cmd"

func main() {
	cmd.Execute()
}

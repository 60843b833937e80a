package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ckbwallet/cellwallet/address"
	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/keymgr"
	"github.com/ckbwallet/cellwallet/netparams"
	"github.com/ckbwallet/cellwallet/script"
	"github.com/ckbwallet/cellwallet/wallet"
)

// signedTx is what the transaction commands print.
type signedTx struct {
	Hash        cell.Hash         `json:"hash"`
	Fee         string            `json:"fee"`
	Transaction *cell.Transaction `json:"transaction"`
}

// signAndPrint asks for the wallet passphrase, signs atx, checks the result
// and prints it.
func (a *app) signAndPrint(atx *wallet.AuthoredTx) error {

	pass, err := promptPass("Wallet passphrase", false)
	if err != nil {
		return err
	}
	defer func() {
		for i := range pass {
			pass[i] = 0
		}
	}()

	tx, err := a.wallet.SignTransaction(a.ctx, a.cfg.WalletID, atx, pass)
	if err != nil {
		return err
	}

	err = wallet.VerifyWitnesses(tx, atx.InputCells, a.cfg.params)
	if err != nil {
		return fmt.Errorf("signed transaction fails "+
			"verification: %w", err)
	}

	hash := tx.Hash()
	log.Infof("Signed transaction %v spending %d cells with fee %v",
		hash, len(tx.Inputs), atx.Fee)

	return printJSON(signedTx{
		Hash:        hash,
		Fee:         atx.Fee.String(),
		Transaction: tx,
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}

// encodeAddress returns the full address of a key's default lock.
func encodeAddress(info keymgr.AddressInfo,
	params *netparams.Params) (string, error) {

	lock := script.DefaultLock(info.Blake160, params)
	return address.Encode(&lock, params)
}

package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/keymgr"
	"github.com/ckbwallet/cellwallet/script"
	"github.com/jessevdk/go-flags"
)

type createCommand struct {
	Seed            string `long:"seed" description:"Hex encoded seed to restore the wallet from"`
	ExtendedKey     string `long:"xprv" description:"Extended private root key to create the wallet from"`
	ReceivingWindow uint32 `long:"receivingwindow" description:"Number of unused receiving addresses kept derived"`
	ChangeWindow    uint32 `long:"changewindow" description:"Number of unused change addresses kept derived"`

	app *app
}

func newCreateCommand(a *app) *createCommand {
	return &createCommand{
		ReceivingWindow: keymgr.DefaultReceivingWindow,
		ChangeWindow:    keymgr.DefaultChangeWindow,
		app:             a,
	}
}

func (x *createCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"create",
		"Create a new wallet",
		"Create a wallet from a fresh seed, a given seed or an "+
			"extended private key and store it encrypted under a "+
			"passphrase; a fresh seed is printed once so it can "+
			"be written down",
		x,
	)
	return err
}

func (x *createCommand) Execute(_ []string) error {
	params := keymgr.CreateParams{Mode: keymgr.ModeImportSeed}

	switch {
	case x.Seed != "" && x.ExtendedKey != "":
		return errors.New("--seed and --xprv can't be used together")

	case x.Seed != "":
		seed, err := hex.DecodeString(x.Seed)
		if err != nil {
			return fmt.Errorf("invalid seed: %w", err)
		}
		params.Seed = seed

	case x.ExtendedKey != "":
		root, err := hdkeychain.NewKeyFromString(x.ExtendedKey)
		if err != nil {
			return fmt.Errorf("invalid extended key: %w", err)
		}
		params.Mode = keymgr.ModeImportExtKey
		params.RootKey = root

	default:
		seed, err := hdkeychain.GenerateSeed(
			hdkeychain.RecommendedSeedLen,
		)
		if err != nil {
			return err
		}
		params.Seed = seed

		fmt.Printf("Your wallet generation seed is:\n%x\n", seed)
		fmt.Println("IMPORTANT: Keep the seed in a safe place as " +
			"you will NOT be able to restore your wallet " +
			"without it.")
	}

	pass, err := promptPass("Enter the passphrase for your new wallet",
		true)
	if err != nil {
		return err
	}
	params.Passphrase = pass

	cfg := x.app.cfg
	ks, err := keymgr.NewKeystore(params, cfg.params)
	if err != nil {
		return err
	}

	err = x.app.store.CreateWallet(
		x.app.ctx, cfg.WalletID, ks, x.ReceivingWindow, x.ChangeWindow,
	)
	if err != nil {
		return err
	}

	first, err := x.app.store.NextUnusedReceivingAddress(
		x.app.ctx, cfg.WalletID,
	)
	if err != nil {
		return err
	}

	addr, err := encodeAddress(first, cfg.params)
	if err != nil {
		return err
	}

	fmt.Printf("Created wallet %s on %s\nReceiving address: %s\n",
		cfg.WalletID, cfg.params.Name, addr)

	return nil
}

type listAddressesCommand struct {
	app *app
}

func newListAddressesCommand(a *app) *listAddressesCommand {
	return &listAddressesCommand{app: a}
}

func (x *listAddressesCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"addresses",
		"List the wallet's derived addresses",
		"List every receiving and change address derived so far with "+
			"its derivation path and whether a cell has used it",
		x,
	)
	return err
}

func (x *listAddressesCommand) Execute(_ []string) error {
	addrs, err := x.app.store.AllAddresses(x.app.ctx, x.app.cfg.WalletID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PATH\tADDRESS\tUSED")
	for _, info := range addrs {
		addr, err := encodeAddress(info, x.app.cfg.params)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%v\t%s\t%v\n", info.Path, addr, info.Used)
	}

	return w.Flush()
}

type newAddressCommand struct {
	Change bool `long:"change" description:"Return the next change address instead"`

	app *app
}

func newNewAddressCommand(a *app) *newAddressCommand {
	return &newAddressCommand{app: a}
}

func (x *newAddressCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"newaddress",
		"Show the next unused address",
		"Show the first receiving address, or change address with "+
			"--change, that no cell has used yet",
		x,
	)
	return err
}

func (x *newAddressCommand) Execute(_ []string) error {
	next := x.app.store.NextUnusedReceivingAddress
	if x.Change {
		next = x.app.store.NextUnusedChangeAddress
	}

	info, err := next(x.app.ctx, x.app.cfg.WalletID)
	if err != nil {
		return err
	}

	addr, err := encodeAddress(info, x.app.cfg.params)
	if err != nil {
		return err
	}
	fmt.Println(addr)

	return nil
}

type balanceCommand struct {
	app *app
}

func newBalanceCommand(a *app) *balanceCommand {
	return &balanceCommand{app: a}
}

func (x *balanceCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"balance",
		"Show the wallet's balances",
		"Show the capacity held under the wallet's default locks and "+
			"the balance of each asset account",
		x,
	)
	return err
}

func (x *balanceCommand) Execute(_ []string) error {
	var (
		ctx      = x.app.ctx
		walletID = x.app.cfg.WalletID
		params   = x.app.cfg.params
	)

	addrs, err := x.app.store.AllAddresses(ctx, walletID)
	if err != nil {
		return err
	}

	lockHashes := make([]cell.Hash, 0, len(addrs))
	for _, info := range addrs {
		lock := script.DefaultLock(info.Blake160, params)
		lockHashes = append(lockHashes, lock.Hash())
	}

	total, err := x.app.store.LiveCapacity(ctx, lockHashes)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Default locks\t%v\t\n", total)

	accounts, err := x.app.store.AssetAccounts(ctx, walletID)
	if err != nil {
		return err
	}

	for _, account := range accounts {
		capacity, amount, err := x.app.wallet.AcpBalance(ctx, account)
		if err != nil {
			return err
		}

		name := fmt.Sprintf("CKB account %x", account.Blake160)
		account.Token.WhenSome(func(token cell.Hash) {
			name = fmt.Sprintf("Token %v account %x", token,
				account.Blake160)
		})

		fmt.Fprintf(w, "%s\t%v\t%v\n", name, capacity, amount)
	}

	return w.Flush()
}

package main

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ckbwallet/cellwallet/address"
	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/wallet"
	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// errAccountNotFound is returned when no asset account matches the token and
// key hash given.
var errAccountNotFound = errors.New("asset account not found")

// findAccount returns the wallet's asset account holding token. With a key
// hash the account must use that key, otherwise the first one is taken.
func (a *app) findAccount(token fn.Option[cell.Hash],
	keyHash string) (wallet.AssetAccount, error) {

	accounts, err := a.store.AssetAccounts(a.ctx, a.cfg.WalletID)
	if err != nil {
		return wallet.AssetAccount{}, err
	}

	var key []byte
	if keyHash != "" {
		key, err = hex.DecodeString(keyHash)
		if err != nil {
			return wallet.AssetAccount{}, fmt.Errorf("invalid "+
				"account key hash: %w", err)
		}
	}

	for _, account := range accounts {
		if account.Token != token {
			continue
		}
		if key != nil && string(key) != string(account.Blake160[:]) {
			continue
		}

		return account, nil
	}

	return wallet.AssetAccount{}, fmt.Errorf("%w: token %v",
		errAccountNotFound, fn.MapOptionZ(token, cell.Hash.String))
}

type createAccountCommand struct {
	Token tokenFlag `long:"token" description:"sUDT type args of the token the account holds; omit for a CKB account"`

	app *app
}

func newCreateAccountCommand(a *app) *createAccountCommand {
	return &createAccountCommand{app: a}
}

func (x *createAccountCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"createaccount",
		"Create an asset account",
		"Create the anyone-can-pay cell backing a new CKB or token "+
			"account, paid for from the wallet's plain cells",
		x,
	)
	return err
}

func (x *createAccountCommand) Execute(_ []string) error {
	atx, account, err := x.app.wallet.CreateAssetAccountTx(x.app.ctx,
		&wallet.AssetAccountIntent{
			WalletID: x.app.cfg.WalletID,
			Token:    x.Token.Token(),
			Fee:      x.app.feePolicy(),
		},
	)
	if err != nil {
		return err
	}

	if err := x.app.signAndPrint(atx); err != nil {
		return err
	}

	return x.app.store.AddAssetAccount(
		x.app.ctx, x.app.cfg.WalletID, account,
	)
}

type accountTransferCommand struct {
	Token    tokenFlag    `long:"token" description:"sUDT type args of the account's token; omit for a CKB account"`
	Account  string       `long:"account" description:"Hex key hash of the paying account; defaults to the first account of the token"`
	To       string       `long:"to" description:"Anyone-can-pay address of the receiving account" required:"true"`
	Capacity capacityFlag `long:"capacity" description:"CKB sent from a CKB account"`
	Amount   udtFlag      `long:"amount" description:"Token amount sent from a token account"`

	app *app
}

func newAccountTransferCommand(a *app) *accountTransferCommand {
	return &accountTransferCommand{app: a}
}

func (x *accountTransferCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"accounttransfer",
		"Send from an asset account",
		"Move CKB or tokens from one of the wallet's asset accounts "+
			"into the anyone-can-pay cell of another account",
		x,
	)
	return err
}

func (x *accountTransferCommand) Execute(_ []string) error {
	account, err := x.app.findAccount(x.Token.Token(), x.Account)
	if err != nil {
		return err
	}

	atx, err := x.app.wallet.CreateAcpTransferTx(x.app.ctx,
		&wallet.AcpTransferIntent{
			WalletID: x.app.cfg.WalletID,
			Account:  account,
			Target:   x.To,
			Capacity: x.Capacity.Capacity,
			Amount:   x.Amount.UDTAmount,
			Fee:      x.app.feePolicy(),
		},
	)
	if err != nil {
		return err
	}

	return x.app.signAndPrint(atx)
}

type chequeCommand struct {
	Token    tokenFlag `long:"token" description:"sUDT type args of the token sent" required:"true"`
	Account  string    `long:"account" description:"Hex key hash of the paying account; defaults to the first account of the token"`
	Receiver string    `long:"receiver" description:"Default lock address allowed to claim the cheque" required:"true"`
	Amount   udtFlag   `long:"amount" description:"Token amount sent" required:"true"`

	app *app
}

func newChequeCommand(a *app) *chequeCommand {
	return &chequeCommand{app: a}
}

func (x *chequeCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"cheque",
		"Send tokens as a cheque",
		"Send tokens from a token account as a cheque the receiver "+
			"claims later; the wallet can take it back if it is "+
			"left unclaimed",
		x,
	)
	return err
}

func (x *chequeCommand) Execute(_ []string) error {
	if x.Token.Token().IsNone() {
		return fmt.Errorf("%w: --token", errMissingFlag)
	}

	account, err := x.app.findAccount(x.Token.Token(), x.Account)
	if err != nil {
		return err
	}

	atx, err := x.app.wallet.CreateChequeTx(x.app.ctx, &wallet.ChequeIntent{
		WalletID: x.app.cfg.WalletID,
		Account:  account,
		Receiver: x.Receiver,
		Amount:   x.Amount.UDTAmount,
		Fee:      x.app.feePolicy(),
	})
	if err != nil {
		return err
	}

	return x.app.signAndPrint(atx)
}

type claimChequeCommand struct {
	OutPoint outPointFlag `long:"outpoint" description:"The cheque cell as <tx hash>:<index>" required:"true"`
	Sender   string       `long:"sender" description:"Address of the cheque's sender, which gets the cheque capacity back" required:"true"`

	app *app
}

func newClaimChequeCommand(a *app) *claimChequeCommand {
	return &claimChequeCommand{app: a}
}

func (x *claimChequeCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"claimcheque",
		"Claim a cheque sent to the wallet",
		"Move the tokens of a cheque into the wallet's token account, "+
			"creating the account when needed, and return the "+
			"cheque capacity to its sender",
		x,
	)
	return err
}

func (x *claimChequeCommand) Execute(_ []string) error {
	senderLock, err := address.Parse(x.Sender, x.app.cfg.params)
	if err != nil {
		return fmt.Errorf("sender: %w", err)
	}

	atx, err := x.app.wallet.CreateClaimChequeTx(x.app.ctx,
		&wallet.ClaimChequeIntent{
			WalletID:   x.app.cfg.WalletID,
			OutPoint:   x.OutPoint.OutPoint,
			SenderLock: *senderLock,
			Fee:        x.app.feePolicy(),
		},
	)
	if err != nil {
		return err
	}

	return x.app.signAndPrint(atx)
}

type withdrawChequeCommand struct {
	OutPoint outPointFlag `long:"outpoint" description:"The cheque cell as <tx hash>:<index>" required:"true"`

	app *app
}

func newWithdrawChequeCommand(a *app) *withdrawChequeCommand {
	return &withdrawChequeCommand{app: a}
}

func (x *withdrawChequeCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"withdrawcheque",
		"Take back an unclaimed cheque",
		"Return the tokens and capacity of a cheque the wallet sent "+
			"once it has gone unclaimed for the claim period",
		x,
	)
	return err
}

func (x *withdrawChequeCommand) Execute(_ []string) error {
	atx, err := x.app.wallet.CreateWithdrawChequeTx(x.app.ctx,
		&wallet.WithdrawChequeIntent{
			WalletID: x.app.cfg.WalletID,
			OutPoint: x.OutPoint.OutPoint,
			Fee:      x.app.feePolicy(),
		},
	)
	if err != nil {
		return err
	}

	return x.app.signAndPrint(atx)
}

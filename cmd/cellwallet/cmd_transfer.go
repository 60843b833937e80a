package main

import (
	"fmt"
	"strings"

	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
	"github.com/ckbwallet/cellwallet/wallet"
	"github.com/jessevdk/go-flags"
	"github.com/lightningnetwork/lnd/fn/v2"
)

type transferCommand struct {
	To      []string `long:"to" description:"Payment as <address>:<amount in CKB>; repeat for several outputs" required:"true"`
	SendAll bool     `long:"sendall" description:"Spend every plain cell; the last --to receives what is left after the other payments and the fee, so its amount may be omitted"`
	Since   uint64   `long:"since" description:"Lock every payment under the receiver's key until this since value"`

	app *app
}

func newTransferCommand(a *app) *transferCommand {
	return &transferCommand{app: a}
}

func (x *transferCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"transfer",
		"Send CKB",
		"Pay one or more addresses from the wallet's plain cells and "+
			"print the signed transaction",
		x,
	)
	return err
}

// parseTargets parses the --to values. Only the last one may omit the
// amount, and only when sending everything.
func (x *transferCommand) parseTargets() ([]wallet.TargetOutput, error) {
	since := fn.None[uint64]()
	if x.Since != 0 {
		since = fn.Some(x.Since)
	}

	targets := make([]wallet.TargetOutput, 0, len(x.To))
	for i, to := range x.To {
		addr, amount, ok := strings.Cut(to, ":")

		target := wallet.TargetOutput{Address: addr, Since: since}
		switch {
		case ok:
			capacity, err := ckbunit.ParseCapacity(amount)
			if err != nil {
				return nil, fmt.Errorf("--to %s: %w", to, err)
			}
			target.Capacity = capacity

		case !x.SendAll || i != len(x.To)-1:
			return nil, fmt.Errorf("%w: --to %s has no amount",
				errMissingFlag, to)
		}

		targets = append(targets, target)
	}

	return targets, nil
}

func (x *transferCommand) Execute(_ []string) error {
	targets, err := x.parseTargets()
	if err != nil {
		return err
	}

	intent := &wallet.TransferIntent{
		WalletID: x.app.cfg.WalletID,
		Outputs:  targets,
		Fee:      x.app.feePolicy(),
	}

	create := x.app.wallet.CreateTransferTx
	if x.SendAll {
		create = x.app.wallet.CreateSendAllTx
	}

	atx, err := create(x.app.ctx, intent)
	if err != nil {
		return err
	}

	return x.app.signAndPrint(atx)
}

type depositCommand struct {
	Amount capacityFlag `long:"amount" description:"CKB to deposit"`
	All    bool         `long:"all" description:"Deposit every plain cell minus the fee"`

	app *app
}

func newDepositCommand(a *app) *depositCommand {
	return &depositCommand{app: a}
}

func (x *depositCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"deposit",
		"Deposit CKB into the Nervos DAO",
		"Lock CKB in the Nervos DAO under the next unused receiving "+
			"address",
		x,
	)
	return err
}

func (x *depositCommand) Execute(_ []string) error {
	if !x.All && x.Amount.Capacity == 0 {
		return fmt.Errorf("%w: --amount or --all", errMissingFlag)
	}

	atx, err := x.app.wallet.CreateDepositTx(x.app.ctx,
		&wallet.DepositIntent{
			WalletID: x.app.cfg.WalletID,
			Capacity: x.Amount.Capacity,
			SendAll:  x.All,
			Fee:      x.app.feePolicy(),
		},
	)
	if err != nil {
		return err
	}

	return x.app.signAndPrint(atx)
}

type withdrawCommand struct {
	OutPoint outPointFlag `long:"outpoint" description:"The DAO cell as <tx hash>:<index>" required:"true"`
	Finalize bool         `long:"finalize" description:"Finish a started withdrawal instead of starting one"`

	app *app
}

func newWithdrawCommand(a *app) *withdrawCommand {
	return &withdrawCommand{app: a}
}

func (x *withdrawCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"withdraw",
		"Withdraw a Nervos DAO deposit",
		"Start withdrawing a deposit, or with --finalize claim the "+
			"deposit and its interest once the lock period of a "+
			"started withdrawal has passed",
		x,
	)
	return err
}

func (x *withdrawCommand) Execute(_ []string) error {
	intent := &wallet.WithdrawIntent{
		WalletID: x.app.cfg.WalletID,
		OutPoint: x.OutPoint.OutPoint,
		Fee:      x.app.feePolicy(),
	}

	create := x.app.wallet.CreateStartWithdrawTx
	if x.Finalize {
		create = x.app.wallet.CreateFinalizeWithdrawTx
	}

	atx, err := create(x.app.ctx, intent)
	if err != nil {
		return err
	}

	return x.app.signAndPrint(atx)
}

type unlockCommand struct {
	OutPoint outPointFlag `long:"outpoint" description:"The time locked cell as <tx hash>:<index>" required:"true"`
	Address  string       `long:"address" description:"Address receiving the capacity; defaults to the next unused receiving address"`

	app *app
}

func newUnlockCommand(a *app) *unlockCommand {
	return &unlockCommand{app: a}
}

func (x *unlockCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"unlock",
		"Spend a time locked payment",
		"Move a time locked payment whose lock time has passed to a "+
			"plain address",
		x,
	)
	return err
}

func (x *unlockCommand) Execute(_ []string) error {
	atx, err := x.app.wallet.CreateMultisigTimelockWithdrawTx(x.app.ctx,
		&wallet.MultisigTimelockIntent{
			WalletID: x.app.cfg.WalletID,
			OutPoint: x.OutPoint.OutPoint,
			Address:  x.Address,
			Fee:      x.app.feePolicy(),
		},
	)
	if err != nil {
		return err
	}

	return x.app.signAndPrint(atx)
}

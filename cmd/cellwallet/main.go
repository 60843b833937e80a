// Copyright (c) 2025 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Command cellwallet manages CKB wallets kept in a local database. It builds
// and signs transactions from the cells fed to it and prints them as JSON,
// ready to be sent by a node.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ckbwallet/cellwallet/internal/db"
	"github.com/ckbwallet/cellwallet/pkg/ckbunit"
	"github.com/ckbwallet/cellwallet/wallet"
	"github.com/jessevdk/go-flags"
)

// subCommand is a command that registers itself with the parser.
type subCommand interface {
	Register(parser *flags.Parser) error
}

// app holds what the commands share once the global options are parsed.
type app struct {
	cfg *config

	// ctx is cancelled on interrupt.
	ctx context.Context

	store  *db.SQLiteStore
	wallet *wallet.Wallet
}

// setup validates the config, starts logging and opens the database.
func (a *app) setup() error {
	if err := a.cfg.validate(); err != nil {
		return err
	}

	if a.cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	err := initLogRotator(
		filepath.Join(a.cfg.LogDir, a.cfg.params.Name,
			defaultLogFilename),
		a.cfg.MaxLogFileSize, a.cfg.MaxLogFiles,
	)
	if err != nil {
		return err
	}

	if err := parseAndSetDebugLevels(a.cfg.DebugLevel); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(a.cfg.dbPath), 0700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	a.store, err = db.Open(a.cfg.dbPath)
	if err != nil {
		return err
	}

	a.wallet, err = wallet.New(wallet.Config{
		Params:        a.cfg.params,
		Cells:         a.store,
		Addresses:     a.store,
		AssetAccounts: a.store,
		Chain:         a.store,
		MaxFeeRate:    ckbunit.NewFeeRate(a.cfg.MaxFeeRate),
	})

	return err
}

// shutdown releases what setup acquired.
func (a *app) shutdown() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Errorf("Unable to close database: %v", err)
		}
	}

	closeLogRotator()
}

// run is the parser's command handler. It sets the app up before handing
// over to the selected command.
func (a *app) run(cmd flags.Commander, args []string) error {
	if cmd == nil {
		return nil
	}

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer cancel()
	a.ctx = ctx

	if err := a.setup(); err != nil {
		a.shutdown()
		return err
	}
	defer a.shutdown()

	return cmd.Execute(args)
}

// feePolicy returns the fee policy of the global fee options.
func (a *app) feePolicy() wallet.FeePolicy {
	return wallet.NewFeePolicy(ckbunit.Capacity(a.cfg.Fee), a.cfg.feeRate())
}

func commands(a *app) []subCommand {
	return []subCommand{
		newCreateCommand(a),
		newListAddressesCommand(a),
		newNewAddressCommand(a),
		newBalanceCommand(a),
		newImportCellsCommand(a),
		newSpendCellsCommand(a),
		newImportHeadersCommand(a),
		newTransferCommand(a),
		newDepositCommand(a),
		newWithdrawCommand(a),
		newUnlockCommand(a),
		newCreateAccountCommand(a),
		newAccountTransferCommand(a),
		newChequeCommand(a),
		newClaimChequeCommand(a),
		newWithdrawChequeCommand(a),
	}
}

func main() {
	cfg := defaultConfig()
	a := &app{cfg: &cfg}

	parser := flags.NewParser(&cfg, flags.HelpFlag|flags.PassDoubleDash)
	parser.CommandHandler = a.run

	for _, c := range commands(a) {
		if err := c.Register(parser); err != nil {
			fatalf("unable to register command: %v", err)
		}
	}

	if err := loadConfigFile(parser, &cfg); err != nil {
		fatalf("%v", err)
	}

	if _, err := parser.Parse(); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}

		fatalf("%v", err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ckbwallet/cellwallet/cell"
	"github.com/ckbwallet/cellwallet/chain"
	"github.com/jessevdk/go-flags"
)

// readJSONFile decodes a JSON file, or stdin when path is "-".
func readJSONFile(path string, v any) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}

	return nil
}

type importCellsCommand struct {
	File string `long:"file" description:"JSON file holding an array of live cells; - reads stdin" required:"true"`

	app *app
}

func newImportCellsCommand(a *app) *importCellsCommand {
	return &importCellsCommand{app: a}
}

func (x *importCellsCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"importcells",
		"Add live cells to the wallet database",
		"Add the live cells of a JSON array, as returned by an "+
			"indexer, to the database and mark the wallet "+
			"addresses they are locked to as used",
		x,
	)
	return err
}

func (x *importCellsCommand) Execute(_ []string) error {
	var cells []cell.Cell
	if err := readJSONFile(x.File, &cells); err != nil {
		return err
	}

	if err := x.app.store.InsertCells(x.app.ctx, cells...); err != nil {
		return err
	}

	used, err := x.app.store.MarkCellsUsed(
		x.app.ctx, x.app.cfg.WalletID, cells,
	)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d cells, %d addresses newly used\n",
		len(cells), used)

	return nil
}

type spendCellsCommand struct {
	app *app
}

func newSpendCellsCommand(a *app) *spendCellsCommand {
	return &spendCellsCommand{app: a}
}

func (x *spendCellsCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"spendcells",
		"Remove spent cells from the wallet database",
		"Remove the cells at the out points given as arguments, "+
			"each as <tx hash>:<index>, once a transaction "+
			"spending them was sent",
		x,
	)
	return err
}

func (x *spendCellsCommand) Execute(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no out points given", errMissingFlag)
	}

	outPoints := make([]cell.OutPoint, 0, len(args))
	for _, arg := range args {
		op, err := parseOutPoint(arg)
		if err != nil {
			return err
		}
		outPoints = append(outPoints, op)
	}

	return x.app.store.SpendCells(x.app.ctx, outPoints...)
}

type importHeadersCommand struct {
	File string `long:"file" description:"JSON file holding an array of block headers; - reads stdin" required:"true"`

	app *app
}

func newImportHeadersCommand(a *app) *importHeadersCommand {
	return &importHeadersCommand{app: a}
}

func (x *importHeadersCommand) Register(parser *flags.Parser) error {
	_, err := parser.AddCommand(
		"importheaders",
		"Add block headers to the wallet database",
		"Add block headers to the database; the highest one becomes "+
			"the tip that time locks, cheques and DAO withdrawals "+
			"are checked against",
		x,
	)
	return err
}

func (x *importHeadersCommand) Execute(_ []string) error {
	var headers []*chain.Header
	if err := readJSONFile(x.File, &headers); err != nil {
		return err
	}
	if len(headers) == 0 {
		return nil
	}

	if err := x.app.store.PutHeaders(x.app.ctx, headers...); err != nil {
		return err
	}

	tip, err := x.app.store.TipHeader(x.app.ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d headers, tip at %d\n", len(headers),
		tip.Number)

	return nil
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"os"
	"strings"

	"github.com/ruteri/music-copyright-registry/access"
	"github.com/ruteri/music-copyright-registry/cmd/appcommon"
	"github.com/ruteri/music-copyright-registry/cmd/flags"
	"github.com/ruteri/music-copyright-registry/interfaces"
	"github.com/ruteri/music-copyright-registry/registration"
	"github.com/urfave/cli/v2"
)

var flagRegistrant = &cli.StringFlag{
	Name:  "registrant",
	Usage: "only list records registered by this account",
}
var flagFile = &cli.StringFlag{
	Name:  "file",
	Usage: "audio file to upload",
}
var flagTitle = &cli.StringFlag{
	Name:     "title",
	Required: true,
	Usage:    "title of the work",
}
var flagAuthor = &cli.StringFlag{
	Name:     "author",
	Required: true,
	Usage:    "author of the work",
}
var flagLicense = &cli.StringFlag{
	Name:  "license",
	Value: registration.DefaultLicense,
	Usage: "license the work is published under",
}
var flagCID = &cli.StringFlag{
	Name:  "cid",
	Usage: "content id of an already uploaded file",
}
var flagID = &cli.Uint64Flag{
	Name:     "id",
	Required: true,
	Usage:    "record id",
}
var flagYes = &cli.BoolFlag{
	Name:  "yes",
	Usage: "pay the access fee without asking",
}

func main() {
	app := &cli.App{
		Name:  "musicreg",
		Usage: "Register music on the copyright registry and view certificates",
		Flags: flags.Join(
			flags.LedgerFlags,
			flags.CertificateFlags,
			flags.LogFlags,
			[]cli.Flag{flags.StoreFlag, flags.LogServiceFlagFn("musicreg")},
		),
		Commands: []*cli.Command{
			{
				Name:  "fees",
				Usage: "show the current registration and access fees",
				Action: withApp(func(cCtx *cli.Context, app *appcommon.App) error {
					if err := app.Fees.Refresh(cCtx.Context); err != nil {
						return err
					}
					schedule, _ := app.Fees.Current()
					return printJSON(schedule)
				}),
			},
			{
				Name:  "list",
				Usage: "list registered works, newest first",
				Flags: []cli.Flag{flagRegistrant},
				Action: withApp(func(cCtx *cli.Context, app *appcommon.App) error {
					if err := app.Catalog.RefreshAll(cCtx.Context); err != nil {
						return err
					}
					records, _ := app.Catalog.Records()
					if registrant := cCtx.String(flagRegistrant.Name); registrant != "" {
						records = app.Catalog.FilterByRegistrant(registrant)
					}
					return printJSON(records)
				}),
			},
			{
				Name:  "upload",
				Usage: "upload an audio file to the content store and print its content id",
				Flags: []cli.Flag{flagFile},
				Action: func(cCtx *cli.Context) error {
					logger := flags.SetupLogger(cCtx)
					data, err := readFile(cCtx.String(flagFile.Name))
					if err != nil {
						return err
					}

					store, err := appcommon.SetupStore(cCtx, logger)
					if err != nil {
						return err
					}
					flow := registration.NewFlow(nil, nil, nil, store, logger)
					id, err := flow.Upload(cCtx.Context, data)
					if err != nil {
						return err
					}
					fmt.Println(id)
					return nil
				},
			},
			{
				Name:  "register",
				Usage: "register a work, uploading it first when --file is given",
				Flags: []cli.Flag{flagTitle, flagAuthor, flagLicense, flagFile, flagCID},
				Action: withApp(func(cCtx *cli.Context, app *appcommon.App) error {
					filePath, cid := cCtx.String(flagFile.Name), cCtx.String(flagCID.Name)
					if (filePath == "") == (cid == "") {
						return errors.New("exactly one of --file and --cid is required")
					}

					flow, err := app.Registration(cCtx)
					if err != nil {
						return err
					}
					if err := app.Fees.Refresh(cCtx.Context); err != nil {
						return err
					}

					submission := registration.Submission{
						Title:     cCtx.String(flagTitle.Name),
						Author:    cCtx.String(flagAuthor.Name),
						ContentID: interfaces.ContentID(cid),
						License:   cCtx.String(flagLicense.Name),
					}

					var result *registration.Result
					if filePath != "" {
						data, err := readFile(filePath)
						if err != nil {
							return err
						}
						result, err = flow.RegisterFile(cCtx.Context, data, submission)
						if err != nil {
							return err
						}
					} else {
						result, err = flow.Register(cCtx.Context, submission)
						if err != nil {
							return err
						}
					}

					if result.Warning != "" {
						fmt.Fprintln(os.Stderr, "warning:", result.Warning)
					}
					return printJSON(result)
				}),
			},
			{
				Name:  "view",
				Usage: "show a record's certificate, paying the access fee if required",
				Flags: []cli.Flag{flagID, flagYes},
				Action: withApp(func(cCtx *cli.Context, app *appcommon.App) error {
					if err := app.Fees.Refresh(cCtx.Context); err != nil {
						return err
					}
					if err := app.Catalog.RefreshAll(cCtx.Context); err != nil {
						return err
					}

					id := cCtx.Uint64(flagID.Name)
					record, ok := app.Catalog.Lookup(id)
					if !ok {
						return fmt.Errorf("%w: id %d", interfaces.ErrNotFound, id)
					}

					var viewer interfaces.ViewerContext
					if signer, err := app.Ledger.Signer(); err == nil {
						viewer.Account = signer.Hex()
					}

					var confirm access.Confirmer = &promptConfirmer{in: os.Stdin, out: os.Stderr}
					if cCtx.Bool(flagYes.Name) {
						confirm = access.AlwaysConfirm
					}

					outcome, err := app.Gate.Run(cCtx.Context, viewer, record, confirm)
					if err != nil {
						return fmt.Errorf("%s: %w", outcome.Reason, err)
					}
					if outcome.Warning != "" {
						fmt.Fprintln(os.Stderr, "warning:", outcome.Warning)
					}
					return printJSON(outcome.Certificate)
				}),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func withApp(fn func(cCtx *cli.Context, app *appcommon.App) error) cli.ActionFunc {
	return func(cCtx *cli.Context) error {
		logger := flags.SetupLogger(cCtx)
		app, err := appcommon.Setup(cCtx, logger)
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(cCtx, app)
	}
}

// promptConfirmer asks on the terminal before any payment.
type promptConfirmer struct {
	in  io.Reader
	out io.Writer
}

func (p *promptConfirmer) ConfirmPayment(ctx context.Context, record interfaces.Record, fee *big.Int) (bool, error) {
	fmt.Fprintf(p.out, "Viewing %q (#%d) costs %s wei. Pay? [y/N] ", record.Title, record.ID, fee)

	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func readFile(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("--file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", path, err)
	}
	return data, nil
}

func printJSON(v interface{}) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(encoded))
	return nil
}

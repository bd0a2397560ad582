// Command lnchannels-cli is a small operator CLI for the lnchannels
// ingestion pipeline: inspecting and nudging the scanner's cursor and
// try-later queue, and dumping a channel's accumulated facts, without
// having to reach for psql directly.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/lightningnetwork/lnchannels/graph"
	"github.com/lightningnetwork/lnchannels/scanner"
	"github.com/lightningnetwork/lnchannels/store"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "lnchannels-cli"
	app.Usage = "operator CLI for the lnchannels ingestion pipeline"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "postgres",
			Usage: "Postgres connection string",
		},
		cli.StringFlag{
			Name:  "cursorfile",
			Value: "cursor.dat",
			Usage: "path to the scanner's persisted cursor",
		},
	}
	app.Commands = []cli.Command{
		showCursorCommand,
		setCursorCommand,
		requeueCommand,
		showChannelCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var showCursorCommand = cli.Command{
	Name:  "showcursor",
	Usage: "print the scanner's persisted cursor height",
	Action: func(ctx *cli.Context) error {
		cursor, ok, err := scanner.ReadCursor(ctx.GlobalString("cursorfile"))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("no cursor persisted yet")
			return nil
		}
		fmt.Println(cursor)
		return nil
	},
}

var setCursorCommand = cli.Command{
	Name:      "setcursor",
	Usage:     "force the scanner's persisted cursor to a given height",
	ArgsUsage: "<height>",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 1 {
			return cli.NewExitError("expected exactly one argument: <height>", 1)
		}
		var height int64
		if _, err := fmt.Sscanf(ctx.Args().Get(0), "%d", &height); err != nil {
			return cli.NewExitError(fmt.Sprintf("invalid height: %v", err), 1)
		}
		return scanner.WriteCursor(ctx.GlobalString("cursorfile"), height)
	},
}

var requeueCommand = cli.Command{
	Name:      "requeue",
	Usage:     "add a short_channel_id to the try-later queue, or bump its attempt count if already queued; rows below the retry cap are revisited on the next scan",
	ArgsUsage: "<short_channel_id> <txid>",
	Action: func(cliCtx *cli.Context) error {
		if cliCtx.NArg() != 2 {
			return cli.NewExitError("expected exactly two arguments: <short_channel_id> <txid>", 1)
		}

		scid, err := graph.ParseShortChannelID(cliCtx.Args().Get(0))
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}

		db, err := connectStore(cliCtx)
		if err != nil {
			return err
		}
		defer db.Close()

		return db.TryLaterBump(context.Background(), scid, cliCtx.Args().Get(1))
	},
}

var showChannelCommand = cli.Command{
	Name:      "showchannel",
	Usage:     "dump everything the pipeline has recorded for a channel",
	ArgsUsage: "<short_channel_id>",
	Action: func(cliCtx *cli.Context) error {
		if cliCtx.NArg() != 1 {
			return cli.NewExitError("expected exactly one argument: <short_channel_id>", 1)
		}

		scid, err := graph.ParseShortChannelID(cliCtx.Args().Get(0))
		if err != nil {
			return cli.NewExitError(err.Error(), 1)
		}

		db, err := connectStore(cliCtx)
		if err != nil {
			return err
		}
		defer db.Close()

		ch, err := db.LookupBySCID(context.Background(), scid)
		if err != nil {
			return err
		}
		if ch == nil {
			return cli.NewExitError("no such channel", 1)
		}

		spew.Dump(ch)
		return nil
	},
}

func connectStore(cliCtx *cli.Context) (*store.Store, error) {
	dsn := cliCtx.GlobalString("postgres")
	if dsn == "" {
		return nil, cli.NewExitError("--postgres is required", 1)
	}
	return store.Open(context.Background(), dsn)
}

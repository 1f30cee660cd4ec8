package main

import (
	"net/url"
	"strconv"

	"github.com/urfave/cli/v2"
)

var info = cli.Command{
	Name:   "info",
	Usage:  "get info about the daemon and its master custody address",
	Action: infoAction,
}

var convert = cli.Command{
	Name:  "convert",
	Usage: "convert an amount expressed in sol or usd into lamports",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "sol",
			Usage: "the amount in SOL",
		},
		&cli.StringFlag{
			Name:  "usd",
			Usage: "the amount in USD, converted at the current SOL/USD price",
		},
		&cli.Uint64Flag{
			Name:  "lamports",
			Usage: "the amount in lamports",
		},
	},
	Action: convertAction,
}

func infoAction(ctx *cli.Context) error {
	client, cleanup, err := getDaemonClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	var reply map[string]interface{}
	if err := client.get(ctx.Context, "/v1/info", nil, &reply); err != nil {
		return err
	}

	return printRespJSON(ctx, reply)
}

func convertAction(ctx *cli.Context) error {
	query, err := amountQuery(ctx)
	if err != nil {
		return err
	}

	client, cleanup, err := getDaemonClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	var reply map[string]interface{}
	if err := client.get(ctx.Context, "/v1/convert", query, &reply); err != nil {
		return err
	}

	return printRespJSON(ctx, reply)
}

func amountQuery(ctx *cli.Context) (url.Values, error) {
	query := url.Values{}
	count := 0
	if ctx.IsSet("lamports") {
		query.Set("lamports", strconv.FormatUint(ctx.Uint64("lamports"), 10))
		count++
	}
	if sol := ctx.String("sol"); sol != "" {
		query.Set("sol", sol)
		count++
	}
	if usd := ctx.String("usd"); usd != "" {
		query.Set("usd", usd)
		count++
	}
	if count != 1 {
		return nil, &invalidUsageError{ctx, ctx.Command.Name}
	}
	return query, nil
}

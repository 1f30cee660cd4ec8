package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"
)

var deposit = cli.Command{
	Name:  "deposit",
	Usage: "manage deposit addresses",
	Subcommands: []*cli.Command{
		&createDeposit,
		&listDeposits,
		&getDeposit,
		&verifyDeposit,
		&sweepDeposit,
	},
}

var createDeposit = cli.Command{
	Name:  "create",
	Usage: "derive a new deposit address expecting the given amount",
	Flags: []cli.Flag{
		&cli.Uint64Flag{
			Name:  "lamports",
			Usage: "the expected amount in lamports",
		},
		&cli.StringFlag{
			Name:  "sol",
			Usage: "the expected amount in SOL",
		},
		&cli.StringFlag{
			Name:  "usd",
			Usage: "the expected amount in USD",
		},
	},
	Action: createDepositAction,
}

var listDeposits = cli.Command{
	Name:  "list",
	Usage: "list deposits, optionally filtered by status",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "status",
			Usage: "pending, verified or expired",
		},
		&cli.IntFlag{
			Name:  "page",
			Usage: "the number of the page to list",
		},
		&cli.IntFlag{
			Name:  "page-size",
			Usage: "the number of deposits per page",
		},
	},
	Action: listDepositsAction,
}

var getDeposit = cli.Command{
	Name:      "get",
	Usage:     "get a deposit by id",
	ArgsUsage: "<id>",
	Action:    getDepositAction,
}

var verifyDeposit = cli.Command{
	Name:      "verify",
	Usage:     "check the payment of a deposit and sweep it once verified",
	ArgsUsage: "<id>",
	Action:    verifyDepositAction,
}

var sweepDeposit = cli.Command{
	Name:      "sweep",
	Usage:     "sweep the funds of a verified deposit to the master address",
	ArgsUsage: "<id>",
	Action:    sweepDepositAction,
}

func createDepositAction(ctx *cli.Context) error {
	query, err := amountQuery(ctx)
	if err != nil {
		return err
	}

	client, cleanup, err := getDaemonClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	body := map[string]interface{}{}
	if ctx.IsSet("lamports") {
		body["lamports"] = ctx.Uint64("lamports")
	}
	if sol := query.Get("sol"); sol != "" {
		body["sol"] = sol
	}
	if usd := query.Get("usd"); usd != "" {
		body["usd"] = usd
	}

	var reply map[string]interface{}
	if err := client.post(ctx.Context, "/v1/deposits", body, &reply); err != nil {
		return err
	}

	return printRespJSON(ctx, reply)
}

func listDepositsAction(ctx *cli.Context) error {
	client, cleanup, err := getDaemonClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	query := url.Values{}
	if statuses := ctx.StringSlice("status"); len(statuses) > 0 {
		query.Set("status", strings.Join(statuses, ","))
	}
	if ctx.IsSet("page") {
		query.Set("page", strconv.Itoa(ctx.Int("page")))
	}
	if ctx.IsSet("page-size") {
		query.Set("page_size", strconv.Itoa(ctx.Int("page-size")))
	}

	var reply map[string]interface{}
	if err := client.get(ctx.Context, "/v1/deposits", query, &reply); err != nil {
		return err
	}

	return printRespJSON(ctx, reply)
}

func getDepositAction(ctx *cli.Context) error {
	id, err := depositIDArg(ctx)
	if err != nil {
		return err
	}

	client, cleanup, err := getDaemonClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	var reply map[string]interface{}
	if err := client.get(ctx.Context, depositPath(id), nil, &reply); err != nil {
		return err
	}

	return printRespJSON(ctx, reply)
}

func verifyDepositAction(ctx *cli.Context) error {
	return depositOperation(ctx, "verify")
}

func sweepDepositAction(ctx *cli.Context) error {
	return depositOperation(ctx, "sweep")
}

func depositOperation(ctx *cli.Context, operation string) error {
	id, err := depositIDArg(ctx)
	if err != nil {
		return err
	}

	client, cleanup, err := getDaemonClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	var reply map[string]interface{}
	if err := client.post(
		ctx.Context, fmt.Sprintf("%s/%s", depositPath(id), operation), nil, &reply,
	); err != nil {
		return err
	}

	return printRespJSON(ctx, reply)
}

func depositIDArg(ctx *cli.Context) (string, error) {
	if ctx.NArg() != 1 {
		return "", &invalidUsageError{ctx, ctx.Command.Name}
	}
	return ctx.Args().First(), nil
}

func depositPath(id string) string {
	return "/v1/deposits/" + url.PathEscape(id)
}

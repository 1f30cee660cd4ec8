package main

import (
	"fmt"
	"net/url"

	"github.com/urfave/cli/v2"
)

var webhook = cli.Command{
	Name:  "webhook",
	Usage: "manage the webhooks notified on deposit events",
	Subcommands: []*cli.Command{
		&addWebhook,
		&listWebhooks,
		&removeWebhook,
	},
}

var addWebhook = cli.Command{
	Name:  "add",
	Usage: "add a webhook registered for some event",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "endpoint",
			Usage:    "the endpoint where to notify the webhook",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "secret",
			Usage: "the eventual secret to authenticate requests",
		},
		&cli.StringFlag{
			Name: "topic",
			Usage: "DEPOSIT_VERIFIED, DEPOSIT_SWEPT, SWEEP_FAILED, " +
				"DEPOSIT_EXPIRED or * for all of them",
			Value: "*",
		},
	},
	Action: addWebhookAction,
}

var listWebhooks = cli.Command{
	Name:  "list",
	Usage: "list all webhooks registered for some event",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "topic",
			Usage: "the event to filter hooks by",
		},
	},
	Action: listWebhooksAction,
}

var removeWebhook = cli.Command{
	Name:      "remove",
	Usage:     "remove a webhook by id",
	ArgsUsage: "<id>",
	Action:    removeWebhookAction,
}

func addWebhookAction(ctx *cli.Context) error {
	client, cleanup, err := getDaemonClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	body := map[string]string{
		"topic":    ctx.String("topic"),
		"endpoint": ctx.String("endpoint"),
		"secret":   ctx.String("secret"),
	}

	var reply struct {
		ID string `json:"id"`
	}
	if err := client.post(ctx.Context, "/v1/webhooks", body, &reply); err != nil {
		return err
	}

	fmt.Fprintln(ctx.App.Writer, "hook id:", reply.ID)
	return nil
}

func listWebhooksAction(ctx *cli.Context) error {
	client, cleanup, err := getDaemonClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	query := url.Values{}
	if topic := ctx.String("topic"); topic != "" {
		query.Set("topic", topic)
	}

	var reply map[string]interface{}
	if err := client.get(ctx.Context, "/v1/webhooks", query, &reply); err != nil {
		return err
	}

	return printRespJSON(ctx, reply)
}

func removeWebhookAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}

	client, cleanup, err := getDaemonClient(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	id := ctx.Args().First()
	if err := client.delete(
		ctx.Context, "/v1/webhooks/"+url.PathEscape(id),
	); err != nil {
		return err
	}

	fmt.Fprintln(ctx.App.Writer, "hook", id, "removed")
	return nil
}

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
)

const (
	serverKey    = "server"
	apiTokenKey  = "api_token"
	tokenFileKey = "token_file"
)

var (
	serverFlag = cli.StringFlag{
		Name:  "server",
		Usage: "depositd http address (scheme://host:port)",
		Value: "http://localhost:9080",
	}

	apiTokenFlag = cli.StringFlag{
		Name:  "api-token",
		Usage: "the bearer token of the daemon api",
	}

	tokenFileFlag = cli.StringFlag{
		Name:  "token-file",
		Usage: "path of the daemon's api.token file, read in place of --api-token",
	}
)

var config = cli.Command{
	Name:   "config",
	Usage:  "Print local configuration of the depositd CLI",
	Action: configAction,
	Subcommands: []*cli.Command{
		{
			Name:   "set",
			Usage:  "set a <key> <value> in the local state",
			Action: configSetAction,
		},
		{
			Name:   "init",
			Usage:  "initialize the local state with flags",
			Action: configInitAction,
			Flags: []cli.Flag{
				&serverFlag,
				&apiTokenFlag,
				&tokenFileFlag,
			},
		},
	},
}

func configAction(ctx *cli.Context) error {
	state, err := getState()
	if err != nil {
		return err
	}

	for key, value := range state {
		if key == apiTokenKey && value != "" {
			value = "********"
		}
		fmt.Fprintln(ctx.App.Writer, key+": "+value)
	}

	return nil
}

func configInitAction(ctx *cli.Context) error {
	return setState(map[string]string{
		serverKey:    strings.TrimRight(ctx.String("server"), "/"),
		apiTokenKey:  ctx.String("api-token"),
		tokenFileKey: ctx.String("token-file"),
	})
}

func configSetAction(ctx *cli.Context) error {
	if ctx.NArg() < 2 {
		return errors.New("key and value are missing")
	}

	key := ctx.Args().Get(0)
	value := ctx.Args().Get(1)

	if err := setState(map[string]string{key: value}); err != nil {
		return err
	}

	fmt.Fprintf(ctx.App.Writer, "%s has been set\n", key)
	return nil
}

func getServerFromState() (string, string, error) {
	state, err := getState()
	if err != nil {
		return "", "", err
	}
	server, ok := state[serverKey]
	if !ok || server == "" {
		return "", "", errors.New("set server with `config set server`")
	}

	token := state[apiTokenKey]
	if token == "" && state[tokenFileKey] != "" {
		buf, err := os.ReadFile(state[tokenFileKey])
		if err != nil {
			return "", "", fmt.Errorf("reading api token file: %w", err)
		}
		token = strings.TrimSpace(string(buf))
	}
	if token == "" {
		return "", "", errors.New(
			"set api token with `config set api_token` or `config set token_file`",
		)
	}

	return server, token, nil
}

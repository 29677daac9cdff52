package main

import (
	"encoding/json"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/replydash/replydash/internal/keys"
)

func main() {
	app := &cli.App{
		Name: "replydash-helper",
		Commands: []*cli.Command{
			runGenerateSigningKey,
		},
	}

	app.RunAndExitOnError()
}

// generate-signing-key writes a private ES256 jwk for AUTH_STATE_JWK.
var runGenerateSigningKey = &cli.Command{
	Name: "generate-signing-key",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "prefix",
			Required: false,
		},
		&cli.StringFlag{
			Name:  "out",
			Value: "./auth-state.jwk.json",
		},
	},
	Action: func(cmd *cli.Context) error {
		var prefix *string
		if cmd.String("prefix") != "" {
			inputPrefix := cmd.String("prefix")
			prefix = &inputPrefix
		}

		key, err := keys.GenerateKey(prefix)
		if err != nil {
			return err
		}

		b, err := json.Marshal(key)
		if err != nil {
			return err
		}

		if err := os.WriteFile(cmd.String("out"), b, 0600); err != nil {
			return err
		}

		return nil
	},
}

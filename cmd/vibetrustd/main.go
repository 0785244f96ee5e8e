package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	var configName string

	confFlag := &cli.StringFlag{
		Name:        "conf",
		Aliases:     []string{"c"},
		Usage:       "config file name, looked up in ./config and .",
		Value:       "config",
		EnvVars:     []string{"VIBETRUST_CONF"},
		Destination: &configName,
	}

	app := &cli.App{
		Name:  "vibetrustd",
		Usage: "identity and trust service",
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"s"},
				Usage:   "Start the HTTP server",
				Flags:   []cli.Flag{confFlag},
				Action:  getServeFunc(&configName),
			},
			{
				Name:   "migrate",
				Usage:  "Create the relational tables and the key-value tables",
				Flags:  []cli.Flag{confFlag},
				Action: getMigrateFunc(&configName),
			},
			{
				Name:   "sweep",
				Usage:  "Delete expired sessions, nonces and counters from the key-value store",
				Flags:  []cli.Flag{confFlag},
				Action: getSweepFunc(&configName),
			},
			{
				Name:   "keygen",
				Usage:  "Print a new Ed25519 keypair in wire format",
				Action: keygen,
			},
			{
				Name:  "sign-rotation",
				Usage: "Build a signed key rotation request body",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "recovery-key", Usage: "recovery private key (base64 seed)", Required: true, EnvVars: []string{"VIBETRUST_RECOVERY_KEY"}},
					&cli.StringFlag{Name: "new-public-key", Usage: "new signing public key, ed25519:<base64>", Required: true},
					&cli.StringFlag{Name: "nonce", Usage: "hex nonce, random when empty"},
					&cli.Int64Flag{Name: "timestamp", Usage: "unix seconds, now when zero"},
				},
				Action: signRotation,
			},
			{
				Name:  "sign-revocation",
				Usage: "Build a signed revocation request body",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "recovery-key", Usage: "recovery private key (base64 seed)", Required: true, EnvVars: []string{"VIBETRUST_RECOVERY_KEY"}},
					&cli.StringFlag{Name: "nonce", Usage: "hex nonce, random when empty"},
					&cli.Int64Flag{Name: "timestamp", Usage: "unix seconds, now when zero"},
				},
				Action: signRevocation,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalln(err)
	}
}

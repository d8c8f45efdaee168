package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/poanetwork/layer-bridge/config"
	"github.com/poanetwork/layer-bridge/logging"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "path to the YAML configuration file",
		Value:   "config.yml",
		EnvVars: []string{"BRIDGE_CONFIG"},
	}
	callerFlag = &cli.StringFlag{
		Name:     "caller",
		Usage:    "account performing the operation, must be the sender or an administrator",
		Required: true,
	}
	messageIDFlag = &cli.StringFlag{
		Name:     "message-id",
		Usage:    "32 byte hex message id",
		Required: true,
	}
	proofFlag = &cli.StringFlag{
		Name:     "proof",
		Usage:    "hex encoded zk proof",
		Required: true,
	}
	swapIDFlag = &cli.StringFlag{
		Name:     "swap-id",
		Usage:    "32 byte hex swap id",
		Required: true,
	}
	publicInputsFlag = &cli.StringFlag{
		Name:  "public-inputs",
		Usage: "hex encoded public inputs of the proof",
	}
)

var Version = "dev"

func main() {
	app := &cli.App{
		Name:    "bridge",
		Usage:   "L1/L2 message bridge relayer",
		Version: Version,
		Flags:   []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "run the relayer, watchers, jobs and the status API",
				Action: runCmd,
			},
			{
				Name:   "migrate",
				Usage:  "apply postgres migrations",
				Action: migrateCmd,
			},
			{
				Name:   "cancel",
				Usage:  "cancel an expired pending message and refund its fee",
				Flags:  []cli.Flag{callerFlag, messageIDFlag},
				Action: cancelCmd,
			},
			{
				Name:   "retry-proof",
				Usage:  "resubmit a corrected zk proof for a failed message",
				Flags:  []cli.Flag{callerFlag, messageIDFlag, proofFlag, publicInputsFlag},
				Action: retryProofCmd,
			},
			{
				Name:   "swap-refund",
				Usage:  "release the l2 lock of an expired swap",
				Flags:  []cli.Flag{callerFlag, swapIDFlag},
				Action: swapRefundCmd,
			},
			{
				Name:   "status",
				Usage:  "print the merged status of a message",
				Flags:  []cli.Flag{messageIDFlag},
				Action: statusCmd,
			},
		},
	}

	logger := logging.New()
	if err := app.Run(os.Args); err != nil {
		logger.WithError(err).Fatal("bridge command failed")
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.ReadConfigFromFile(c.String(configFlag.Name))
}

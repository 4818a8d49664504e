// Package cli contains the dvaprep command line, which checks and documents mapping pipeline
// configs.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	configFlag = "config"
	debugFlag  = "debug"
	levelFlag  = "log-level"
	stagesFlag = "stages"
	branchFlag = "branch"
)

var app = &cli.App{
	Name:            "dvaprep",
	Usage:           "check and document multimodal mapping pipelines",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    debugFlag,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.StringFlag{
			Name:  levelFlag,
			Value: "info",
			Usage: "minimum level of logs to print: debug, info, warn or error",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "validate",
			Usage:     "read a pipeline config and build every branch",
			UsageText: "dvaprep validate --config <file> [--branch <branch>]",
			Flags: []cli.Flag{
				&cli.PathFlag{
					Name:     configFlag,
					Aliases:  []string{"c"},
					Required: true,
					Usage:    "load configuration from `FILE`",
				},
				&cli.StringFlag{
					Name:  branchFlag,
					Usage: "only build one of pre, train, val or test",
				},
			},
			Action: ValidateAction,
		},
		{
			Name:  "schema",
			Usage: "print the JSON schema of pipeline configs",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  stagesFlag,
					Usage: "print the schema of every stage's attributes instead",
				},
			},
			Action: SchemaAction,
		},
		{
			Name:   "stages",
			Usage:  "list the stages a config may use",
			Action: StagesAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}

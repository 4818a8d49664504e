// Package main is the dvaprep command itself.
package main

import (
	"log"
	"os"

	"github.com/qianjinfighter/DeepViewAgg/cli"
)

func main() {
	app := cli.NewApp(os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

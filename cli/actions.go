package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"

	"github.com/qianjinfighter/DeepViewAgg/config"
	"github.com/qianjinfighter/DeepViewAgg/logging"
	"github.com/qianjinfighter/DeepViewAgg/pipeline"
)

// printf prints a message with no prefix.
func printf(w io.Writer, format string, a ...interface{}) {
	//nolint:errcheck
	fmt.Fprintf(w, format+"\n", a...)
}

// warningf prints a message prefixed with a bold yellow "Warning: ".
func warningf(w io.Writer, format string, a ...interface{}) {
	prefix := color.New(color.Bold, color.FgYellow).Sprint("Warning:")
	//nolint:errcheck
	fmt.Fprintf(w, prefix+" "+format+"\n", a...)
}

// newLogger logs to the app's error writer. The debug flag marks the returned context so that
// context-aware debug logs print regardless of the level.
func newLogger(c *cli.Context) (context.Context, logging.Logger, error) {
	level, err := logging.LevelFromString(c.String(levelFlag))
	if err != nil {
		return nil, nil, err
	}
	logger := logging.NewBlankLogger("dvaprep")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	logger.SetLevel(level)
	ctx := c.Context
	if c.Bool(debugFlag) {
		ctx = logging.EnableDebugMode(ctx)
	}
	return ctx, logger, nil
}

// ValidateAction is the corresponding Action for 'validate'.
func ValidateAction(c *cli.Context) error {
	ctx, logger, err := newLogger(c)
	if err != nil {
		return err
	}
	cfg, err := config.Read(ctx, c.Path(configFlag), logger)
	if err != nil {
		return err
	}

	branches := config.Branches
	if name := c.String(branchFlag); name != "" {
		branch := config.Branch(name)
		if !lo.Contains(config.Branches, branch) {
			return errors.Errorf("unknown branch %q, expected one of %v", name, config.Branches)
		}
		branches = []config.Branch{branch}
	}

	var built []*pipeline.Pipeline
	if len(branches) == 1 {
		p, err := pipeline.Build(cfg, branches[0], logger)
		if err != nil {
			return err
		}
		built = append(built, p)
	} else {
		all, err := pipeline.BuildAll(cfg, logger)
		if err != nil {
			return err
		}
		for _, branch := range branches {
			built = append(built, all[branch])
		}
	}

	for _, p := range built {
		names := p.StageNames()
		if len(names) == 0 {
			warningf(c.App.Writer, "%s has no stages", p.Branch().Key())
			continue
		}
		printf(c.App.Writer, "%s: %s", p.Branch().Key(), strings.Join(names, " -> "))
	}
	return nil
}

// SchemaAction is the corresponding Action for 'schema'.
func SchemaAction(c *cli.Context) error {
	var doc interface{} = config.Schema()
	if c.Bool(stagesFlag) {
		doc = pipeline.StageSchemas()
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode schema")
	}
	printf(c.App.Writer, "%s", out)
	return nil
}

// StagesAction is the corresponding Action for 'stages'.
func StagesAction(c *cli.Context) error {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Stage", "Description"})
	for _, name := range pipeline.RegisteredStages() {
		reg, _ := pipeline.LookupStage(name)
		t.AppendRow(table.Row{name, reg.Description})
	}
	printf(c.App.Writer, "%s", t.Render())
	return nil
}

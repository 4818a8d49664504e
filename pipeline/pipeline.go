package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/qianjinfighter/DeepViewAgg/config"
	"github.com/qianjinfighter/DeepViewAgg/logging"
	"github.com/qianjinfighter/DeepViewAgg/multimodal"
	"github.com/qianjinfighter/DeepViewAgg/utils"
)

// Pipeline is the ordered list of stages of one config branch.
type Pipeline struct {
	branch config.Branch
	stages []Stage
	logger logging.Logger
}

// Build constructs the pipeline of a branch. Every stage of the branch is constructed so that
// all configuration problems are reported at once.
func Build(cfg *config.Config, branch config.Branch, logger logging.Logger) (*Pipeline, error) {
	transforms, err := cfg.Transforms(branch)
	if err != nil {
		return nil, err
	}
	logger = logger.Sublogger(string(branch))
	p := &Pipeline{branch: branch, logger: logger}
	var errs error
	for i, t := range transforms {
		path := fmt.Sprintf("%s[%d]", branch.Key(), i)
		reg, ok := LookupStage(t.Type)
		if !ok {
			errs = multierr.Append(errs, errors.Wrap(NewUnknownStageError(t.Type), path))
			continue
		}
		stage, err := reg.Constructor(StageContext{Config: cfg, Branch: branch, Logger: logger.Sublogger(t.Type)}, t.Attributes)
		if err != nil {
			errs = multierr.Append(errs, errors.Wrap(err, path))
			continue
		}
		p.stages = append(p.stages, stage)
	}
	if errs != nil {
		return nil, errs
	}
	return p, nil
}

// BuildAll constructs the pipeline of every branch.
func BuildAll(cfg *config.Config, logger logging.Logger) (map[config.Branch]*Pipeline, error) {
	out := make(map[config.Branch]*Pipeline, len(config.Branches))
	var errs error
	for _, branch := range config.Branches {
		p, err := Build(cfg, branch, logger)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		out[branch] = p
	}
	if errs != nil {
		return nil, errs
	}
	return out, nil
}

// Branch returns the branch the pipeline was built for.
func (p *Pipeline) Branch() config.Branch {
	return p.branch
}

// StageNames returns the names of the stages in order.
func (p *Pipeline) StageNames() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name()
	}
	return names
}

// Run applies every stage in order to the sample.
func (p *Pipeline) Run(ctx context.Context, sample *multimodal.Sample) (*multimodal.Sample, error) {
	start := time.Now()
	ctx = logging.WithSample(ctx, sample.ID.String())
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := stage.Apply(logging.WithStage(ctx, stage.Name()), sample)
		if err != nil {
			return nil, errors.Wrapf(err, "sample %s: stage %s", sample.ID, stage.Name())
		}
		sample = next
	}
	entries := 0
	if sample.Mapping != nil {
		entries = sample.Mapping.Len()
	}
	p.logger.CDebugw(ctx, "processed sample",
		"points", sample.Cloud.Size(),
		"views", len(sample.Views),
		"entries", entries,
		"unmapped", len(sample.Unmapped),
		"elapsed", time.Since(start),
	)
	return sample, nil
}

// RunBatch runs the pipeline over independent samples in parallel. Results keep the order of
// the input; the first failure cancels the remaining samples.
func (p *Pipeline) RunBatch(ctx context.Context, samples []*multimodal.Sample) ([]*multimodal.Sample, error) {
	out := make([]*multimodal.Sample, len(samples))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(utils.ParallelFactor)
	for i, sample := range samples {
		g.Go(func() error {
			res, err := p.Run(gctx, sample)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	p.logger.Infow("processed batch", "samples", len(samples))
	return out, nil
}

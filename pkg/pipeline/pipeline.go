// Package pipeline drives one experiment through its staged lifecycle.
//
// Stages are determined by the experiment's validation strategy. Each stage
// reads its inputs from the artifact store, never from in-process memory, so
// a crashed worker resumes from the persisted stage index over the artifacts
// already written.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/modelyard/modelyard/pkg/artifacts"
	"github.com/modelyard/modelyard/pkg/datasource"
	"github.com/modelyard/modelyard/pkg/domain"
	expdb "github.com/modelyard/modelyard/pkg/domain/experiment/db"
	"github.com/modelyard/modelyard/pkg/tracker"
	"github.com/modelyard/modelyard/pkg/utils/pointer"
	"github.com/modelyard/modelyard/pkg/xerrors"
)

type Orchestrator struct {
	Experiments expdb.Interface
	Artifacts   artifacts.Store
	Datasource  datasource.Provider
	Tracker     tracker.Tracker
	Logger      *log.Logger
}

// stage is one step of a pipeline. It may read and write artifacts and
// update the experiment record, and returns the error that aborts the run.
type stage struct {
	name string
	run  func(ctx context.Context, ex *domain.Experiment, run tracker.Run) error
}

func (o *Orchestrator) stagesFor(strategy domain.ValidationStrategy) ([]stage, error) {
	switch strategy {
	case domain.SimpleSplit:
		return []stage{
			{name: "split", run: o.splitSimple},
			{name: "train", run: o.train},
			{name: "evaluate", run: o.evaluate},
			{name: "finalize", run: o.finalize},
		}, nil
	case domain.TimeSeriesCV:
		return []stage{
			{name: "split", run: o.materializeFull},
			{name: "cross_validate_and_finalize", run: o.crossValidateAndFinalize},
		}, nil
	default:
		return nil, fmt.Errorf(
			"%w: '%s' is not a validation strategy", domain.ErrUnsupportedConfiguration, strategy,
		)
	}
}

// Run executes the experiment's pipeline from its persisted stage index.
//
// The experiment must be Queued (fresh dispatch) or already Running (crashed
// worker resuming). A stage refuses to start once the experiment has been
// cancelled; work already in flight is not interrupted.
//
// A stage error is persisted via SetError and aborts the run. Run returns
// the stage error so callers can tell failure from success, but the failure
// is already recorded by then.
func (o *Orchestrator) Run(ctx context.Context, experimentId string) error {
	ex, err := o.Experiments.GetOne(ctx, experimentId)
	if err != nil {
		return err
	}

	switch ex.Status {
	case domain.Queued:
		if err := o.Experiments.SetStatus(ctx, experimentId, domain.Running); err != nil {
			return err
		}
		ex.Status = domain.Running
	case domain.Running:
		// resuming; the stage index tells us where to pick up.
	case domain.Cancelled:
		return nil
	default:
		return domain.NewErrInvalidStateChanging(ex.Status, domain.Running)
	}

	stages, err := o.stagesFor(ex.ValidationStrategy)
	if err != nil {
		return o.abort(ctx, experimentId, nil, err)
	}

	run := o.startTracking(ctx, ex)

	for at := ex.CurrentStage; at < len(stages); at++ {
		fresh, err := o.Experiments.GetOne(ctx, experimentId)
		if err != nil {
			return err
		}
		if fresh.Status == domain.Cancelled {
			o.Logger.Printf("experiment %s: cancelled before stage '%s'", experimentId, stages[at].name)
			return nil
		}
		if fresh.Status != domain.Running {
			return domain.NewErrInvalidStateChanging(fresh.Status, domain.Running)
		}

		o.Logger.Printf("experiment %s: stage '%s'", experimentId, stages[at].name)
		if err := stages[at].run(ctx, fresh, run); err != nil {
			return o.abort(ctx, experimentId, run, err)
		}
		if err := o.Experiments.SetStage(ctx, experimentId, at+1); err != nil {
			return err
		}
	}

	if err := o.Experiments.SetStatus(ctx, experimentId, domain.Finished); err != nil {
		return err
	}
	if err := run.End(ctx, tracker.RunFinished); err != nil {
		o.Logger.Printf("experiment %s: closing tracker run failed: %s", experimentId, err)
	}
	return nil
}

// abort records the stage failure and closes the tracker run.
func (o *Orchestrator) abort(ctx context.Context, experimentId string, run tracker.Run, cause error) error {
	if err := o.Experiments.SetError(ctx, experimentId, cause.Error()); err != nil {
		o.Logger.Printf("experiment %s: persisting error state failed: %s", experimentId, err)
	}
	if run != nil {
		if err := run.End(ctx, tracker.RunFailed); err != nil {
			o.Logger.Printf("experiment %s: closing tracker run failed: %s", experimentId, err)
		}
	}
	return cause
}

// startTracking starts or resumes the experiment's tracker run.
//
// Tracking is best-effort: when the backend is unavailable the pipeline logs
// a warning and continues against a no-op run.
func (o *Orchestrator) startTracking(ctx context.Context, ex *domain.Experiment) tracker.Run {
	run, err := o.Tracker.StartOrResumeRun(ctx, ex.TrackingRunId, ex.Id)
	if err != nil {
		o.Logger.Printf("experiment %s: tracking unavailable, continuing without it: %s", ex.Id, err)
		return tracker.NopRun(pointer.SafeDeref(ex.TrackingRunId))
	}

	if ex.TrackingRunId == nil {
		if err := o.Experiments.SetTrackingRunId(ctx, ex.Id, run.Id()); err != nil {
			o.Logger.Printf("experiment %s: binding tracker run id failed: %s", ex.Id, err)
		}
		params := map[string]string{
			"model_family":        string(ex.ModelFamily),
			"validation_strategy": string(ex.ValidationStrategy),
			"datasource_id":       ex.DatasourceId,
			"target_column":       ex.TargetColumn,
		}
		for k, v := range ex.Hyperparameters {
			params[k] = fmt.Sprintf("%v", v)
		}
		if err := run.LogParams(ctx, params); err != nil {
			o.Logger.Printf("experiment %s: logging params failed: %s", ex.Id, err)
		}
	}
	return run
}

// readArtifact loads a named artifact, mapping absence to the
// missing-prerequisite validation error.
func (o *Orchestrator) readArtifact(ctx context.Context, experimentId, name string) ([]byte, error) {
	buf, err := o.Artifacts.Read(ctx, experimentId, name)
	if errors.Is(err, domain.ErrMissing) {
		return nil, domain.NewErrMissingArtifact(name)
	} else if err != nil {
		return nil, err
	}
	return buf, nil
}

// writeArtifact stores the blob and records its path on the experiment.
func (o *Orchestrator) writeArtifact(ctx context.Context, experimentId, name string, data []byte) error {
	path, err := o.Artifacts.Write(ctx, experimentId, name, data)
	if err != nil {
		return err
	}
	return o.Experiments.AddArtifact(ctx, experimentId, name, path)
}

func (o *Orchestrator) writeJSONArtifact(ctx context.Context, experimentId, name string, value any) error {
	buf, err := json.Marshal(value)
	if err != nil {
		return xerrors.Wrap(err)
	}
	return o.writeArtifact(ctx, experimentId, name, buf)
}

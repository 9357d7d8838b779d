package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/modelyard/modelyard/pkg/artifacts"
	"github.com/modelyard/modelyard/pkg/datasource"
	dsmock "github.com/modelyard/modelyard/pkg/datasource/mock"
	"github.com/modelyard/modelyard/pkg/domain"
	expmem "github.com/modelyard/modelyard/pkg/domain/experiment/db/memory"
	"github.com/modelyard/modelyard/pkg/pipeline"
	"github.com/modelyard/modelyard/pkg/tracker"
	trkmock "github.com/modelyard/modelyard/pkg/tracker/mock"
	"github.com/modelyard/modelyard/pkg/utils/try"
)

// numeric dataset with a near-linear target, big enough for a 0.2 split.
func testingTable(n int) *domain.Table {
	rows := make([][]string, n)
	for i := range rows {
		a := float64(i % 23)
		b := float64((i * 3) % 17)
		rows[i] = []string{
			fmt.Sprint(a), fmt.Sprint(b), fmt.Sprint(2*a - b + 1),
		}
	}
	return &domain.Table{ColumnNames: []string{"a", "b", "y"}, Rows: rows}
}

func newOrchestrator(table *domain.Table) (*pipeline.Orchestrator, artifacts.Store) {
	provider := dsmock.NewProvider()
	provider.Impl.Materialize = func(ctx context.Context, datasourceId string) (*domain.Table, error) {
		if table == nil {
			return nil, fmt.Errorf("%w: datasource '%s'", domain.ErrMissing, datasourceId)
		}
		return table, nil
	}

	store := artifacts.InMemory()
	return &pipeline.Orchestrator{
		Experiments: expmem.New(),
		Artifacts:   store,
		Datasource:  provider,
		Tracker:     tracker.Nop(),
		Logger:      log.New(os.Stderr, "", log.LstdFlags),
	}, store
}

func draftExperiment(id string) *domain.Experiment {
	return &domain.Experiment{
		ExperimentBody: domain.ExperimentBody{
			Id:                 id,
			ProjectId:          "proj-1",
			Status:             domain.Queued,
			ValidationStrategy: domain.SimpleSplit,
			ModelFamily:        domain.Linear,
			TargetColumn:       "y",
			TestSplitFraction:  0.2,
			RandomSeed:         42,
			DatasourceId:       "ds-1",
		},
		ArtifactPaths: map[string]string{},
	}
}

func TestRun_SimpleSplit(t *testing.T) {
	ctx := context.Background()

	t.Run("it drives a queued experiment to finished with all artifacts", func(t *testing.T) {
		o, store := newOrchestrator(testingTable(100))
		ex := draftExperiment("exp-1")
		if err := o.Experiments.Register(ctx, ex); err != nil {
			t.Fatal(err)
		}

		if err := o.Run(ctx, "exp-1"); err != nil {
			t.Fatal(err)
		}

		got := try.To(o.Experiments.GetOne(ctx, "exp-1")).OrFatal(t)
		if got.Status != domain.Finished {
			t.Errorf("status: got %s, want finished", got.Status)
		}
		for _, name := range []string{
			artifacts.Train, artifacts.Test, artifacts.Model,
			artifacts.Metrics, artifacts.Predictions, artifacts.FeatureImportance,
		} {
			if _, ok := got.ArtifactPaths[name]; !ok {
				t.Errorf("artifact %s is missing", name)
			}
			if _, err := store.Read(ctx, "exp-1", name); err != nil {
				t.Errorf("artifact %s is unreadable: %s", name, err)
			}
		}
		if got.Results == nil {
			t.Fatal("no results stored")
		}
		for _, metric := range []string{"mse", "mae", "r2", "rmse"} {
			if _, ok := got.Results.Metrics[metric]; !ok {
				t.Errorf("metric %s is missing", metric)
			}
		}

		// train/test artifacts partition the datasource 80/20.
		trainBuf := try.To(store.Read(ctx, "exp-1", artifacts.Train)).OrFatal(t)
		trainTable := try.To(datasource.DecodeTable(trainBuf)).OrFatal(t)
		if trainTable.NumRows() != 80 {
			t.Errorf("train rows: got %d, want 80", trainTable.NumRows())
		}
	})

	t.Run("a missing datasource fails the split stage and persists the error", func(t *testing.T) {
		o, _ := newOrchestrator(nil)
		if err := o.Experiments.Register(ctx, draftExperiment("exp-2")); err != nil {
			t.Fatal(err)
		}

		if err := o.Run(ctx, "exp-2"); !errors.Is(err, domain.ErrMissing) {
			t.Errorf("got %v, want ErrMissing", err)
		}

		got := try.To(o.Experiments.GetOne(ctx, "exp-2")).OrFatal(t)
		if got.Status != domain.Errored {
			t.Errorf("status: got %s, want error", got.Status)
		}
		if got.ErrorMessage == "" {
			t.Error("error message not persisted")
		}
	})

	t.Run("a missing target column is a validation error", func(t *testing.T) {
		o, _ := newOrchestrator(testingTable(100))
		ex := draftExperiment("exp-3")
		ex.TargetColumn = "nonexistent"
		if err := o.Experiments.Register(ctx, ex); err != nil {
			t.Fatal(err)
		}

		if err := o.Run(ctx, "exp-3"); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("got %v, want ErrValidation", err)
		}
		got := try.To(o.Experiments.GetOne(ctx, "exp-3")).OrFatal(t)
		if got.Status != domain.Errored {
			t.Errorf("status: got %s, want error", got.Status)
		}
	})

	t.Run("resuming past split without the train artifact is a validation error", func(t *testing.T) {
		// a worker crashed after the split stage was recorded but its
		// artifacts were lost: the resumed run must fail, not recompute.
		o, _ := newOrchestrator(testingTable(100))
		ex := draftExperiment("exp-resume")
		ex.Status = domain.Running
		ex.CurrentStage = 1
		if err := o.Experiments.Register(ctx, ex); err != nil {
			t.Fatal(err)
		}

		if err := o.Run(ctx, "exp-resume"); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("got %v, want ErrValidation", err)
		}

		got := try.To(o.Experiments.GetOne(ctx, "exp-resume")).OrFatal(t)
		if got.Status != domain.Errored {
			t.Errorf("status: got %s, want error", got.Status)
		}
		if !strings.Contains(got.ErrorMessage, "missing prerequisite artifact") {
			t.Errorf("error message: got %q", got.ErrorMessage)
		}
	})

	t.Run("a draft experiment refuses to run", func(t *testing.T) {
		o, _ := newOrchestrator(testingTable(100))
		ex := draftExperiment("exp-4")
		ex.Status = domain.Draft
		if err := o.Experiments.Register(ctx, ex); err != nil {
			t.Fatal(err)
		}

		if err := o.Run(ctx, "exp-4"); !errors.Is(err, domain.ErrInvalidStateChanging) {
			t.Errorf("got %v, want ErrInvalidStateChanging", err)
		}
	})

	t.Run("a cancelled experiment is left untouched", func(t *testing.T) {
		o, _ := newOrchestrator(testingTable(100))
		ex := draftExperiment("exp-5")
		if err := o.Experiments.Register(ctx, ex); err != nil {
			t.Fatal(err)
		}
		if err := o.Experiments.SetStatus(ctx, "exp-5", domain.Cancelled); err != nil {
			t.Fatal(err)
		}

		if err := o.Run(ctx, "exp-5"); err != nil {
			t.Fatal(err)
		}
		got := try.To(o.Experiments.GetOne(ctx, "exp-5")).OrFatal(t)
		if got.Status != domain.Cancelled {
			t.Errorf("status: got %s, want cancelled", got.Status)
		}
		if len(got.ArtifactPaths) != 0 {
			t.Errorf("stages ran anyway: %v", got.ArtifactPaths)
		}
	})

	t.Run("retry resets a failed run and the pipeline starts over", func(t *testing.T) {
		table := testingTable(100)
		provider := dsmock.NewProvider()
		broken := true
		provider.Impl.Materialize = func(ctx context.Context, datasourceId string) (*domain.Table, error) {
			if broken {
				return nil, fmt.Errorf("%w: datasource '%s'", domain.ErrMissing, datasourceId)
			}
			return table, nil
		}

		o := &pipeline.Orchestrator{
			Experiments: expmem.New(),
			Artifacts:   artifacts.InMemory(),
			Datasource:  provider,
			Tracker:     tracker.Nop(),
			Logger:      log.New(os.Stderr, "", log.LstdFlags),
		}
		if err := o.Experiments.Register(ctx, draftExperiment("exp-6")); err != nil {
			t.Fatal(err)
		}

		if err := o.Run(ctx, "exp-6"); err == nil {
			t.Fatal("first run should fail")
		}

		broken = false
		if err := o.Experiments.Retry(ctx, "exp-6"); err != nil {
			t.Fatal(err)
		}
		if err := o.Run(ctx, "exp-6"); err != nil {
			t.Fatal(err)
		}

		got := try.To(o.Experiments.GetOne(ctx, "exp-6")).OrFatal(t)
		if got.Status != domain.Finished {
			t.Errorf("status after retry: got %s, want finished", got.Status)
		}
		if got.ErrorMessage != "" {
			t.Errorf("stale error message: %s", got.ErrorMessage)
		}
	})
}

func TestRun_TimeSeriesCV(t *testing.T) {
	ctx := context.Background()

	t.Run("it cross-validates, refits on all rows and finishes", func(t *testing.T) {
		o, store := newOrchestrator(testingTable(120))
		ex := draftExperiment("exp-cv")
		ex.ValidationStrategy = domain.TimeSeriesCV
		ex.Hyperparameters = map[string]any{"cv_folds": 4}
		if err := o.Experiments.Register(ctx, ex); err != nil {
			t.Fatal(err)
		}

		if err := o.Run(ctx, "exp-cv"); err != nil {
			t.Fatal(err)
		}

		got := try.To(o.Experiments.GetOne(ctx, "exp-cv")).OrFatal(t)
		if got.Status != domain.Finished {
			t.Errorf("status: got %s, want finished", got.Status)
		}
		for _, name := range []string{
			artifacts.Full, artifacts.Model, artifacts.Metrics,
			artifacts.Predictions, artifacts.CVResults,
		} {
			if _, err := store.Read(ctx, "exp-cv", name); err != nil {
				t.Errorf("artifact %s is unreadable: %s", name, err)
			}
		}
		if got.Results == nil || len(got.Results.Metrics) == 0 {
			t.Fatal("no aggregated metrics stored")
		}
	})
}

func TestRun_Tracking(t *testing.T) {
	ctx := context.Background()

	t.Run("a new run id is bound, params and metrics are logged", func(t *testing.T) {
		o, _ := newOrchestrator(testingTable(100))

		run := trkmock.NewRun()
		run.Impl.Id = func() string { return "run-abc" }
		loggedParams := map[string]string{}
		run.Impl.LogParams = func(ctx context.Context, params map[string]string) error {
			for k, v := range params {
				loggedParams[k] = v
			}
			return nil
		}
		var ended *tracker.RunStatus
		run.Impl.End = func(ctx context.Context, status tracker.RunStatus) error {
			ended = &status
			return nil
		}

		trk := trkmock.NewTracker()
		trk.Impl.StartOrResumeRun = func(ctx context.Context, runId *string, name string) (tracker.Run, error) {
			if runId != nil {
				t.Errorf("unexpected resume of %s", *runId)
			}
			return run, nil
		}
		o.Tracker = trk

		if err := o.Experiments.Register(ctx, draftExperiment("exp-t")); err != nil {
			t.Fatal(err)
		}
		if err := o.Run(ctx, "exp-t"); err != nil {
			t.Fatal(err)
		}

		got := try.To(o.Experiments.GetOne(ctx, "exp-t")).OrFatal(t)
		if got.TrackingRunId == nil || *got.TrackingRunId != "run-abc" {
			t.Errorf("tracking run id: got %v, want run-abc", got.TrackingRunId)
		}
		if loggedParams["model_family"] != "linear" {
			t.Errorf("params not logged: %v", loggedParams)
		}
		if ended == nil || *ended != tracker.RunFinished {
			t.Errorf("run not ended as finished: %v", ended)
		}
	})

	t.Run("an unreachable tracker does not fail the pipeline", func(t *testing.T) {
		o, _ := newOrchestrator(testingTable(100))

		trk := trkmock.NewTracker()
		trk.Impl.StartOrResumeRun = func(ctx context.Context, runId *string, name string) (tracker.Run, error) {
			return nil, domain.ErrTrackingBackendUnavailable
		}
		o.Tracker = trk

		if err := o.Experiments.Register(ctx, draftExperiment("exp-u")); err != nil {
			t.Fatal(err)
		}
		if err := o.Run(ctx, "exp-u"); err != nil {
			t.Fatal(err)
		}

		got := try.To(o.Experiments.GetOne(ctx, "exp-u")).OrFatal(t)
		if got.Status != domain.Finished {
			t.Errorf("status: got %s, want finished", got.Status)
		}
	})
}

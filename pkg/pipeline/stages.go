package pipeline

import (
	"context"
	"fmt"

	"github.com/modelyard/modelyard/pkg/artifacts"
	"github.com/modelyard/modelyard/pkg/datasource"
	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/evaluate"
	"github.com/modelyard/modelyard/pkg/tracker"
	"github.com/modelyard/modelyard/pkg/train"
	"github.com/modelyard/modelyard/pkg/validation"
)

// splitSimple materializes the datasource and writes seeded train/test
// table artifacts.
func (o *Orchestrator) splitSimple(ctx context.Context, ex *domain.Experiment, _ tracker.Run) error {
	table, err := o.Datasource.Materialize(ctx, ex.DatasourceId)
	if err != nil {
		return err
	}
	if !table.HasColumn(ex.TargetColumn) {
		return domain.NewErrMissingTargetColumn(ex.TargetColumn, ex.DatasourceId)
	}

	trainTable, testTable, err := validation.SimpleSplit(table, ex.TestSplitFraction, ex.RandomSeed)
	if err != nil {
		return err
	}

	for name, t := range map[string]*domain.Table{
		artifacts.Train: trainTable,
		artifacts.Test:  testTable,
	} {
		buf, err := datasource.EncodeTable(t)
		if err != nil {
			return err
		}
		if err := o.writeArtifact(ctx, ex.Id, name, buf); err != nil {
			return err
		}
	}
	return nil
}

// train fits the configured model family on the train artifact and writes
// the serialized model artifact.
func (o *Orchestrator) train(ctx context.Context, ex *domain.Experiment, _ tracker.Run) error {
	buf, err := o.readArtifact(ctx, ex.Id, artifacts.Train)
	if err != nil {
		return err
	}
	table, err := datasource.DecodeTable(buf)
	if err != nil {
		return err
	}

	task, err := train.TaskFor(table, ex.TargetColumn)
	if err != nil {
		return err
	}
	ds, err := train.BuildDataset(table, ex.FeatureSet, ex.TargetColumn, task, nil)
	if err != nil {
		return err
	}

	trainable, err := train.New(ex.ModelFamily, task, ds.Labels, ex.RandomSeed)
	if err != nil {
		return err
	}
	model, err := trainable.Fit(ds.X, ds.Y, ex.Hyperparameters)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrPipelineStage, err)
	}

	sealed, err := model.Serialize()
	if err != nil {
		return err
	}
	return o.writeArtifact(ctx, ex.Id, artifacts.Model, sealed)
}

// evaluate scores the model artifact against the test artifact, writes the
// metrics, predictions and feature_importance artifacts and stores results.
//
// The label encoding is taken from the fitted model so evaluation matches
// training even when the test split lacks some classes.
func (o *Orchestrator) evaluate(ctx context.Context, ex *domain.Experiment, _ tracker.Run) error {
	sealed, err := o.readArtifact(ctx, ex.Id, artifacts.Model)
	if err != nil {
		return err
	}
	model, err := train.Deserialize(sealed)
	if err != nil {
		return err
	}

	buf, err := o.readArtifact(ctx, ex.Id, artifacts.Test)
	if err != nil {
		return err
	}
	table, err := datasource.DecodeTable(buf)
	if err != nil {
		return err
	}
	ds, err := train.BuildDataset(table, ex.FeatureSet, ex.TargetColumn, model.Task(), model.Labels())
	if err != nil {
		return err
	}

	ev := evaluate.Evaluate(model, ds.X, ds.Y, ds.FeatureNames, ex.RandomSeed, o.Logger)

	if err := o.writeJSONArtifact(ctx, ex.Id, artifacts.Metrics, ev.Metrics); err != nil {
		return err
	}
	if err := o.writeJSONArtifact(ctx, ex.Id, artifacts.Predictions, ev.PredictionSample); err != nil {
		return err
	}
	if ev.Importances != nil {
		if err := o.writeJSONArtifact(ctx, ex.Id, artifacts.FeatureImportance, ev.Importances); err != nil {
			return err
		}
	}

	return o.Experiments.SetResults(ctx, ex.Id, domain.Results{
		Metrics:          ev.Metrics,
		PredictionSample: ev.PredictionSample,
	})
}

// finalize reports the stored metrics to the tracker.
func (o *Orchestrator) finalize(ctx context.Context, ex *domain.Experiment, run tracker.Run) error {
	if ex.Results == nil {
		return fmt.Errorf("%w: no results to finalize", domain.ErrPipelineStage)
	}
	if err := run.LogMetrics(ctx, ex.Results.Metrics); err != nil {
		o.Logger.Printf("experiment %s: logging metrics failed: %s", ex.Id, err)
	}
	return nil
}

// materializeFull writes the whole datasource, in row order, as the full
// artifact. Time-series validation never shuffles.
func (o *Orchestrator) materializeFull(ctx context.Context, ex *domain.Experiment, _ tracker.Run) error {
	table, err := o.Datasource.Materialize(ctx, ex.DatasourceId)
	if err != nil {
		return err
	}
	if !table.HasColumn(ex.TargetColumn) {
		return domain.NewErrMissingTargetColumn(ex.TargetColumn, ex.DatasourceId)
	}
	buf, err := datasource.EncodeTable(table)
	if err != nil {
		return err
	}
	return o.writeArtifact(ctx, ex.Id, artifacts.Full, buf)
}

// foldReport is one entry of the cv_results artifact.
type foldReport struct {
	Fold      int                `json:"fold"`
	TrainRows int                `json:"train_rows"`
	TestRows  int                `json:"test_rows"`
	Metrics   map[string]float64 `json:"metrics"`
}

// crossValidateAndFinalize runs expanding-window cross validation over the
// full artifact, then fits the reported model on all rows.
//
// Stored metrics are the across-fold means; the prediction sample is drawn
// from the pooled out-of-fold predictions.
func (o *Orchestrator) crossValidateAndFinalize(ctx context.Context, ex *domain.Experiment, run tracker.Run) error {
	buf, err := o.readArtifact(ctx, ex.Id, artifacts.Full)
	if err != nil {
		return err
	}
	table, err := datasource.DecodeTable(buf)
	if err != nil {
		return err
	}

	task, err := train.TaskFor(table, ex.TargetColumn)
	if err != nil {
		return err
	}
	// one dataset over all rows; folds index into it so every fold shares
	// the same label encoding.
	ds, err := train.BuildDataset(table, ex.FeatureSet, ex.TargetColumn, task, nil)
	if err != nil {
		return err
	}

	k := intHyperparam(ex.Hyperparameters, "cv_folds", 5)
	folds, err := validation.ExpandingWindowFolds(table.NumRows(), k)
	if err != nil {
		return err
	}

	reports := make([]foldReport, 0, len(folds))
	sums := map[string]float64{}
	pooledActual := []float64{}
	pooledPredicted := []float64{}

	for i, fold := range folds {
		trainable, err := train.New(ex.ModelFamily, task, ds.Labels, ex.RandomSeed+int64(i))
		if err != nil {
			return err
		}
		model, err := trainable.Fit(ds.X[:fold.TrainEnd], ds.Y[:fold.TrainEnd], ex.Hyperparameters)
		if err != nil {
			return fmt.Errorf("%w: fold %d: %s", domain.ErrPipelineStage, i, err)
		}

		testX := ds.X[fold.TestBegin:fold.TestEnd]
		testY := ds.Y[fold.TestBegin:fold.TestEnd]
		predicted := model.Predict(testX)

		metrics := evaluate.Metrics(testY, predicted)
		for name, v := range metrics {
			sums[name] += v
		}
		pooledActual = append(pooledActual, testY...)
		pooledPredicted = append(pooledPredicted, predicted...)

		reports = append(reports, foldReport{
			Fold:      i,
			TrainRows: fold.TrainEnd,
			TestRows:  fold.TestEnd - fold.TestBegin,
			Metrics:   metrics,
		})
	}

	meanMetrics := map[string]float64{}
	for name, sum := range sums {
		meanMetrics[name] = sum / float64(len(folds))
	}

	// the reported model is refit on every row.
	trainable, err := train.New(ex.ModelFamily, task, ds.Labels, ex.RandomSeed)
	if err != nil {
		return err
	}
	finalModel, err := trainable.Fit(ds.X, ds.Y, ex.Hyperparameters)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrPipelineStage, err)
	}
	sealed, err := finalModel.Serialize()
	if err != nil {
		return err
	}
	if err := o.writeArtifact(ctx, ex.Id, artifacts.Model, sealed); err != nil {
		return err
	}

	if err := o.writeJSONArtifact(ctx, ex.Id, artifacts.CVResults, reports); err != nil {
		return err
	}
	if err := o.writeJSONArtifact(ctx, ex.Id, artifacts.Metrics, meanMetrics); err != nil {
		return err
	}

	sample := evaluate.SamplePairs(pooledActual, pooledPredicted, ex.RandomSeed)
	if err := o.writeJSONArtifact(ctx, ex.Id, artifacts.Predictions, sample); err != nil {
		return err
	}

	if importances, err := evaluate.Explain(
		finalModel, ds.X, ds.Y, ds.FeatureNames, ex.RandomSeed,
	); err != nil {
		o.Logger.Printf("experiment %s: explainer failed (continuing): %s", ex.Id, err)
	} else if err := o.writeJSONArtifact(ctx, ex.Id, artifacts.FeatureImportance, importances); err != nil {
		return err
	}

	if err := o.Experiments.SetResults(ctx, ex.Id, domain.Results{
		Metrics:          meanMetrics,
		PredictionSample: sample,
	}); err != nil {
		return err
	}

	if err := run.LogMetrics(ctx, meanMetrics); err != nil {
		o.Logger.Printf("experiment %s: logging metrics failed: %s", ex.Id, err)
	}
	return nil
}

func intHyperparam(hp map[string]any, key string, fallback int) int {
	if hp == nil {
		return fallback
	}
	switch v := hp[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

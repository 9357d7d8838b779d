package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/modelyard/modelyard/pkg/api/types/errors"
	apiexp "github.com/modelyard/modelyard/pkg/api/types/experiments"
	"github.com/modelyard/modelyard/pkg/artifacts"
	"github.com/modelyard/modelyard/pkg/domain"
	expdb "github.com/modelyard/modelyard/pkg/domain/experiment/db"
	"github.com/modelyard/modelyard/pkg/tracker"
	"github.com/modelyard/modelyard/pkg/utils/strings"
	"github.com/modelyard/modelyard/pkg/worker"
)

// translate maps domain errors onto the API error envelope.
func translate(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, domain.ErrMissing):
		return apierr.NotFound()
	case errors.Is(err, domain.ErrInvalidStateChanging):
		return apierr.Conflict(err.Error())
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrUnsupportedConfiguration):
		return apierr.BadRequest(err.Error(), err)
	default:
		return apierr.InternalServerError(err)
	}
}

func CreateExperimentHandler(dbExp expdb.Interface, newId func() string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		spec := apiexp.CreationSpec{}
		if err := c.Bind(&spec); err != nil {
			return apierr.BadRequest("malformed experiment creation request", err)
		}

		strategy, err := domain.AsValidationStrategy(spec.ValidationStrategy)
		if err != nil {
			return apierr.BadRequest(`"validationStrategy" should be "simple_split" or "time_series_cv"`, err)
		}
		family, err := domain.AsModelFamily(spec.ModelFamily)
		if err != nil {
			return apierr.BadRequest(`"modelFamily" names an unsupported model family`, err)
		}
		if spec.TargetColumn == "" {
			return apierr.BadRequest(`"targetColumn" is required`, nil)
		}
		if spec.DatasourceId == "" {
			return apierr.BadRequest(`"datasourceId" is required`, nil)
		}

		fraction := spec.TestSplitFraction
		if fraction == 0 {
			fraction = 0.2
		}

		ex := &domain.Experiment{
			ExperimentBody: domain.ExperimentBody{
				Id:                 newId(),
				ProjectId:          spec.ProjectId,
				Status:             domain.Draft,
				ValidationStrategy: strategy,
				ModelFamily:        family,
				Hyperparameters:    spec.Hyperparameters,
				FeatureSet:         spec.FeatureSet,
				TargetColumn:       spec.TargetColumn,
				TestSplitFraction:  fraction,
				RandomSeed:         spec.RandomSeed,
				DatasourceId:       spec.DatasourceId,
			},
			ArtifactPaths: map[string]string{},
		}
		if err := dbExp.Register(c.Request().Context(), ex); err != nil {
			return translate(err)
		}

		return c.JSON(http.StatusCreated, apiexp.ComposeDetail(*ex))
	}
}

func GetExperimentHandler(dbExp expdb.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		ex, err := dbExp.GetOne(c.Request().Context(), c.Param("experimentId"))
		if err != nil {
			return translate(err)
		}
		return c.JSON(http.StatusOK, apiexp.ComposeDetail(*ex))
	}
}

func FindExperimentHandler(dbExp expdb.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		query := domain.ExperimentFindQuery{
			ProjectId: strings.SplitIfNotEmpty(c.QueryParam("project"), ","),
			SuiteId:   strings.SplitIfNotEmpty(c.QueryParam("suite"), ","),
		}
		for _, p := range strings.SplitIfNotEmpty(c.QueryParam("status"), ",") {
			s, err := domain.AsExperimentStatus(p)
			if err != nil {
				return apierr.BadRequest(
					`"status" should be one of "draft", "queued", "running", "finished", "error" or "cancelled"`,
					nil,
				)
			}
			query.Status = append(query.Status, s)
		}

		ctx := c.Request().Context()
		ids, err := dbExp.Find(ctx, query)
		if err != nil {
			return translate(err)
		}
		found, err := dbExp.Get(ctx, ids)
		if err != nil {
			return translate(err)
		}

		resp := make([]apiexp.Detail, 0, len(found))
		for _, id := range ids {
			if ex, ok := found[id]; ok {
				resp = append(resp, apiexp.ComposeDetail(ex))
			}
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// RunExperimentHandler queues the experiment and dispatches its pipeline to
// the worker pool. The response is 202: the pipeline runs asynchronously.
func RunExperimentHandler(dbExp expdb.Interface, pool *worker.Pool, run RunFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		experimentId := c.Param("experimentId")
		ctx := c.Request().Context()

		if err := dbExp.SetStatus(ctx, experimentId, domain.Queued); err != nil {
			return translate(err)
		}
		if err := dispatch(pool, experimentId, run); err != nil {
			return translate(err)
		}

		ex, err := dbExp.GetOne(ctx, experimentId)
		if err != nil {
			return translate(err)
		}
		return c.JSON(http.StatusAccepted, apiexp.ComposeDetail(*ex))
	}
}

// RetryExperimentHandler resets a failed or cancelled experiment back to the
// queue and dispatches it again.
func RetryExperimentHandler(dbExp expdb.Interface, pool *worker.Pool, run RunFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		experimentId := c.Param("experimentId")
		ctx := c.Request().Context()

		if err := dbExp.Retry(ctx, experimentId); err != nil {
			return translate(err)
		}
		if err := dispatch(pool, experimentId, run); err != nil {
			return translate(err)
		}

		ex, err := dbExp.GetOne(ctx, experimentId)
		if err != nil {
			return translate(err)
		}
		return c.JSON(http.StatusAccepted, apiexp.ComposeDetail(*ex))
	}
}

func CancelExperimentHandler(dbExp expdb.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		experimentId := c.Param("experimentId")
		ctx := c.Request().Context()

		if err := dbExp.SetStatus(ctx, experimentId, domain.Cancelled); err != nil {
			return translate(err)
		}
		ex, err := dbExp.GetOne(ctx, experimentId)
		if err != nil {
			return translate(err)
		}
		return c.JSON(http.StatusOK, apiexp.ComposeDetail(*ex))
	}
}

func ForkExperimentHandler(dbExp expdb.Interface, newId func() string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		ctx := c.Request().Context()

		base, err := dbExp.GetOne(ctx, c.Param("experimentId"))
		if err != nil {
			return translate(err)
		}

		forked := base.Fork(newId())
		if err := dbExp.Register(ctx, forked); err != nil {
			return translate(err)
		}
		return c.JSON(http.StatusCreated, apiexp.ComposeDetail(*forked))
	}
}

type PromotionSpec struct {
	RegisteredModelName string `json:"registeredModelName"`
}

type PromotionResult struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// PromoteExperimentHandler registers a finished experiment's model artifact
// under a name at the tracking backend's model registry.
func PromoteExperimentHandler(
	dbExp expdb.Interface, store artifacts.Store, track tracker.Tracker,
) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		ctx := c.Request().Context()

		spec := PromotionSpec{}
		if err := c.Bind(&spec); err != nil {
			return apierr.BadRequest("malformed promotion request", err)
		}
		if spec.RegisteredModelName == "" {
			return apierr.BadRequest(`"registeredModelName" is required`, nil)
		}

		ex, err := dbExp.GetOne(ctx, c.Param("experimentId"))
		if err != nil {
			return translate(err)
		}
		if ex.Status != domain.Finished {
			return apierr.Conflict("only finished experiments can be promoted")
		}

		model, err := store.Read(ctx, ex.Id, artifacts.Model)
		if err != nil {
			return translate(err)
		}

		run, err := track.StartOrResumeRun(ctx, ex.TrackingRunId, ex.Id)
		if err != nil {
			return apierr.ServiceUnavailable("tracking backend is unreachable", err)
		}
		version, err := run.RegisterModel(ctx, model, spec.RegisteredModelName)
		if err != nil {
			return apierr.ServiceUnavailable("model registration failed", err)
		}
		if err := run.SetTags(ctx, map[string]string{
			"registered_model": version.Name,
			"model_version":    version.Version,
		}); err != nil {
			return apierr.ServiceUnavailable("tagging the run failed", err)
		}

		return c.JSON(http.StatusOK, PromotionResult{
			Name:    version.Name,
			Version: version.Version,
		})
	}
}

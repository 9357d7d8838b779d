package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/modelyard/modelyard/pkg/api/types/errors"
	apisuites "github.com/modelyard/modelyard/pkg/api/types/suites"
	"github.com/modelyard/modelyard/pkg/domain"
	expdb "github.com/modelyard/modelyard/pkg/domain/experiment/db"
	suitedb "github.com/modelyard/modelyard/pkg/domain/suite/db"
	"github.com/modelyard/modelyard/pkg/search"
	"github.com/modelyard/modelyard/pkg/worker"
)

func CreateSuiteHandler(dbSuite suitedb.Interface, dbExp expdb.Interface, newId func() string) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		ctx := c.Request().Context()

		spec := apisuites.CreationSpec{}
		if err := c.Bind(&spec); err != nil {
			return apierr.BadRequest("malformed suite creation request", err)
		}

		study, err := domain.AsStudyType(spec.StudyType)
		if err != nil {
			return apierr.BadRequest(`"studyType" should be "grid_search", "bayesian_sweep" or "grouping"`, err)
		}

		space := spec.SearchSpace.ToDomain()
		if study != domain.Grouping {
			if space.Empty() {
				return apierr.BadRequest(`"searchSpace" is required for search studies`, nil)
			}
			if err := space.Validate(); err != nil {
				return apierr.BadRequest("malformed search space", err)
			}
			if spec.BaseExperimentId == nil {
				return apierr.BadRequest(`"baseExperimentId" is required for search studies`, nil)
			}
			if _, err := dbExp.GetOne(ctx, *spec.BaseExperimentId); err != nil {
				return translate(err)
			}
		}

		budget := spec.TrialBudget
		if budget == 0 {
			switch study {
			case domain.GridSearch:
				// the grid's size is knowable up front.
				budget = 1
				for _, name := range space.Order {
					budget *= len(space.Domains[name].Choices)
				}
			case domain.BayesianSweep:
				budget = search.DefaultTrialBudget
			}
		}

		suite := &domain.Suite{
			Id:                 newId(),
			ProjectId:          spec.ProjectId,
			StudyType:          study,
			SearchSpace:        space,
			OptimizationMetric: spec.OptimizationMetric,
			BaseExperimentId:   spec.BaseExperimentId,
			Status:             domain.SuiteDraft,
			TrialBudget:        budget,
		}
		if err := dbSuite.Register(ctx, suite); err != nil {
			return translate(err)
		}

		return c.JSON(http.StatusCreated, apisuites.ComposeDetail(*suite))
	}
}

func GetSuiteHandler(dbSuite suitedb.Interface) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")

		suite, err := dbSuite.GetOne(c.Request().Context(), c.Param("suiteId"))
		if err != nil {
			return translate(err)
		}
		return c.JSON(http.StatusOK, apisuites.ComposeDetail(*suite))
	}
}

// RunSuiteHandler dispatches the suite's study to the worker pool.
//
// Progress is observable by polling GET: the trial ledger grows as the study
// advances.
func RunSuiteHandler(dbSuite suitedb.Interface, pool *worker.Pool, run RunFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Add("Content-Type", "application/json")
		suiteId := c.Param("suiteId")
		ctx := c.Request().Context()

		suite, err := dbSuite.GetOne(ctx, suiteId)
		if err != nil {
			return translate(err)
		}
		if suite.Status != domain.SuiteDraft {
			return apierr.Conflict("suite is not in draft")
		}

		if err := dispatch(pool, suiteId, run); err != nil {
			return translate(err)
		}
		return c.JSON(http.StatusAccepted, apisuites.ComposeDetail(*suite))
	}
}

package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/modelyard/modelyard/cmd/modelyardd/handlers"
	apiexp "github.com/modelyard/modelyard/pkg/api/types/experiments"
	"github.com/modelyard/modelyard/pkg/artifacts"
	"github.com/modelyard/modelyard/pkg/domain"
	expdb "github.com/modelyard/modelyard/pkg/domain/experiment/db"
	expmem "github.com/modelyard/modelyard/pkg/domain/experiment/db/memory"
	"github.com/modelyard/modelyard/pkg/tracker"
	trackmock "github.com/modelyard/modelyard/pkg/tracker/mock"
	"github.com/modelyard/modelyard/pkg/utils/try"
	"github.com/modelyard/modelyard/pkg/worker"
)

func post(t *testing.T, handler echo.HandlerFunc, path string, body string, params map[string]string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for name, value := range params {
		c.SetParamNames(name)
		c.SetParamValues(value)
	}
	return rec, handler(c)
}

func get(t *testing.T, handler echo.HandlerFunc, path string, params map[string]string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for name, value := range params {
		c.SetParamNames(name)
		c.SetParamValues(value)
	}
	return rec, handler(c)
}

func httpStatusOf(t *testing.T, err error) int {
	t.Helper()
	httpErr := &echo.HTTPError{}
	if !errors.As(err, &httpErr) {
		t.Fatalf("not an HTTPError: %v", err)
	}
	return httpErr.Code
}

func registered(t *testing.T, db expdb.Interface, status domain.ExperimentStatus) string {
	t.Helper()
	ex := &domain.Experiment{
		ExperimentBody: domain.ExperimentBody{
			Id:                 "exp-1",
			ProjectId:          "proj-1",
			Status:             status,
			ValidationStrategy: domain.SimpleSplit,
			ModelFamily:        domain.Linear,
			TargetColumn:       "y",
			TestSplitFraction:  0.2,
			DatasourceId:       "ds-1",
		},
		ArtifactPaths: map[string]string{},
	}
	if err := db.Register(context.Background(), ex); err != nil {
		t.Fatal(err)
	}
	return ex.Id
}

func TestCreateExperimentHandler(t *testing.T) {
	newId := func() string { return "exp-new" }

	t.Run("a valid spec registers a draft and answers 201", func(t *testing.T) {
		db := expmem.New()
		rec, err := post(t, handlers.CreateExperimentHandler(db, newId), "/api/experiments/", `{
			"projectId": "proj-1",
			"validationStrategy": "simple_split",
			"modelFamily": "random_forest",
			"targetColumn": "y",
			"datasourceId": "ds-1"
		}`, nil)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Code != http.StatusCreated {
			t.Errorf("status: got %d, want 201", rec.Code)
		}

		detail := apiexp.Detail{}
		if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
			t.Fatal(err)
		}
		if detail.Id != "exp-new" || detail.Status != "draft" {
			t.Errorf("got %+v", detail)
		}
		if detail.TestSplitFraction != 0.2 {
			t.Errorf("default split fraction: got %v, want 0.2", detail.TestSplitFraction)
		}

		stored := try.To(db.GetOne(context.Background(), "exp-new")).OrFatal(t)
		if stored.Status != domain.Draft {
			t.Errorf("stored status: got %s", stored.Status)
		}
	})

	t.Run("an unknown model family answers 400", func(t *testing.T) {
		db := expmem.New()
		_, err := post(t, handlers.CreateExperimentHandler(db, newId), "/api/experiments/", `{
			"validationStrategy": "simple_split",
			"modelFamily": "prophet",
			"targetColumn": "y",
			"datasourceId": "ds-1"
		}`, nil)
		if got := httpStatusOf(t, err); got != http.StatusBadRequest {
			t.Errorf("status: got %d, want 400", got)
		}
	})

	t.Run("a missing target column answers 400", func(t *testing.T) {
		db := expmem.New()
		_, err := post(t, handlers.CreateExperimentHandler(db, newId), "/api/experiments/", `{
			"validationStrategy": "simple_split",
			"modelFamily": "linear",
			"datasourceId": "ds-1"
		}`, nil)
		if got := httpStatusOf(t, err); got != http.StatusBadRequest {
			t.Errorf("status: got %d, want 400", got)
		}
	})
}

func TestGetExperimentHandler(t *testing.T) {
	t.Run("an unknown id answers 404", func(t *testing.T) {
		db := expmem.New()
		_, err := get(t, handlers.GetExperimentHandler(db), "/api/experiments/nope/", map[string]string{
			"experimentId": "nope",
		})
		if got := httpStatusOf(t, err); got != http.StatusNotFound {
			t.Errorf("status: got %d, want 404", got)
		}
	})

	t.Run("a known id answers its detail", func(t *testing.T) {
		db := expmem.New()
		id := registered(t, db, domain.Draft)

		rec, err := get(t, handlers.GetExperimentHandler(db), "/api/experiments/exp-1/", map[string]string{
			"experimentId": id,
		})
		if err != nil {
			t.Fatal(err)
		}
		detail := apiexp.Detail{}
		if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
			t.Fatal(err)
		}
		if detail.Id != id {
			t.Errorf("id: got %s, want %s", detail.Id, id)
		}
	})
}

func TestRunExperimentHandler(t *testing.T) {
	t.Run("it queues the draft and dispatches the pipeline", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		db := expmem.New()
		id := registered(t, db, domain.Draft)
		pool := worker.New(ctx, 1, 4)
		defer pool.Shutdown()

		ran := make(chan string, 1)
		run := func(ctx context.Context, experimentId string) error {
			ran <- experimentId
			return nil
		}

		rec, err := post(t, handlers.RunExperimentHandler(db, pool, run), "/api/experiments/exp-1/run/", "", map[string]string{
			"experimentId": id,
		})
		if err != nil {
			t.Fatal(err)
		}
		if rec.Code != http.StatusAccepted {
			t.Errorf("status: got %d, want 202", rec.Code)
		}

		select {
		case got := <-ran:
			if got != id {
				t.Errorf("dispatched %s, want %s", got, id)
			}
		case <-time.After(time.Second):
			t.Fatal("pipeline never dispatched")
		}

		stored := try.To(db.GetOne(context.Background(), id)).OrFatal(t)
		if stored.Status != domain.Queued {
			t.Errorf("stored status: got %s, want queued", stored.Status)
		}
	})

	t.Run("running a finished experiment answers 409", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		db := expmem.New()
		id := registered(t, db, domain.Queued)
		if err := db.SetStatus(ctx, id, domain.Running); err != nil {
			t.Fatal(err)
		}
		if err := db.SetStatus(ctx, id, domain.Finished); err != nil {
			t.Fatal(err)
		}
		pool := worker.New(ctx, 1, 4)
		defer pool.Shutdown()

		_, err := post(t, handlers.RunExperimentHandler(db, pool, nil), "/api/experiments/exp-1/run/", "", map[string]string{
			"experimentId": id,
		})
		if got := httpStatusOf(t, err); got != http.StatusConflict {
			t.Errorf("status: got %d, want 409", got)
		}
	})
}

func TestForkExperimentHandler(t *testing.T) {
	t.Run("it answers a fresh draft carrying lineage", func(t *testing.T) {
		db := expmem.New()
		id := registered(t, db, domain.Draft)

		rec, err := post(t, handlers.ForkExperimentHandler(db, func() string { return "exp-fork" }),
			"/api/experiments/exp-1/fork/", "", map[string]string{"experimentId": id})
		if err != nil {
			t.Fatal(err)
		}
		if rec.Code != http.StatusCreated {
			t.Errorf("status: got %d, want 201", rec.Code)
		}

		detail := apiexp.Detail{}
		if err := json.Unmarshal(rec.Body.Bytes(), &detail); err != nil {
			t.Fatal(err)
		}
		if detail.ForkedFrom == nil || *detail.ForkedFrom != id {
			t.Errorf("lineage: got %v", detail.ForkedFrom)
		}
		if detail.Status != "draft" {
			t.Errorf("status: got %s, want draft", detail.Status)
		}
	})
}

func TestCancelExperimentHandler(t *testing.T) {
	t.Run("cancelling a finished experiment answers 409", func(t *testing.T) {
		ctx := context.Background()
		db := expmem.New()
		id := registered(t, db, domain.Queued)
		if err := db.SetStatus(ctx, id, domain.Running); err != nil {
			t.Fatal(err)
		}
		if err := db.SetStatus(ctx, id, domain.Finished); err != nil {
			t.Fatal(err)
		}

		_, err := post(t, handlers.CancelExperimentHandler(db), "/api/experiments/exp-1/cancel/", "", map[string]string{
			"experimentId": id,
		})
		if got := httpStatusOf(t, err); got != http.StatusConflict {
			t.Errorf("status: got %d, want 409", got)
		}
	})

	t.Run("a queued experiment cancels cleanly", func(t *testing.T) {
		db := expmem.New()
		id := registered(t, db, domain.Queued)

		rec, err := post(t, handlers.CancelExperimentHandler(db), "/api/experiments/exp-1/cancel/", "", map[string]string{
			"experimentId": id,
		})
		if err != nil {
			t.Fatal(err)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("status: got %d, want 200", rec.Code)
		}
		stored := try.To(db.GetOne(context.Background(), id)).OrFatal(t)
		if stored.Status != domain.Cancelled {
			t.Errorf("stored status: got %s", stored.Status)
		}
	})
}

func TestPromoteExperimentHandler(t *testing.T) {
	ctx := context.Background()

	finished := func(t *testing.T, db expdb.Interface) string {
		t.Helper()
		id := registered(t, db, domain.Queued)
		if err := db.SetStatus(ctx, id, domain.Running); err != nil {
			t.Fatal(err)
		}
		if err := db.SetStatus(ctx, id, domain.Finished); err != nil {
			t.Fatal(err)
		}
		return id
	}

	t.Run("it registers the model artifact and tags the run", func(t *testing.T) {
		db := expmem.New()
		id := finished(t, db)
		store := artifacts.InMemory()
		try.To(store.Write(ctx, id, artifacts.Model, []byte("model blob"))).OrFatal(t)

		run := trackmock.NewRun()
		run.Impl.RegisterModel = func(ctx context.Context, model []byte, name string) (tracker.ModelVersion, error) {
			if string(model) != "model blob" {
				t.Errorf("model: got %q", model)
			}
			return tracker.ModelVersion{Name: name, Version: "4"}, nil
		}
		trk := trackmock.NewTracker()
		trk.Impl.StartOrResumeRun = func(ctx context.Context, runId *string, name string) (tracker.Run, error) {
			return run, nil
		}

		rec, err := post(t, handlers.PromoteExperimentHandler(db, store, trk),
			"/api/experiments/exp-1/promote/", `{"registeredModelName": "churn"}`,
			map[string]string{"experimentId": id})
		if err != nil {
			t.Fatal(err)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("status: got %d, want 200", rec.Code)
		}

		result := handlers.PromotionResult{}
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatal(err)
		}
		if result.Name != "churn" || result.Version != "4" {
			t.Errorf("got %+v", result)
		}

		if len(run.Calls.SetTags) != 1 {
			t.Fatalf("SetTags called %d times", len(run.Calls.SetTags))
		}
		tags := run.Calls.SetTags[0]
		if tags["registered_model"] != "churn" || tags["model_version"] != "4" {
			t.Errorf("tags: got %v", tags)
		}
	})

	t.Run("an unfinished experiment answers 409", func(t *testing.T) {
		db := expmem.New()
		id := registered(t, db, domain.Draft)

		_, err := post(t, handlers.PromoteExperimentHandler(db, artifacts.InMemory(), trackmock.NewTracker()),
			"/api/experiments/exp-1/promote/", `{"registeredModelName": "churn"}`,
			map[string]string{"experimentId": id})
		if got := httpStatusOf(t, err); got != http.StatusConflict {
			t.Errorf("status: got %d, want 409", got)
		}
	})

	t.Run("an unreachable tracker answers 503", func(t *testing.T) {
		db := expmem.New()
		id := finished(t, db)
		store := artifacts.InMemory()
		try.To(store.Write(ctx, id, artifacts.Model, []byte("blob"))).OrFatal(t)

		trk := trackmock.NewTracker()
		trk.Impl.StartOrResumeRun = func(ctx context.Context, runId *string, name string) (tracker.Run, error) {
			return nil, domain.ErrTrackingBackendUnavailable
		}

		_, err := post(t, handlers.PromoteExperimentHandler(db, store, trk),
			"/api/experiments/exp-1/promote/", `{"registeredModelName": "churn"}`,
			map[string]string{"experimentId": id})
		if got := httpStatusOf(t, err); got != http.StatusServiceUnavailable {
			t.Errorf("status: got %d, want 503", got)
		}
	})
}

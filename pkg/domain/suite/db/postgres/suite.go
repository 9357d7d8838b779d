package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	kpool "github.com/modelyard/modelyard/pkg/conn/db/postgres/pool"
	"github.com/modelyard/modelyard/pkg/domain"
	kdb "github.com/modelyard/modelyard/pkg/domain/suite/db"
	"github.com/modelyard/modelyard/pkg/xerrors"
)

type pgSuite struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) kdb.Interface {
	return &pgSuite{pool: pool}
}

func (p *pgSuite) Register(ctx context.Context, s *domain.Suite) error {
	space, err := json.Marshal(s.SearchSpace)
	if err != nil {
		return xerrors.Wrap(err)
	}

	_, err = p.pool.Exec(
		ctx,
		`
		insert into "suite" (
			"suite_id", "project_id", "study_type", "search_space",
			"optimization_metric", "base_experiment_id", "status", "trial_budget"
		) values ($1, $2, $3, $4, $5, $6, $7, $8)
		`,
		s.Id, s.ProjectId, string(s.StudyType), string(space),
		s.OptimizationMetric, s.BaseExperimentId, string(s.Status), s.TrialBudget,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf(
				"%w: suite '%s' is already registered", domain.ErrInvalidStateChanging, s.Id,
			)
		}
		return xerrors.Wrap(err)
	}
	return nil
}

func (p *pgSuite) GetOne(ctx context.Context, id string) (*domain.Suite, error) {
	s := domain.Suite{}
	var studyType, status string
	var space string
	var importances *string

	err := p.pool.QueryRow(
		ctx,
		`
		select
			"suite_id", "project_id", "study_type", "search_space",
			"optimization_metric", "base_experiment_id", "status", "error_message",
			"trial_budget", "best_trial_index", "param_importances", "version", "updated_at"
		from "suite" where "suite_id" = $1
		`,
		id,
	).Scan(
		&s.Id, &s.ProjectId, &studyType, &space,
		&s.OptimizationMetric, &s.BaseExperimentId, &status, &s.ErrorMessage,
		&s.TrialBudget, &s.BestTrialIndex, &importances, &s.Version, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: suite '%s'", domain.ErrMissing, id)
	} else if err != nil {
		return nil, xerrors.Wrap(err)
	}

	if s.StudyType, err = domain.AsStudyType(studyType); err != nil {
		return nil, xerrors.Wrap(err)
	}
	if s.Status, err = domain.AsSuiteStatus(status); err != nil {
		return nil, xerrors.Wrap(err)
	}
	if err := json.Unmarshal([]byte(space), &s.SearchSpace); err != nil {
		return nil, xerrors.Wrap(err)
	}
	if importances != nil {
		if err := json.Unmarshal([]byte(*importances), &s.ParamImportances); err != nil {
			return nil, xerrors.Wrap(err)
		}
	}

	rows, err := p.pool.Query(
		ctx,
		`
		select "trial_index", "params", "objective_value", "child_experiment_id", "failed"
		from "suite_trial" where "suite_id" = $1 order by "trial_index"
		`,
		id,
	)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	defer rows.Close()

	for rows.Next() {
		t := domain.Trial{}
		var params string
		if err := rows.Scan(&t.Index, &params, &t.ObjectiveValue, &t.ChildExperimentId, &t.Failed); err != nil {
			return nil, xerrors.Wrap(err)
		}
		if err := json.Unmarshal([]byte(params), &t.Params); err != nil {
			return nil, xerrors.Wrap(err)
		}
		s.Trials = append(s.Trials, t)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err)
	}

	return &s, nil
}

func (p *pgSuite) SetStatus(ctx context.Context, id string, newStatus domain.SuiteStatus, message string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return xerrors.Wrap(err)
	}
	defer tx.Rollback(ctx)

	var rawStatus string
	err = tx.QueryRow(
		ctx, `select "status" from "suite" where "suite_id" = $1 for update`, id,
	).Scan(&rawStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: suite '%s'", domain.ErrMissing, id)
	} else if err != nil {
		return xerrors.Wrap(err)
	}

	current, err := domain.AsSuiteStatus(rawStatus)
	if err != nil {
		return xerrors.Wrap(err)
	}
	if current.IsTerminal() {
		return fmt.Errorf(
			"%w: suite '%s' is %s already", domain.ErrInvalidStateChanging, id, current,
		)
	}

	if _, err := tx.Exec(
		ctx,
		`
		update "suite" set "status" = $1, "error_message" = $2,
			"version" = "version" + 1, "updated_at" = now()
		where "suite_id" = $3
		`,
		string(newStatus), message, id,
	); err != nil {
		return xerrors.Wrap(err)
	}
	return tx.Commit(ctx)
}

func (p *pgSuite) AppendTrial(ctx context.Context, id string, trial domain.Trial) error {
	params, err := json.Marshal(trial.Params)
	if err != nil {
		return xerrors.Wrap(err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return xerrors.Wrap(err)
	}
	defer tx.Rollback(ctx)

	var budget, count int
	err = tx.QueryRow(
		ctx,
		`
		select "trial_budget", (select count(*) from "suite_trial" where "suite_id" = $1)
		from "suite" where "suite_id" = $1 for update
		`,
		id,
	).Scan(&budget, &count)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: suite '%s'", domain.ErrMissing, id)
	} else if err != nil {
		return xerrors.Wrap(err)
	}
	if 0 < budget && budget <= count {
		return fmt.Errorf(
			"%w: suite '%s' exhausted its budget of %d trials",
			domain.ErrInvalidStateChanging, id, budget,
		)
	}

	// objective can be ±Inf for failed trials; float8 column carries it as is.
	objective := trial.ObjectiveValue
	if math.IsNaN(objective) {
		return xerrors.New("objective value must not be NaN")
	}

	if _, err := tx.Exec(
		ctx,
		`
		insert into "suite_trial" ("suite_id", "trial_index", "params", "objective_value", "child_experiment_id", "failed")
		values ($1, $2, $3, $4, $5, $6)
		`,
		id, trial.Index, string(params), objective, trial.ChildExperimentId, trial.Failed,
	); err != nil {
		return xerrors.Wrap(err)
	}
	return tx.Commit(ctx)
}

func (p *pgSuite) Finalize(ctx context.Context, id string, bestTrialIndex *int, importances map[string]float64) error {
	var buf *string
	if importances != nil {
		b, err := json.Marshal(importances)
		if err != nil {
			return xerrors.Wrap(err)
		}
		s := string(b)
		buf = &s
	}

	tag, err := p.pool.Exec(
		ctx,
		`
		update "suite" set "best_trial_index" = $1, "param_importances" = $2,
			"version" = "version" + 1, "updated_at" = now()
		where "suite_id" = $3
		`,
		bestTrialIndex, buf, id,
	)
	if err != nil {
		return xerrors.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: suite '%s'", domain.ErrMissing, id)
	}
	return nil
}

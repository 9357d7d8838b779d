package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"
	kpool "github.com/modelyard/modelyard/pkg/conn/db/postgres/pool"
	"github.com/modelyard/modelyard/pkg/domain"
	kdb "github.com/modelyard/modelyard/pkg/domain/experiment/db"
	"github.com/modelyard/modelyard/pkg/xerrors"
)

type pgExperiment struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) kdb.Interface {
	return &pgExperiment{pool: pool}
}

func (p *pgExperiment) Register(ctx context.Context, ex *domain.Experiment) error {
	hp, err := json.Marshal(orEmptyMap(ex.Hyperparameters))
	if err != nil {
		return xerrors.Wrap(err)
	}
	fs, err := json.Marshal(orEmptySlice(ex.FeatureSet))
	if err != nil {
		return xerrors.Wrap(err)
	}

	_, err = p.pool.Exec(
		ctx,
		`
		insert into "experiment" (
			"experiment_id", "project_id", "status",
			"validation_strategy", "model_family",
			"hyperparameters", "feature_set", "target_column",
			"test_split_fraction", "random_seed", "datasource_id",
			"suite_id", "forked_from"
		) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`,
		ex.Id, ex.ProjectId, string(ex.Status),
		string(ex.ValidationStrategy), string(ex.ModelFamily),
		string(hp), string(fs), ex.TargetColumn,
		ex.TestSplitFraction, ex.RandomSeed, ex.DatasourceId,
		ex.SuiteId, ex.ForkedFrom,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf(
				"%w: experiment '%s' is already registered", domain.ErrInvalidStateChanging, ex.Id,
			)
		}
		return xerrors.Wrap(err)
	}
	return nil
}

func (p *pgExperiment) Get(ctx context.Context, ids []string) (map[string]domain.Experiment, error) {
	rows, err := p.pool.Query(
		ctx,
		`
		select
			"experiment_id", "project_id", "status",
			"validation_strategy", "model_family",
			"hyperparameters", "feature_set", "target_column",
			"test_split_fraction", "random_seed", "datasource_id",
			"current_stage", "error_message", "tracking_run_id",
			"suite_id", "forked_from", "results", "version", "updated_at"
		from "experiment" where "experiment_id" = any($1)
		`,
		ids,
	)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	defer rows.Close()

	found := map[string]domain.Experiment{}
	for rows.Next() {
		ex, err := scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		found[ex.Id] = *ex
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(err)
	}

	if len(found) == 0 {
		return found, nil
	}

	arows, err := p.pool.Query(
		ctx,
		`select "experiment_id", "name", "path" from "experiment_artifact" where "experiment_id" = any($1)`,
		ids,
	)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	defer arows.Close()
	for arows.Next() {
		var id, name, path string
		if err := arows.Scan(&id, &name, &path); err != nil {
			return nil, xerrors.Wrap(err)
		}
		if ex, ok := found[id]; ok {
			ex.ArtifactPaths[name] = path
			found[id] = ex
		}
	}
	if err := arows.Err(); err != nil {
		return nil, xerrors.Wrap(err)
	}

	return found, nil
}

func (p *pgExperiment) GetOne(ctx context.Context, id string) (*domain.Experiment, error) {
	found, err := p.Get(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	ex, ok := found[id]
	if !ok {
		return nil, fmt.Errorf("%w: experiment '%s'", domain.ErrMissing, id)
	}
	return &ex, nil
}

func (p *pgExperiment) Find(ctx context.Context, query domain.ExperimentFindQuery) ([]string, error) {
	rows, err := p.pool.Query(
		ctx,
		`
		select "experiment_id" from "experiment"
		where
			(cardinality($1::varchar[]) = 0 or "project_id" = any($1)) and
			(cardinality($2::varchar[]) = 0 or "suite_id" = any($2)) and
			(cardinality($3::varchar[]) = 0 or "status" = any($3))
		order by "updated_at"
		`,
		orEmptySlice(query.ProjectId),
		orEmptySlice(query.SuiteId),
		statusStrings(query.Status),
	)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, xerrors.Wrap(err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (p *pgExperiment) SetStatus(ctx context.Context, id string, newStatus domain.ExperimentStatus) error {
	return p.inStatusLock(ctx, id, func(tx kpool.Tx, current domain.ExperimentStatus) error {
		if !current.CanTransitTo(newStatus) {
			return domain.NewErrInvalidStateChanging(current, newStatus)
		}
		_, err := tx.Exec(
			ctx,
			`update "experiment" set "status" = $1, "version" = "version" + 1, "updated_at" = now() where "experiment_id" = $2`,
			string(newStatus), id,
		)
		return err
	})
}

func (p *pgExperiment) SetError(ctx context.Context, id string, message string) error {
	return p.inStatusLock(ctx, id, func(tx kpool.Tx, current domain.ExperimentStatus) error {
		if !current.CanTransitTo(domain.Errored) {
			return domain.NewErrInvalidStateChanging(current, domain.Errored)
		}
		_, err := tx.Exec(
			ctx,
			`
			update "experiment"
			set "status" = $1, "error_message" = $2, "version" = "version" + 1, "updated_at" = now()
			where "experiment_id" = $3
			`,
			string(domain.Errored), message, id,
		)
		return err
	})
}

func (p *pgExperiment) SetStage(ctx context.Context, id string, stage int) error {
	return p.exec(
		ctx, id,
		`update "experiment" set "current_stage" = $1, "version" = "version" + 1, "updated_at" = now() where "experiment_id" = $2`,
		stage, id,
	)
}

func (p *pgExperiment) AddArtifact(ctx context.Context, id string, name string, path string) error {
	_, err := p.pool.Exec(
		ctx,
		`
		insert into "experiment_artifact" ("experiment_id", "name", "path")
		values ($1, $2, $3)
		on conflict ("experiment_id", "name") do update set "path" = excluded."path"
		`,
		id, name, path,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return fmt.Errorf("%w: experiment '%s'", domain.ErrMissing, id)
		}
		return xerrors.Wrap(err)
	}
	return nil
}

func (p *pgExperiment) SetResults(ctx context.Context, id string, results domain.Results) error {
	buf, err := json.Marshal(results)
	if err != nil {
		return xerrors.Wrap(err)
	}
	return p.exec(
		ctx, id,
		`update "experiment" set "results" = $1, "version" = "version" + 1, "updated_at" = now() where "experiment_id" = $2`,
		string(buf), id,
	)
}

func (p *pgExperiment) SetTrackingRunId(ctx context.Context, id string, runId string) error {
	return p.exec(
		ctx, id,
		`update "experiment" set "tracking_run_id" = $1, "version" = "version" + 1, "updated_at" = now() where "experiment_id" = $2`,
		runId, id,
	)
}

func (p *pgExperiment) Retry(ctx context.Context, id string) error {
	return p.inStatusLock(ctx, id, func(tx kpool.Tx, current domain.ExperimentStatus) error {
		if !current.CanTransitTo(domain.Queued) {
			return domain.NewErrInvalidStateChanging(current, domain.Queued)
		}
		// artifact paths are kept: the pipeline resumes over them.
		_, err := tx.Exec(
			ctx,
			`
			update "experiment"
			set "status" = $1, "error_message" = '', "current_stage" = 0,
				"version" = "version" + 1, "updated_at" = now()
			where "experiment_id" = $2
			`,
			string(domain.Queued), id,
		)
		return err
	})
}

// inStatusLock runs callback under `select ... for update` of the experiment's
// status row, so status checks and updates are atomic against other workers.
func (p *pgExperiment) inStatusLock(
	ctx context.Context, id string,
	callback func(tx kpool.Tx, current domain.ExperimentStatus) error,
) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return xerrors.Wrap(err)
	}
	defer tx.Rollback(ctx)

	var rawStatus string
	err = tx.QueryRow(
		ctx,
		`select "status" from "experiment" where "experiment_id" = $1 for update`,
		id,
	).Scan(&rawStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: experiment '%s'", domain.ErrMissing, id)
	} else if err != nil {
		return xerrors.Wrap(err)
	}

	current, err := domain.AsExperimentStatus(rawStatus)
	if err != nil {
		return xerrors.Wrap(err)
	}

	if err := callback(tx, current); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *pgExperiment) exec(ctx context.Context, id string, sql string, args ...interface{}) error {
	tag, err := p.pool.Exec(ctx, sql, args...)
	if err != nil {
		return xerrors.Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: experiment '%s'", domain.ErrMissing, id)
	}
	return nil
}

func scanExperiment(rows pgx.Rows) (*domain.Experiment, error) {
	ex := domain.Experiment{ArtifactPaths: map[string]string{}}
	var status, strategy, family string
	var hp, fs string
	var results *string

	if err := rows.Scan(
		&ex.Id, &ex.ProjectId, &status,
		&strategy, &family,
		&hp, &fs, &ex.TargetColumn,
		&ex.TestSplitFraction, &ex.RandomSeed, &ex.DatasourceId,
		&ex.CurrentStage, &ex.ErrorMessage, &ex.TrackingRunId,
		&ex.SuiteId, &ex.ForkedFrom, &results, &ex.Version, &ex.UpdatedAt,
	); err != nil {
		return nil, xerrors.Wrap(err)
	}

	var err error
	if ex.Status, err = domain.AsExperimentStatus(status); err != nil {
		return nil, xerrors.Wrap(err)
	}
	if ex.ValidationStrategy, err = domain.AsValidationStrategy(strategy); err != nil {
		return nil, xerrors.Wrap(err)
	}
	if ex.ModelFamily, err = domain.AsModelFamily(family); err != nil {
		return nil, xerrors.Wrap(err)
	}
	if err := json.Unmarshal([]byte(hp), &ex.Hyperparameters); err != nil {
		return nil, xerrors.Wrap(err)
	}
	if err := json.Unmarshal([]byte(fs), &ex.FeatureSet); err != nil {
		return nil, xerrors.Wrap(err)
	}
	if results != nil {
		ex.Results = &domain.Results{}
		if err := json.Unmarshal([]byte(*results), ex.Results); err != nil {
			return nil, xerrors.Wrap(err)
		}
	}
	return &ex, nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func statusStrings(statuses []domain.ExperimentStatus) []string {
	ret := make([]string, len(statuses))
	for nth, s := range statuses {
		ret[nth] = string(s)
	}
	return ret
}

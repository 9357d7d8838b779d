// Package schema carries the postgres DDL for modelyard's tables.
package schema

import (
	"context"

	kpool "github.com/modelyard/modelyard/pkg/conn/db/postgres/pool"
)

const DDL = `
create table if not exists "experiment" (
	"experiment_id" varchar(36) primary key,
	"project_id" varchar(36) not null,
	"status" varchar(16) not null,
	"validation_strategy" varchar(32) not null,
	"model_family" varchar(32) not null,
	"hyperparameters" jsonb not null default '{}',
	"feature_set" jsonb not null default '[]',
	"target_column" varchar(255) not null,
	"test_split_fraction" double precision not null default 0.2,
	"random_seed" bigint not null default 0,
	"datasource_id" varchar(255) not null,
	"current_stage" int not null default 0,
	"error_message" text not null default '',
	"tracking_run_id" varchar(64),
	"suite_id" varchar(36),
	"forked_from" varchar(36),
	"results" jsonb,
	"version" int not null default 1,
	"updated_at" timestamp with time zone not null default now()
);

create index if not exists "experiment_suite_idx" on "experiment" ("suite_id");
create index if not exists "experiment_status_idx" on "experiment" ("status");

create table if not exists "experiment_artifact" (
	"experiment_id" varchar(36) not null references "experiment" ("experiment_id"),
	"name" varchar(64) not null,
	"path" text not null,
	primary key ("experiment_id", "name")
);

create table if not exists "suite" (
	"suite_id" varchar(36) primary key,
	"project_id" varchar(36) not null,
	"study_type" varchar(32) not null,
	"search_space" jsonb not null default '{}',
	"optimization_metric" varchar(64) not null,
	"base_experiment_id" varchar(36),
	"status" varchar(16) not null,
	"error_message" text not null default '',
	"trial_budget" int not null default 0,
	"best_trial_index" int,
	"param_importances" jsonb,
	"version" int not null default 1,
	"updated_at" timestamp with time zone not null default now()
);

create table if not exists "suite_trial" (
	"suite_id" varchar(36) not null references "suite" ("suite_id"),
	"trial_index" int not null,
	"params" jsonb not null default '{}',
	"objective_value" double precision not null,
	"child_experiment_id" varchar(36) not null,
	"failed" boolean not null default false,
	primary key ("suite_id", "trial_index")
);
`

// Apply creates all tables, idempotently.
func Apply(ctx context.Context, pool kpool.Pool) error {
	_, err := pool.Exec(ctx, DDL)
	return err
}

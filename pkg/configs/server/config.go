// Package server holds the daemon's YAML configuration.
package server

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port int `yaml:"port"`

	// postgres URI of the experiment/suite store. Empty selects the
	// in-memory store (development only).
	DBURI string `yaml:"dbURI"`

	// filesystem root of the artifact store. Empty selects the in-memory
	// store (development only).
	ArtifactRoot string `yaml:"artifactRoot"`

	// directory the CSV data provider resolves datasource ids in. When
	// DatasetSchemaURI is set, datasources are postgres tables instead.
	DatasetRoot      string `yaml:"datasetRoot"`
	DatasetSchemaURI string `yaml:"datasetSchemaURI"`

	// base URL of the MLflow-compatible tracking server. Empty disables
	// tracking.
	TrackerURL          string `yaml:"trackerURL"`
	TrackerExperimentId string `yaml:"trackerExperimentId"`

	// size of the pipeline worker pool.
	Workers int `yaml:"workers"`
}

func Load(filepath string) (*Config, error) {
	content, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

func Unmarshal(conf []byte) (*Config, error) {
	var out Config
	if err := yaml.Unmarshal(conf, &out); err != nil {
		return nil, err
	}
	if out.Port == 0 {
		out.Port = 8080
	}
	if out.Workers < 1 {
		out.Workers = 4
	}
	if out.DatasetRoot == "" && out.DatasetSchemaURI == "" {
		return nil, fmt.Errorf("one of datasetRoot or datasetSchemaURI is required")
	}
	return &out, nil
}

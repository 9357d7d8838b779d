package tracker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/utils/retry"
	"github.com/modelyard/modelyard/pkg/xerrors"
)

// mlflowTracker speaks the MLflow REST API (api/2.0/mlflow).
type mlflowTracker struct {
	baseUrl      string
	experimentId string
	client       *http.Client
	backoff      func() retry.Backoff
}

// NewMLflow builds a tracker against an MLflow-compatible backend.
//
// experimentId is the backend-side experiment (= project) the runs belong to.
func NewMLflow(baseUrl string, experimentId string) Tracker {
	return &mlflowTracker{
		baseUrl:      baseUrl,
		experimentId: experimentId,
		client:       &http.Client{Timeout: 30 * time.Second},
		backoff:      func() retry.Backoff { return retry.ExponentialBackoff(500*time.Millisecond, 2) },
	}
}

func (t *mlflowTracker) StartOrResumeRun(ctx context.Context, runId *string, name string) (Run, error) {
	if runId != nil {
		// resume = verify the run still exists at the backend.
		var resp struct {
			Run struct {
				Info struct {
					RunId string `json:"run_id"`
				} `json:"info"`
			} `json:"run"`
		}
		err := t.call(ctx, http.MethodGet, fmt.Sprintf("runs/get?run_id=%s", *runId), nil, &resp)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrTrackingBackendUnavailable, err)
		}
		return &mlflowRun{tracker: t, id: resp.Run.Info.RunId}, nil
	}

	var resp struct {
		Run struct {
			Info struct {
				RunId string `json:"run_id"`
			} `json:"info"`
		} `json:"run"`
	}
	err := t.call(ctx, http.MethodPost, "runs/create", map[string]any{
		"experiment_id": t.experimentId,
		"run_name":      name,
		"start_time":    time.Now().UnixMilli(),
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrTrackingBackendUnavailable, err)
	}
	return &mlflowRun{tracker: t, id: resp.Run.Info.RunId}, nil
}

// call sends one JSON request, retrying transient (5xx, network) failures a
// few times with exponential backoff.
func (t *mlflowTracker) call(ctx context.Context, method string, endpoint string, payload any, result any) error {
	url := t.baseUrl + "/api/2.0/mlflow/" + endpoint

	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return xerrors.Wrap(err)
		}
	}

	attempts := 0
	backoff := t.backoff()
	return retry.Blocking(ctx, backoff, func() error {
		attempts += 1
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return xerrors.Wrap(err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			if attempts < 3 {
				return fmt.Errorf("%w: %s", retry.ErrRetry, err)
			}
			return err
		}
		defer resp.Body.Close()

		buf, err := io.ReadAll(resp.Body)
		if err != nil {
			return xerrors.Wrap(err)
		}

		if 500 <= resp.StatusCode && attempts < 3 {
			return fmt.Errorf("%w: status %d: %s", retry.ErrRetry, resp.StatusCode, string(buf))
		}
		if resp.StatusCode != http.StatusOK {
			return xerrors.Errorf("tracking backend answered %d: %s", resp.StatusCode, string(buf))
		}
		if result != nil {
			if err := json.Unmarshal(buf, result); err != nil {
				return xerrors.Wrap(err)
			}
		}
		return nil
	})
}

type mlflowRun struct {
	tracker *mlflowTracker
	id      string
}

var _ Run = &mlflowRun{}

func (r *mlflowRun) Id() string {
	return r.id
}

func (r *mlflowRun) LogParams(ctx context.Context, params map[string]string) error {
	entries := make([]map[string]string, 0, len(params))
	for k, v := range params {
		entries = append(entries, map[string]string{"key": k, "value": v})
	}
	return r.tracker.call(ctx, http.MethodPost, "runs/log-batch", map[string]any{
		"run_id": r.id,
		"params": entries,
	}, nil)
}

func (r *mlflowRun) LogMetrics(ctx context.Context, metrics map[string]float64) error {
	now := time.Now().UnixMilli()
	entries := make([]map[string]any, 0, len(metrics))
	for k, v := range metrics {
		entries = append(entries, map[string]any{"key": k, "value": v, "timestamp": now, "step": 0})
	}
	return r.tracker.call(ctx, http.MethodPost, "runs/log-batch", map[string]any{
		"run_id":  r.id,
		"metrics": entries,
	}, nil)
}

func (r *mlflowRun) SetTags(ctx context.Context, tags map[string]string) error {
	entries := make([]map[string]string, 0, len(tags))
	for k, v := range tags {
		entries = append(entries, map[string]string{"key": k, "value": v})
	}
	return r.tracker.call(ctx, http.MethodPost, "runs/log-batch", map[string]any{
		"run_id": r.id,
		"tags":   entries,
	}, nil)
}

func (r *mlflowRun) RegisterModel(ctx context.Context, model []byte, name string) (ModelVersion, error) {
	// the registered model may exist already; RESOURCE_ALREADY_EXISTS is fine.
	_ = r.tracker.call(ctx, http.MethodPost, "registered-models/create", map[string]any{
		"name": name,
	}, nil)

	var resp struct {
		ModelVersion struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"model_version"`
	}
	err := r.tracker.call(ctx, http.MethodPost, "model-versions/create", map[string]any{
		"name":   name,
		"run_id": r.id,
		"source": fmt.Sprintf("runs:/%s/model", r.id),
		"tags": []map[string]string{
			{"key": "model_blob_b64", "value": base64.StdEncoding.EncodeToString(model)},
		},
	}, &resp)
	if err != nil {
		return ModelVersion{}, err
	}
	return ModelVersion{Name: resp.ModelVersion.Name, Version: resp.ModelVersion.Version}, nil
}

func (r *mlflowRun) End(ctx context.Context, status RunStatus) error {
	return r.tracker.call(ctx, http.MethodPost, "runs/update", map[string]any{
		"run_id":   r.id,
		"status":   string(status),
		"end_time": time.Now().UnixMilli(),
	}, nil)
}

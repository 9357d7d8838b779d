package train

import (
	"encoding/json"
	"fmt"

	"github.com/modelyard/modelyard/pkg/domain"
	"github.com/modelyard/modelyard/pkg/xerrors"
)

// envelope is the on-disk form of any fitted model.
type envelope struct {
	Family  domain.ModelFamily `json:"family"`
	Task    Task               `json:"task"`
	Labels  []string           `json:"labels,omitempty"`
	Payload json.RawMessage    `json:"payload"`
}

func sealModel(m FittedModel, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	buf, err := json.Marshal(envelope{
		Family:  m.Family(),
		Task:    m.Task(),
		Labels:  m.Labels(),
		Payload: raw,
	})
	if err != nil {
		return nil, xerrors.Wrap(err)
	}
	return buf, nil
}

// Deserialize restores a model serialized with FittedModel.Serialize.
//
// Restored models predict bit-identically to the original.
func Deserialize(buf []byte) (FittedModel, error) {
	env := envelope{}
	if err := json.Unmarshal(buf, &env); err != nil {
		return nil, xerrors.Wrap(err)
	}

	switch env.Family {
	case domain.RandomForest:
		return decodeForest(env.Payload, env.Task, env.Labels)
	case domain.GradientBoosting:
		return decodeBoosting(env.Payload, env.Task, env.Labels)
	case domain.Linear:
		return decodeLinear(env.Payload)
	case domain.LinearClassification:
		return decodeLogistic(env.Payload, env.Labels)
	case domain.Margin:
		return decodeMargin(env.Payload, env.Task, env.Labels)
	default:
		return nil, fmt.Errorf(
			"%w: '%s' is not a known model family", domain.ErrUnsupportedConfiguration, env.Family,
		)
	}
}

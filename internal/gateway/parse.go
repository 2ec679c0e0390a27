package gateway

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// modelAnswer is the structured payload every extraction prompt demands.
type modelAnswer struct {
	Value      any
	Confidence float64
}

// parseAnswer extracts the {"value":..., "confidence":...} object from a raw
// completion. Models occasionally wrap the JSON in markdown fences or prose,
// so the parser locates the outermost object before decoding. A completion
// without a decodable object is a malformed response, not worth retrying.
func parseAnswer(raw string) (*modelAnswer, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, eris.Errorf("gateway: no JSON object in response: %.120s", raw)
	}

	var payload struct {
		Value      any      `json:"value"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return nil, eris.Wrap(err, "gateway: decode response")
	}

	ans := &modelAnswer{Value: payload.Value, Confidence: 0.5}
	if payload.Confidence != nil {
		ans.Confidence = *payload.Confidence
	}
	if s, ok := ans.Value.(string); ok {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			ans.Value = nil
		} else {
			ans.Value = trimmed
		}
	}
	return ans, nil
}

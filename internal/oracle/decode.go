package oracle

import (
	"encoding/json"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	hjson "github.com/hjson/hjson-go/v4"
	"github.com/rotisserie/eris"
)

// cleanJSON strips markdown fences and any prose around the outermost object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// decodeJSON unmarshals model output into out. Strict JSON is tried first,
// then a repaired version, then Hjson.
func decodeJSON(text string, out any) error {
	cleaned := cleanJSON(text)
	if !strings.Contains(cleaned, "{") {
		return eris.New("oracle: no JSON object in response")
	}
	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}

	if repaired, err := jsonrepair.RepairJSON(cleaned); err == nil {
		if err := json.Unmarshal([]byte(repaired), out); err == nil {
			return nil
		}
	}

	return decodeHJSON(cleaned, out)
}

// decodeHJSON accepts unquoted keys and strings, comments and missing commas.
func decodeHJSON(text string, out any) error {
	var loose any
	if err := hjson.Unmarshal([]byte(text), &loose); err != nil {
		return eris.Wrap(err, "oracle: undecodable response")
	}
	data, err := json.Marshal(loose)
	if err != nil {
		return eris.Wrap(err, "oracle: re-encode hjson")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return eris.Wrap(err, "oracle: response shape")
	}
	return nil
}

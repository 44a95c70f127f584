// Package json extracts JSON objects from free-text model replies.
//
// Models asked for JSON often wrap it in markdown fences or add commentary
// before and after the object. The helpers here recover the object.
package json

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoJSON is returned when a reply holds no parseable JSON object.
var ErrNoJSON = errors.New("no JSON object in response")

// ExtractJSON returns the JSON object contained in response. It accepts:
//   - a bare JSON document
//   - JSON inside a ```json or ``` fence
//   - an object embedded in prose, taken from the first '{' to the last '}'
//
// Brace matching is positional, so prose containing extra braces after the
// object defeats it.
func ExtractJSON(response string) (string, error) {
	body := stripCodeFence(response)
	if body == "" {
		return "", ErrNoJSON
	}
	if json.Valid([]byte(body)) {
		return body, nil
	}

	start := strings.Index(body, "{")
	end := strings.LastIndex(body, "}")
	if start != -1 && end > start {
		candidate := body[start : end+1]
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
	}

	return "", errors.Wrapf(ErrNoJSON, "preview %q", preview(response, 100))
}

// ExtractJSONFromResponse extracts and decodes the JSON object in response.
func ExtractJSONFromResponse[T any](response string) (T, error) {
	var result T
	raw, err := ExtractJSON(response)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return result, errors.Wrap(err, "failed to unmarshal JSON")
	}
	return result, nil
}

// stripCodeFence removes a surrounding markdown code fence.
func stripCodeFence(response string) string {
	s := strings.TrimSpace(response)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		rest = strings.TrimPrefix(rest, "json")
		s = strings.TrimSpace(rest)
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

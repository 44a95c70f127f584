package search

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/richinex/scout/model"
)

const maxErrorBody = 512

// doJSON sends req and decodes a 200 response body into out. Non-200
// statuses and undecodable bodies become provider errors. It reports
// whether the body was empty, leaving out untouched.
func doJSON(client *http.Client, provider string, req *http.Request, out any) (empty bool, err error) {
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return false, model.ClassifyTransport(provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, model.ClassifyTransport(provider, errors.Wrap(err, "read response"))
	}

	if resp.StatusCode != http.StatusOK {
		snippet := body
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return false, model.StatusError(provider, resp.StatusCode,
			errors.Errorf("http %d: %s", resp.StatusCode, bytes.TrimSpace(snippet)))
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return true, nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return false, model.NewProviderError(provider, model.KindInvalidResponse, errors.Wrap(err, "decode response"))
	}
	return false, nil
}

func defaultHTTPClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: DefaultTimeout}
}

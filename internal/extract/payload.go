package extract

import (
	"bytes"
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/veilcast/vidprobe-cli/internal/classify"
	"github.com/veilcast/vidprobe-cli/internal/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// evalReply is the envelope Runtime.evaluate wraps around a returnByValue
// result.
type evalReply struct {
	Result struct {
		Type  string              `json:"type"`
		Value jsoniter.RawMessage `json:"value"`
	} `json:"result"`
}

// parseEvaluateReply accepts both payload shapes the in-page scripts can
// produce: the structured findings object, or a bare HTML string that gets
// the source-level patterns applied to it. An absent or null value is not an
// error; it simply yields empty findings.
func parseEvaluateReply(raw jsoniter.RawMessage) (*schemas.Findings, *schemas.PageInfo, error) {
	var reply evalReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, nil, fmt.Errorf("decoding evaluate reply: %w", err)
	}

	val := bytes.TrimSpace(reply.Result.Value)
	if len(val) == 0 || bytes.Equal(val, []byte("null")) {
		return &schemas.Findings{}, nil, nil
	}

	if val[0] == '"' {
		var html string
		if err := json.Unmarshal(val, &html); err != nil {
			return nil, nil, fmt.Errorf("decoding html snapshot: %w", err)
		}
		return classify.FindingsFromHTML(html), &schemas.PageInfo{HTMLSize: len(html)}, nil
	}

	var structured struct {
		Findings *schemas.Findings `json:"findings"`
		PageInfo *schemas.PageInfo `json:"pageInfo"`
	}
	if err := json.Unmarshal(val, &structured); err != nil {
		return nil, nil, fmt.Errorf("decoding findings payload: %w", err)
	}
	if structured.Findings == nil {
		structured.Findings = &schemas.Findings{}
	}
	return structured.Findings, structured.PageInfo, nil
}

// parseAuthReply decodes the auth probe payload and derives the signed-in
// verdict from its signals.
func parseAuthReply(raw jsoniter.RawMessage) (*schemas.AuthStatus, error) {
	var reply evalReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("decoding auth probe reply: %w", err)
	}
	if len(reply.Result.Value) == 0 {
		return nil, fmt.Errorf("auth probe returned no value")
	}

	var status schemas.AuthStatus
	if err := json.Unmarshal(reply.Result.Value, &status); err != nil {
		return nil, fmt.Errorf("decoding auth probe payload: %w", err)
	}
	status.Authenticated = status.HasLibrary && !status.HasSignIn && !status.HasPaywall
	return &status, nil
}

package assistant

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
)

// SyncMode controls whether the remote assistant definition is reconciled
// automatically at startup or left to the syncassistant CLI.
type SyncMode string

const (
	SyncAuto   SyncMode = "auto"
	SyncManual SyncMode = "manual"
)

// SyncResult reports what a reconciliation pass did.
type SyncResult struct {
	Skipped bool
	Updated bool
}

// configHash fingerprints a definition so the remote metadata records which
// revision it was last synced to.
func configHash(def Definition) (string, error) {
	data, err := json.Marshal(def)
	if err != nil {
		return "", fmt.Errorf("failed to hash definition: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// EnsureConfiguration diff-and-patches the remote assistant against the
// source-controlled definition. Idempotent: when the remote already matches,
// no update call is made.
func EnsureConfiguration(ctx context.Context, client *Client, assistantID string, def Definition, mode SyncMode) (SyncResult, error) {
	if mode == SyncManual {
		return SyncResult{Skipped: true}, nil
	}

	hash, err := configHash(def)
	if err != nil {
		return SyncResult{}, err
	}
	desiredMetadata := make(map[string]string, len(def.Metadata)+1)
	for k, v := range def.Metadata {
		desiredMetadata[k] = v
	}
	desiredMetadata["config_hash"] = hash

	remote, err := client.RetrieveAssistant(ctx, assistantID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to retrieve assistant: %w", err)
	}

	payload := map[string]any{}

	if def.Name != "" && remote.Name != def.Name {
		payload["name"] = def.Name
	}
	if def.Description != "" && remote.Description != def.Description {
		payload["description"] = def.Description
	}
	if def.Instructions != "" && remote.Instructions != def.Instructions {
		payload["instructions"] = def.Instructions
	}
	if def.Model != "" && remote.Model != def.Model {
		payload["model"] = def.Model
	}
	if remote.Temperature == nil || *remote.Temperature != def.Temperature {
		payload["temperature"] = def.Temperature
	}
	if remote.TopP == nil || *remote.TopP != def.TopP {
		payload["top_p"] = def.TopP
	}
	if !reflect.DeepEqual(remote.Metadata, desiredMetadata) {
		payload["metadata"] = desiredMetadata
	}
	if !sameJSON(remote.ResponseFormat, def.ResponseFormat) {
		payload["response_format"] = def.ResponseFormat
	}
	if !sameJSON(remote.Tools, def.Tools) {
		payload["tools"] = def.Tools
	}

	if len(payload) == 0 {
		return SyncResult{}, nil
	}

	if _, err := client.UpdateAssistant(ctx, assistantID, payload); err != nil {
		return SyncResult{}, fmt.Errorf("failed to update assistant: %w", err)
	}
	return SyncResult{Updated: true}, nil
}

// sameJSON compares two values by their canonical JSON encoding, which
// tolerates the remote returning generic maps where we hold typed structs.
func sameJSON(a, b any) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}

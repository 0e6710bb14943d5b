package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunContext_CloneIsShallow(t *testing.T) {
	inner := map[string]any{"status": "pending"}
	original := RunContext{"record": inner}

	clone := original.Clone()
	clone["record"].(map[string]any)["status"] = "done"

	assert.Equal(t, "done", inner["status"])
}

func TestRunContext_DeepCloneIsolatesNestedValues(t *testing.T) {
	original := RunContext{
		"record":  map[string]any{"status": "pending", "tags": []any{"new"}},
		"records": []map[string]any{{"id": "r1"}},
		"count":   3,
	}

	clone := original.DeepClone()
	clone["record"].(map[string]any)["status"] = "done"
	clone["record"].(map[string]any)["tags"].([]any)[0] = "stale"
	clone["records"].([]map[string]any)[0]["id"] = "r2"

	record := original["record"].(map[string]any)
	assert.Equal(t, "pending", record["status"])
	assert.Equal(t, []any{"new"}, record["tags"])
	assert.Equal(t, "r1", original["records"].([]map[string]any)[0]["id"])
	assert.Equal(t, 3, clone["count"])
}

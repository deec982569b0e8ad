package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeaturesKeepUnknownKeys(t *testing.T) {
	raw := `{"max_concurrent_tasks":3,"priority_support":true,"api_access":false,"allowed_models":["gpt-4o"],"custom_branding":true}`

	var f Features
	require.NoError(t, json.Unmarshal([]byte(raw), &f))
	require.Equal(t, 3, f.MaxConcurrentTasks)
	require.True(t, f.PrioritySupport)
	require.Equal(t, []string{"gpt-4o"}, f.AllowedModels)
	require.Equal(t, true, f.Extra["custom_branding"])

	out, err := json.Marshal(f)
	require.NoError(t, err)
	require.JSONEq(t, raw, string(out))
}

func TestFeaturesScan(t *testing.T) {
	var f Features
	require.NoError(t, f.Scan([]byte(`{"api_access":true}`)))
	require.True(t, f.APIAccess)

	require.NoError(t, f.Scan(nil))
	require.Equal(t, Features{}, f)

	require.Error(t, f.Scan(42))
}

func TestFeaturesAllowsModel(t *testing.T) {
	require.True(t, Features{}.AllowsModel("anything"))
	require.True(t, Features{AllowedModels: []string{"*"}}.AllowsModel("claude"))
	require.False(t, Features{AllowedModels: []string{"gpt-4o"}}.AllowsModel("claude"))
}

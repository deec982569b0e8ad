package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Features are the capability flags attached to a tier. Keys without a typed
// field survive round trips through Extra.
type Features struct {
	MaxConcurrentTasks int            `json:"max_concurrent_tasks"`
	PrioritySupport    bool           `json:"priority_support"`
	APIAccess          bool           `json:"api_access"`
	AllowedModels      []string       `json:"allowed_models,omitempty"`
	Extra              map[string]any `json:"-"`
}

var knownFeatureKeys = map[string]struct{}{
	"max_concurrent_tasks": {},
	"priority_support":     {},
	"api_access":           {},
	"allowed_models":       {},
}

// AllowsModel reports whether modelID may be used on this tier. An empty
// allow-list means every model is allowed.
func (f Features) AllowsModel(modelID string) bool {
	if len(f.AllowedModels) == 0 {
		return true
	}
	for _, allowed := range f.AllowedModels {
		if allowed == modelID || allowed == "*" {
			return true
		}
	}
	return false
}

func (f Features) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(f.Extra)+len(knownFeatureKeys))
	for k, v := range f.Extra {
		if _, known := knownFeatureKeys[k]; known {
			continue
		}
		out[k] = v
	}
	out["max_concurrent_tasks"] = f.MaxConcurrentTasks
	out["priority_support"] = f.PrioritySupport
	out["api_access"] = f.APIAccess
	if len(f.AllowedModels) > 0 {
		out["allowed_models"] = f.AllowedModels
	}
	return json.Marshal(out)
}

func (f *Features) UnmarshalJSON(data []byte) error {
	type typed struct {
		MaxConcurrentTasks int      `json:"max_concurrent_tasks"`
		PrioritySupport    bool     `json:"priority_support"`
		APIAccess          bool     `json:"api_access"`
		AllowedModels      []string `json:"allowed_models"`
	}
	var t typed
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*f = Features{
		MaxConcurrentTasks: t.MaxConcurrentTasks,
		PrioritySupport:    t.PrioritySupport,
		APIAccess:          t.APIAccess,
		AllowedModels:      t.AllowedModels,
	}
	for k, v := range raw {
		if _, known := knownFeatureKeys[k]; known {
			continue
		}
		if f.Extra == nil {
			f.Extra = make(map[string]any)
		}
		f.Extra[k] = v
	}
	return nil
}

func (f Features) Value() (driver.Value, error) {
	b, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (f *Features) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*f = Features{}
		return nil
	case []byte:
		if len(v) == 0 {
			*f = Features{}
			return nil
		}
		return f.UnmarshalJSON(v)
	case string:
		if v == "" {
			*f = Features{}
			return nil
		}
		return f.UnmarshalJSON([]byte(v))
	default:
		return fmt.Errorf("tier features: unsupported scan type %T", src)
	}
}

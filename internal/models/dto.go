package models

import "time"

// HealthResponse is returned by health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error  string         `json:"error"`
	Issues []*SchemaError `json:"issues,omitempty"`
}

// ThemeListResponse is returned when listing themes
type ThemeListResponse struct {
	Themes []ThemeInfo `json:"themes"`
}

// ApplyThemeResponse is returned after applying a theme
type ApplyThemeResponse struct {
	Theme        string `json:"theme"`
	Applied      bool   `json:"applied"`
	StylesheetID string `json:"stylesheetId"`
}

// StylesheetSummary describes a fragment without its text
type StylesheetSummary struct {
	ID        string    `json:"id"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PresetOp is the change applied to an asset's preset list
type PresetOp string

const (
	PresetOpApply  PresetOp = "apply"
	PresetOpRemove PresetOp = "remove"
	PresetOpToggle PresetOp = "toggle"
)

// PresetRequest is the body of an asset preset change
type PresetRequest struct {
	PresetID string   `json:"presetId"`
	Op       PresetOp `json:"op"`
}

// AssetPresetsResponse reports the active presets and resulting variables of an asset
type AssetPresetsResponse struct {
	AssetID   string       `json:"assetId"`
	Presets   []string     `json:"presets"`
	Variables *VariableMap `json:"variables"`
}

// ViewRequest is the body of a view change
type ViewRequest struct {
	View string `json:"view"`
}

// StoreThemeRequest is the body of an admin theme upload
type StoreThemeRequest struct {
	Format   DocumentFormat `json:"format"`
	Document string         `json:"document"`
}

// StateResponse is a snapshot of the application store without its actions
type StateResponse struct {
	View             string              `json:"view"`
	ActivePresets    map[string][]string `json:"activePresets"`
	GlobalPresets    map[string][]string `json:"globalPresets"`
	AvailablePresets []string            `json:"availablePresets"`
	SelectedAssets   []string            `json:"selectedAssets"`
	ActiveAsset      string              `json:"activeAsset"`
}

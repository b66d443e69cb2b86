package preset

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"gareport/internal/config"
	"gareport/internal/report"
)

const (
	PresetsDirName = "presets"
	PresetFileExt  = ".yaml"

	APIGA4 = "ga4"
	APIGA3 = "ga3"
)

var (
	// Valid preset names: alphanumeric, underscores, hyphens only
	validPresetName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// Preset is a saved session: which credentials, which API, which
// property or view, and the default date range for reports
type Preset struct {
	Name            string    `json:"name" yaml:"name"`
	API             string    `json:"api" yaml:"api"`                                               // ga4 or ga3
	CredentialsFile string    `json:"credentials_file,omitempty" yaml:"credentials_file,omitempty"` // overrides the global file
	AccountID       string    `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	PropertyID      string    `json:"property_id,omitempty" yaml:"property_id,omitempty"`         // GA4
	WebPropertyID   string    `json:"web_property_id,omitempty" yaml:"web_property_id,omitempty"` // GA3
	ViewID          string    `json:"view_id,omitempty" yaml:"view_id,omitempty"`                 // GA3
	StartDate       string    `json:"start_date,omitempty" yaml:"start_date,omitempty"`
	EndDate         string    `json:"end_date,omitempty" yaml:"end_date,omitempty"`
	RowLimit        int       `json:"row_limit,omitempty" yaml:"row_limit,omitempty"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
	LastUsed        time.Time `json:"last_used" yaml:"last_used"`
}

// Validate checks the preset name and API
func (p *Preset) Validate() error {
	if !IsValidPresetName(p.Name) {
		return fmt.Errorf("invalid preset name: must contain only letters, numbers, underscores, and hyphens (max 50 chars)")
	}
	if p.API != APIGA4 && p.API != APIGA3 {
		return fmt.Errorf("invalid api %q: must be %s or %s", p.API, APIGA4, APIGA3)
	}
	return nil
}

// Source returns the selected property (GA4) or view (GA3) ID
func (p *Preset) Source() string {
	if p.API == APIGA3 {
		return p.ViewID
	}
	return p.PropertyID
}

// Defaults returns the report session defaults for this preset; rowLimit
// is used when the preset does not set one
func (p *Preset) Defaults(rowLimit int) report.Defaults {
	d := report.NewDefaults()
	if p.StartDate != "" {
		d.StartDate = p.StartDate
	}
	if p.EndDate != "" {
		d.EndDate = p.EndDate
	}
	if rowLimit > 0 {
		d.RowLimit = rowLimit
	}
	if p.RowLimit > 0 {
		d.RowLimit = p.RowLimit
	}
	return d
}

// GetPresetsDir returns the path to the presets directory (~/.gareport/presets)
func GetPresetsDir() (string, error) {
	configDir, err := config.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, PresetsDirName), nil
}

// GetPresetPath returns the full path to a preset file
func GetPresetPath(presetName string) (string, error) {
	if !IsValidPresetName(presetName) {
		return "", fmt.Errorf("invalid preset name: must contain only letters, numbers, underscores, and hyphens")
	}

	presetsDir, err := GetPresetsDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(presetsDir, presetName+PresetFileExt), nil
}

// EnsurePresetsDir creates the presets directory if it doesn't exist
func EnsurePresetsDir() error {
	presetsDir, err := GetPresetsDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(presetsDir, 0700)
}

// IsValidPresetName validates a preset name
func IsValidPresetName(name string) bool {
	if name == "" || len(name) > 50 {
		return false
	}
	return validPresetName.MatchString(name)
}

// PresetExists checks if a preset file exists
func PresetExists(presetName string) (bool, error) {
	presetPath, err := GetPresetPath(presetName)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(presetPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// LoadPreset reads a preset from file
func LoadPreset(presetName string) (*Preset, error) {
	presetPath, err := GetPresetPath(presetName)
	if err != nil {
		return nil, err
	}

	// Read preset file
	data, err := os.ReadFile(presetPath)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("preset '%s' does not exist", presetName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read preset file: %w", err)
	}

	// Parse YAML
	var preset Preset
	if err := yaml.Unmarshal(data, &preset); err != nil {
		return nil, fmt.Errorf("failed to parse preset file: %w", err)
	}
	// Presets written before GA3 support have no api field
	if preset.API == "" {
		preset.API = APIGA4
	}
	return &preset, nil
}

// SavePreset writes a preset to file
func SavePreset(preset *Preset) error {
	if err := preset.Validate(); err != nil {
		return err
	}

	if err := EnsurePresetsDir(); err != nil {
		return err
	}

	presetPath, err := GetPresetPath(preset.Name)
	if err != nil {
		return err
	}

	// Set creation time if not already set
	if preset.CreatedAt.IsZero() {
		preset.CreatedAt = time.Now()
	}

	// Marshal to YAML
	data, err := yaml.Marshal(preset)
	if err != nil {
		return fmt.Errorf("failed to marshal preset to YAML: %w", err)
	}

	// Credentials paths and IDs stay readable by the owner only
	if err := os.WriteFile(presetPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write preset file: %w", err)
	}
	return nil
}

// DeletePreset removes a preset file
func DeletePreset(presetName string) error {
	presetPath, err := GetPresetPath(presetName)
	if err != nil {
		return err
	}

	// Check if preset exists
	exists, err := PresetExists(presetName)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("preset '%s' does not exist", presetName)
	}

	// Remove the file
	if err := os.Remove(presetPath); err != nil {
		return fmt.Errorf("failed to delete preset file: %w", err)
	}

	// If this was the active preset, clear it from global config
	activePreset, err := config.GetActivePreset()
	if err == nil && activePreset == presetName {
		return config.SetActivePreset("")
	}
	return nil
}

// ListPresets returns all available presets sorted by file name
func ListPresets() ([]Preset, error) {
	presetsDir, err := GetPresetsDir()
	if err != nil {
		return nil, err
	}

	// No directory yet means no presets
	entries, err := os.ReadDir(presetsDir)
	if os.IsNotExist(err) {
		return []Preset{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read presets directory: %w", err)
	}

	var presets []Preset
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), PresetFileExt) {
			continue
		}

		preset, err := LoadPreset(strings.TrimSuffix(entry.Name(), PresetFileExt))
		if err != nil {
			// Skip corrupted preset files
			continue
		}
		presets = append(presets, *preset)
	}
	return presets, nil
}

// CreatePreset saves a new preset, refusing to overwrite an existing one
func CreatePreset(preset *Preset) error {
	if err := preset.Validate(); err != nil {
		return err
	}

	// Check if preset already exists
	exists, err := PresetExists(preset.Name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("preset '%s' already exists", preset.Name)
	}

	preset.CreatedAt = time.Now()
	preset.LastUsed = preset.CreatedAt
	if err := SavePreset(preset); err != nil {
		return fmt.Errorf("failed to create preset: %w", err)
	}
	return nil
}

// UpdatePreset loads a preset, applies fn and saves it
func UpdatePreset(presetName string, fn func(*Preset) error) (*Preset, error) {
	preset, err := LoadPreset(presetName)
	if err != nil {
		return nil, err
	}
	if err := fn(preset); err != nil {
		return nil, err
	}
	preset.LastUsed = time.Now()
	if err := SavePreset(preset); err != nil {
		return nil, err
	}
	return preset, nil
}

// SetActivePreset sets a preset as the active one in global config
func SetActivePreset(presetName string) error {
	if presetName != "" {
		exists, err := PresetExists(presetName)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("preset '%s' does not exist", presetName)
		}
	}
	return config.SetActivePreset(presetName)
}

// GetActivePreset returns the active preset, if any
func GetActivePreset() (*Preset, error) {
	activePresetName, err := config.GetActivePreset()
	if err != nil {
		return nil, err
	}

	if activePresetName == "" {
		return nil, nil
	}
	return LoadPreset(activePresetName)
}

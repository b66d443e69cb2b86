package preset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gareport/internal/config"
)

func setup(t *testing.T) {
	t.Helper()
	t.Setenv(config.HomeEnv, t.TempDir())
}

func TestIsValidPresetName(t *testing.T) {
	assert.True(t, IsValidPresetName("client_a-2024"))
	assert.False(t, IsValidPresetName(""))
	assert.False(t, IsValidPresetName("has space"))
	assert.False(t, IsValidPresetName("../escape"))
	assert.False(t, IsValidPresetName(string(make([]byte, 51))))
}

func TestCreateLoadDelete(t *testing.T) {
	setup(t)

	p := &Preset{Name: "shop", API: APIGA4, PropertyID: "123456", StartDate: "2024-01-01", EndDate: "2024-01-31"}
	require.NoError(t, CreatePreset(p))
	assert.Error(t, CreatePreset(p), "duplicate names are rejected")

	loaded, err := LoadPreset("shop")
	require.NoError(t, err)
	assert.Equal(t, "123456", loaded.Source())
	assert.False(t, loaded.CreatedAt.IsZero())

	require.NoError(t, SetActivePreset("shop"))
	active, err := GetActivePreset()
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "shop", active.Name)

	require.NoError(t, DeletePreset("shop"))
	active, err = GetActivePreset()
	require.NoError(t, err)
	assert.Nil(t, active)

	_, err = LoadPreset("shop")
	assert.Error(t, err)
}

func TestCreateRejectsUnknownAPI(t *testing.T) {
	setup(t)
	assert.Error(t, CreatePreset(&Preset{Name: "x", API: "ga5"}))
}

func TestSetActivePresetRequiresExisting(t *testing.T) {
	setup(t)
	assert.Error(t, SetActivePreset("missing"))
}

func TestUpdatePresetAndList(t *testing.T) {
	setup(t)

	require.NoError(t, CreatePreset(&Preset{Name: "legacy", API: APIGA3, ViewID: "999"}))
	require.NoError(t, CreatePreset(&Preset{Name: "modern", API: APIGA4, PropertyID: "1"}))

	updated, err := UpdatePreset("legacy", func(p *Preset) error {
		p.StartDate = "30daysAgo"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "30daysAgo", updated.StartDate)

	presets, err := ListPresets()
	require.NoError(t, err)
	require.Len(t, presets, 2)
	assert.Equal(t, "legacy", presets[0].Name)
	assert.Equal(t, "999", presets[0].Source())
}

func TestPresetDefaults(t *testing.T) {
	p := &Preset{Name: "x", API: APIGA4, StartDate: "2024-02-01"}
	d := p.Defaults(500)
	assert.Equal(t, "2024-02-01", d.StartDate)
	assert.Equal(t, "yesterday", d.EndDate)
	assert.Equal(t, 500, d.RowLimit)

	p.RowLimit = 50
	assert.Equal(t, 50, p.Defaults(500).RowLimit)
}

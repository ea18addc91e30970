package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/graphogm/internal/config"
)

func TestConfigTemplateMatchesDefaults(t *testing.T) {
	got := &config.Config{}
	require.NoError(t, yaml.Unmarshal(ConfigTemplate, got))
	assert.Equal(t, config.Default(), got)
}

package models_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fnship/fnship/internal/models"
)

func TestNewFunctionDefinition(t *testing.T) {
	t.Run("defaults fill every unset parameter", func(t *testing.T) {
		def := models.NewFunctionDefinition("fn-a", "/src/fn-a", nil, "", models.ParamOverrides{})

		require.Equal(t, "fn-a", def.Identifier)
		require.Equal(t, "/src/fn-a", def.HandlerDir)
		require.Equal(t, "fn-a", def.Params.FunctionName)
		require.Equal(t, models.DefaultHandler, def.Params.Handler)
		require.Equal(t, models.DefaultRole, def.Params.Role)
		require.Equal(t, models.DefaultRuntime, def.Params.Runtime)
		require.Equal(t, int32(models.DefaultTimeout), def.Params.Timeout)
		require.Equal(t, int32(models.DefaultMemorySize), def.Params.MemorySize)
		require.True(t, def.Params.Publish)
	})

	t.Run("overrides take precedence over defaults", func(t *testing.T) {
		publish := false
		def := models.NewFunctionDefinition("fn-a", "/src/fn-a",
			[]string{"/libs/common"}, "/src/endpoints", models.ParamOverrides{
				FunctionName: "team-fn-a",
				Handler:      "app.main",
				Role:         "custom-role",
				Runtime:      "python3.12",
				Timeout:      120,
				MemorySize:   512,
				Publish:      &publish,
			})

		require.Equal(t, "team-fn-a", def.Params.FunctionName)
		require.Equal(t, "app.main", def.Params.Handler)
		require.Equal(t, "custom-role", def.Params.Role)
		require.Equal(t, "python3.12", def.Params.Runtime)
		require.Equal(t, int32(120), def.Params.Timeout)
		require.Equal(t, int32(512), def.Params.MemorySize)
		require.False(t, def.Params.Publish)
		require.Equal(t, []string{"/libs/common"}, def.LibDirs)
		require.Equal(t, "/src/endpoints", def.EndpointsDir)
	})
}

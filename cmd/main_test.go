package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aukilabs/wayfinder/featureflag"
	"github.com/aukilabs/wayfinder/floorplan"
	"github.com/aukilabs/wayfinder/models"
	"github.com/stretchr/testify/require"
)

func TestValidateConfig(t *testing.T) {
	conf := config{
		PublicEndpoint: "http://localhost:4100",
		ServerID:       "wayfinder",
		FloorPlan: floorPlanConfig{
			Extent: 160,
			Depth:  8,
		},
	}
	require.NoError(t, validateConfig(conf))

	invalid := conf
	invalid.PublicEndpoint = "localhost"
	require.Error(t, validateConfig(invalid))

	invalid = conf
	invalid.ServerID = ""
	require.Error(t, validateConfig(invalid))

	invalid = conf
	invalid.FloorPlan.Extent = 0
	require.Error(t, validateConfig(invalid))

	invalid = conf
	invalid.FloorPlan.Depth = -1
	require.Error(t, validateConfig(invalid))

	invalid = conf
	invalid.MaxExpansions = -1
	require.Error(t, validateConfig(invalid))
}

func TestPathFinderOptions(t *testing.T) {
	opts := pathFinderOptions(config{MaxExpansions: 10}, featureflag.New(nil))
	require.Len(t, opts, 1)

	opts = pathFinderOptions(config{}, featureflag.New([]string{string(featureflag.FlagAdmissibleHeuristic)}))
	require.Len(t, opts, 2)
}

func TestLoadEnvFile(t *testing.T) {
	t.Run("variables are loaded", func(t *testing.T) {
		filename := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(filename, []byte("WAYFINDER_TEST_SERVER_ID=ted\n"), 0o600))

		t.Setenv("WAYFINDER_ENV_FILE", filename)
		t.Setenv("WAYFINDER_TEST_SERVER_ID", "")
		os.Unsetenv("WAYFINDER_TEST_SERVER_ID")

		require.NoError(t, loadEnvFile())
		require.Equal(t, "ted", os.Getenv("WAYFINDER_TEST_SERVER_ID"))
	})

	t.Run("missing file", func(t *testing.T) {
		t.Setenv("WAYFINDER_ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
		require.Error(t, loadEnvFile())
	})
}

func TestDefaultConfig(t *testing.T) {
	conf := defaultConfig()
	require.NoError(t, validateConfig(conf))
	require.Zero(t, conf.MaxExpansions)

	conf.FloorPlan.Depth = 10
	store := models.SessionStore{
		FloorPlan:         conf.FloorPlan.sessionConfig(),
		PathFinderOptions: pathFinderOptions(conf, featureflag.New(nil)),
	}
	session := store.New()

	const steps = 300
	unit := session.FloorPlan.Unit()
	for i := 0; i <= steps; i++ {
		session.UpdatePose(floorplan.Vector3{X: float64(i) * unit})
	}

	path, err := session.FindPath(floorplan.Vector3{}, floorplan.Vector3{X: steps * unit})
	require.NoError(t, err)
	require.Len(t, path, steps)
}

func TestFloorPlanSessionConfig(t *testing.T) {
	conf := floorPlanConfig{
		OriginX: -12.5,
		OriginY: 3.25,
		Extent:  25.6,
		Depth:   7,
	}
	require.Equal(t, models.FloorPlanConfig{
		Origin: floorplan.Vector2{X: -12.5, Y: 3.25},
		Extent: 25.6,
		Depth:  7,
	}, conf.sessionConfig())

	require.NoError(t, validateConfig(config{
		PublicEndpoint: "http://localhost:4100",
		ServerID:       "wayfinder",
		FloorPlan:      conf,
	}))
}

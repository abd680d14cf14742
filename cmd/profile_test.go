package cmd

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/enricher"
	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
)

func TestProfileOutputs(t *testing.T) {
	orders := profiler.TableRef{Project: "p", Dataset: "d", Table: "orders"}
	gone := profiler.TableRef{Project: "p", Dataset: "d", Table: "gone"}
	profile := profiler.NewTableProfile()

	output, failed := profileOutputs([]enricher.TableResult{
		{Table: orders, Profile: profile},
		{Table: gone, Err: errors.New("table not found")},
	})

	assert.Equal(t, 1, failed)
	assert.Equal(t, []tableProfileOutput{
		{TableFQN: "p.d.orders", Profile: profile},
		{TableFQN: "p.d.gone", Error: "table not found"},
	}, output)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"profile", "generate-metadata", "status", "serve"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GoogleCloudPlatform/db-metadata-profiler/internal/profiler"
)

func ordersTable() *profiler.Table {
	return &profiler.Table{
		Ref:         profiler.TableRef{Project: "proj", Dataset: "sales", Table: "orders"},
		Description: "  Online orders  ",
		Schema: []profiler.ColumnDescriptor{
			{Name: "id", Type: profiler.TypeInteger, Mode: profiler.ModeRequired},
			{Name: "status", Type: profiler.TypeString, Mode: profiler.ModeNullable},
			{Name: "notes", Type: profiler.TypeString, Mode: profiler.ModeNullable},
		},
	}
}

func TestBuild(t *testing.T) {
	profile := profiler.NewTableProfile()
	profile.Set("id", &profiler.ColumnProfile{ExampleValues: []string{"1", "2", "3", "4", "5"}})
	profile.Set("status", &profiler.ColumnProfile{ExampleValues: []string{`"shipped"`}})
	profile.Set("notes", &profiler.ColumnProfile{ExampleValues: []string{}})

	got := Build(ordersTable(), profile, "")

	assert.Contains(t, got, "- FQN: proj.sales.orders")
	assert.Contains(t, got, "- Current description: Online orders\n")
	assert.Contains(t, got, "- id: 1, 2, 3\n")
	assert.NotContains(t, got, "1, 2, 3, 4")
	assert.Contains(t, got, `- status: "shipped"`)
	assert.Contains(t, got, "- notes: no examples")
	assert.Contains(t, got, `"table_fqn": "proj.sales.orders"`)
	assert.Contains(t, got, `"name": "metadata-profiler-gemini"`)
	assert.Contains(t, got, `"Highly sensitive", "Confidential", "Internal", "Public"`)
	assert.NotContains(t, got, "Additional context:")
}

func TestBuildWithoutProfileOrDescription(t *testing.T) {
	table := ordersTable()
	table.Description = ""

	got := Build(table, nil, "")

	assert.Contains(t, got, "- Current description: No previous description")
	assert.Equal(t, 3, strings.Count(got, ": no examples"))
}

func TestBuildAdditionalContext(t *testing.T) {
	got := Build(ordersTable(), profiler.NewTableProfile(), "\nStatus codes follow the ERP lifecycle.\n")

	assert.Contains(t, got, "Additional context:\nStatus codes follow the ERP lifecycle.\n")
	assert.Less(t, strings.Index(got, "Additional context:"), strings.Index(got, "REQUIRED OUTPUT"))
}

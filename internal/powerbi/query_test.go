package powerbi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prihlasky/admissions-cli/internal/model"
)

func TestBuildSchema_Layout(t *testing.T) {
	schema := BuildSchema(model.DefaultMetricDefinitions())

	// 4 identity columns + 5 metrics per round + 1 filler between rounds.
	require.Len(t, schema, 15)
	assert.Equal(t, RoleCurriculumCode, schema[0].Role)
	assert.Equal(t, RoleCurriculumName, schema[1].Role)
	assert.Equal(t, RoleCurriculumDetail, schema[2].Role)
	assert.Equal(t, RoleStudyForm, schema[3].Role)
	assert.Equal(t, RoleFiller, schema[9].Role)

	for _, i := range []int{4, 5, 6, 7, 8} {
		assert.Equal(t, RoleMetric, schema[i].Role)
		assert.Equal(t, 1, schema[i].Metric.Round)
	}
	for _, i := range []int{10, 11, 12, 13, 14} {
		assert.Equal(t, RoleMetric, schema[i].Role)
		assert.Equal(t, 2, schema[i].Metric.Round)
	}
}

func TestBuildQuery_SchoolFilter(t *testing.T) {
	schema := BuildSchema(model.DefaultMetricDefinitions())
	q := BuildQuery("Gymnázium Nad Štolou", schema, QueryOptions{
		DatasetID: "ds",
		ReportID:  "rp",
		VisualID:  "vz",
		ModelID:   42,
	})

	require.Len(t, q.Queries, 1)
	sq := q.Queries[0].Query.Commands[0].SemanticQueryDataShapeCommand.Query

	require.NotEmpty(t, sq.Where)
	school := sq.Where[0].Condition.In
	assert.Equal(t, "a03Name", school.Expressions[0].Column.Property)
	require.Len(t, school.Values, 1)
	assert.Equal(t, "'Gymnázium Nad Štolou'", school.Values[0][0].Literal.Value)

	assert.Equal(t, int64(42), q.ModelID)
	assert.Equal(t, "ds", q.Queries[0].ApplicationContext.DatasetID)
}

func TestBuildQuery_CurriculumFilter(t *testing.T) {
	schema := BuildSchema(model.DefaultMetricDefinitions())
	q := BuildQuery("Škola", schema, QueryOptions{
		Curricula: []string{"Gymnázium (79-41-K/41)", "Lyceum (78-42-M/06)"},
	})

	sq := q.Queries[0].Query.Commands[0].SemanticQueryDataShapeCommand.Query
	require.Len(t, sq.Where, 2)
	curricula := sq.Where[1].Condition.In
	assert.Equal(t, "obory", curricula.Expressions[0].Column.Property)
	assert.Len(t, curricula.Values, 2)
}

func TestBuildQuery_NoFilter(t *testing.T) {
	schema := BuildSchema(model.DefaultMetricDefinitions())
	q := BuildQuery("Škola", schema, QueryOptions{
		Curricula: []string{"Gymnázium (79-41-K/41)"},
		NoFilter:  true,
	})

	sq := q.Queries[0].Query.Commands[0].SemanticQueryDataShapeCommand.Query
	assert.Empty(t, sq.Where)
}

func TestBuildQuery_ProjectionsMatchSelect(t *testing.T) {
	schema := BuildSchema(model.DefaultMetricDefinitions())
	q := BuildQuery("Škola", schema, QueryOptions{})

	cmd := q.Queries[0].Query.Commands[0].SemanticQueryDataShapeCommand
	require.Len(t, cmd.Query.Select, len(schema))

	projections := cmd.Binding.Primary.Groupings[0].Projections
	require.Len(t, projections, len(schema))
	for i, p := range projections {
		assert.Equal(t, i, p)
	}

	assert.Equal(t, 500, cmd.Binding.DataReduction.Primary.Window.Count)
}

func TestBuildQuery_Serializes(t *testing.T) {
	schema := BuildSchema(model.DefaultMetricDefinitions())
	q := BuildQuery("Škola", schema, QueryOptions{DatasetID: "ds"})

	data, err := json.Marshal(q)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"SemanticQueryDataShapeCommand"`)
	assert.Contains(t, string(data), `"Entity":"13_2025_prijimacky"`)
}

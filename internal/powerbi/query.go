// Package powerbi talks to a published Power BI report's querydata endpoint:
// it builds per-school semantic queries and decodes the index-dereferenced
// response payload into flat rows.
package powerbi

import "github.com/prihlasky/admissions-cli/internal/model"

// Semantic query DSL. Only the subset the admission visual uses is modeled.

// QueryRequest is the top-level querydata request body.
type QueryRequest struct {
	Version       string  `json:"version"`
	Queries       []Query `json:"queries"`
	CancelQueries []any   `json:"cancelQueries"`
	ModelID       int64   `json:"modelId"`
}

// Query wraps one semantic query with its application context.
type Query struct {
	Query              CommandList        `json:"Query"`
	QueryID            string             `json:"QueryId"`
	ApplicationContext ApplicationContext `json:"ApplicationContext"`
}

// CommandList holds the query commands.
type CommandList struct {
	Commands []Command `json:"Commands"`
}

// Command holds a single data-shape command.
type Command struct {
	SemanticQueryDataShapeCommand DataShapeCommand `json:"SemanticQueryDataShapeCommand"`
}

// DataShapeCommand pairs a semantic query with its result binding.
type DataShapeCommand struct {
	Query                SemanticQuery `json:"Query"`
	Binding              Binding       `json:"Binding"`
	ExecutionMetricsKind int           `json:"ExecutionMetricsKind"`
}

// SemanticQuery is the From/Select/Where/OrderBy body.
type SemanticQuery struct {
	Version int       `json:"Version"`
	From    []From    `json:"From"`
	Select  []Select  `json:"Select"`
	Where   []Where   `json:"Where,omitempty"`
	OrderBy []OrderBy `json:"OrderBy,omitempty"`
}

// From names a model entity with a query-local alias.
type From struct {
	Name   string `json:"Name"`
	Entity string `json:"Entity"`
	Type   int    `json:"Type"`
}

// Select projects one column.
type Select struct {
	Column              Column `json:"Column"`
	Name                string `json:"Name"`
	NativeReferenceName string `json:"NativeReferenceName"`
}

// Column references a property on a From alias.
type Column struct {
	Expression Expression `json:"Expression"`
	Property   string     `json:"Property"`
}

// Expression holds a source reference.
type Expression struct {
	SourceRef SourceRef `json:"SourceRef"`
}

// SourceRef names a From alias.
type SourceRef struct {
	Source string `json:"Source"`
}

// Where holds one filter condition.
type Where struct {
	Condition Condition `json:"Condition"`
}

// Condition models an In filter.
type Condition struct {
	In InCondition `json:"In"`
}

// InCondition filters a column to a literal value set.
type InCondition struct {
	Expressions []ColumnExpr `json:"Expressions"`
	Values      [][]Literal  `json:"Values"`
}

// ColumnExpr wraps a column for filter expressions.
type ColumnExpr struct {
	Column Column `json:"Column"`
}

// Literal is a quoted literal value.
type Literal struct {
	Literal LiteralValue `json:"Literal"`
}

// LiteralValue carries the quoted value string.
type LiteralValue struct {
	Value string `json:"Value"`
}

// OrderBy sorts the projection.
type OrderBy struct {
	Direction  int        `json:"Direction"`
	Expression ColumnExpr `json:"Expression"`
}

// Binding describes the result shape and data-reduction window.
type Binding struct {
	Primary       BindingPrimary `json:"Primary"`
	DataReduction DataReduction  `json:"DataReduction"`
	Version       int            `json:"Version"`
}

// BindingPrimary groups the projected columns.
type BindingPrimary struct {
	Groupings []Grouping `json:"Groupings"`
}

// Grouping lists projection indices.
type Grouping struct {
	Projections []int `json:"Projections"`
}

// DataReduction limits the result window.
type DataReduction struct {
	DataVolume int              `json:"DataVolume"`
	Primary    ReductionPrimary `json:"Primary"`
}

// ReductionPrimary holds the row window.
type ReductionPrimary struct {
	Window Window `json:"Window"`
}

// Window caps the row count.
type Window struct {
	Count int `json:"Count"`
}

// ApplicationContext ties the query to a dataset/report/visual.
type ApplicationContext struct {
	DatasetID string          `json:"DatasetId"`
	Sources   []ContextSource `json:"Sources"`
}

// ContextSource names the originating report visual.
type ContextSource struct {
	ReportID string `json:"ReportId"`
	VisualID string `json:"VisualId"`
}

// ColumnRole classifies a projected column for downstream row mapping.
type ColumnRole int

const (
	RoleCurriculumCode ColumnRole = iota
	RoleCurriculumName
	RoleCurriculumDetail
	RoleStudyForm
	RoleMetric
	RoleFiller
)

// SchemaColumn is one projected column in select order. The decoder emits
// row values in this order, so positions here map decoded values to roles.
type SchemaColumn struct {
	Role       ColumnRole
	Property   string
	RefName    string
	NativeName string
	Metric     model.MetricDefinition // set when Role == RoleMetric
}

const (
	factAlias     = "11"
	capacityAlias = "111"
	dimAlias      = "d"

	factEntity     = "13_2025_prijimacky"
	capacityEntity = "13_Kapacity_skoly_SS"
	dimEntity      = "dim_obory"

	schoolProperty     = "a03Name"
	curriculumProperty = "obory"
	fillerProperty     = "pom"
)

// BuildSchema lays out the projected columns for the given metric
// definitions: four identity columns, then the metric columns grouped by
// round with the dashboard's filler column between round groups.
func BuildSchema(defs []model.MetricDefinition) []SchemaColumn {
	cols := []SchemaColumn{
		{Role: RoleCurriculumCode, Property: "KKOV", RefName: factEntity + ".KKOV", NativeName: "Kód1"},
		{Role: RoleCurriculumName, Property: "obor", RefName: factEntity + ".obor", NativeName: "Obor"},
		{Role: RoleCurriculumDetail, Property: "zamereni", RefName: factEntity + ".zamereni", NativeName: "Zaměření1"},
		{Role: RoleStudyForm, Property: "forma", RefName: factEntity + ".forma", NativeName: "Forma studia1"},
	}

	rounds := model.Rounds(defs)
	for i, round := range rounds {
		if i > 0 {
			cols = append(cols, SchemaColumn{
				Role:       RoleFiller,
				Property:   fillerProperty,
				RefName:    factEntity + "." + fillerProperty,
				NativeName: " ",
			})
		}
		for _, d := range defs {
			if d.Round != round {
				continue
			}
			cols = append(cols, SchemaColumn{
				Role:       RoleMetric,
				Property:   d.Property,
				RefName:    factEntity + "." + d.Property,
				NativeName: d.NativeName,
				Metric:     d,
			})
		}
	}
	return cols
}

// QueryOptions configures BuildQuery.
type QueryOptions struct {
	DatasetID string
	ReportID  string
	VisualID  string
	ModelID   int64

	// Curricula restricts the query to the named curricula. Empty = all.
	Curricula []string
	// NoFilter drops the Where clause entirely; used by the diagnostic
	// fallback query when a filtered query returns nothing.
	NoFilter bool
}

// BuildQuery assembles the querydata payload for one school.
func BuildQuery(school string, schema []SchemaColumn, opts QueryOptions) *QueryRequest {
	sel := make([]Select, 0, len(schema))
	projections := make([]int, 0, len(schema))
	for i, col := range schema {
		sel = append(sel, Select{
			Column: Column{
				Expression: Expression{SourceRef: SourceRef{Source: factAlias}},
				Property:   col.Property,
			},
			Name:                col.RefName,
			NativeReferenceName: col.NativeName,
		})
		projections = append(projections, i)
	}

	var where []Where
	if !opts.NoFilter {
		where = append(where, Where{Condition: Condition{In: InCondition{
			Expressions: []ColumnExpr{{Column: Column{
				Expression: Expression{SourceRef: SourceRef{Source: capacityAlias}},
				Property:   schoolProperty,
			}}},
			Values: [][]Literal{{quoted(school)}},
		}}})

		if len(opts.Curricula) > 0 {
			values := make([][]Literal, 0, len(opts.Curricula))
			for _, c := range opts.Curricula {
				values = append(values, []Literal{quoted(c)})
			}
			where = append(where, Where{Condition: Condition{In: InCondition{
				Expressions: []ColumnExpr{{Column: Column{
					Expression: Expression{SourceRef: SourceRef{Source: dimAlias}},
					Property:   curriculumProperty,
				}}},
				Values: values,
			}}})
		}
	}

	return &QueryRequest{
		Version: "1.0.0",
		Queries: []Query{{
			Query: CommandList{Commands: []Command{{
				SemanticQueryDataShapeCommand: DataShapeCommand{
					Query: SemanticQuery{
						Version: 2,
						From: []From{
							{Name: factAlias, Entity: factEntity, Type: 0},
							{Name: capacityAlias, Entity: capacityEntity, Type: 0},
							{Name: "l", Entity: "Points", Type: 0},
							{Name: "t", Entity: "testovani_zaci", Type: 0},
							{Name: dimAlias, Entity: dimEntity, Type: 0},
							{Name: "p", Entity: "Points_SKOR", Type: 0},
							{Name: "z", Entity: "Zpusob_zadani", Type: 0},
						},
						Select: sel,
						Where:  where,
						OrderBy: []OrderBy{{
							Direction: 1,
							Expression: ColumnExpr{Column: Column{
								Expression: Expression{SourceRef: SourceRef{Source: factAlias}},
								Property:   "k1_prum_skor",
							}},
						}},
					},
					Binding: Binding{
						Primary: BindingPrimary{Groupings: []Grouping{{Projections: projections}}},
						DataReduction: DataReduction{
							DataVolume: 3,
							Primary:    ReductionPrimary{Window: Window{Count: 500}},
						},
						Version: 1,
					},
					ExecutionMetricsKind: 1,
				},
			}}},
			QueryID: "",
			ApplicationContext: ApplicationContext{
				DatasetID: opts.DatasetID,
				Sources:   []ContextSource{{ReportID: opts.ReportID, VisualID: opts.VisualID}},
			},
		}},
		CancelQueries: []any{},
		ModelID:       opts.ModelID,
	}
}

func quoted(v string) Literal {
	return Literal{Literal: LiteralValue{Value: "'" + v + "'"}}
}

package reconcile

import (
	"log/slog"
	"strings"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/worksheet"
)

// Builder folds resolved records into process and product scope entities.
// Build is deterministic: the same ordered input yields the same Model.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder returns a builder logging conflicts to logger.
// A nil logger uses slog.Default.
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

type processAcc struct {
	entity ProcessEntity
	// columns holds, per sub-record category, one value list per field.
	columns map[worksheet.Category][][]string
}

// Build folds res into a Model. Entities join on the canonical key but keep
// the process number as first seen. They appear in first-seen order; list
// values keep arrival order.
func (b *Builder) Build(res Resolution) Model {
	var (
		processes  = make(map[string]*processAcc)
		procOrder  []string
		scopes     = make(map[string]*ProductScopeEntity)
		scopeOrder []string
		model      = Model{Unresolved: res.Unresolved, ByNameIndex: res.ByNameIndex}
	)

	for _, rr := range res.Records {
		rt, ok := routeFor(rr.Record.Slot())
		if !ok {
			continue
		}
		value := strings.TrimSpace(rr.Record.Value)

		if rr.Record.Category == worksheet.CategoryProductScope {
			scope, ok := scopes[rr.Key]
			if !ok {
				scope = &ProductScopeEntity{Name: rr.Raw}
				scopes[rr.Key] = scope
				scopeOrder = append(scopeOrder, rr.Key)
			}
			if rt.target == targetScopeList && value != "" {
				list := scopeList(scope, rt.field)
				*list = append(*list, value)
			}
			continue
		}

		acc, ok := processes[rr.Key]
		if !ok {
			acc = &processAcc{
				entity:  ProcessEntity{ProcessNo: rr.Raw},
				columns: make(map[worksheet.Category][][]string),
			}
			processes[rr.Key] = acc
			procOrder = append(procOrder, rr.Key)
		}

		switch rt.target {
		case targetProcessIdentity:
			// Creating the entity is all an identity record does.
		case targetProcessName:
			b.setOnce(&model, acc.entity.ProcessNo, "processName", &acc.entity.ProcessName, value)
		case targetProcessLevel:
			b.setOnce(&model, acc.entity.ProcessNo, "level", &acc.entity.Level, value)
		case targetProcessDesc:
			if value != "" {
				acc.entity.ProcessDesc = append(acc.entity.ProcessDesc, value)
			}
		case targetSubRecord:
			cat := rr.Record.Category
			cols, ok := acc.columns[cat]
			if !ok {
				cols = make([][]string, subRecordWidth[cat])
				acc.columns[cat] = cols
			}
			cols[rt.field] = append(cols[rt.field], value)
		}
	}

	model.Processes = make([]ProcessEntity, 0, len(procOrder))
	for _, key := range procOrder {
		acc := processes[key]
		for _, cat := range subRecordCategories {
			assignSubRecords(&acc.entity, cat, assemble(acc.columns[cat]))
		}
		model.Processes = append(model.Processes, acc.entity)
	}

	for _, key := range scopeOrder {
		model.Scopes = append(model.Scopes, *scopes[key])
	}

	return model
}

// setOnce stores value in an empty field. A later different value is
// recorded as a conflict and dropped.
func (b *Builder) setOnce(model *Model, processNo, field string, dst *string, value string) {
	if value == "" || *dst == value {
		return
	}
	if *dst == "" {
		*dst = value
		return
	}
	model.Conflicts = append(model.Conflicts, Conflict{
		ProcessNo: processNo,
		Field:     field,
		Kept:      *dst,
		Ignored:   value,
	})
	b.logger.Warn("conflicting value ignored",
		"process_no", processNo,
		"field", field,
		"kept", *dst,
		"ignored", value,
	)
}

// assemble zips per-field value lists into rows: row i takes value i of
// every field. Rows with no non-empty field are dropped.
func assemble(cols [][]string) [][]string {
	n := 0
	for _, c := range cols {
		if len(c) > n {
			n = len(c)
		}
	}

	var rows [][]string
	for i := 0; i < n; i++ {
		row := make([]string, len(cols))
		keep := false
		for j, c := range cols {
			if i < len(c) {
				row[j] = c[i]
				keep = keep || c[i] != ""
			}
		}
		if keep {
			rows = append(rows, row)
		}
	}
	return rows
}

func assignSubRecords(e *ProcessEntity, cat worksheet.Category, rows [][]string) {
	for _, r := range rows {
		switch cat {
		case worksheet.CategoryDetector:
			e.Detectors = append(e.Detectors, Detector{
				Device: r[0], ErrorProofing: r[1], AutoInspection: r[2],
			})
		case worksheet.CategoryControlItem:
			e.ControlItems = append(e.ControlItems, ControlItem{
				ProductChar: r[0], ProcessChar: r[1], SpecialChar: r[2], Specification: r[3],
			})
		case worksheet.CategoryControlMethod:
			e.ControlMethods = append(e.ControlMethods, ControlMethod{
				EvaluationTechnique: r[0], SampleSize: r[1], Frequency: r[2], ControlMethod: r[3],
			})
		case worksheet.CategoryReactionPlan:
			e.ReactionPlans = append(e.ReactionPlans, ReactionPlan{
				ReactionPlan: r[0], Owner: r[1],
			})
		}
	}
}

func scopeList(s *ProductScopeEntity, field int) *[]string {
	switch field {
	case scopeRequirements:
		return &s.Requirements
	case scopeFailureEffects:
		return &s.FailureEffects
	default:
		return &s.Functions
	}
}

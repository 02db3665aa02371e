package reconcile

import (
	"strings"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/store"
)

// descSeparator joins a process's description list into its single column.
const descSeparator = "\n"

// FlattenRows converts entities into table rows. SortOrder is the 0-based
// position of the row within its table, in entity order.
func FlattenRows(entities []ProcessEntity) store.RowSet {
	var rs store.RowSet
	for _, e := range entities {
		rs.Processes = append(rs.Processes, store.ProcessRow{
			ProcessNo:   e.ProcessNo,
			ProcessName: e.ProcessName,
			Level:       e.Level,
			ProcessDesc: strings.Join(e.ProcessDesc, descSeparator),
			SortOrder:   len(rs.Processes),
		})
		for _, d := range e.Detectors {
			rs.Detectors = append(rs.Detectors, store.DetectorRow{
				ProcessNo:      e.ProcessNo,
				Device:         d.Device,
				ErrorProofing:  d.ErrorProofing,
				AutoInspection: d.AutoInspection,
				SortOrder:      len(rs.Detectors),
			})
		}
		for _, c := range e.ControlItems {
			rs.ControlItems = append(rs.ControlItems, store.ControlItemRow{
				ProcessNo:     e.ProcessNo,
				ProductChar:   c.ProductChar,
				ProcessChar:   c.ProcessChar,
				SpecialChar:   c.SpecialChar,
				Specification: c.Specification,
				SortOrder:     len(rs.ControlItems),
			})
		}
		for _, m := range e.ControlMethods {
			rs.ControlMethods = append(rs.ControlMethods, store.ControlMethodRow{
				ProcessNo:           e.ProcessNo,
				EvaluationTechnique: m.EvaluationTechnique,
				SampleSize:          m.SampleSize,
				Frequency:           m.Frequency,
				ControlMethod:       m.ControlMethod,
				SortOrder:           len(rs.ControlMethods),
			})
		}
		for _, p := range e.ReactionPlans {
			rs.ReactionPlans = append(rs.ReactionPlans, store.ReactionPlanRow{
				ProcessNo:    e.ProcessNo,
				ReactionPlan: p.ReactionPlan,
				Owner:        p.Owner,
				SortOrder:    len(rs.ReactionPlans),
			})
		}
	}
	return rs
}

// EntitiesFromRows rebuilds entities from persisted rows, grouping by
// processNo in process sort order.
func EntitiesFromRows(rs store.RowSet) []ProcessEntity {
	index := make(map[string]int, len(rs.Processes))
	out := make([]ProcessEntity, 0, len(rs.Processes))
	for _, p := range rs.Processes {
		e := ProcessEntity{ProcessNo: p.ProcessNo, ProcessName: p.ProcessName, Level: p.Level}
		if p.ProcessDesc != "" {
			e.ProcessDesc = strings.Split(p.ProcessDesc, descSeparator)
		}
		index[p.ProcessNo] = len(out)
		out = append(out, e)
	}

	at := func(no string) *ProcessEntity {
		if i, ok := index[no]; ok {
			return &out[i]
		}
		return nil
	}
	for _, d := range rs.Detectors {
		if e := at(d.ProcessNo); e != nil {
			e.Detectors = append(e.Detectors, Detector{d.Device, d.ErrorProofing, d.AutoInspection})
		}
	}
	for _, c := range rs.ControlItems {
		if e := at(c.ProcessNo); e != nil {
			e.ControlItems = append(e.ControlItems, ControlItem{c.ProductChar, c.ProcessChar, c.SpecialChar, c.Specification})
		}
	}
	for _, m := range rs.ControlMethods {
		if e := at(m.ProcessNo); e != nil {
			e.ControlMethods = append(e.ControlMethods, ControlMethod{m.EvaluationTechnique, m.SampleSize, m.Frequency, m.ControlMethod})
		}
	}
	for _, p := range rs.ReactionPlans {
		if e := at(p.ProcessNo); e != nil {
			e.ReactionPlans = append(e.ReactionPlans, ReactionPlan{p.ReactionPlan, p.Owner})
		}
	}
	return out
}

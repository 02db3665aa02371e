package store

// ProcessRow is one row of cp_processes.
type ProcessRow struct {
	CollectionID string `json:"-" db:"collection_id"`
	ProcessNo    string `json:"processNo" db:"process_no"`
	ProcessName  string `json:"processName" db:"process_name"`
	Level        string `json:"level" db:"level"`
	ProcessDesc  string `json:"processDesc" db:"process_desc"`
	SortOrder    int    `json:"sortOrder" db:"sort_order"`
}

// DetectorRow is one row of cp_detectors.
type DetectorRow struct {
	CollectionID   string `json:"-" db:"collection_id"`
	ProcessNo      string `json:"processNo" db:"process_no"`
	Device         string `json:"device" db:"device"`
	ErrorProofing  string `json:"errorProofing" db:"error_proofing"`
	AutoInspection string `json:"autoInspection" db:"auto_inspection"`
	SortOrder      int    `json:"sortOrder" db:"sort_order"`
}

// ControlItemRow is one row of cp_control_items.
type ControlItemRow struct {
	CollectionID  string `json:"-" db:"collection_id"`
	ProcessNo     string `json:"processNo" db:"process_no"`
	ProductChar   string `json:"productChar" db:"product_char"`
	ProcessChar   string `json:"processChar" db:"process_char"`
	SpecialChar   string `json:"specialChar" db:"special_char"`
	Specification string `json:"specification" db:"specification"`
	SortOrder     int    `json:"sortOrder" db:"sort_order"`
}

// ControlMethodRow is one row of cp_control_methods.
type ControlMethodRow struct {
	CollectionID        string `json:"-" db:"collection_id"`
	ProcessNo           string `json:"processNo" db:"process_no"`
	EvaluationTechnique string `json:"evaluationTechnique" db:"evaluation_technique"`
	SampleSize          string `json:"sampleSize" db:"sample_size"`
	Frequency           string `json:"frequency" db:"frequency"`
	ControlMethod       string `json:"controlMethod" db:"control_method"`
	SortOrder           int    `json:"sortOrder" db:"sort_order"`
}

// ReactionPlanRow is one row of cp_reaction_plans.
type ReactionPlanRow struct {
	CollectionID string `json:"-" db:"collection_id"`
	ProcessNo    string `json:"processNo" db:"process_no"`
	ReactionPlan string `json:"reactionPlan" db:"reaction_plan"`
	Owner        string `json:"owner" db:"owner"`
	SortOrder    int    `json:"sortOrder" db:"sort_order"`
}

// RowSet is the full content of one collection across the five tables.
type RowSet struct {
	Processes      []ProcessRow       `json:"processes"`
	Detectors      []DetectorRow      `json:"detectors"`
	ControlItems   []ControlItemRow   `json:"controlItems"`
	ControlMethods []ControlMethodRow `json:"controlMethods"`
	ReactionPlans  []ReactionPlanRow  `json:"reactionPlans"`
}

// Counts returns the number of rows per table.
func (rs RowSet) Counts() TableCounts {
	return TableCounts{
		Processes:      len(rs.Processes),
		Detectors:      len(rs.Detectors),
		ControlItems:   len(rs.ControlItems),
		ControlMethods: len(rs.ControlMethods),
		ReactionPlans:  len(rs.ReactionPlans),
	}
}

// WithCollection returns a copy of rs with every row's CollectionID set to id.
func (rs RowSet) WithCollection(id string) RowSet {
	out := RowSet{
		Processes:      append([]ProcessRow(nil), rs.Processes...),
		Detectors:      append([]DetectorRow(nil), rs.Detectors...),
		ControlItems:   append([]ControlItemRow(nil), rs.ControlItems...),
		ControlMethods: append([]ControlMethodRow(nil), rs.ControlMethods...),
		ReactionPlans:  append([]ReactionPlanRow(nil), rs.ReactionPlans...),
	}
	for i := range out.Processes {
		out.Processes[i].CollectionID = id
	}
	for i := range out.Detectors {
		out.Detectors[i].CollectionID = id
	}
	for i := range out.ControlItems {
		out.ControlItems[i].CollectionID = id
	}
	for i := range out.ControlMethods {
		out.ControlMethods[i].CollectionID = id
	}
	for i := range out.ReactionPlans {
		out.ReactionPlans[i].CollectionID = id
	}
	return out
}

// Columns returns the insert column list of t, in Values order.
func Columns(t Table) []string {
	switch t {
	case TableProcesses:
		return []string{"collection_id", "process_no", "process_name", "level", "process_desc", "sort_order"}
	case TableDetectors:
		return []string{"collection_id", "process_no", "device", "error_proofing", "auto_inspection", "sort_order"}
	case TableControlItems:
		return []string{"collection_id", "process_no", "product_char", "process_char", "special_char", "specification", "sort_order"}
	case TableControlMethods:
		return []string{"collection_id", "process_no", "evaluation_technique", "sample_size", "frequency", "control_method", "sort_order"}
	case TableReactionPlans:
		return []string{"collection_id", "process_no", "reaction_plan", "owner", "sort_order"}
	}
	return nil
}

// Values returns the rows of t as column values, in Columns order.
func (rs RowSet) Values(t Table) [][]any {
	var out [][]any
	switch t {
	case TableProcesses:
		out = make([][]any, len(rs.Processes))
		for i, r := range rs.Processes {
			out[i] = []any{r.CollectionID, r.ProcessNo, r.ProcessName, r.Level, r.ProcessDesc, r.SortOrder}
		}
	case TableDetectors:
		out = make([][]any, len(rs.Detectors))
		for i, r := range rs.Detectors {
			out[i] = []any{r.CollectionID, r.ProcessNo, r.Device, r.ErrorProofing, r.AutoInspection, r.SortOrder}
		}
	case TableControlItems:
		out = make([][]any, len(rs.ControlItems))
		for i, r := range rs.ControlItems {
			out[i] = []any{r.CollectionID, r.ProcessNo, r.ProductChar, r.ProcessChar, r.SpecialChar, r.Specification, r.SortOrder}
		}
	case TableControlMethods:
		out = make([][]any, len(rs.ControlMethods))
		for i, r := range rs.ControlMethods {
			out[i] = []any{r.CollectionID, r.ProcessNo, r.EvaluationTechnique, r.SampleSize, r.Frequency, r.ControlMethod, r.SortOrder}
		}
	case TableReactionPlans:
		out = make([][]any, len(rs.ReactionPlans))
		for i, r := range rs.ReactionPlans {
			out[i] = []any{r.CollectionID, r.ProcessNo, r.ReactionPlan, r.Owner, r.SortOrder}
		}
	}
	return out
}

// Chunk splits rows into consecutive slices of at most size rows.
func Chunk[T any](rows []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]T
	for len(rows) > 0 {
		n := size
		if len(rows) < n {
			n = len(rows)
		}
		out = append(out, rows[:n:n])
		rows = rows[n:]
	}
	return out
}

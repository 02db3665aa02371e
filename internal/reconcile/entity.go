package reconcile

// Detector is one detection row of a process.
type Detector struct {
	Device         string `json:"device,omitempty"`
	ErrorProofing  string `json:"errorProofing,omitempty"`
	AutoInspection string `json:"autoInspection,omitempty"`
}

// ControlItem is one controlled characteristic of a process.
type ControlItem struct {
	ProductChar   string `json:"productChar,omitempty"`
	ProcessChar   string `json:"processChar,omitempty"`
	SpecialChar   string `json:"specialChar,omitempty"`
	Specification string `json:"specification,omitempty"`
}

// ControlMethod is one evaluation method of a process.
type ControlMethod struct {
	EvaluationTechnique string `json:"evaluationTechnique,omitempty"`
	SampleSize          string `json:"sampleSize,omitempty"`
	Frequency           string `json:"frequency,omitempty"`
	ControlMethod       string `json:"controlMethod,omitempty"`
}

// ReactionPlan is one out-of-control reaction of a process.
type ReactionPlan struct {
	ReactionPlan string `json:"reactionPlan,omitempty"`
	Owner        string `json:"owner,omitempty"`
}

// ProcessEntity is the aggregate of every record sharing one processNo.
type ProcessEntity struct {
	ProcessNo      string          `json:"processNo"`
	ProcessName    string          `json:"processName"`
	Level          string          `json:"level,omitempty"`
	ProcessDesc    []string        `json:"processDesc,omitempty"`
	Detectors      []Detector      `json:"detectors,omitempty"`
	ControlItems   []ControlItem   `json:"controlItems,omitempty"`
	ControlMethods []ControlMethod `json:"controlMethods,omitempty"`
	ReactionPlans  []ReactionPlan  `json:"reactionPlans,omitempty"`
}

// ProductScopeEntity holds the product functions of one scope
// ("Your Plant", "Ship to Plant", "User").
type ProductScopeEntity struct {
	Name           string   `json:"name"`
	Functions      []string `json:"functions,omitempty"`
	Requirements   []string `json:"requirements,omitempty"`
	FailureEffects []string `json:"failureEffects,omitempty"`
}

// Conflict records a set-once field that received a second, different value.
type Conflict struct {
	ProcessNo string `json:"processNo"`
	Field     string `json:"field"`
	Kept      string `json:"kept"`
	Ignored   string `json:"ignored"`
}

// Model is the output of one build.
type Model struct {
	Processes   []ProcessEntity      `json:"processes"`
	Scopes      []ProductScopeEntity `json:"scopes,omitempty"`
	Conflicts   []Conflict           `json:"conflicts,omitempty"`
	Unresolved  int                  `json:"unresolved"`
	ByNameIndex int                  `json:"byNameIndex,omitempty"`
}

package reconcile

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/shs3647-lgtm/SDD-FMEA-sub003/internal/worksheet"
)

// Rule names reported on resolved records.
const (
	RuleField     = "field"
	RuleIdentity  = "identity"
	RuleNameIndex = "name-index"
)

// CanonicalKey returns the comparison form of a join key: NFKC normalized,
// whitespace collapsed, upper case. "１０a " and "10A" are the same key.
func CanonicalKey(s string) string {
	// Casers are stateful; build one per call.
	return cases.Upper(language.Und).String(worksheet.Squash(s))
}

// Rule resolves the join key of a record, or reports that it cannot.
type Rule interface {
	Name() string
	Resolve(rec worksheet.RawAttributeRecord) (key string, ok bool)
}

// FieldRule uses the record's own processNo column.
type FieldRule struct{}

func (FieldRule) Name() string { return RuleField }

func (FieldRule) Resolve(rec worksheet.RawAttributeRecord) (string, bool) {
	key := worksheet.Squash(rec.ProcessNo)
	return key, key != ""
}

// IdentityRule uses the value of a record whose item code carries the key
// itself (A1 for processes, C1 for product scopes).
type IdentityRule struct{}

func (IdentityRule) Name() string { return RuleIdentity }

func (IdentityRule) Resolve(rec worksheet.RawAttributeRecord) (string, bool) {
	if !rec.Slot().IsIdentity() {
		return "", false
	}
	key := worksheet.Squash(rec.Value)
	return key, key != ""
}

// NameIndexRule looks the record's processName up in an index of known
// name → processNo mappings.
type NameIndexRule struct {
	Index *NameIndex
}

func (NameIndexRule) Name() string { return RuleNameIndex }

func (r NameIndexRule) Resolve(rec worksheet.RawAttributeRecord) (string, bool) {
	if r.Index == nil {
		return "", false
	}
	return r.Index.Lookup(rec.ProcessName)
}

// NameIndex maps process names to process numbers. Names compare folded;
// the first mapping added for a name wins.
type NameIndex struct {
	byName map[string]string
}

// NewNameIndex returns an empty index.
func NewNameIndex() *NameIndex {
	return &NameIndex{byName: make(map[string]string)}
}

// Add records name → processNo unless name is blank or already mapped.
func (x *NameIndex) Add(name, processNo string) {
	key := worksheet.Fold(name)
	processNo = worksheet.Squash(processNo)
	if key == "" || processNo == "" {
		return
	}
	if _, ok := x.byName[key]; !ok {
		x.byName[key] = processNo
	}
}

// Lookup returns the process number mapped to name.
func (x *NameIndex) Lookup(name string) (string, bool) {
	if x == nil {
		return "", false
	}
	key := worksheet.Fold(name)
	if key == "" {
		return "", false
	}
	no, ok := x.byName[key]
	return no, ok
}

// Len returns the number of mapped names.
func (x *NameIndex) Len() int {
	if x == nil {
		return 0
	}
	return len(x.byName)
}

// ResolvedRecord is a record paired with its join key.
type ResolvedRecord struct {
	Record worksheet.RawAttributeRecord
	Key    string // canonical key, see CanonicalKey
	Raw    string // key as it appeared in the input, whitespace squashed
	Rule   string
}

// Resolution is the output of resolving one batch.
type Resolution struct {
	Records     []ResolvedRecord // input order, unresolved records omitted
	Unresolved  int
	ByNameIndex int // records resolved by the fallback pass
}

// Resolver applies the key rules to a batch of records.
//
// Every record first goes through FieldRule then IdentityRule. Only when
// neither resolves any process record of the batch does the name index
// pass run over the process records. Product scope records never use the
// name index.
type Resolver struct {
	primary  []Rule
	fallback Rule
}

// NewResolver returns a resolver whose fallback pass uses index.
// A nil index disables the fallback.
func NewResolver(index *NameIndex) *Resolver {
	return &Resolver{
		primary:  []Rule{FieldRule{}, IdentityRule{}},
		fallback: NameIndexRule{Index: index},
	}
}

// Resolve resolves a single record with the primary rules.
func (r *Resolver) Resolve(rec worksheet.RawAttributeRecord) (ResolvedRecord, bool) {
	return apply(r.primary, rec)
}

// ResolveAll resolves a batch, preserving input order.
func (r *Resolver) ResolveAll(records []worksheet.RawAttributeRecord) Resolution {
	resolved := make([]*ResolvedRecord, len(records))
	processHits := 0

	for i, rec := range records {
		if rr, ok := apply(r.primary, rec); ok {
			resolved[i] = &rr
			if rec.Category != worksheet.CategoryProductScope {
				processHits++
			}
		}
	}

	var res Resolution
	if processHits == 0 {
		for i, rec := range records {
			if resolved[i] != nil || rec.Category == worksheet.CategoryProductScope {
				continue
			}
			if rr, ok := apply([]Rule{r.fallback}, rec); ok {
				resolved[i] = &rr
				res.ByNameIndex++
			}
		}
	}

	res.Records = make([]ResolvedRecord, 0, len(records))
	for _, rr := range resolved {
		if rr == nil {
			res.Unresolved++
			continue
		}
		res.Records = append(res.Records, *rr)
	}
	return res
}

func apply(rules []Rule, rec worksheet.RawAttributeRecord) (ResolvedRecord, bool) {
	for _, rule := range rules {
		if raw, ok := rule.Resolve(rec); ok {
			return ResolvedRecord{
				Record: rec,
				Key:    CanonicalKey(raw),
				Raw:    raw,
				Rule:   rule.Name(),
			}, true
		}
	}
	return ResolvedRecord{}, false
}

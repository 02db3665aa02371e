package store

import (
	"fmt"
	"strings"
)

// Table names one of the five target tables.
type Table string

const (
	TableProcesses      Table = "processes"
	TableDetectors      Table = "detectors"
	TableControlItems   Table = "control_items"
	TableControlMethods Table = "control_methods"
	TableReactionPlans  Table = "reaction_plans"
)

// AllTables lists the target tables in insert order.
var AllTables = []Table{
	TableProcesses,
	TableDetectors,
	TableControlItems,
	TableControlMethods,
	TableReactionPlans,
}

// SQLName returns the physical table name.
func (t Table) SQLName() string {
	return "cp_" + string(t)
}

// TableCounts holds one row count per target table.
type TableCounts struct {
	Processes      int `json:"processes"`
	Detectors      int `json:"detectors"`
	ControlItems   int `json:"controlItems"`
	ControlMethods int `json:"controlMethods"`
	ReactionPlans  int `json:"reactionPlans"`
}

// Get returns the count for t.
func (c TableCounts) Get(t Table) int {
	switch t {
	case TableProcesses:
		return c.Processes
	case TableDetectors:
		return c.Detectors
	case TableControlItems:
		return c.ControlItems
	case TableControlMethods:
		return c.ControlMethods
	case TableReactionPlans:
		return c.ReactionPlans
	}
	return 0
}

// Set stores n as the count for t.
func (c *TableCounts) Set(t Table, n int) {
	switch t {
	case TableProcesses:
		c.Processes = n
	case TableDetectors:
		c.Detectors = n
	case TableControlItems:
		c.ControlItems = n
	case TableControlMethods:
		c.ControlMethods = n
	case TableReactionPlans:
		c.ReactionPlans = n
	}
}

// Total returns the sum over all tables.
func (c TableCounts) Total() int {
	return c.Processes + c.Detectors + c.ControlItems + c.ControlMethods + c.ReactionPlans
}

// IsZero reports whether every table count is zero.
func (c TableCounts) IsZero() bool {
	return c == TableCounts{}
}

// Diff returns the tables whose counts differ between c and other.
func (c TableCounts) Diff(other TableCounts) []Table {
	var out []Table
	for _, t := range AllTables {
		if c.Get(t) != other.Get(t) {
			out = append(out, t)
		}
	}
	return out
}

func (c TableCounts) String() string {
	parts := make([]string, len(AllTables))
	for i, t := range AllTables {
		parts[i] = fmt.Sprintf("%s=%d", t, c.Get(t))
	}
	return strings.Join(parts, " ")
}

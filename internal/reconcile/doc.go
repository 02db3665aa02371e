// Package reconcile rebuilds the process model of a control plan from flat
// attribute records and replaces a collection's persisted rows with it.
//
// The pipeline runs in four steps:
//
//	records → Resolver (join key per record)
//	        → Builder  (process and product scope entities)
//	        → Engine   (one replace transaction per collection)
//	        → Gate     (post-commit row count verification)
//
// Service wires the steps together for callers that start from records or
// from a workbook file.
package reconcile

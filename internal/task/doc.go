// Package task defines the task record, its document metadata, and the
// field rules a task must satisfy before it is persisted.
//
// A task is one row of the Markdown task table:
//
//	| [ ] | Buy milk | 2024-06-01 | 09:00 | 1:00 | medium | #errand | | | | |
//
// # Validation
//
// Validation runs in two modes:
//
//  1. JSON Schema validation against the embedded task.schema.json
//     (draft 2020-12 with format assertions). Schema violations are mapped back
//     to one human readable message per field.
//
//  2. Minimal fallback validation when the schema cannot be compiled. It applies
//     the same regular expressions directly and produces the same messages.
//
// Callers decide whether a failure is fatal. Reading a document logs failures
// and keeps the task as-is; saving a document refuses to write while any
// uncompleted task is invalid.
//
// # Field Formats
//
//   - date: YYYY-MM-DD (syntactic only, "2024-02-31" passes)
//   - time: HH:MM, 24 hour clock
//   - duration: H+:MM, minutes 00-59
//   - priority: low, medium, high, urgent
//   - link: absolute URL
package task

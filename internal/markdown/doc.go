// Package markdown reads and writes task documents.
//
// A task document is a small frontmatter block, a heading, and a pipe table
// with one row per task:
//
//	---
//	last_synced: 2024-06-01T09:00:00.000Z
//	total_tasks: 1
//	timezone: Europe/Berlin
//	tags:
//	  - work
//	---
//
//	# Task Table
//
//	| Completed | Task | Date | Time | Duration | Priority | Tags | ... |
//	| :-------- | :--- | :--- | :--- | :------- | :------- | :--- | ... |
//	| [ ] | Standup | 2024-06-01 | 09:00 | 0:15 | high | #work | ... |
//
// Rows are mapped to fields by header name, so documents edited by hand
// with reordered or missing columns still decode. Decoding never fails as a
// whole: a malformed row is reported and skipped.
package markdown

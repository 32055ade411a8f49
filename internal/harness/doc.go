// Package harness runs YAML scenarios against live tables and checks the
// event trace they produce.
//
// # Scenario Format
//
//	name: running_total
//	description: "A watcher sees each write once"
//	table: sheet              # default table for steps, "sheet" if omitted
//	workbook: ../workbooks    # optional CUE workbook dir, relative to the file
//	max_steps: 100            # optional dispatch quota
//	steps:
//	  - subscribe:
//	      name: watch
//	      target: {column: A}
//	      then:               # steps run inside the handler
//	        - add: {column: B, row: 0, value: 1}
//	  - set: {column: A, row: 0, value: 1}
//	  - batch:
//	      - set: {column: A, row: 1, value: {kind: bigdecimal, text: "2.50"}}
//	      - clear: {column: A, row: 0}
//	  - link: {target: {column: T, row: 0}, op: sum, from: {column: A, row: 0}, to: {column: A, row: 9}}
//	  - off: watch
//	  - set: {column: A, row: 0, value: 1}
//	    expect_error: loop
//	assertions:
//	  - type: trace_count
//	    listener: watch
//	    count: 3
//	  - type: trace_order
//	    events: ["watch A[0]: unit -> long(1)", "watch A[1]: unit -> bigdecimal(250e-2)"]
//	  - type: final_value
//	    column: T
//	    row: 0
//	    value: 1
//
// A subscribe target is one of {all: true}, {column}, {row}, {column, row}
// or {column, row, to: {column, row}}.
//
// # Assertion Types
//
//   - trace_contains: an event with the given text was delivered
//   - trace_order: the given events were delivered in this order, not
//     necessarily adjacent
//   - trace_count: the number of events, optionally filtered by listener and
//     cell
//   - final_value: a cell holds the given value after all steps
//
// Traces are deterministic: pass tokens come from a sequential generator, so
// the same scenario always yields byte-identical golden files.
package harness

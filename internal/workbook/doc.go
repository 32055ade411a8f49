// Package workbook compiles declarative CUE workbooks into tables.
//
// A workbook declares tables under the top-level "table" struct:
//
//	table: sales: {
//		columns: ["region", "q1", "q2", "total"]
//		cells: [
//			{column: "region", row: 0, value: "north"},
//			{column: "q1", row: 0, value: 100},
//			{column: "q2", row: 0, value: {kind: "bigdecimal", text: "250.50"}},
//		]
//		links: [
//			{target: {column: "total", row: 0}, op: "sum",
//			 from: {column: "q1", row: 0}, to: {column: "q2", row: 0}},
//		]
//	}
//
// Column names may contain "/" to address multi-label headers ("price/usd").
// Plain CUE values map to Bool, String, Long (BigInteger when out of int64
// range), Double and Unit (null). The {kind, text} form reaches every kind,
// including bigdecimal. A link coordinate may name another table with
// "table"; "to" defaults to "from".
package workbook

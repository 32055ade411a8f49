// Package trace renders dispatched events as canonical JSON.
//
// Canonical JSON (RFC 8785 subset) is used for golden traces and for the
// value columns of the event journal:
//   - object keys sorted by UTF-16 code units
//   - no HTML escaping, strings NFC-normalized
//   - no floats and no null; Double cells travel as text
//
// Values are encoded as {"kind": ..., "text": ...} objects whose text parses
// back through value.Parse to an identical representation.
package trace

// Package value defines the closed set of cell value variants for cellsync.
//
// Every cell holds exactly one of Unit, Bool, String, Long, Double,
// BigInteger or BigDecimal. The set is sealed: only the types in this package
// implement Value, so switches over Kind are exhaustive and the numeric
// coercion matrix is a total function over a finite set.
//
// Numeric promotion order for mixed arithmetic:
//
//	Int < Long < Float < Double < BigInteger < BigDecimal
//
// with one exception: BigInteger combined with Float or Double promotes to
// BigDecimal, never Double. Int and Float only exist as Go inputs; Of widens
// them to Long and Double on entry.
//
// This package imports nothing internal.
package value

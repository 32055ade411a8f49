// Package codec reads and writes tables as a versioned binary container.
//
// Layout (all integers big-endian or varint as noted):
//
//	magic    "CSYN"
//	version  uint32 (current: 1)
//	flags    byte   (bit 0: body is zstd compressed)
//	body:
//	  uvarint column count
//	  per column:
//	    uvarint label count, then per label uvarint length + UTF-8 bytes
//	    uvarint cell count, then per cell:
//	      varint row index, tag byte (value.Kind), payload
//
// Payloads: Bool one byte; String uvarint length + bytes; Long varint;
// Double IEEE-754 bits as uint64; BigInteger sign byte + uvarint length +
// magnitude bytes; BigDecimal varint exponent + BigInteger coefficient.
//
// Column order and empty columns are preserved. Decoding rejects unknown
// magic, versions newer than this build and unknown tags with
// *InvalidStorageError.
package codec

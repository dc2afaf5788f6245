// Package encoding implements the per-column value encoding of the
// columnfile format: run-length compression over repeated values
// combined with shared-prefix compression against the previously
// committed non-null value.
//
// A FieldEncoder accumulates the values of one column within one
// segment and produces a single encoded byte stream at flush time; a
// FieldDecoder is its inverse, exposing a cursor over the decoded
// values. Block compression of the encoded stream is layered on top by
// the compress package.
//
// The encoded stream is a concatenation of run entries:
//
//	run := uvarint(repeat-1) flag [uvarint(prefixLen) uvarint(suffixLen) suffix]
//
// where flag distinguishes null runs from value runs. Integers are
// unsigned LEB128 varints.
package encoding

// Package genetics produces and combines kitty DNA.
//
// Bit order: byte i of a code holds bits 8*i (least significant) through
// 8*i+7. Combination is performed independently on every bit; no bit ever
// crosses a byte boundary, so the mask, both parents and the child share the
// same indexing.
package genetics

package genetics

import (
	"testing"

	"kittycore/pkg/domain"
)

func invert(d domain.DNA) domain.DNA {
	var out domain.DNA
	for i := range d {
		out[i] = ^d[i]
	}
	return out
}

func TestCombineVector(t *testing.T) {
	a := domain.DNA{59, 250, 138, 82, 209, 39, 141, 109, 163, 238, 183, 145, 235, 168, 18, 122}
	b := domain.DNA{138, 178, 107, 116, 67, 242, 232, 253, 56, 225, 143, 56, 13, 43, 209, 8}
	want := domain.DNA{187, 250, 235, 118, 211, 247, 237, 253, 187, 239, 191, 185, 239, 171, 211, 122}

	if got := Combine(a, b, invert(b)); got != want {
		t.Fatalf("combine mismatch:\nwant %v\ngot  %v", want, got)
	}
}

func TestCombineMaskExtremes(t *testing.T) {
	a := domain.DNA{0xAA, 0x01, 0xFF}
	b := domain.DNA{0x55, 0x10, 0x00}
	var ones domain.DNA
	for i := range ones {
		ones[i] = 0xFF
	}
	if got := Combine(a, b, ones); got != a {
		t.Fatalf("all-ones mask must copy a, got %v", got)
	}
	if got := Combine(a, b, domain.DNA{}); got != b {
		t.Fatalf("zero mask must copy b, got %v", got)
	}
}

func TestCombineIsPerBit(t *testing.T) {
	a := domain.DNA{0b1111_0000}
	b := domain.DNA{0b0000_1111}
	mask := domain.DNA{0b1010_1010}
	got := Combine(a, b, mask)
	if got[0] != 0b1010_0101 {
		t.Fatalf("expected per-bit selection 0b10100101, got %08b", got[0])
	}
}

func TestCombineGenderFollowsMaskLowBit(t *testing.T) {
	female := domain.DNA{0x01}
	male := domain.DNA{0x00}
	if Combine(female, male, domain.DNA{0x01}).Gender() != domain.GenderFemale {
		t.Fatalf("mask bit 1 must take the first parent's gender bit")
	}
	if Combine(female, male, domain.DNA{0xFE}).Gender() != domain.GenderMale {
		t.Fatalf("mask bit 0 must take the second parent's gender bit")
	}
}

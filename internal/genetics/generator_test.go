package genetics

import (
	"bytes"
	"testing"

	"kittycore/pkg/domain"
)

func fixedSeed(b byte) domain.Randomness {
	var seed domain.Seed
	for i := range seed {
		seed[i] = b
	}
	return domain.RandomnessFunc(func([]byte) domain.Seed { return seed })
}

func TestGenerateVectors(t *testing.T) {
	cases := []struct {
		name    string
		seed    byte
		account domain.AccountID
		nonce   uint32
		want    domain.DNA
	}{
		{
			name:    "zero seed first kitty",
			seed:    0,
			account: 100,
			nonce:   0,
			want:    domain.DNA{59, 250, 138, 82, 209, 39, 141, 109, 163, 238, 183, 145, 235, 168, 18, 122},
		},
		{
			name:    "second kitty under new seed",
			seed:    2,
			account: 100,
			nonce:   1,
			want:    domain.DNA{146, 140, 103, 206, 150, 128, 40, 15, 84, 246, 234, 60, 166, 26, 99, 17},
		},
		{
			name:    "other account",
			seed:    0,
			account: 10,
			nonce:   0,
			want:    domain.DNA{61, 197, 5, 233, 97, 157, 119, 228, 16, 241, 238, 219, 38, 213, 246, 235},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gen := NewGenerator(fixedSeed(tc.seed))
			if got := gen.Generate(tc.account, tc.nonce); got != tc.want {
				t.Fatalf("want %v\ngot  %v", tc.want, got)
			}
		})
	}
}

func TestGenerateNonceSeparatesSameSeed(t *testing.T) {
	gen := NewGenerator(fixedSeed(0))
	first := gen.Generate(10, 0)
	second := gen.Generate(10, 1)
	if first == second {
		t.Fatalf("expected distinct codes for distinct nonces")
	}
	if again := gen.Generate(10, 0); again != first {
		t.Fatalf("generation must be deterministic")
	}
}

func TestMaskVector(t *testing.T) {
	gen := NewGenerator(fixedSeed(2))
	want := domain.DNA{160, 208, 4, 115, 191, 253, 39, 196, 41, 163, 217, 1, 140, 129, 142, 84}
	if got := gen.Mask(100, 2, 0, 1); got != want {
		t.Fatalf("want %v\ngot  %v", want, got)
	}
	if gen.Mask(100, 2, 0, 1) == gen.Generate(100, 2) {
		t.Fatalf("mask and creation codes must be domain separated")
	}
}

func TestSubjectsCarryAccountNonceAndParents(t *testing.T) {
	var subjects [][]byte
	src := domain.RandomnessFunc(func(subject []byte) domain.Seed {
		subjects = append(subjects, append([]byte(nil), subject...))
		return domain.Seed{}
	})
	gen := NewGenerator(src)
	gen.Generate(1, 2)
	gen.Mask(1, 2, 3, 4)
	if len(subjects) != 2 {
		t.Fatalf("expected two draws, got %d", len(subjects))
	}
	wantCreate := append([]byte("kitties/dna"), 1, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0)
	if !bytes.Equal(subjects[0], wantCreate) {
		t.Fatalf("unexpected create subject %v", subjects[0])
	}
	wantBreed := append([]byte("kitties/breed"), 1, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0, 4, 0, 0, 0)
	if !bytes.Equal(subjects[1], wantBreed) {
		t.Fatalf("unexpected breed subject %v", subjects[1])
	}
}

package genetics

import (
	"encoding/binary"

	"kittycore/pkg/domain"

	"golang.org/x/crypto/blake2b"
)

// Domain-separation tags mixed into the hashed payload.
const (
	tagCreate byte = 0x01
	tagBreed  byte = 0x02
)

var (
	createSubject = []byte("kitties/dna")
	breedSubject  = []byte("kitties/breed")
)

// Generator derives genetic codes from a Randomness source.
type Generator struct {
	random domain.Randomness
}

// NewGenerator returns a generator drawing seeds from random.
func NewGenerator(random domain.Randomness) *Generator {
	return &Generator{random: random}
}

// Generate returns a fresh code for account. nonce is the number of kitties
// the account already owns, so two creations by one account within the same
// randomness context still differ.
func (g *Generator) Generate(account domain.AccountID, nonce uint32) domain.DNA {
	subject := appendNonce(appendAccount(append([]byte(nil), createSubject...), account), nonce)
	seed := g.random.Random(subject)
	return digest(seed, account, tagCreate, nonce)
}

// Mask returns the selection mask used to breed parents a and b.
func (g *Generator) Mask(account domain.AccountID, nonce uint32, a, b domain.KittyID) domain.DNA {
	subject := appendNonce(appendAccount(append([]byte(nil), breedSubject...), account), nonce)
	subject = binary.LittleEndian.AppendUint32(subject, uint32(a))
	subject = binary.LittleEndian.AppendUint32(subject, uint32(b))
	seed := g.random.Random(subject)
	return digest(seed, account, tagBreed, nonce)
}

// digest hashes seed || account (LE u64) || tag || nonce (LE u32) down to 16
// bytes with BLAKE2b-128.
func digest(seed domain.Seed, account domain.AccountID, tag byte, nonce uint32) domain.DNA {
	payload := make([]byte, 0, domain.SeedLen+8+1+4)
	payload = append(payload, seed[:]...)
	payload = appendAccount(payload, account)
	payload = append(payload, tag)
	payload = appendNonce(payload, nonce)

	h, err := blake2b.New(domain.DNALen, nil)
	if err != nil {
		// Only reachable with an invalid digest size.
		panic(err)
	}
	_, _ = h.Write(payload)
	var out domain.DNA
	copy(out[:], h.Sum(nil))
	return out
}

func appendAccount(b []byte, account domain.AccountID) []byte {
	return binary.LittleEndian.AppendUint64(b, uint64(account))
}

func appendNonce(b []byte, nonce uint32) []byte {
	return binary.LittleEndian.AppendUint32(b, nonce)
}

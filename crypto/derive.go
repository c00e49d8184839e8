package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
)

// Program-derived addresses give a module control over accounts that no
// private key can sign for. An address is derived by hashing an ordered seed
// tuple together with the owning program identity and a fixed salt, then
// checking the result does not decompress to a valid ed25519 point. The
// disambiguation byte (bump) is searched downward from 255 until the first
// off-curve candidate is found.

const derivedAddressSalt = "SwapdDerivedAddress"

const (
	// MaxSeeds bounds the seed tuple length accepted by derivation.
	MaxSeeds = 16
	// MaxSeedLen bounds the byte length of a single seed.
	MaxSeedLen = 32
)

var (
	// ErrInvalidSeeds indicates a seed tuple outside the supported shape.
	ErrInvalidSeeds = errors.New("crypto: invalid derivation seeds")
	// ErrOnCurve indicates the candidate address has a corresponding
	// ed25519 key and therefore cannot serve as a derived address.
	ErrOnCurve = errors.New("crypto: derived address is on the curve")
	// ErrNoViableBump indicates no disambiguation byte produced an
	// off-curve address. Statistically this does not happen in practice.
	ErrNoViableBump = errors.New("crypto: no viable derivation bump")
)

func checkSeeds(seeds [][]byte) error {
	if len(seeds) > MaxSeeds {
		return fmt.Errorf("%w: %d seeds exceeds maximum of %d", ErrInvalidSeeds, len(seeds), MaxSeeds)
	}
	for i, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return fmt.Errorf("%w: seed %d is %d bytes, maximum is %d", ErrInvalidSeeds, i, len(seed), MaxSeedLen)
		}
	}
	return nil
}

// onCurve reports whether b decompresses to a valid ed25519 curve point. An
// address that decompresses could in principle have a private key, so it is
// rejected for derived roles.
func onCurve(b [32]byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b[:])
	return err == nil
}

// DeriveAddress computes the derived address for the given seed tuple under
// the owning program. It fails with ErrOnCurve when the hash result is a
// valid curve point; callers searching for a usable address should go through
// FindAddress instead.
func DeriveAddress(seeds [][]byte, program Address) (Address, error) {
	if err := checkSeeds(seeds); err != nil {
		return Address{}, err
	}
	h := sha256.New()
	for _, seed := range seeds {
		h.Write(seed)
	}
	h.Write(program[:])
	h.Write([]byte(derivedAddressSalt))
	var addr Address
	copy(addr[:], h.Sum(nil))
	if onCurve(addr) {
		return Address{}, ErrOnCurve
	}
	return addr, nil
}

// FindAddress searches bump bytes from 255 downward for the first off-curve
// derived address, returning the address and the bump that produced it.
// Recomputing with the same seeds and program always reproduces the result.
func FindAddress(seeds [][]byte, program Address) (Address, uint8, error) {
	if err := checkSeeds(seeds); err != nil {
		return Address{}, 0, err
	}
	if len(seeds) >= MaxSeeds {
		return Address{}, 0, fmt.Errorf("%w: no room for bump seed", ErrInvalidSeeds)
	}
	for bump := 255; bump >= 0; bump-- {
		candidate := append(append([][]byte{}, seeds...), []byte{byte(bump)})
		addr, err := DeriveAddress(candidate, program)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return Address{}, 0, err
		}
	}
	return Address{}, 0, ErrNoViableBump
}

// DerivedSigner is the reconstructed signing capability for a derived
// address: the full seed tuple including the stored bump, plus the owning
// program. It is rebuilt at every use and never persisted.
type DerivedSigner struct {
	Seeds   [][]byte
	Program Address
}

// NewDerivedSigner assembles a signer from the base seed tuple and the bump
// recorded at derivation time.
func NewDerivedSigner(program Address, bump uint8, seeds ...[]byte) DerivedSigner {
	full := append(append([][]byte{}, seeds...), []byte{bump})
	return DerivedSigner{Seeds: full, Program: program}
}

// Address recomputes the derived address the signer stands for. A signer
// whose seeds do not produce an off-curve address is unusable.
func (s DerivedSigner) Address() (Address, error) {
	return DeriveAddress(s.Seeds, s.Program)
}

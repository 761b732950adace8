package secretstore

import (
	"crypto/rand"
	"fmt"
)

// gf256 implements arithmetic in GF(2^8) with the reduction polynomial
// x^8+x^4+x^3+x^2+1 (0x11d), per spec.md §4.4.

func gfAdd(a, b byte) byte { return a ^ b }

func gfMul(a, b byte) byte {
	var p byte
	for i := 0; i < 8; i++ {
		if b&1 != 0 {
			p ^= a
		}
		hiBitSet := a&0x80 != 0
		a <<= 1
		if hiBitSet {
			a ^= 0x1d
		}
		b >>= 1
	}
	return p
}

func gfPow(a byte, n int) byte {
	result := byte(1)
	for i := 0; i < n; i++ {
		result = gfMul(result, a)
	}
	return result
}

func gfInv(a byte) byte {
	if a == 0 {
		return 0
	}
	// a^254 == a^-1 in GF(2^8), by Fermat's little theorem over the field.
	return gfPow(a, 254)
}

func gfDiv(a, b byte) byte {
	return gfMul(a, gfInv(b))
}

// shamirSplit splits secret into n shares such that any k of them
// reconstruct it, using one random degree-(k-1) polynomial per byte of
// secret and evaluating it at x = 1..n (spec.md §4.4). Share i's byte
// vector is returned at index i-1; callers keep the x-coordinate i
// alongside it.
func shamirSplit(secret []byte, k, n int) ([][]byte, error) {
	if k < 2 {
		return nil, fmt.Errorf("secretstore: threshold k must be >= 2, got %d", k)
	}
	if n < k {
		return nil, fmt.Errorf("secretstore: n must be >= k, got n=%d k=%d", n, k)
	}
	if n > 255 {
		return nil, fmt.Errorf("secretstore: n must be <= 255, got %d", n)
	}

	shares := make([][]byte, n)
	for i := range shares {
		shares[i] = make([]byte, len(secret))
	}

	coeffs := make([]byte, k)
	for byteIdx, secretByte := range secret {
		coeffs[0] = secretByte
		if _, err := rand.Read(coeffs[1:]); err != nil {
			return nil, fmt.Errorf("secretstore: generate polynomial coefficients: %w", err)
		}
		for shareIdx := 0; shareIdx < n; shareIdx++ {
			x := byte(shareIdx + 1)
			shares[shareIdx][byteIdx] = evalPoly(coeffs, x)
		}
	}
	return shares, nil
}

// evalPoly evaluates coeffs[0] + coeffs[1]*x + ... + coeffs[k-1]*x^(k-1)
// over GF(2^8) via Horner's method.
func evalPoly(coeffs []byte, x byte) byte {
	result := byte(0)
	for i := len(coeffs) - 1; i >= 0; i-- {
		result = gfAdd(gfMul(result, x), coeffs[i])
	}
	return result
}

// shamirShare pairs a share's x-coordinate with its byte vector.
type shamirShare struct {
	X byte
	Y []byte
}

// shamirCombine reconstructs the secret from k or more shares via Lagrange
// interpolation at x=0 (spec.md §4.4). All shares must carry byte vectors
// of equal length; duplicate x-coordinates are rejected.
func shamirCombine(shares []shamirShare) ([]byte, error) {
	if len(shares) == 0 {
		return nil, fmt.Errorf("secretstore: no shares supplied")
	}
	length := len(shares[0].Y)
	seen := make(map[byte]bool, len(shares))
	for _, s := range shares {
		if len(s.Y) != length {
			return nil, fmt.Errorf("secretstore: mismatched share lengths")
		}
		if seen[s.X] {
			return nil, fmt.Errorf("secretstore: duplicate share x-coordinate %d", s.X)
		}
		seen[s.X] = true
	}

	secret := make([]byte, length)
	for byteIdx := 0; byteIdx < length; byteIdx++ {
		secret[byteIdx] = lagrangeAtZero(shares, byteIdx)
	}
	return secret, nil
}

// lagrangeAtZero evaluates the unique interpolating polynomial through
// shares at x=0, restricted to the byte at position byteIdx in each
// share's y-vector.
func lagrangeAtZero(shares []shamirShare, byteIdx int) byte {
	result := byte(0)
	for i, si := range shares {
		term := si.Y[byteIdx]
		for j, sj := range shares {
			if i == j {
				continue
			}
			// basis_i(0) *= (0 - x_j) / (x_i - x_j), and subtraction is XOR
			// in GF(2^8) so (0 - x_j) == x_j.
			numerator := sj.X
			denominator := gfAdd(si.X, sj.X)
			term = gfMul(term, gfDiv(numerator, denominator))
		}
		result = gfAdd(result, term)
	}
	return result
}

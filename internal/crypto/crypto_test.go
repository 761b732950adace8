package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeccak256IsDeterministicAndDomainSeparated(t *testing.T) {
	a := Keccak256([]byte("hello"))
	b := Keccak256([]byte("hello"))
	assert.Equal(t, a, b)

	c := Keccak256([]byte("hel"), []byte("lo"))
	assert.Equal(t, a, c, "Keccak256 must hash the concatenation of its args")

	d := Keccak256([]byte("world"))
	assert.NotEqual(t, a, d)
}

func TestScriptHashToAddressIsStableAndBase58(t *testing.T) {
	scriptHash := make([]byte, 20)
	for i := range scriptHash {
		scriptHash[i] = byte(i)
	}
	addr1 := ScriptHashToAddress(scriptHash)
	addr2 := ScriptHashToAddress(scriptHash)
	assert.Equal(t, addr1, addr2)
	assert.NotEmpty(t, addr1)

	other := make([]byte, 20)
	copy(other, scriptHash)
	other[0] ^= 0xff
	assert.NotEqual(t, addr1, ScriptHashToAddress(other))
}

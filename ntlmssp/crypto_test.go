package ntlmssp

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test vectors from MS-NLMP 4.2: user "User", domain "Domain",
// password "Password".

func TestNtowfv1(t *testing.T) {
	want, _ := hex.DecodeString("a4f49c406510bdcab6824ee7c30fd852")
	assert.Equal(t, want, Ntowfv1("Password"))
}

func TestNtowfv2(t *testing.T) {
	want, _ := hex.DecodeString("0c868a403bfd7a93a3001ef22ef02e3f")
	assert.Equal(t, want, Ntowfv2("Password", "User", "Domain"))
}

func TestNtowfv2FromHash(t *testing.T) {
	// Deriving from the precomputed NT hash must match the password path.
	hash := Ntowfv1("Password")
	assert.Equal(t, Ntowfv2("Password", "User", "Domain"), Ntowfv2Hash("User", "Domain", hash))
}

func TestComputeResponseNTLMv2(t *testing.T) {
	key := Ntowfv2("Password", "User", "Domain")
	clientChallenge := []byte{0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa}
	serverChallenge := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}
	timestamp := make([]byte, 8)
	targetInfo := []byte{0x00, 0x00, 0x00, 0x00}

	resp := ComputeResponseNTLMv2(key, clientChallenge, serverChallenge, timestamp, targetInfo)
	require.Greater(t, len(resp), 16)

	// The response is the 16-byte proof followed by the temp blob it
	// was computed over.
	temp := resp[16:]
	assert.Equal(t, byte(0x01), temp[0])
	assert.Equal(t, byte(0x01), temp[1])
	assert.Equal(t, timestamp, temp[8:16])
	assert.Equal(t, clientChallenge, temp[16:24])

	// Same inputs, same proof.
	again := ComputeResponseNTLMv2(key, clientChallenge, serverChallenge, timestamp, targetInfo)
	assert.Equal(t, resp, again)
}

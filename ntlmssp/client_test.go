package ntlmssp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smbls/smb/encoder"
)

func testChallenge() []byte {
	info := []AvPair{
		{AvID: MsvAvNbDomainName, Value: encoder.ToUnicode("CORP")},
		{AvID: MsvAvTimestamp, Value: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
	}
	return challengeMessage(testChallengeFlags, "CORP", info)
}

func TestClientExchange(t *testing.T) {
	c := &Client{
		User:        "alice",
		Password:    "s3cret",
		Domain:      "CORP",
		Workstation: "WS01",
	}

	neg, err := c.Negotiate()
	require.NoError(t, err)
	assert.Equal(t, Signature, string(neg[0:8]))
	assert.Equal(t, TypeNtLmNegotiate, le.Uint32(neg[8:12]))

	amsg, err := c.Authenticate(testChallenge())
	require.NoError(t, err)
	assert.Equal(t, TypeNtLmAuthenticate, le.Uint32(amsg[8:12]))

	user, err := getField(amsg, 36)
	require.NoError(t, err)
	assert.Equal(t, encoder.ToUnicode("alice"), user)

	// NTLMv2: a 16-byte proof plus the temp blob.
	nt, err := getField(amsg, 20)
	require.NoError(t, err)
	require.Greater(t, len(nt), 16)
	assert.Equal(t, byte(0x01), nt[16])

	// The server supplied a timestamp, so the LM response is Z(24).
	lm, err := getField(amsg, 12)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 24), lm)
}

func TestClientEchoesServerTimestamp(t *testing.T) {
	c := &Client{User: "alice", Password: "s3cret", Domain: "CORP"}
	_, err := c.Negotiate()
	require.NoError(t, err)

	amsg, err := c.Authenticate(testChallenge())
	require.NoError(t, err)

	nt, err := getField(amsg, 20)
	require.NoError(t, err)
	// Timestamp sits at temp offset 8, right after the proof.
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, nt[16+8:16+16])
}

func TestClientDomainFromTarget(t *testing.T) {
	// Without an explicit domain the server's target name is used.
	c := &Client{User: "alice", Password: "s3cret"}
	_, err := c.Negotiate()
	require.NoError(t, err)

	amsg, err := c.Authenticate(testChallenge())
	require.NoError(t, err)

	domain, err := getField(amsg, 28)
	require.NoError(t, err)
	assert.Equal(t, encoder.ToUnicode("CORP"), domain)
}

func TestClientNullSession(t *testing.T) {
	c := &Client{NullSession: true}
	_, err := c.Negotiate()
	require.NoError(t, err)

	amsg, err := c.Authenticate(testChallenge())
	require.NoError(t, err)

	nt, err := getField(amsg, 20)
	require.NoError(t, err)
	assert.Nil(t, nt)

	user, err := getField(amsg, 36)
	require.NoError(t, err)
	assert.Nil(t, user)

	assert.NotZero(t, le.Uint32(amsg[60:64])&FlgNegAnonymous)
}

func TestClientAuthenticateBeforeNegotiate(t *testing.T) {
	c := &Client{User: "alice", Password: "s3cret"}
	_, err := c.Authenticate(testChallenge())
	assert.Error(t, err)
}

func TestClientHashMatchesPassword(t *testing.T) {
	// Authenticating with the NT hash must produce the same v2 key as
	// the cleartext password.
	hash := Ntowfv1("s3cret")
	assert.Equal(t,
		Ntowfv2("s3cret", "alice", "CORP"),
		Ntowfv2Hash("alice", "CORP", hash))
}

func TestClientRejectsMissingTargetInfo(t *testing.T) {
	c := &Client{User: "alice", Password: "s3cret"}
	_, err := c.Negotiate()
	require.NoError(t, err)

	flags := testChallengeFlags &^ FlgNegTargetInfo
	_, err = c.Authenticate(challengeMessage(flags, "CORP", nil))
	assert.Error(t, err)
}

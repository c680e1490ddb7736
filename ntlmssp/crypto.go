package ntlmssp

import (
	"crypto/hmac"
	"crypto/md5"
	"strings"

	"golang.org/x/crypto/md4"

	"smbls/smb/encoder"
)

// NTLMv2 key and response computation (MS-NLMP 3.3.2).

// Ntowfv1 is the NT hash: MD4 over the UTF-16LE password.
func Ntowfv1(password string) []byte {
	h := md4.New()
	h.Write(encoder.ToUnicode(password))
	return h.Sum(nil)
}

// Ntowfv2Hash derives the v2 key from an already computed NT hash.
// The user name is upper-cased, the domain is not.
func Ntowfv2Hash(user, domain string, hash []byte) []byte {
	h := hmac.New(md5.New, hash)
	h.Write(encoder.ToUnicode(strings.ToUpper(user) + domain))
	return h.Sum(nil)
}

// Ntowfv2 derives the v2 key from a cleartext password.
func Ntowfv2(password, user, domain string) []byte {
	return Ntowfv2Hash(user, domain, Ntowfv1(password))
}

// ComputeResponseNTLMv2 builds the NtChallengeResponse: the NTProofStr
// followed by the temp blob it was computed over.
func ComputeResponseNTLMv2(ntlmV2Hash, clientChallenge, serverChallenge, timestamp, targetInfo []byte) []byte {
	// temp: RespType(1) HiRespType(1) reserved(6) timestamp(8)
	// client challenge(8) reserved(4) target info, reserved(4).
	temp := make([]byte, 0, 28+len(targetInfo)+4)
	temp = append(temp, 0x01, 0x01)
	temp = append(temp, make([]byte, 6)...)
	temp = append(temp, timestamp...)
	temp = append(temp, clientChallenge...)
	temp = append(temp, make([]byte, 4)...)
	temp = append(temp, targetInfo...)
	temp = append(temp, make([]byte, 4)...)

	h := hmac.New(md5.New, ntlmV2Hash)
	h.Write(serverChallenge)
	h.Write(temp)
	ntProofStr := h.Sum(nil)
	return append(ntProofStr, temp...)
}

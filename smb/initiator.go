package smb

import (
	"smbls/ntlmssp"
)

// Initiator produces the authentication tokens carried by the two
// SESSION_SETUP round trips. The session only needs this contract: an
// initial token, and a response token computed from the server's
// challenge.
type Initiator interface {
	InitSecContext() ([]byte, error)            // GSS_Init_sec_context
	AcceptSecContext(sc []byte) ([]byte, error) // GSS_Accept_sec_context
}

// NTLMInitiator implements session setup through NTLMv2. It does not
// support NTLMv1. It is possible to use a hash instead of a password.
type NTLMInitiator struct {
	User        string
	Password    string
	Hash        []byte
	Domain      string
	Workstation string
	LocalUser   bool
	NullSession bool

	ntlm *ntlmssp.Client
}

func (i *NTLMInitiator) InitSecContext() ([]byte, error) {
	i.ntlm = &ntlmssp.Client{
		User:        i.User,
		Password:    i.Password,
		Hash:        i.Hash,
		Domain:      i.Domain,
		Workstation: i.Workstation,
		LocalUser:   i.LocalUser,
		NullSession: i.NullSession,
	}
	return i.ntlm.Negotiate()
}

func (i *NTLMInitiator) AcceptSecContext(sc []byte) ([]byte, error) {
	return i.ntlm.Authenticate(sc)
}

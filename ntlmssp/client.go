// Package ntlmssp implements the client side of NTLMv2 authentication
// as used during SMB2 session setup. NTLMv1 is not supported.
package ntlmssp

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/jfjallid/golog"

	"smbls/smb/encoder"
)

var le = binary.LittleEndian

var log = golog.Get("smbls/ntlmssp")

var version = []byte{
	0: WINDOWS_MAJOR_VERSION_10,
	1: WINDOWS_MINOR_VERSION_0,
	7: NTLMSSP_REVISION_W2K3,
}

// Client holds the credentials and the state carried between the two
// token exchanges. A Hash takes precedence over a Password when set.
type Client struct {
	User        string
	Password    string
	Hash        []byte // NT hash of the password
	LocalUser   bool   // don't take the domain name from the server
	Domain      string
	Workstation string
	NullSession bool

	guestSession bool
	neg          *Negotiate
}

// Negotiate produces the type 1 token opening the exchange.
func (c *Client) Negotiate() ([]byte, error) {
	req := Negotiate{
		NegotiateFlags: FlgNeg56 |
			FlgNeg128 |
			FlgNegTargetInfo |
			FlgNegExtendedSessionSecurity |
			FlgNegNtLm |
			FlgNegAlwaysSign |
			FlgNegRequestTarget |
			FlgNegUnicode |
			FlgNegVersion,
		Version: le.Uint64(version),
	}

	if c.Domain != "" {
		req.DomainName = []byte(c.Domain)
		req.NegotiateFlags |= FlgNegOEMDomainSupplied
	}

	if c.Workstation != "" {
		req.Workstation = []byte(c.Workstation)
		req.NegotiateFlags |= FlgNegOEMWorkstationSupplied
	}

	c.neg = &req
	return req.Marshal(), nil
}

// Authenticate consumes the server's type 2 challenge token and
// produces the type 3 response token.
func (c *Client) Authenticate(cmsg []byte) ([]byte, error) {
	if c.neg == nil {
		return nil, fmt.Errorf("authenticate called before negotiate")
	}
	chall, err := ParseChallenge(cmsg)
	if err != nil {
		log.Errorln(err)
		return nil, err
	}

	flags := c.neg.NegotiateFlags & chall.NegotiateFlags
	if flags&FlgNegRequestTarget == 0 || flags&FlgNegTargetInfo == 0 {
		err := fmt.Errorf("server rejected required negotiate flags")
		log.Errorln(err)
		return nil, err
	}
	if chall.TargetInfo == nil {
		err := fmt.Errorf("challenge carries no target info")
		log.Errorln(err)
		return nil, err
	}

	if c.User == "" && !c.NullSession {
		c.guestSession = true
	}

	var domain []byte
	if c.Domain != "" {
		domain = encoder.ToUnicode(c.Domain)
	} else if !c.LocalUser {
		domain = chall.TargetName
	}
	domainstr, err := encoder.FromUnicodeString(domain)
	if err != nil {
		log.Errorln(err)
		return nil, err
	}

	clientChallenge := make([]byte, 8)
	if _, err := rand.Read(clientChallenge); err != nil {
		return nil, err
	}

	// A server supplied timestamp is echoed back; without one the
	// current time is used and an LM response is still expected.
	timestamp := make([]byte, 8)
	timestampFound := false
	for _, av := range chall.TargetInfo {
		if av.AvID == MsvAvTimestamp {
			timestampFound = true
			copy(timestamp, av.Value[:8])
			break
		}
	}
	if !timestampFound {
		ft := uint64(time.Now().UnixNano()) / 100
		ft += 116444736000000000 // offset between the unix and windows epochs
		le.PutUint64(timestamp, ft)
	}
	targetInfo := marshalAvPairs(chall.TargetInfo)

	var ntlmV2Hash []byte
	if c.Hash != nil {
		ntlmV2Hash = Ntowfv2Hash(c.User, domainstr, c.Hash)
	} else {
		ntlmV2Hash = Ntowfv2(c.Password, c.User, domainstr)
	}
	response := ComputeResponseNTLMv2(ntlmV2Hash, clientChallenge,
		chall.ServerChallenge[:], timestamp, targetInfo)

	// MS-NLMP 3.1.5.1.2: when the challenge carried a timestamp the
	// client sends Z(24) instead of an LM response.
	lmChallengeResponse := make([]byte, 24)

	auth := Authenticate{
		DomainName:  domain,
		Workstation: encoder.ToUnicode(c.Workstation),
		Version:     c.neg.Version,
	}
	if c.NullSession {
		flags |= FlgNegAnonymous
		auth.DomainName = nil
	} else if c.guestSession {
		flags |= FlgNegAnonymous
		auth.NtChallengeResponse = response
		auth.LmChallengeResponse = lmChallengeResponse
	} else {
		auth.NtChallengeResponse = response
		auth.LmChallengeResponse = lmChallengeResponse
		auth.UserName = encoder.ToUnicode(c.User)
	}
	auth.NegotiateFlags = flags

	return auth.Marshal(), nil
}

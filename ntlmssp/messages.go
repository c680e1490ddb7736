package ntlmssp

import (
	"fmt"
)

// Message framing for NTLMSSP (MS-NLMP 2.2). All three message types
// share the 8-byte signature and a 4-byte type field; variable data is
// referenced by len/maxlen/offset field triples and concatenated after
// the fixed part.

const Signature = "NTLMSSP\x00"

const (
	TypeNtLmNegotiate    uint32 = 1
	TypeNtLmChallenge    uint32 = 2
	TypeNtLmAuthenticate uint32 = 3
)

// Negotiate flags (MS-NLMP 2.2.2.5).
const (
	FlgNegUnicode                 uint32 = 1 << 0
	FlgNegOEM                     uint32 = 1 << 1
	FlgNegRequestTarget           uint32 = 1 << 2
	FlgNegSign                    uint32 = 1 << 4
	FlgNegSeal                    uint32 = 1 << 5
	FlgNegDatagram                uint32 = 1 << 6
	FlgNegLmKey                   uint32 = 1 << 7
	FlgNegNtLm                    uint32 = 1 << 9
	FlgNegAnonymous               uint32 = 1 << 11
	FlgNegOEMDomainSupplied       uint32 = 1 << 12
	FlgNegOEMWorkstationSupplied  uint32 = 1 << 13
	FlgNegAlwaysSign              uint32 = 1 << 15
	FlgNegTargetTypeDomain        uint32 = 1 << 16
	FlgNegTargetTypeServer        uint32 = 1 << 17
	FlgNegExtendedSessionSecurity uint32 = 1 << 19
	FlgNegIdentify                uint32 = 1 << 20
	FlgNegRequestNonNtSessionKey  uint32 = 1 << 22
	FlgNegTargetInfo              uint32 = 1 << 23
	FlgNegVersion                 uint32 = 1 << 25
	FlgNeg128                     uint32 = 1 << 29
	FlgNegKeyExch                 uint32 = 1 << 30
	FlgNeg56                      uint32 = 1 << 31
)

// AvPair ids carried in the challenge target info (MS-NLMP 2.2.2.1).
const (
	MsvAvEOL             uint16 = 0
	MsvAvNbComputerName  uint16 = 1
	MsvAvNbDomainName    uint16 = 2
	MsvAvDnsComputerName uint16 = 3
	MsvAvDnsDomainName   uint16 = 4
	MsvAvDnsTreeName     uint16 = 5
	MsvAvFlags           uint16 = 6
	MsvAvTimestamp       uint16 = 7
	MsvAvSingleHost      uint16 = 8
	MsvAvTargetName      uint16 = 9
	MsvAvChannelBindings uint16 = 10
)

const (
	WINDOWS_MAJOR_VERSION_10 = 0x0a
	WINDOWS_MINOR_VERSION_0  = 0x00
	NTLMSSP_REVISION_W2K3    = 0x0f
)

type AvPair struct {
	AvID  uint16
	AvLen uint16
	Value []byte
}

// Negotiate is the NEGOTIATE_MESSAGE (type 1). Domain and workstation
// are OEM strings and only sent when the matching supplied flag is set.
type Negotiate struct {
	NegotiateFlags uint32
	DomainName     []byte
	Workstation    []byte
	Version        uint64
}

func (n *Negotiate) Marshal() []byte {
	// Fixed part: signature(8) type(4) flags(4) domain(8)
	// workstation(8) version(8).
	buf := make([]byte, 40, 40+len(n.DomainName)+len(n.Workstation))
	copy(buf[0:8], Signature)
	le.PutUint32(buf[8:12], TypeNtLmNegotiate)
	le.PutUint32(buf[12:16], n.NegotiateFlags)
	putField(buf[16:24], len(n.DomainName), 40)
	putField(buf[24:32], len(n.Workstation), 40+len(n.DomainName))
	le.PutUint64(buf[32:40], n.Version)
	buf = append(buf, n.DomainName...)
	return append(buf, n.Workstation...)
}

// Challenge is the CHALLENGE_MESSAGE (type 2) as parsed from the
// server's token.
type Challenge struct {
	NegotiateFlags  uint32
	ServerChallenge [8]byte
	TargetName      []byte
	TargetInfo      []AvPair
	Version         uint64
}

// ParseChallenge validates the signature and message type and lifts
// the variable fields out of the raw token.
func ParseChallenge(buf []byte) (*Challenge, error) {
	// The fixed part including the version block is 56 bytes.
	if len(buf) < 56 {
		return nil, fmt.Errorf("challenge message is too short: %d bytes", len(buf))
	}
	if string(buf[0:8]) != Signature {
		return nil, fmt.Errorf("invalid NTLMSSP signature")
	}
	if le.Uint32(buf[8:12]) != TypeNtLmChallenge {
		return nil, fmt.Errorf("unexpected NTLMSSP message type %d", le.Uint32(buf[8:12]))
	}
	c := &Challenge{
		NegotiateFlags: le.Uint32(buf[20:24]),
		Version:        le.Uint64(buf[48:56]),
	}
	copy(c.ServerChallenge[:], buf[24:32])

	var err error
	if c.TargetName, err = getField(buf, 12); err != nil {
		return nil, fmt.Errorf("challenge target name: %w", err)
	}
	info, err := getField(buf, 40)
	if err != nil {
		return nil, fmt.Errorf("challenge target info: %w", err)
	}
	if c.TargetInfo, err = parseAvPairs(info); err != nil {
		return nil, err
	}
	return c, nil
}

func parseAvPairs(buf []byte) ([]AvPair, error) {
	var pairs []AvPair
	for len(buf) > 0 {
		if len(buf) < 4 {
			return nil, fmt.Errorf("truncated av pair header")
		}
		av := AvPair{AvID: le.Uint16(buf[0:2]), AvLen: le.Uint16(buf[2:4])}
		if len(buf) < 4+int(av.AvLen) {
			return nil, fmt.Errorf("truncated av pair value")
		}
		av.Value = buf[4 : 4+av.AvLen]
		buf = buf[4+av.AvLen:]
		if av.AvID == MsvAvEOL {
			break
		}
		pairs = append(pairs, av)
	}
	return pairs, nil
}

// Authenticate is the AUTHENTICATE_MESSAGE (type 3). String fields are
// UTF-16LE.
type Authenticate struct {
	LmChallengeResponse []byte
	NtChallengeResponse []byte
	DomainName          []byte
	UserName            []byte
	Workstation         []byte
	SessionKey          []byte
	NegotiateFlags      uint32
	Version             uint64
	MIC                 [16]byte
}

func (a *Authenticate) Marshal() []byte {
	// Fixed part: signature(8) type(4) six field triples(48) flags(4)
	// version(8) MIC(16). Payload fields in the conventional order:
	// domain, user, workstation, lm, nt, session key.
	const fixed = 88
	buf := make([]byte, fixed)
	copy(buf[0:8], Signature)
	le.PutUint32(buf[8:12], TypeNtLmAuthenticate)

	off := fixed
	for _, f := range []struct {
		field int
		data  []byte
	}{
		{28, a.DomainName},
		{36, a.UserName},
		{44, a.Workstation},
		{12, a.LmChallengeResponse},
		{20, a.NtChallengeResponse},
		{52, a.SessionKey},
	} {
		putField(buf[f.field:f.field+8], len(f.data), off)
		off += len(f.data)
	}
	le.PutUint32(buf[60:64], a.NegotiateFlags)
	le.PutUint64(buf[64:72], a.Version)
	copy(buf[72:88], a.MIC[:])

	buf = append(buf, a.DomainName...)
	buf = append(buf, a.UserName...)
	buf = append(buf, a.Workstation...)
	buf = append(buf, a.LmChallengeResponse...)
	buf = append(buf, a.NtChallengeResponse...)
	return append(buf, a.SessionKey...)
}

// putField writes a len/maxlen/offset triple.
func putField(dst []byte, n, off int) {
	le.PutUint16(dst[0:2], uint16(n))
	le.PutUint16(dst[2:4], uint16(n))
	le.PutUint32(dst[4:8], uint32(off))
}

// getField resolves a len/maxlen/offset triple against the whole
// message. A zero-length field yields nil.
func getField(buf []byte, at int) ([]byte, error) {
	n := le.Uint16(buf[at : at+2])
	off := le.Uint32(buf[at+4 : at+8])
	if n == 0 {
		return nil, nil
	}
	if int(off)+int(n) > len(buf) {
		return nil, fmt.Errorf("field exceeds message bounds")
	}
	return buf[off : off+uint32(n)], nil
}

// marshalAvPairs serializes pairs and appends the EOL terminator.
func marshalAvPairs(pairs []AvPair) []byte {
	var buf []byte
	for _, av := range pairs {
		buf = le.AppendUint16(buf, av.AvID)
		buf = le.AppendUint16(buf, uint16(len(av.Value)))
		buf = append(buf, av.Value...)
	}
	buf = le.AppendUint16(buf, MsvAvEOL)
	return le.AppendUint16(buf, 0)
}

package types

import "fmt"

// Kind enumerates the resource kinds an operator can ask for. The string
// values are the wire tokens used by the console.
type Kind string

const (
	KindInstances     Kind = "instances"
	KindReserved      Kind = "reserved"
	KindSpot          Kind = "spot"
	KindAMI           Kind = "ami"
	KindVolume        Kind = "volume"
	KindSnapshot      Kind = "snapshot"
	KindECR           Kind = "ecr"
	KindKey           Kind = "key"
	KindScript        Kind = "script"
	KindUser          Kind = "user"
	KindGroup         Kind = "group"
	KindAccessKey     Kind = "access-key"
	KindRoute53       Kind = "route53"
	KindSystemd       Kind = "systemd"
	KindInboundEmail  Kind = "inbound-email"
	KindSecurityGroup Kind = "security-group"
	KindAll           Kind = "all"
)

var allKinds = []Kind{
	KindInstances, KindReserved, KindSpot, KindAMI, KindVolume,
	KindSnapshot, KindECR, KindKey, KindScript, KindUser, KindGroup,
	KindAccessKey, KindRoute53, KindSystemd, KindInboundEmail,
	KindSecurityGroup,
}

// ParseKind maps a wire token to a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if k == KindAll {
		return k, nil
	}
	for _, known := range allKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown resource kind %q", s)
}

// ExpandAll returns every concrete kind; "all" expands, anything else is
// returned as-is.
func (k Kind) ExpandAll() []Kind {
	if k != KindAll {
		return []Kind{k}
	}
	out := make([]Kind, len(allKinds))
	copy(out, allKinds)
	return out
}

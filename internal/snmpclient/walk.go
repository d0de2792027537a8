package snmpclient

import (
	"fmt"
	"strings"

	"github.com/gosnmp/gosnmp"
)

// maxRepetitions is the GETBULK max-repetitions value used by Walk
// (spec.md §4: "GETBULK with non-repeaters=0, max-repetitions=25").
const maxRepetitions = 25

// Get performs a scalar SNMP GET, appending ".0" to oid if it is not already
// present.
func Get(conn *gosnmp.GoSNMP, oid string) ([]gosnmp.SnmpPDU, error) {
	if !strings.HasSuffix(oid, ".0") {
		oid += ".0"
	}
	pkt, err := conn.Get([]string{oid})
	if err != nil {
		return nil, fmt.Errorf("snmpclient: get %s: %w", oid, err)
	}
	return pkt.Variables, nil
}

// Walk performs the subtree walk described in spec.md §4: repeated GETBULK
// requests (non-repeaters=0, max-repetitions=25) starting at baseOID, each
// varbind admitted only while its OID remains a prefix-extension of baseOID.
// The walk stops at the first varbind that falls outside that subtree, or at
// an end-of-MIB-view indicator, whichever comes first.
func Walk(conn *gosnmp.GoSNMP, baseOID string) ([]gosnmp.SnmpPDU, error) {
	var out []gosnmp.SnmpPDU
	current := baseOID

	for {
		pkt, err := conn.GetBulk([]string{current}, 0, maxRepetitions)
		if err != nil {
			return nil, fmt.Errorf("snmpclient: walk %s: %w", baseOID, err)
		}
		if len(pkt.Variables) == 0 {
			break
		}

		done := false
		for _, pdu := range pkt.Variables {
			if pdu.Type == gosnmp.EndOfMibView {
				done = true
				break
			}
			if !isPrefixExtension(baseOID, pdu.Name) {
				done = true
				break
			}
			out = append(out, pdu)
			current = strings.TrimPrefix(pdu.Name, ".")
		}
		if done {
			break
		}
	}
	return out, nil
}

// isPrefixExtension reports whether oid is a strict dotted-prefix extension
// of base — i.e. base is a proper ancestor of oid in the OID tree.
func isPrefixExtension(base, oid string) bool {
	base = strings.TrimPrefix(base, ".")
	oid = strings.TrimPrefix(oid, ".")
	if !strings.HasPrefix(oid, base) {
		return false
	}
	if len(oid) == len(base) {
		return false
	}
	return oid[len(base)] == '.'
}

package snmpclient

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gosnmp/gosnmp"

	"github.com/netmetrics/snmp-label-exporter/models"
)

// Row is one converted (index, value) pair produced from a varbind
// (spec.md §4.1 "Result shaping").
type Row struct {
	Index string
	Value string
}

// Convert applies storeMethod to pdu, given the walk's baseOID and the
// configured oidSuffix tail to strip from the index, then applies filter (if
// any) to the resulting value. It returns false when the row must be
// discarded (suffix mismatch, conversion failure, filter rejection), per
// spec.md §4.7 — conversion errors never propagate as errors, they simply
// drop the row.
func Convert(pdu gosnmp.SnmpPDU, baseOID, oidSuffix string, storeMethod models.StoreMethod, filter *models.Filter) (Row, bool) {
	suffix := oidSuffixOf(pdu.Name, baseOID)
	index, ok := stripSuffix(suffix, oidSuffix)
	if !ok {
		return Row{}, false
	}

	raw, ok := decodeRaw(pdu)
	if !ok {
		return Row{}, false
	}

	var row Row
	switch storeMethod {
	case models.StoreValue, "":
		row = Row{Index: index, Value: raw}

	case models.StoreSubtreeAsString:
		row, ok = subtreeAsString(suffix)

	case models.StoreSubtreeAsIP:
		row, ok = subtreeAsIP(suffix, index)

	case models.StoreHexAsIP:
		row, ok = hexAsIP(pdu, index)

	case models.StoreExtractRealm:
		parts := strings.SplitN(raw, "@", 2)
		if len(parts) != 2 {
			return Row{}, false
		}
		row = Row{Index: index, Value: parts[1]}

	case models.StoreMilli:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Row{}, false
		}
		row = Row{Index: index, Value: strconv.FormatFloat(f/1000, 'f', -1, 64)}

	default:
		return Row{}, false
	}
	if !ok {
		return Row{}, false
	}

	value, ok := applyFilter(row.Value, filter)
	if !ok {
		return Row{}, false
	}
	row.Value = value
	return row, true
}

// applyFilter implements spec.md §3's OID-entry filter semantics: no filter
// is a no-op; a filter with a capture group replaces value with the captured
// text on match (and drops the row on no match); a filter without a capture
// group merely gates admission on whether it matches at all (spec.md §8:
// `^Gi(\d+/\d+)$` turns "Gi1/0/24" into "1/0/24" and drops "Te0/1").
func applyFilter(value string, filter *models.Filter) (string, bool) {
	if filter == nil || filter.Compiled == nil {
		return value, true
	}
	if filter.HasCapture {
		m := filter.Compiled.FindStringSubmatch(value)
		if m == nil {
			return "", false
		}
		return m[1], true
	}
	if !filter.Compiled.MatchString(value) {
		return "", false
	}
	return value, true
}

// oidSuffixOf returns the dotted suffix of full past base, without a leading
// dot.
func oidSuffixOf(full, base string) string {
	full = strings.TrimPrefix(full, ".")
	base = strings.TrimPrefix(base, ".")
	s := strings.TrimPrefix(full, base)
	return strings.TrimPrefix(s, ".")
}

// stripSuffix removes the trailing dotted oidSuffix tail from suffix. An
// oidSuffix of "" is a no-op. Failure to find the configured tail discards
// the row (spec.md §4.1).
func stripSuffix(suffix, oidSuffix string) (string, bool) {
	if oidSuffix == "" {
		return suffix, true
	}
	if suffix == oidSuffix {
		return "", true
	}
	if !strings.HasSuffix(suffix, "."+oidSuffix) {
		return "", false
	}
	return strings.TrimSuffix(suffix, "."+oidSuffix), true
}

// decodeRaw renders a varbind's value as a printable string, stripping
// non-printable bytes from byte-string values before ASCII decoding
// (spec.md §4.7).
func decodeRaw(pdu gosnmp.SnmpPDU) (string, bool) {
	switch pdu.Type {
	case gosnmp.OctetString:
		b, ok := pdu.Value.([]byte)
		if !ok {
			return "", false
		}
		return stripNonPrintable(b), true
	case gosnmp.IPAddress:
		s, ok := pdu.Value.(string)
		return s, ok
	case gosnmp.Integer, gosnmp.Counter32, gosnmp.Gauge32, gosnmp.TimeTicks, gosnmp.Counter64, gosnmp.Uinteger32:
		return fmt.Sprintf("%v", gosnmp.ToBigInt(pdu.Value)), true
	default:
		return fmt.Sprintf("%v", pdu.Value), true
	}
}

func stripNonPrintable(b []byte) string {
	var sb strings.Builder
	for _, c := range b {
		if c >= 0x20 && c < 0x7f {
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// subtreeAsString implements store_method=subtree-as-string: suffix[0] is
// the length N, suffix[1..N] are ASCII codepoints forming the value
// (spec.md §4.1).
func subtreeAsString(suffix string) (Row, bool) {
	parts := strings.Split(suffix, ".")
	if len(parts) < 1 {
		return Row{}, false
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil || n < 0 || len(parts) < 1+n {
		return Row{}, false
	}
	var sb strings.Builder
	for i := 1; i <= n; i++ {
		code, err := strconv.Atoi(parts[i])
		if err != nil {
			return Row{}, false
		}
		sb.WriteByte(byte(code))
	}
	index := strings.Join(parts[:1+n], ".")
	return Row{Index: index, Value: sb.String()}, true
}

// subtreeAsIP implements store_method=subtree-as-ip: the last four octets of
// the suffix, dotted (spec.md §4.1).
func subtreeAsIP(suffix, index string) (Row, bool) {
	parts := strings.Split(suffix, ".")
	if len(parts) < 4 {
		return Row{}, false
	}
	ip := strings.Join(parts[len(parts)-4:], ".")
	return Row{Index: index, Value: ip}, true
}

// hexAsIP implements store_method=hex-as-ip: the first four bytes of the raw
// value, dotted decimal (spec.md §4.1).
func hexAsIP(pdu gosnmp.SnmpPDU, index string) (Row, bool) {
	b, ok := pdu.Value.([]byte)
	if !ok || len(b) < 4 {
		return Row{}, false
	}
	ip := fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
	return Row{Index: index, Value: ip}, true
}

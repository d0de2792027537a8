package snmpclient

import "regexp"

// MIBResolver turns a possibly-symbolic OID reference (e.g. "IF-MIB::ifDescr")
// into its numeric dotted form. It is injected rather than hard-wired to a
// specific MIB-compiler package (spec.md §9 design note): the default
// NumericResolver handles the common case of configs that already use
// numeric OIDs, and a MIB-aware implementation can be substituted without
// this package depending on one.
type MIBResolver interface {
	// Resolve returns the numeric dotted-decimal form of oid. Already-numeric
	// OIDs are returned unchanged.
	Resolve(oid string) (string, error)
}

var numericOID = regexp.MustCompile(`^\.?[0-9]+(\.[0-9]+)*$`)

// NumericResolver is a MIBResolver that accepts only already-numeric OIDs.
// It is the zero-dependency default; a symbolic OID such as
// "IF-MIB::ifDescr" is passed through to whatever resolver the caller wires
// in instead (or rejected, if none is configured).
type NumericResolver struct{}

// Resolve implements MIBResolver.
func (NumericResolver) Resolve(oid string) (string, error) {
	if numericOID.MatchString(oid) {
		return oid, nil
	}
	return "", &UnresolvedOIDError{OID: oid}
}

// UnresolvedOIDError reports a symbolic OID that no resolver could expand.
type UnresolvedOIDError struct {
	OID string
}

func (e *UnresolvedOIDError) Error() string {
	return "snmpclient: cannot resolve symbolic OID " + e.OID + " without a MIB resolver"
}

package snmpclient

import "testing"

func TestNumericResolverPassesNumericOID(t *testing.T) {
	r := NumericResolver{}
	got, err := r.Resolve("1.3.6.1.2.1.2.2.1.2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "1.3.6.1.2.1.2.2.1.2" {
		t.Errorf("got %q", got)
	}
}

func TestNumericResolverRejectsSymbolic(t *testing.T) {
	r := NumericResolver{}
	if _, err := r.Resolve("IF-MIB::ifDescr"); err == nil {
		t.Fatal("expected error for symbolic OID")
	}
}

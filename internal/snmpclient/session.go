// Package snmpclient wraps github.com/gosnmp/gosnmp with the get/walk
// semantics and store-method value conversions the label pipeline needs
// (spec.md §4 SNMP client).
package snmpclient

import (
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"
)

// SessionConfig parameterises a single SNMP session. Only v1 and v2c are
// supported — the exporter's scope (spec.md Non-goals) excludes SNMPv3.
type SessionConfig struct {
	Target    string
	Port      uint16
	Community string
	Version   string // "1" or "2c"
	Timeout   time.Duration
	Retries   int
}

// NewSession builds and connects a gosnmp session for cfg. The caller must
// call Conn.Close when finished with it.
func NewSession(cfg SessionConfig) (*gosnmp.GoSNMP, error) {
	g := &gosnmp.GoSNMP{
		Target:    cfg.Target,
		Port:      cfg.Port,
		Community: cfg.Community,
		Timeout:   cfg.Timeout,
		Retries:   cfg.Retries,
		MaxOids:   60,
	}
	if g.Timeout == 0 {
		g.Timeout = 2 * time.Second
	}
	if g.Port == 0 {
		g.Port = 161
	}

	switch cfg.Version {
	case "1":
		g.Version = gosnmp.Version1
	case "2c":
		g.Version = gosnmp.Version2c
	default:
		return nil, fmt.Errorf("snmpclient: unsupported SNMP version %q", cfg.Version)
	}

	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("snmpclient: connect %s:%d: %w", cfg.Target, g.Port, err)
	}
	return g, nil
}

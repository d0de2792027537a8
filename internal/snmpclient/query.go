package snmpclient

import (
	"context"
	"fmt"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/netmetrics/snmp-label-exporter/models"
)

// queryTimeout is the per-UDP-exchange timeout (spec.md §4.1: "Timeout: 10s
// per UDP exchange").
const queryTimeout = 10 * time.Second

// Client queries SNMP agents and shapes the results through the configured
// store method, per the `query` contract in spec.md §4.1.
type Client struct {
	Resolver MIBResolver
}

// NewClient returns a Client using resolver, or NumericResolver{} if nil.
func NewClient(resolver MIBResolver) *Client {
	if resolver == nil {
		resolver = NumericResolver{}
	}
	return &Client{Resolver: resolver}
}

// Query implements spec.md §4.1's
// `query(oid, host, community, version, store_method, oid_suffix, query_type)`,
// applying filter (spec.md §3) to every decoded value. A get query_type
// returns at most one Row; a walk (or community_walk, its alias) returns one
// Row per surviving varbind. A nil, empty result means the query produced
// nothing usable.
func (c *Client) Query(ctx context.Context, target, community, version, oid string, queryType models.QueryType, storeMethod models.StoreMethod, oidSuffix string, filter *models.Filter) ([]Row, error) {
	base, err := c.Resolver.Resolve(oid)
	if err != nil {
		return nil, err
	}

	conn, err := NewSession(SessionConfig{
		Target:    target,
		Community: community,
		Version:   version,
		Timeout:   queryTimeout,
	})
	if err != nil {
		return nil, err
	}
	defer conn.Conn.Close()

	done := make(chan struct{})
	var pdus []gosnmp.SnmpPDU
	var queryErr error
	go func() {
		defer close(done)
		switch queryType {
		case models.QueryGet:
			pdus, queryErr = Get(conn, base)
		case models.QueryWalk, models.QueryCommunityWalk:
			pdus, queryErr = Walk(conn, base)
		default:
			queryErr = fmt.Errorf("snmpclient: unsupported query_type %q", queryType)
		}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}
	if queryErr != nil {
		return nil, queryErr
	}

	rows := make([]Row, 0, len(pdus))
	for _, pdu := range pdus {
		row, ok := Convert(pdu, base, oidSuffix, storeMethod, filter)
		if !ok {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

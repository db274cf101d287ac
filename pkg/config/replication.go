package config

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DefaultReplication is the replication object used for the history keyspace
// when none is configured. SimpleStrategy with a single replica is a
// development-environment setting and should not be used for production
// clusters.
const DefaultReplication = "{ 'class': 'SimpleStrategy', 'replication_factor': 1 }"

var datacenterRE = regexp.MustCompile(`^[a-z\d_]{2,}$`)

type (
	// Replication represents the strategy and data replication factor for a
	// keyspace.
	Replication struct {
		// Class is either SimpleStrategy or NetworkTopologyStrategy.
		Class string

		// Factor is the cluster-wide replica count for SimpleStrategy.
		Factor int

		// DatacenterFactors maps datacenter names to replica counts for
		// NetworkTopologyStrategy.
		DatacenterFactors map[string]int
	}
)

// SimpleReplication returns a SimpleStrategy replication with the given
// factor.
func SimpleReplication(factor int) *Replication {
	return &Replication{Class: "SimpleStrategy", Factor: factor}
}

// ParseReplication deserializes a CREATE KEYSPACE replication object from its
// CQL key-value form, e.g.
//
//	{ 'class': 'SimpleStrategy', 'replication_factor': 1 }
//	{ 'class': 'NetworkTopologyStrategy', 'dc1': 3, 'dc2': 5 }
func ParseReplication(s string) (*Replication, error) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") || !strings.HasSuffix(trimmed, "}") {
		return nil, errors.New("not a valid keyspace replication object")
	}

	fields := make(map[string]string)
	for _, pair := range strings.Split(trimmed[1:len(trimmed)-1], ",") {
		kv := strings.SplitN(pair, ":", 2)
		if len(kv) != 2 {
			return nil, errors.New("not a valid key-value pair in keyspace replication object")
		}
		key := trimQuotes(kv[0])
		value := trimQuotes(kv[1])
		if _, dup := fields[key]; dup {
			return nil, errors.Errorf("replication object duplicates key-value pair %s", key)
		}
		fields[key] = value
	}

	class, ok := fields["class"]
	if !ok {
		return nil, errors.New("replication object missing class field")
	}
	delete(fields, "class")

	switch class {
	case "SimpleStrategy":
		factorString, ok := fields["replication_factor"]
		if !ok {
			return nil, errors.New("replication object missing replication_factor field")
		}
		factor, err := strconv.Atoi(factorString)
		if err != nil {
			return nil, errors.Errorf("replication factor %s must be a number", factorString)
		}
		return SimpleReplication(factor), nil

	case "NetworkTopologyStrategy":
		if len(fields) == 0 {
			return nil, errors.New("network replication must specify at least one datacenter's replication factor")
		}
		factors := make(map[string]int, len(fields))
		for datacenter, factorString := range fields {
			if !datacenterRE.MatchString(datacenter) {
				return nil, errors.Errorf("datacenter %s is not a valid name", datacenter)
			}
			factor, err := strconv.Atoi(factorString)
			if err != nil {
				return nil, errors.Errorf("replication factor %s for datacenter %s must be a number", factorString, datacenter)
			}
			factors[datacenter] = factor
		}
		return &Replication{Class: "NetworkTopologyStrategy", DatacenterFactors: factors}, nil

	default:
		return nil, errors.Errorf("replication class %s field is an unsupported type", class)
	}
}

// CQL renders the replication object in the form expected by CREATE KEYSPACE.
// Datacenters are emitted in sorted order so output is deterministic.
func (r *Replication) CQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "{'class': '%s'", r.Class)

	if r.Class == "NetworkTopologyStrategy" {
		datacenters := make([]string, 0, len(r.DatacenterFactors))
		for dc := range r.DatacenterFactors {
			datacenters = append(datacenters, dc)
		}
		sort.Strings(datacenters)
		for _, dc := range datacenters {
			fmt.Fprintf(&b, ", '%s': %d", dc, r.DatacenterFactors[dc])
		}
	} else {
		fmt.Fprintf(&b, ", 'replication_factor': %d", r.Factor)
	}

	b.WriteString("}")
	return b.String()
}

func trimQuotes(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"`)
	return strings.Trim(s, "'")
}

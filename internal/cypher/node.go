package cypher

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Property is an ordered (key, value) pair. It serializes as a
// two-element JSON array, matching the wire representation every
// client and the backend already agree on.
type Property struct {
	Key   string
	Value string
}

func (p Property) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]string{p.Key, p.Value})
}

func (p *Property) UnmarshalJSON(data []byte) error {
	var pair [2]string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	p.Key, p.Value = pair[0], pair[1]
	return nil
}

// Node is a labeled, optionally-variable-bound graph vertex pattern:
// used both to describe a vertex to create and to match an existing
// one.
type Node struct {
	VarName    *string    `json:"var_name"`
	Labels     []string   `json:"labels"`
	Properties []Property `json:"properties"`
}

// NewNode builds a Node. Pass an empty varName for an unbound pattern.
func NewNode(varName string, labels []string, properties []Property) *Node {
	n := &Node{Labels: labels, Properties: properties}
	if varName != "" {
		n.VarName = &varName
	}
	return n
}

// Var returns the node's variable name, or "" if unbound.
func (n *Node) Var() string {
	if n == nil || n.VarName == nil {
		return ""
	}
	return *n.VarName
}

// Clone deep-copies a Node. The orchestrator clones a query before
// mutating it into a per-round-trip variant (a read-back, a
// match-then-link single query, a match-then-update single query), so
// mutating the clone must never touch the original's slices.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		Labels:     append([]string(nil), n.Labels...),
		Properties: append([]Property(nil), n.Properties...),
	}
	if n.VarName != nil {
		v := *n.VarName
		c.VarName = &v
	}
	return c
}

// Get returns the value of the named property, if present.
func (n *Node) Get(key string) (string, bool) {
	for _, p := range n.Properties {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// AddProperty appends a property, preserving insertion order.
func (n *Node) AddProperty(key, value string) {
	n.Properties = append(n.Properties, Property{Key: key, Value: value})
}

// render writes this node's Cypher-dialect pattern: (var:label1:label2
// {k1: 'v1', k2: 'v2'}), omitting the {} block when there are no
// properties and the var name when unbound.
func (n *Node) render() string {
	var sb strings.Builder
	sb.WriteByte('(')
	if n.VarName != nil {
		sb.WriteString(*n.VarName)
	}
	for _, label := range n.Labels {
		sb.WriteString(fmt.Sprintf(":%s", label))
	}
	if len(n.Properties) > 0 {
		sb.WriteString(" {")
		for i, p := range n.Properties {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s: '%s'", p.Key, p.Value))
		}
		sb.WriteByte('}')
	}
	sb.WriteByte(')')
	return sb.String()
}

// Relation is a labeled, optionally-variable-bound edge pattern
// connecting a Node to a next Node.
type Relation struct {
	VarName    *string    `json:"var_name"`
	Labels     []string   `json:"labels"`
	Properties []Property `json:"properties"`
}

// NewRelation builds a Relation. Pass an empty varName for an unbound
// pattern.
func NewRelation(varName string, labels []string, properties []Property) *Relation {
	r := &Relation{Labels: labels, Properties: properties}
	if varName != "" {
		r.VarName = &varName
	}
	return r
}

// Var returns the relation's variable name, or "" if unbound.
func (r *Relation) Var() string {
	if r == nil || r.VarName == nil {
		return ""
	}
	return *r.VarName
}

// Clone deep-copies a Relation.
func (r *Relation) Clone() *Relation {
	if r == nil {
		return nil
	}
	c := &Relation{
		Labels:     append([]string(nil), r.Labels...),
		Properties: append([]Property(nil), r.Properties...),
	}
	if r.VarName != nil {
		v := *r.VarName
		c.VarName = &v
	}
	return c
}

// Get returns the value of the named property, if present.
func (r *Relation) Get(key string) (string, bool) {
	for _, p := range r.Properties {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// AddProperty appends a property, preserving insertion order.
func (r *Relation) AddProperty(key, value string) {
	r.Properties = append(r.Properties, Property{Key: key, Value: value})
}

// render writes this relation's Cypher-dialect pattern:
// [var:label1:label2 {k1: 'v1'}], using the same label/property
// rendering rules as Node.
func (r *Relation) render() string {
	var sb strings.Builder
	sb.WriteByte('[')
	if r.VarName != nil {
		sb.WriteString(*r.VarName)
	}
	for _, label := range r.Labels {
		sb.WriteString(fmt.Sprintf(":%s", label))
	}
	if len(r.Properties) > 0 {
		sb.WriteString(" {")
		for i, p := range r.Properties {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s: '%s'", p.Key, p.Value))
		}
		sb.WriteByte('}')
	}
	sb.WriteByte(']')
	return sb.String()
}

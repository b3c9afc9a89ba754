package cypher

import (
	"encoding/json"
	"fmt"
	"strings"

	graphproxyerrors "github.com/clique-labs/graphproxy/internal/errors"
)

// CRUDType is the operation a CypherQuery classifies to.
type CRUDType int

const (
	Create CRUDType = iota
	Read
	Update
	Delete
	FindShortestPath
)

func (t CRUDType) String() string {
	switch t {
	case Create:
		return "CREATE"
	case Read:
		return "READ"
	case Update:
		return "UPDATE"
	case Delete:
		return "DELETE"
	case FindShortestPath:
		return "FIND_SHORTEST_PATH"
	default:
		return "UNKNOWN"
	}
}

// DeleteClause is a DELETE or DETACH DELETE item list. It serializes as
// a 2-element positional array, matching the Rust side's
// Option<(Vec<Item>, bool)> tuple rather than a named object.
type DeleteClause struct {
	Items  []Item
	Detach bool
}

func (d DeleteClause) MarshalJSON() ([]byte, error) {
	items := d.Items
	if items == nil {
		items = []Item{}
	}
	return json.Marshal([2]any{items, d.Detach})
}

func (d *DeleteClause) UnmarshalJSON(data []byte) error {
	var fields [2]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return graphproxyerrors.SerializationError(err, "failed to decode delete_list payload")
	}
	if err := json.Unmarshal(fields[0], &d.Items); err != nil {
		return graphproxyerrors.SerializationError(err, "failed to decode delete_list items")
	}
	if err := json.Unmarshal(fields[1], &d.Detach); err != nil {
		return graphproxyerrors.SerializationError(err, "failed to decode delete_list detach flag")
	}
	return nil
}

// CypherQuery is the tagged intermediate representation every client
// request is parsed into before classification, encryption, and
// rendering. A nil list means the clause is absent; a non-nil
// (possibly empty) list means the clause was used.
type CypherQuery struct {
	Node              *Node         `json:"node"`
	Relation          *Relation     `json:"relation"`
	NextNode          *Node         `json:"next_node"`
	UseMatch          bool          `json:"use_match"`
	UseCreate         bool          `json:"use_create"`
	FindShortestPath  bool          `json:"find_shortest_path"`
	ReturnList        []Item        `json:"return_list"`
	SetList           []Item        `json:"set_list"`
	RemoveList        []Item        `json:"remove_list"`
	DeleteList        *DeleteClause `json:"delete_list"`
}

// Builder assembles a CypherQuery with method chaining, matching the
// fluent style clients use to describe an intent before it's sent to
// the proxy.
type Builder struct {
	q CypherQuery
}

func NewBuilder() *Builder { return &Builder{} }

func (b *Builder) Node(n *Node) *Builder {
	if b.q.Node != nil {
		panic("cypher: node already set")
	}
	b.q.Node = n
	return b
}

func (b *Builder) Relation(r *Relation) *Builder {
	if b.q.Relation != nil {
		panic("cypher: relation already set")
	}
	b.q.Relation = r
	return b
}

func (b *Builder) NextNode(n *Node) *Builder {
	if b.q.NextNode != nil {
		panic("cypher: next node already set")
	}
	b.q.NextNode = n
	return b
}

func (b *Builder) Match() *Builder            { b.q.UseMatch = true; return b }
func (b *Builder) CreateOp() *Builder         { b.q.UseCreate = true; return b }
func (b *Builder) ShortestPath() *Builder     { b.q.FindShortestPath = true; return b }
func (b *Builder) Return(items []Item) *Builder { b.q.ReturnList = items; return b }
func (b *Builder) Set(items []Item) *Builder    { b.q.SetList = items; return b }
func (b *Builder) Remove(items []Item) *Builder { b.q.RemoveList = items; return b }
func (b *Builder) Delete(items []Item, detach bool) *Builder {
	b.q.DeleteList = &DeleteClause{Items: items, Detach: detach}
	return b
}

func (b *Builder) Build() CypherQuery { return b.q }

// Clone deep-copies a CypherQuery, including its node/relation/next_node
// patterns and every item list. The orchestrator needs this at every
// multi-round-trip CRUD step: a read-back variant, a per-match single
// query, or an updated variant, all derived from one client query
// without aliasing its slices.
func (q CypherQuery) Clone() CypherQuery {
	c := q
	c.Node = q.Node.Clone()
	c.Relation = q.Relation.Clone()
	c.NextNode = q.NextNode.Clone()
	c.ReturnList = append([]Item(nil), q.ReturnList...)
	c.SetList = append([]Item(nil), q.SetList...)
	c.RemoveList = append([]Item(nil), q.RemoveList...)
	if q.DeleteList != nil {
		c.DeleteList = &DeleteClause{
			Items:  append([]Item(nil), q.DeleteList.Items...),
			Detach: q.DeleteList.Detach,
		}
	}
	return c
}

// hasRelationPattern reports whether this query describes a full
// three-part pattern (node-relation-nextNode) rather than a single
// node.
func (q *CypherQuery) hasRelationPattern() bool {
	return q.Relation != nil && q.NextNode != nil
}

// hasBareNextNode reports whether this query binds a second node with
// no relation connecting it to the first: two independent match
// patterns in the same MATCH clause. Only a Read or a FindShortestPath
// query takes this shape — as a Read it's how a query resolves two
// existing endpoints before linking them (match-then-link CREATE) or
// before walking outward from them (shortest-path).
func (q *CypherQuery) hasBareNextNode() bool {
	return q.Relation == nil && q.NextNode != nil
}

// Validate checks that the query's field combination forms one of the
// recognized shapes, returning a *errors.Error otherwise. It also
// enforces invariants the renderer depends on: a relation pattern used
// in CREATE must carry at least one label, since a label-less edge
// can't be matched back out again.
func (q *CypherQuery) Validate() error {
	if q.Node == nil {
		return graphproxyerrors.Structural("query must specify a node")
	}
	if q.Relation != nil && q.NextNode == nil {
		return graphproxyerrors.Structural("a relation requires a next_node")
	}

	_, err := q.Classify()
	if err != nil {
		return err
	}

	if q.UseCreate && q.hasRelationPattern() && len(q.Relation.Labels) == 0 {
		return graphproxyerrors.Structural("a created relation must carry at least one label")
	}

	return nil
}

// Classify determines which CRUD (or shortest-path) operation this
// query's field combination represents, mirroring the original
// engine's exhaustive shape match: only a fixed set of combinations is
// legal, everything else is a structural error.
func (q *CypherQuery) Classify() (CRUDType, error) {
	if q.FindShortestPath {
		if q.UseMatch && !q.UseCreate && q.hasBareNextNode() &&
			q.SetList == nil && q.RemoveList == nil && q.DeleteList == nil {
			return FindShortestPath, nil
		}
		return 0, graphproxyerrors.Structuralf("invalid shortest-path query shape: %+v", q)
	}

	hasRel := q.hasRelationPattern()
	singleNode := q.Relation == nil && q.NextNode == nil

	switch {
	case q.UseCreate && !q.UseMatch && singleNode &&
		q.SetList == nil && q.RemoveList == nil && q.DeleteList == nil:
		return Create, nil

	case q.UseCreate && !q.UseMatch && hasRel &&
		q.SetList == nil && q.RemoveList == nil && q.DeleteList == nil:
		return Create, nil

	case q.UseCreate && q.UseMatch && hasRel &&
		q.SetList == nil && q.RemoveList == nil && q.DeleteList == nil:
		return Create, nil

	case q.UseMatch && !q.UseCreate && (singleNode || hasRel || q.hasBareNextNode()) &&
		q.ReturnList != nil &&
		q.SetList == nil && q.RemoveList == nil && q.DeleteList == nil:
		return Read, nil

	case q.UseMatch && !q.UseCreate && (singleNode || hasRel) && q.DeleteList == nil &&
		(q.SetList != nil || q.RemoveList != nil):
		return Update, nil

	case q.UseMatch && !q.UseCreate && (singleNode || hasRel) && q.DeleteList != nil &&
		q.SetList == nil && q.RemoveList == nil:
		return Delete, nil

	default:
		return 0, graphproxyerrors.Structuralf("invalid or unsupported query shape: %+v", q)
	}
}

// Render renders the validated query to its Cypher-dialect string.
// FindShortestPath queries have no single rendering — the shortest-path
// engine drives its own sequence of Read-shaped queries — so Render
// rejects them.
func (q *CypherQuery) Render() (string, error) {
	crud, err := q.Classify()
	if err != nil {
		return "", err
	}

	returnStr := q.renderReturn()

	switch crud {
	case Create:
		if !q.hasRelationPattern() {
			return fmt.Sprintf("CREATE %s %s", q.Node.render(), returnStr), nil
		}
		if !q.UseMatch {
			return fmt.Sprintf("CREATE %s-%s->%s %s",
				q.Node.render(), q.Relation.render(), q.NextNode.render(), returnStr), nil
		}
		nodeVar, nextVar := q.Node.Var(), q.NextNode.Var()
		if nodeVar == "" || nextVar == "" {
			return "", graphproxyerrors.Structural("match-then-create requires var_name on both node and next_node")
		}
		return fmt.Sprintf("MATCH %s, %s CREATE (%s)-%s->(%s) %s",
			q.Node.render(), q.NextNode.render(), nodeVar, q.Relation.render(), nextVar, returnStr), nil

	case Read:
		switch {
		case q.hasRelationPattern():
			return fmt.Sprintf("MATCH %s-%s->%s %s",
				q.Node.render(), q.Relation.render(), q.NextNode.render(), returnStr), nil
		case q.hasBareNextNode():
			return fmt.Sprintf("MATCH %s, %s %s", q.Node.render(), q.NextNode.render(), returnStr), nil
		default:
			return fmt.Sprintf("MATCH %s %s", q.Node.render(), returnStr), nil
		}

	case Update:
		// Always four literal slots (pattern, REMOVE, SET, RETURN), even
		// when REMOVE or SET is absent: an absent clause renders as an
		// empty string rather than disappearing, which is what produces
		// the doubled space the original renderer leaves between two
		// adjacent optional clauses.
		pattern := q.Node.render()
		if q.hasRelationPattern() {
			pattern = fmt.Sprintf("%s-%s->%s", q.Node.render(), q.Relation.render(), q.NextNode.render())
		}
		return fmt.Sprintf("MATCH %s %s %s %s", pattern, q.renderRemove(), q.renderSet(), returnStr), nil

	case Delete:
		pattern := q.Node.render()
		if q.hasRelationPattern() {
			pattern = fmt.Sprintf("%s-%s->%s", q.Node.render(), q.Relation.render(), q.NextNode.render())
		}
		return fmt.Sprintf("MATCH %s %s %s", pattern, q.renderDelete(), returnStr), nil

	default:
		return "", graphproxyerrors.Internalf("unrenderable query type %s", crud)
	}
}

func (q *CypherQuery) renderReturn() string {
	if q.ReturnList == nil {
		return ""
	}
	rendered := make([]string, len(q.ReturnList))
	for i, it := range q.ReturnList {
		rendered[i] = it.render()
	}
	s := strings.Join(rendered, ", ")
	if s == "" {
		return ""
	}
	return "RETURN " + s
}

func (q *CypherQuery) renderSet() string {
	return renderItemClause("SET", q.SetList)
}

func (q *CypherQuery) renderRemove() string {
	return renderItemClause("REMOVE", q.RemoveList)
}

func renderItemClause(keyword string, items []Item) string {
	if items == nil {
		return ""
	}
	rendered := make([]string, len(items))
	for i, it := range items {
		rendered[i] = it.render()
	}
	s := strings.Join(rendered, ", ")
	if s == "" {
		return ""
	}
	return keyword + " " + s
}

func (q *CypherQuery) renderDelete() string {
	if q.DeleteList == nil {
		return ""
	}
	rendered := make([]string, len(q.DeleteList.Items))
	for i, it := range q.DeleteList.Items {
		rendered[i] = it.render()
	}
	s := strings.Join(rendered, ", ")
	if q.DeleteList.Detach {
		return "DETACH DELETE " + s
	}
	return "DELETE " + s
}

// Serialize renders the query as JSON, for the wire protocol.
func (q *CypherQuery) Serialize() ([]byte, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return nil, graphproxyerrors.SerializationError(err, "failed to serialize query")
	}
	return data, nil
}

// Deserialize parses a wire-frame body into a CypherQuery.
func Deserialize(data []byte) (*CypherQuery, error) {
	var q CypherQuery
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, graphproxyerrors.SerializationError(err, "failed to deserialize query")
	}
	return &q, nil
}

package cypher

import "sort"

// Inner is the content of a single node or relation as read back from
// the backend: its labels and its (key, value) properties, including
// the plaintext uid and hash properties the server strips before a row
// reaches the client.
type Inner struct {
	Labels     []string   `json:"labels"`
	Properties []Property `json:"properties"`
}

// NewInner builds an Inner from labels and properties.
func NewInner(labels []string, properties []Property) Inner {
	return Inner{Labels: labels, Properties: properties}
}

// Get returns the value of the named property, if present.
func (in *Inner) Get(key string) (string, bool) {
	for _, p := range in.Properties {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Set assigns key to value, appending it if absent.
func (in *Inner) Set(key, value string) {
	for i := range in.Properties {
		if in.Properties[i].Key == key {
			in.Properties[i].Value = value
			return
		}
	}
	in.Properties = append(in.Properties, Property{Key: key, Value: value})
}

// RemoveProperty deletes the named property, reporting whether it was
// present.
func (in *Inner) RemoveProperty(key string) bool {
	for i := range in.Properties {
		if in.Properties[i].Key == key {
			in.Properties = append(in.Properties[:i], in.Properties[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveLabel deletes the named label, reporting whether it was
// present.
func (in *Inner) RemoveLabel(label string) bool {
	for i, l := range in.Labels {
		if l == label {
			in.Labels = append(in.Labels[:i], in.Labels[i+1:]...)
			return true
		}
	}
	return false
}

// AddLabel appends a label.
func (in *Inner) AddLabel(label string) {
	in.Labels = append(in.Labels, label)
}

// Equal compares two Inners ignoring label and property order: two
// rows returned in different orders from the backend still count as
// the same content.
func (in Inner) Equal(other Inner) bool {
	if len(in.Labels) != len(other.Labels) || len(in.Properties) != len(other.Properties) {
		return false
	}

	l1, l2 := append([]string(nil), in.Labels...), append([]string(nil), other.Labels...)
	sort.Strings(l1)
	sort.Strings(l2)
	for i := range l1 {
		if l1[i] != l2[i] {
			return false
		}
	}

	p1, p2 := append([]Property(nil), in.Properties...), append([]Property(nil), other.Properties...)
	sortProperties(p1)
	sortProperties(p2)
	for i := range p1 {
		if p1[i] != p2[i] {
			return false
		}
	}

	return true
}

func sortProperties(props []Property) {
	sort.Slice(props, func(i, j int) bool {
		if props[i].Key != props[j].Key {
			return props[i].Key < props[j].Key
		}
		return props[i].Value < props[j].Value
	})
}

// Row is an ordered sequence of Inners: one result record, with one
// Inner per bound variable in the RETURN list, in RETURN order.
type Row struct {
	Inners []Inner `json:"inners"`
}

// NewRow builds a Row from its Inners.
func NewRow(inners []Inner) Row { return Row{Inners: inners} }

// IsEmpty reports whether the row has no Inners.
func (r Row) IsEmpty() bool { return len(r.Inners) == 0 }

// Rows is an ordered sequence of Rows: the full result of a query.
type Rows struct {
	RowList []Row `json:"rows"`
}

// NewRows builds a Rows from its Rows.
func NewRows(rows []Row) Rows { return Rows{RowList: rows} }

// IsEmpty reports whether there are no rows.
func (rs Rows) IsEmpty() bool { return len(rs.RowList) == 0 }

// Push appends a row.
func (rs *Rows) Push(row Row) { rs.RowList = append(rs.RowList, row) }

// StripInternal returns a copy of rs with the uid and hash properties
// removed from every Inner. The server calls this exactly once, on the
// way out to the client: internally, the orchestrator and the
// integrity layer both need uid/hash on every row they touch, so the
// strip can't happen any earlier than the wire boundary.
func (rs Rows) StripInternal(uidKey, hashKey string) Rows {
	stripped := make([]Row, len(rs.RowList))
	for i, row := range rs.RowList {
		inners := make([]Inner, len(row.Inners))
		for j, in := range row.Inners {
			props := make([]Property, 0, len(in.Properties))
			for _, p := range in.Properties {
				if p.Key == uidKey || p.Key == hashKey {
					continue
				}
				props = append(props, p)
			}
			inners[j] = Inner{Labels: in.Labels, Properties: props}
		}
		stripped[i] = Row{Inners: inners}
	}
	return Rows{RowList: stripped}
}

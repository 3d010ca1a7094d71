package authz

// Matrix is the dense, UI-editable representation of one user's grant set:
// every catalog entry present, default false. Super-admin status is never
// materialized into the matrix; rendering all cells as implicitly granted
// is the caller's concern.
type Matrix map[string]map[string]bool

// Presenter transforms between the sparse grant list (storage shape) and
// the dense matrix (editing shape) for a fixed catalog.
type Presenter struct {
	catalog *Catalog
}

// NewPresenter binds a presenter to a catalog.
func NewPresenter(catalog *Catalog) *Presenter {
	return &Presenter{catalog: catalog}
}

// ToMatrix builds the dense matrix from stored grants. Grants outside the
// catalog and grants with allowed=false both leave their cell at false.
func (p *Presenter) ToMatrix(grants []Grant) Matrix {
	m := make(Matrix, len(p.catalog.resources))
	for _, resource := range p.catalog.resources {
		row := make(map[string]bool, len(p.catalog.ops[resource]))
		for _, op := range p.catalog.ops[resource] {
			row[op] = false
		}
		m[resource] = row
	}
	for _, g := range grants {
		if !g.Allowed {
			continue
		}
		if !p.catalog.IsValidOperation(g.Resource, g.Operation) {
			continue
		}
		m[g.Resource][g.Operation] = true
	}
	return m
}

// ToGrants flattens an edited matrix back to the sparse storage shape:
// exactly one allowed=true grant per true cell, nothing for false cells.
// Cells outside the catalog are dropped. Output follows catalog order so
// round trips are deterministic.
func (p *Presenter) ToGrants(userID int64, m Matrix) []Grant {
	var grants []Grant
	for _, resource := range p.catalog.resources {
		row, ok := m[resource]
		if !ok {
			continue
		}
		for _, op := range p.catalog.ops[resource] {
			if row[op] {
				grants = append(grants, Grant{UserID: userID, Resource: resource, Operation: op, Allowed: true})
			}
		}
	}
	return grants
}

// CountActive returns the number of true cells, for
// "N of M permissions active" reporting alongside Catalog.Len.
func (p *Presenter) CountActive(m Matrix) int {
	var n int
	for _, resource := range p.catalog.resources {
		row, ok := m[resource]
		if !ok {
			continue
		}
		for _, op := range p.catalog.ops[resource] {
			if row[op] {
				n++
			}
		}
	}
	return n
}

// Diff reports whether any catalog cell differs between the two matrices.
// Used to gate "unsaved changes" prompts and skip no-op saves.
func (p *Presenter) Diff(original, edited Matrix) bool {
	for _, resource := range p.catalog.resources {
		origRow := original[resource]
		editRow := edited[resource]
		for _, op := range p.catalog.ops[resource] {
			if origRow[op] != editRow[op] {
				return true
			}
		}
	}
	return false
}

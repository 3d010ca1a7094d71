// Package authz implements the authorization core: the permission catalog,
// the per-user grant store, the request-time gate and the matrix presenter
// used by the permission editing UI.
package authz

import (
	"fmt"
	"strings"

	"github.com/jurisdesk/jurisdesk/internal/shared"
)

// Capability is a concrete resource:operation pair being checked or granted.
type Capability struct {
	Resource  string
	Operation string
}

// ParseCapability parses the "resource:operation" wire form.
func ParseCapability(s string) (Capability, error) {
	resource, operation, ok := strings.Cut(s, ":")
	if !ok || resource == "" || operation == "" {
		return Capability{}, fmt.Errorf("authz: malformed capability %q: %w", s, shared.ErrValidation)
	}
	return Capability{Resource: resource, Operation: operation}, nil
}

// MustCapability parses s and panics on malformed input. Capability strings
// are compile-time constants at call sites, so a bad one is a programming
// error surfaced at route-mount time.
func MustCapability(s string) Capability {
	c, err := ParseCapability(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Capability) String() string {
	return c.Resource + ":" + c.Operation
}

// ResourceOps declares the valid operations of one catalog resource.
type ResourceOps struct {
	Resource   string
	Operations []string
}

// Catalog is the authoritative vocabulary for every authorization decision:
// an immutable mapping from resource to its ordered operation set. It is
// built once at process start and passed by reference into the gate, the
// store and the presenter; it is never mutated afterwards.
type Catalog struct {
	resources []string
	ops       map[string][]string
	index     map[string]map[string]struct{}
	total     int
}

// NewCatalog builds a Catalog from resource declarations. Input slices are
// copied; duplicate operations within a resource collapse to one entry.
func NewCatalog(defs ...ResourceOps) *Catalog {
	c := &Catalog{
		ops:   make(map[string][]string, len(defs)),
		index: make(map[string]map[string]struct{}, len(defs)),
	}
	for _, def := range defs {
		if def.Resource == "" {
			continue
		}
		if _, dup := c.index[def.Resource]; dup {
			continue
		}
		seen := make(map[string]struct{}, len(def.Operations))
		ops := make([]string, 0, len(def.Operations))
		for _, op := range def.Operations {
			if op == "" {
				continue
			}
			if _, ok := seen[op]; ok {
				continue
			}
			seen[op] = struct{}{}
			ops = append(ops, op)
		}
		c.resources = append(c.resources, def.Resource)
		c.ops[def.Resource] = ops
		c.index[def.Resource] = seen
		c.total += len(ops)
	}
	return c
}

// Resources returns the resource names in declaration order.
func (c *Catalog) Resources() []string {
	out := make([]string, len(c.resources))
	copy(out, c.resources)
	return out
}

// Operations returns the ordered operation set of a resource. An unknown
// resource yields an empty set, never an error.
func (c *Catalog) Operations(resource string) []string {
	ops, ok := c.ops[resource]
	if !ok {
		return nil
	}
	out := make([]string, len(ops))
	copy(out, ops)
	return out
}

// Entries returns every (resource, operation) pair in catalog order.
func (c *Catalog) Entries() []Capability {
	entries := make([]Capability, 0, c.total)
	for _, resource := range c.resources {
		for _, op := range c.ops[resource] {
			entries = append(entries, Capability{Resource: resource, Operation: op})
		}
	}
	return entries
}

// IsValidResource reports whether the resource exists in the catalog.
func (c *Catalog) IsValidResource(resource string) bool {
	_, ok := c.index[resource]
	return ok
}

// IsValidOperation reports whether the operation is valid for the resource.
func (c *Catalog) IsValidOperation(resource, operation string) bool {
	ops, ok := c.index[resource]
	if !ok {
		return false
	}
	_, ok = ops[operation]
	return ok
}

// Contains reports whether the capability is a catalog entry.
func (c *Catalog) Contains(cap Capability) bool {
	return c.IsValidOperation(cap.Resource, cap.Operation)
}

// Len returns the total number of catalog entries, used for
// "N of M permissions active" reporting.
func (c *Catalog) Len() int {
	return c.total
}

// DefaultCatalog returns the legal-practice permission catalog.
func DefaultCatalog() *Catalog {
	crud := func(extra ...string) []string {
		return append([]string{"listar", "visualizar", "criar", "editar", "deletar"}, extra...)
	}
	assign := []string{"atribuir_responsavel", "desatribuir_responsavel", "transferir_responsavel"}
	return NewCatalog(
		ResourceOps{Resource: "advogados", Operations: crud()},
		ResourceOps{Resource: "credenciais", Operations: crud("ativar_desativar")},
		ResourceOps{Resource: "acervo", Operations: append([]string{"listar", "visualizar", "editar"}, assign...)},
		ResourceOps{Resource: "audiencias", Operations: append(append([]string{"listar", "visualizar", "editar"}, assign...), "editar_url_virtual")},
		ResourceOps{Resource: "pendentes", Operations: append(append([]string{"listar", "visualizar"}, assign...), "baixar_expediente", "reverter_baixa", "editar_tipo_descricao")},
		ResourceOps{Resource: "expedientes_manuais", Operations: append(crud(assign...), "baixar_expediente", "reverter_baixa")},
		ResourceOps{Resource: "usuarios", Operations: crud("ativar_desativar", "gerenciar_permissoes", "sincronizar")},
		ResourceOps{Resource: "clientes", Operations: crud()},
		ResourceOps{Resource: "partes_contrarias", Operations: crud()},
		ResourceOps{Resource: "terceiros", Operations: crud()},
		ResourceOps{Resource: "representantes", Operations: crud()},
		ResourceOps{Resource: "enderecos", Operations: crud()},
		ResourceOps{Resource: "contratos", Operations: crud("associar_processo", "desassociar_processo")},
		ResourceOps{Resource: "processo_partes", Operations: crud("vincular_parte", "desvincular_parte")},
		ResourceOps{Resource: "acordos_condenacoes", Operations: crud("gerenciar_parcelas", "receber_pagamento", "pagar", "registrar_repasse")},
		ResourceOps{Resource: "parcelas", Operations: crud("editar_valores", "marcar_como_recebida", "marcar_como_paga", "anexar_comprovante", "registrar_repasse")},
		ResourceOps{Resource: "agendamentos", Operations: crud("executar", "ativar_desativar")},
		ResourceOps{Resource: "captura", Operations: []string{"executar_acervo_geral", "executar_arquivados", "executar_audiencias", "executar_pendentes", "visualizar_historico", "gerenciar_credenciais"}},
		ResourceOps{Resource: "tipos_expedientes", Operations: crud()},
		ResourceOps{Resource: "cargos", Operations: crud("ativar_desativar")},
	)
}

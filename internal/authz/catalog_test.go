package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCapability(t *testing.T) {
	c, err := ParseCapability("clientes:listar")
	require.NoError(t, err)
	require.Equal(t, "clientes", c.Resource)
	require.Equal(t, "listar", c.Operation)
	require.Equal(t, "clientes:listar", c.String())

	for _, raw := range []string{"", "clientes", ":listar", "clientes:"} {
		_, err := ParseCapability(raw)
		require.Error(t, err, raw)
	}
}

func TestCatalogLookups(t *testing.T) {
	cat := NewCatalog(
		ResourceOps{Resource: "clientes", Operations: []string{"listar", "editar", "listar"}},
		ResourceOps{Resource: "acervo", Operations: []string{"listar"}},
	)

	require.Equal(t, []string{"clientes", "acervo"}, cat.Resources())
	// duplicate operation collapses
	require.Equal(t, []string{"listar", "editar"}, cat.Operations("clientes"))
	require.Empty(t, cat.Operations("nope"))
	require.Equal(t, 3, cat.Len())

	require.True(t, cat.IsValidResource("acervo"))
	require.False(t, cat.IsValidResource("relatorios"))
	require.True(t, cat.Contains(Capability{Resource: "clientes", Operation: "editar"}))
	require.False(t, cat.Contains(Capability{Resource: "clientes", Operation: "deletar"}))

	entries := cat.Entries()
	require.Len(t, entries, 3)
	require.Equal(t, Capability{Resource: "clientes", Operation: "listar"}, entries[0])
}

func TestDefaultCatalog(t *testing.T) {
	cat := DefaultCatalog()

	require.Len(t, cat.Resources(), 20)
	require.True(t, cat.Contains(MustCapability("usuarios:gerenciar_permissoes")))
	require.True(t, cat.Contains(MustCapability("usuarios:ativar_desativar")))
	require.True(t, cat.Contains(MustCapability("pendentes:baixar_expediente")))
	require.True(t, cat.Contains(MustCapability("captura:executar_acervo_geral")))
	// acervo has no criar/deletar
	require.False(t, cat.Contains(MustCapability("acervo:criar")))
	require.False(t, cat.Contains(MustCapability("acervo:deletar")))
}

func TestMustCapabilityPanics(t *testing.T) {
	require.Panics(t, func() { MustCapability("semoperacao") })
}

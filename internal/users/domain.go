package users

import "time"

// User represents a user account of the practice. The numeric ID is the
// "responsible party" foreign key used across business tables; AuthUserID
// links the row to the external identity provider.
type User struct {
	ID             int64     `json:"id"`
	AuthUserID     string    `json:"authUserId,omitempty"`
	FullName       string    `json:"nomeCompleto"`
	DisplayName    string    `json:"nomeExibicao"`
	CPF            string    `json:"cpf"`
	OAB            string    `json:"oab,omitempty"`
	OABState       string    `json:"ufOab,omitempty"`
	PersonalEmail  string    `json:"emailPessoal,omitempty"`
	CorporateEmail string    `json:"emailCorporativo"`
	Phone          string    `json:"telefone,omitempty"`
	CargoID        *int64    `json:"cargoId,omitempty"`
	AvatarURL      string    `json:"avatarUrl,omitempty"`
	SuperAdmin     bool      `json:"isSuperAdmin"`
	Active         bool      `json:"ativo"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// DeactivationCounts reports, per assignable entity kind, how many records
// were unassigned from a deactivated user.
type DeactivationCounts struct {
	Processos          int64 `json:"processos"`
	Audiencias         int64 `json:"audiencias"`
	Pendentes          int64 `json:"pendentes"`
	ExpedientesManuais int64 `json:"expedientes_manuais"`
	Contratos          int64 `json:"contratos"`
}

// Total sums all kinds.
func (c DeactivationCounts) Total() int64 {
	return c.Processos + c.Audiencias + c.Pendentes + c.ExpedientesManuais + c.Contratos
}

// ListParams filters and paginates user listings.
type ListParams struct {
	Search  string
	Active  *bool
	CargoID int64
	Page    int
	Limit   int
}

// ListResult wraps a page of users.
type ListResult struct {
	Users      []User `json:"usuarios"`
	Total      int64  `json:"total"`
	Page       int    `json:"pagina"`
	Limit      int    `json:"limite"`
	TotalPages int    `json:"totalPaginas"`
}

package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jurisdesk/jurisdesk/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	FindByID(ctx context.Context, id int64) (User, error)
	List(ctx context.Context, params ListParams) (ListResult, error)
	Create(ctx context.Context, user User) (User, error)
	Update(ctx context.Context, user User) (User, error)
	CountAssignments(ctx context.Context, userID int64) (DeactivationCounts, error)
	DeactivateCascade(ctx context.Context, userID int64) (DeactivationCounts, bool, error)
	Reactivate(ctx context.Context, userID int64) error
}

// PermissionInvalidator drops cached authorization state for a user so
// stale decisions are not served after a lifecycle change.
type PermissionInvalidator interface {
	InvalidateUser(ctx context.Context, userID int64)
}

// SessionRevoker schedules revocation of the user's live sessions. The
// gate denies deactivated users regardless; this just shortens the window.
type SessionRevoker interface {
	EnqueueSessionRevoke(ctx context.Context, authID string) error
}

// Service handles user lifecycle business logic.
type Service struct {
	repo     RepositoryPort
	perms    PermissionInvalidator
	sessions SessionRevoker
	audit    shared.AuditRecorder
	logger   *slog.Logger
	validate *validator.Validate
}

// NewService builds Service instance. perms, sessions and audit may be nil.
func NewService(repo RepositoryPort, perms PermissionInvalidator, sessions SessionRevoker, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		perms:    perms,
		sessions: sessions,
		audit:    audit,
		logger:   logger,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// List returns a filtered page of users. The search term is folded so the
// lookup is accent-insensitive.
func (s *Service) List(ctx context.Context, params ListParams) (ListResult, error) {
	params.Search = foldSearch(params.Search)
	return s.repo.List(ctx, params)
}

// Get fetches one user.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.FindByID(ctx, id)
}

// CreateParams carries validated input for user provisioning.
type CreateParams struct {
	AuthUserID     string `json:"authUserId" validate:"omitempty,uuid4"`
	FullName       string `json:"nomeCompleto" validate:"required,min=3"`
	DisplayName    string `json:"nomeExibicao" validate:"required"`
	CPF            string `json:"cpf" validate:"required"`
	OAB            string `json:"oab"`
	OABState       string `json:"ufOab" validate:"omitempty,len=2"`
	PersonalEmail  string `json:"emailPessoal" validate:"omitempty,email"`
	CorporateEmail string `json:"emailCorporativo" validate:"required,email"`
	Phone          string `json:"telefone"`
	CargoID        *int64 `json:"cargoId"`
	SuperAdmin     bool   `json:"isSuperAdmin"`
	Active         *bool  `json:"ativo"`
}

// Create provisions a new user. CPF and emails are normalized before
// hitting the store.
func (s *Service) Create(ctx context.Context, params CreateParams, actingUserID int64) (User, error) {
	if err := s.validate.Struct(params); err != nil {
		return User{}, fmt.Errorf("users: %v: %w", err, shared.ErrValidation)
	}
	cpf := normalizeCPF(params.CPF)
	if len(cpf) != 11 {
		return User{}, fmt.Errorf("users: cpf must have 11 digits: %w", shared.ErrValidation)
	}

	active := true
	if params.Active != nil {
		active = *params.Active
	}
	user := User{
		AuthUserID:     strings.TrimSpace(params.AuthUserID),
		FullName:       strings.TrimSpace(params.FullName),
		DisplayName:    strings.TrimSpace(params.DisplayName),
		CPF:            cpf,
		OAB:            strings.TrimSpace(params.OAB),
		OABState:       strings.ToUpper(strings.TrimSpace(params.OABState)),
		PersonalEmail:  strings.ToLower(strings.TrimSpace(params.PersonalEmail)),
		CorporateEmail: strings.ToLower(strings.TrimSpace(params.CorporateEmail)),
		Phone:          strings.TrimSpace(params.Phone),
		CargoID:        params.CargoID,
		SuperAdmin:     params.SuperAdmin,
		Active:         active,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, actingUserID, shared.AuditUserCreated, created.ID, nil)
	return created, nil
}

// UpdateParams carries partial profile changes; nil fields keep the
// stored value.
type UpdateParams struct {
	FullName       *string `json:"nomeCompleto" validate:"omitempty,min=3"`
	DisplayName    *string `json:"nomeExibicao"`
	CPF            *string `json:"cpf"`
	OAB            *string `json:"oab"`
	OABState       *string `json:"ufOab" validate:"omitempty,len=2"`
	PersonalEmail  *string `json:"emailPessoal" validate:"omitempty,email"`
	CorporateEmail *string `json:"emailCorporativo" validate:"omitempty,email"`
	Phone          *string `json:"telefone"`
	CargoID        *int64  `json:"cargoId"`
	AvatarURL      *string `json:"avatarUrl"`
	SuperAdmin     *bool   `json:"isSuperAdmin"`
}

// Update overlays the provided fields on the stored user.
func (s *Service) Update(ctx context.Context, id int64, params UpdateParams, actingUserID int64) (User, error) {
	if err := s.validate.Struct(params); err != nil {
		return User{}, fmt.Errorf("users: %v: %w", err, shared.ErrValidation)
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	if params.FullName != nil {
		user.FullName = strings.TrimSpace(*params.FullName)
	}
	if params.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*params.DisplayName)
	}
	if params.CPF != nil {
		cpf := normalizeCPF(*params.CPF)
		if len(cpf) != 11 {
			return User{}, fmt.Errorf("users: cpf must have 11 digits: %w", shared.ErrValidation)
		}
		user.CPF = cpf
	}
	if params.OAB != nil {
		user.OAB = strings.TrimSpace(*params.OAB)
	}
	if params.OABState != nil {
		user.OABState = strings.ToUpper(strings.TrimSpace(*params.OABState))
	}
	if params.PersonalEmail != nil {
		user.PersonalEmail = strings.ToLower(strings.TrimSpace(*params.PersonalEmail))
	}
	if params.CorporateEmail != nil {
		user.CorporateEmail = strings.ToLower(strings.TrimSpace(*params.CorporateEmail))
	}
	if params.Phone != nil {
		user.Phone = strings.TrimSpace(*params.Phone)
	}
	if params.CargoID != nil {
		user.CargoID = params.CargoID
	}
	if params.AvatarURL != nil {
		user.AvatarURL = strings.TrimSpace(*params.AvatarURL)
	}
	if params.SuperAdmin != nil {
		user.SuperAdmin = *params.SuperAdmin
	}

	updated, err := s.repo.Update(ctx, user)
	if err != nil {
		return User{}, err
	}
	if s.perms != nil {
		s.perms.InvalidateUser(ctx, id)
	}
	s.recordAudit(ctx, actingUserID, shared.AuditUserUpdated, id, nil)
	return updated, nil
}

// PreviewDeactivation reports how many records would be unassigned if the
// user were deactivated now, without changing anything.
func (s *Service) PreviewDeactivation(ctx context.Context, id int64) (DeactivationCounts, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return DeactivationCounts{}, err
	}
	return s.repo.CountAssignments(ctx, id)
}

// Deactivate unassigns every business record naming the user as
// responsible and flips the active flag, atomically. Deactivating an
// already-inactive user is a no-op returning zero counts.
func (s *Service) Deactivate(ctx context.Context, id, actingUserID int64) (DeactivationCounts, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return DeactivationCounts{}, err
	}

	counts, changed, err := s.repo.DeactivateCascade(ctx, id)
	if err != nil {
		return DeactivationCounts{}, err
	}
	if !changed {
		return counts, nil
	}

	if s.perms != nil {
		s.perms.InvalidateUser(ctx, id)
	}
	if s.sessions != nil && user.AuthUserID != "" {
		if err := s.sessions.EnqueueSessionRevoke(ctx, user.AuthUserID); err != nil && s.logger != nil {
			s.logger.Warn("enqueue session revoke", slog.Int64("user_id", id), slog.Any("error", err))
		}
	}
	s.recordAudit(ctx, actingUserID, shared.AuditUserDeactivated, id, map[string]any{
		"processos":           counts.Processos,
		"audiencias":          counts.Audiencias,
		"pendentes":           counts.Pendentes,
		"expedientes_manuais": counts.ExpedientesManuais,
		"contratos":           counts.Contratos,
	})
	return counts, nil
}

// Reactivate flips the active flag back on. Records unassigned during
// deactivation are not restored.
func (s *Service) Reactivate(ctx context.Context, id, actingUserID int64) error {
	if err := s.repo.Reactivate(ctx, id); err != nil {
		return err
	}
	if s.perms != nil {
		s.perms.InvalidateUser(ctx, id)
	}
	s.recordAudit(ctx, actingUserID, shared.AuditUserReactivated, id, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, targetID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "usuarios",
		EntityID: strconv.FormatInt(targetID, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}

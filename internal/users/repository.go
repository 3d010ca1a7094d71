package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/jurisdesk/jurisdesk/internal/platform/db"
	"github.com/jurisdesk/jurisdesk/internal/shared"
)

// unique_violation per PostgreSQL SQLSTATE.
const pgUniqueViolation = "23505"

// assignableKinds maps every business table carrying a responsavel_id
// foreign key to the count key reported back to the caller.
var assignableKinds = []struct {
	kind  string
	table string
}{
	{"processos", "acervo"},
	{"audiencias", "audiencias"},
	{"pendentes", "expedientes"},
	{"expedientes_manuais", "expedientes_manuais"},
	{"contratos", "contratos"},
}

const userColumns = `id, auth_user_id, nome_completo, nome_exibicao, cpf, oab, uf_oab, email_pessoal, email_corporativo, telefone, cargo_id, avatar_url, is_super_admin, ativo, created_at, updated_at`

// Repository provides PostgreSQL backed persistence for users.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByID fetches a user by primary key.
func (r *Repository) FindByID(ctx context.Context, id int64) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM usuarios WHERE id = $1`, id)
	return scanUser(row)
}

// FindByCorporateEmail fetches a user by corporate email.
func (r *Repository) FindByCorporateEmail(ctx context.Context, email string) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM usuarios WHERE email_corporativo = $1`, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

// List returns a filtered, paginated page of users ordered by creation.
func (r *Repository) List(ctx context.Context, params ListParams) (ListResult, error) {
	page := params.Page
	if page <= 0 {
		page = 1
	}
	limit := params.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	where := []string{"TRUE"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		p := arg(pattern)
		// unaccent on the stored side, diacritic folding of the input on
		// the service side; together the search is accent-insensitive.
		where = append(where, fmt.Sprintf("(unaccent(nome_completo) ILIKE %s OR unaccent(nome_exibicao) ILIKE %s OR cpf ILIKE %s OR email_corporativo ILIKE %s)", p, p, p, p))
	}
	if params.Active != nil {
		where = append(where, "ativo = "+arg(*params.Active))
	}
	if params.CargoID > 0 {
		where = append(where, "cargo_id = "+arg(params.CargoID))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM usuarios WHERE `+cond, args...).Scan(&total); err != nil {
		return ListResult{}, fmt.Errorf("users: count: %w", errors.Join(shared.ErrStore, err))
	}

	offset := (page - 1) * limit
	query := fmt.Sprintf(`SELECT %s FROM usuarios WHERE %s ORDER BY created_at DESC LIMIT %s OFFSET %s`, userColumns, cond, arg(limit), arg(offset))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return ListResult{}, fmt.Errorf("users: list: %w", errors.Join(shared.ErrStore, err))
	}
	defer rows.Close()

	var list []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return ListResult{}, err
		}
		list = append(list, user)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, fmt.Errorf("users: list: %w", errors.Join(shared.ErrStore, err))
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return ListResult{Users: list, Total: total, Page: page, Limit: limit, TotalPages: totalPages}, nil
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, user User) (User, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO usuarios (auth_user_id, nome_completo, nome_exibicao, cpf, oab, uf_oab, email_pessoal, email_corporativo, telefone, cargo_id, avatar_url, is_super_admin, ativo)
		VALUES (NULLIF($1, ''), $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8, NULLIF($9, ''), $10, NULLIF($11, ''), $12, $13)
		RETURNING `+userColumns,
		user.AuthUserID, user.FullName, user.DisplayName, user.CPF, user.OAB, user.OABState,
		user.PersonalEmail, user.CorporateEmail, user.Phone, user.CargoID, user.AvatarURL,
		user.SuperAdmin, user.Active)
	created, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return User{}, fmt.Errorf("users: cpf or email already registered: %w", shared.ErrValidation)
		}
		return User{}, err
	}
	return created, nil
}

// Update applies profile changes and returns the stored row.
func (r *Repository) Update(ctx context.Context, user User) (User, error) {
	row := r.pool.QueryRow(ctx, `UPDATE usuarios SET
			nome_completo = $2, nome_exibicao = $3, cpf = $4, oab = NULLIF($5, ''), uf_oab = NULLIF($6, ''),
			email_pessoal = NULLIF($7, ''), email_corporativo = $8, telefone = NULLIF($9, ''),
			cargo_id = $10, avatar_url = NULLIF($11, ''), is_super_admin = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING `+userColumns,
		user.ID, user.FullName, user.DisplayName, user.CPF, user.OAB, user.OABState,
		user.PersonalEmail, user.CorporateEmail, user.Phone, user.CargoID, user.AvatarURL,
		user.SuperAdmin)
	updated, err := scanUser(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return User{}, fmt.Errorf("users: cpf or email already registered: %w", shared.ErrValidation)
		}
		return User{}, err
	}
	return updated, nil
}

// CountAssignments counts, per entity kind, how many records currently
// name the user as responsible. The per-kind counts are independent
// read-only queries, so they run concurrently.
func (r *Repository) CountAssignments(ctx context.Context, userID int64) (DeactivationCounts, error) {
	var counts DeactivationCounts
	targets := map[string]*int64{
		"processos":           &counts.Processos,
		"audiencias":          &counts.Audiencias,
		"pendentes":           &counts.Pendentes,
		"expedientes_manuais": &counts.ExpedientesManuais,
		"contratos":           &counts.Contratos,
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, k := range assignableKinds {
		dest := targets[k.kind]
		query := `SELECT COUNT(*) FROM ` + k.table + ` WHERE responsavel_id = $1`
		g.Go(func() error {
			return r.pool.QueryRow(ctx, query, userID).Scan(dest)
		})
	}
	if err := g.Wait(); err != nil {
		return DeactivationCounts{}, fmt.Errorf("users: count assignments: %w", errors.Join(shared.ErrStore, err))
	}
	return counts, nil
}

// DeactivateCascade atomically unassigns every business record naming the
// user as responsible and flips the active flag, inside one transaction.
// The boolean result is false when the user was already inactive, in which
// case nothing was touched and all counts are zero.
func (r *Repository) DeactivateCascade(ctx context.Context, userID int64) (DeactivationCounts, bool, error) {
	var counts DeactivationCounts
	var changed bool

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		// Lock the user row so concurrent deactivations serialize; the
		// second caller observes ativo=false and short-circuits.
		var active bool
		if err := tx.QueryRow(ctx, `SELECT ativo FROM usuarios WHERE id = $1 FOR UPDATE`, userID).Scan(&active); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		if !active {
			return nil
		}

		targets := map[string]*int64{
			"processos":           &counts.Processos,
			"audiencias":          &counts.Audiencias,
			"pendentes":           &counts.Pendentes,
			"expedientes_manuais": &counts.ExpedientesManuais,
			"contratos":           &counts.Contratos,
		}
		for _, k := range assignableKinds {
			tag, err := tx.Exec(ctx, `UPDATE `+k.table+` SET responsavel_id = NULL WHERE responsavel_id = $1`, userID)
			if err != nil {
				return err
			}
			*targets[k.kind] = tag.RowsAffected()
		}

		if _, err := tx.Exec(ctx, `UPDATE usuarios SET ativo = FALSE, updated_at = NOW() WHERE id = $1`, userID); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return DeactivationCounts{}, false, err
		}
		return DeactivationCounts{}, false, fmt.Errorf("users: deactivate cascade: %w", errors.Join(shared.ErrStore, err))
	}
	return counts, changed, nil
}

// Reactivate flips the active flag back on. No reverse cascade: records
// unassigned during deactivation stay unassigned.
func (r *Repository) Reactivate(ctx context.Context, userID int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE usuarios SET ativo = TRUE, updated_at = NOW() WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("users: reactivate: %w", errors.Join(shared.ErrStore, err))
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	var authID, oab, ufOab, personalEmail, phone, avatarURL *string
	var cargoID *int64
	err := row.Scan(&user.ID, &authID, &user.FullName, &user.DisplayName, &user.CPF,
		&oab, &ufOab, &personalEmail, &user.CorporateEmail, &phone, &cargoID,
		&avatarURL, &user.SuperAdmin, &user.Active, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, fmt.Errorf("users: scan: %w", errors.Join(shared.ErrStore, err))
	}
	if authID != nil {
		user.AuthUserID = *authID
	}
	if oab != nil {
		user.OAB = *oab
	}
	if ufOab != nil {
		user.OABState = *ufOab
	}
	if personalEmail != nil {
		user.PersonalEmail = *personalEmail
	}
	if phone != nil {
		user.Phone = *phone
	}
	if avatarURL != nil {
		user.AvatarURL = *avatarURL
	}
	user.CargoID = cargoID
	return user, nil
}

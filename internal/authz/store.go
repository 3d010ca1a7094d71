package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"github.com/jurisdesk/jurisdesk/internal/platform/db"
	"github.com/jurisdesk/jurisdesk/internal/shared"
)

const (
	permsCacheTTL    = 30 * time.Minute
	permsCachePrefix = "permissoes:usuario:"
)

// foreign_key_violation per PostgreSQL SQLSTATE.
const pgFKViolation = "23503"

// Store persists permission grants and resolves the super-admin flag.
// Reads go through a per-user Redis cache with a bounded TTL; writes
// invalidate it. A nil cache client degrades to direct reads.
type Store struct {
	pool    db.Querier
	cache   *redis.Client
	catalog *Catalog
	audit   shared.AuditRecorder
	logger  *slog.Logger
}

// NewStore constructs a Store. audit may be nil when no sink is configured.
func NewStore(pool db.Querier, cache *redis.Client, catalog *Catalog, audit shared.AuditRecorder, logger *slog.Logger) *Store {
	return &Store{pool: pool, cache: cache, catalog: catalog, audit: audit, logger: logger}
}

type cachedPerms struct {
	SuperAdmin bool             `json:"superAdmin"`
	Grants     map[string]*bool `json:"grants"`
}

// ListGrants returns every stored grant row for the user, true and false
// alike. An empty result is not an error: new users have no grants.
func (s *Store) ListGrants(ctx context.Context, userID int64) ([]Grant, error) {
	rows, err := s.pool.Query(ctx, `SELECT usuario_id, recurso, operacao, permitido FROM permissoes WHERE usuario_id = $1 ORDER BY recurso, operacao`, userID)
	if err != nil {
		return nil, fmt.Errorf("authz: list grants: %w", errors.Join(shared.ErrStore, err))
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		var g Grant
		if err := rows.Scan(&g.UserID, &g.Resource, &g.Operation, &g.Allowed); err != nil {
			return nil, fmt.Errorf("authz: scan grant: %w", errors.Join(shared.ErrStore, err))
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("authz: list grants: %w", errors.Join(shared.ErrStore, err))
	}
	return grants, nil
}

// ReplaceGrants replaces the user's entire grant set in one transaction.
// Any previously stored grant absent from the incoming set is revoked.
// A single catalog-invalid pair rejects the whole call before any write.
// Only allowed=true rows are persisted; absence means denied.
func (s *Store) ReplaceGrants(ctx context.Context, userID int64, grants []Grant, actingUserID int64) error {
	keep := make([]Grant, 0, len(grants))
	seen := make(map[Capability]struct{}, len(grants))
	for _, g := range grants {
		if !s.catalog.IsValidOperation(g.Resource, g.Operation) {
			return fmt.Errorf("authz: unknown permission %s:%s: %w", g.Resource, g.Operation, shared.ErrValidation)
		}
		if _, dup := seen[g.Capability()]; dup {
			continue
		}
		seen[g.Capability()] = struct{}{}
		if g.Allowed {
			keep = append(keep, g)
		}
	}

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM permissoes WHERE usuario_id = $1`, userID); err != nil {
			return err
		}
		for _, g := range keep {
			if _, err := tx.Exec(ctx, `INSERT INTO permissoes (usuario_id, recurso, operacao, permitido) VALUES ($1, $2, $3, TRUE)`, userID, g.Resource, g.Operation); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgFKViolation {
			return fmt.Errorf("authz: replace grants for missing user %d: %w", userID, shared.ErrNotFound)
		}
		return fmt.Errorf("authz: replace grants: %w", errors.Join(shared.ErrStore, err))
	}

	s.invalidateUser(ctx, userID)
	s.recordAudit(ctx, shared.AuditLog{
		ActorID:  actingUserID,
		Action:   shared.AuditPermissionsReplaced,
		Entity:   "usuarios",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     map[string]any{"permissoes_ativas": len(keep)},
	})
	return nil
}

// IsSuperAdmin reports the user's super-admin override flag.
func (s *Store) IsSuperAdmin(ctx context.Context, userID int64) (bool, error) {
	perms, err := s.loadPerms(ctx, userID)
	if err != nil {
		return false, err
	}
	return perms.SuperAdmin, nil
}

// GrantState resolves one capability to its tri-state grant status.
func (s *Store) GrantState(ctx context.Context, userID int64, resource, operation string) (GrantState, error) {
	perms, err := s.loadPerms(ctx, userID)
	if err != nil {
		return NoRecord, err
	}
	allowed, ok := perms.Grants[Capability{Resource: resource, Operation: operation}.String()]
	if !ok || allowed == nil {
		return NoRecord, nil
	}
	if *allowed {
		return Granted, nil
	}
	return Denied, nil
}

// FindActiveByAuthID maps the opaque auth principal to the internal user,
// requiring ativo=true. Deactivated users fail here even while their
// session is still technically alive.
func (s *Store) FindActiveByAuthID(ctx context.Context, authID string) (UserRef, error) {
	var ref UserRef
	err := s.pool.QueryRow(ctx, `SELECT id, is_super_admin FROM usuarios WHERE auth_user_id = $1 AND ativo = TRUE`, authID).Scan(&ref.ID, &ref.SuperAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserRef{}, shared.ErrUserNotFound
		}
		return UserRef{}, fmt.Errorf("authz: resolve principal: %w", errors.Join(shared.ErrStore, err))
	}
	return ref, nil
}

// InvalidateUser drops the user's cached permission snapshot. Exposed as
// the cache-invalidation hook the lifecycle manager calls on deactivation.
func (s *Store) InvalidateUser(ctx context.Context, userID int64) {
	s.invalidateUser(ctx, userID)
}

func (s *Store) loadPerms(ctx context.Context, userID int64) (cachedPerms, error) {
	key := permsCachePrefix + strconv.FormatInt(userID, 10)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, key).Bytes(); err == nil {
			var cached cachedPerms
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	perms := cachedPerms{Grants: make(map[string]*bool)}
	err := s.pool.QueryRow(ctx, `SELECT is_super_admin FROM usuarios WHERE id = $1`, userID).Scan(&perms.SuperAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// The id here names the target user being inspected, not the
			// calling principal, so a missing row is NotFound rather than
			// UserNotFound. The gate resolves its principal before ever
			// reaching this lookup.
			return cachedPerms{}, fmt.Errorf("authz: permissions for missing user %d: %w", userID, shared.ErrNotFound)
		}
		return cachedPerms{}, fmt.Errorf("authz: load super admin: %w", errors.Join(shared.ErrStore, err))
	}

	grants, err := s.ListGrants(ctx, userID)
	if err != nil {
		return cachedPerms{}, err
	}
	for _, g := range grants {
		allowed := g.Allowed
		perms.Grants[g.Capability().String()] = &allowed
	}

	if s.cache != nil {
		if data, err := json.Marshal(perms); err == nil {
			if err := s.cache.Set(ctx, key, data, permsCacheTTL).Err(); err != nil && s.logger != nil {
				s.logger.Warn("authz: cache permissions", slog.Int64("user_id", userID), slog.Any("error", err))
			}
		}
	}
	return perms, nil
}

func (s *Store) invalidateUser(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	key := permsCachePrefix + strconv.FormatInt(userID, 10)
	if err := s.cache.Del(ctx, key).Err(); err != nil && !errors.Is(err, redis.Nil) && s.logger != nil {
		s.logger.Warn("authz: invalidate permission cache", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}

func (s *Store) recordAudit(ctx context.Context, log shared.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, log); err != nil && s.logger != nil {
		s.logger.Warn("authz: record audit", slog.String("action", log.Action), slog.Any("error", err))
	}
}

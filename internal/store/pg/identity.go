package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"storegrid.io/internal/auth"
)

var _ auth.ServiceStore = (*Store)(nil)

const trialDays = 14

const userColumns = `id, email, password_hash, full_name, is_active, email_verified, email_verified_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (auth.User, error) {
	var (
		u        auth.User
		fullName sql.NullString
		verified sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &fullName, &u.IsActive, &u.EmailVerified, &verified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return auth.User{}, err
	}
	if fullName.Valid {
		u.FullName = fullName.String
	}
	if verified.Valid {
		t := verified.Time
		u.VerifiedAt = &t
	}
	return u, nil
}

func (s *Store) UserByID(ctx context.Context, id uuid.UUID) (auth.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	return user, err
}

func (s *Store) UserByEmail(ctx context.Context, email string) (auth.User, error) {
	user, err := scanUser(s.db.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where email = $1
	`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	return user, err
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `select count(*) from users`).Scan(&count)
	return count, err
}

func scanTenant(row rowScanner) (auth.Tenant, error) {
	var (
		t       auth.Tenant
		trial   sql.NullTime
		deleted sql.NullTime
	)
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Status, &trial, &deleted, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return auth.Tenant{}, err
	}
	if trial.Valid {
		v := trial.Time
		t.TrialEndsAt = &v
	}
	if deleted.Valid {
		v := deleted.Time
		t.DeletedAt = &v
	}
	return t, nil
}

const tenantColumns = `id, name, slug, status, trial_ends_at, deleted_at, created_at, updated_at`

func (s *Store) TenantByID(ctx context.Context, id uuid.UUID) (auth.Tenant, error) {
	tenant, err := scanTenant(s.db.QueryRowContext(ctx, `
		select `+tenantColumns+`
		from tenants
		where id = $1
	`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Tenant{}, auth.ErrNotFound
	}
	return tenant, err
}

func (s *Store) Membership(ctx context.Context, userID, tenantID uuid.UUID) (auth.Membership, error) {
	var (
		m       auth.Membership
		invited uuid.NullUUID
	)
	err := s.db.QueryRowContext(ctx, `
		select user_id, tenant_id, joined_at, invited_by
		from tenant_users
		where user_id = $1 and tenant_id = $2
	`, userID, tenantID).Scan(&m.UserID, &m.TenantID, &m.JoinedAt, &invited)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Membership{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Membership{}, err
	}
	if invited.Valid {
		v := invited.UUID
		m.InvitedBy = &v
	}
	return m, nil
}

const storeColumns = `id, tenant_id, name, is_active, deleted_at, created_at, updated_at`

func scanStore(row rowScanner) (auth.Store, error) {
	var (
		st      auth.Store
		deleted sql.NullTime
	)
	err := row.Scan(&st.ID, &st.TenantID, &st.Name, &st.IsActive, &deleted, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return auth.Store{}, err
	}
	if deleted.Valid {
		v := deleted.Time
		st.DeletedAt = &v
	}
	return st, nil
}

func (s *Store) StoreByID(ctx context.Context, tenantID, storeID uuid.UUID) (auth.Store, error) {
	store, err := scanStore(s.db.QueryRowContext(ctx, `
		select `+storeColumns+`
		from stores
		where id = $1 and tenant_id = $2 and deleted_at is null
	`, storeID, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Store{}, auth.ErrNotFound
	}
	return store, err
}

func (s *Store) StoreAssignment(ctx context.Context, userID, storeID, tenantID uuid.UUID) (auth.StoreAssignment, error) {
	var a auth.StoreAssignment
	err := s.db.QueryRowContext(ctx, `
		select user_id, store_id, tenant_id, created_at
		from store_users
		where user_id = $1 and store_id = $2 and tenant_id = $3
	`, userID, storeID, tenantID).Scan(&a.UserID, &a.StoreID, &a.TenantID, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.StoreAssignment{}, auth.ErrNotFound
	}
	return a, err
}

// CreateAccount provisions user, trial tenant, membership, default roles
// and the Owner assignment in one transaction.
func (s *Store) CreateAccount(ctx context.Context, setup auth.AccountSetup) (auth.User, auth.Tenant, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.User{}, auth.Tenant{}, err
	}
	defer func() { _ = tx.Rollback() }()

	user, err := scanUser(tx.QueryRowContext(ctx, `
		insert into users (id, email, password_hash, full_name, is_active, email_verified)
		values ($1, $2, $3, $4, true, false)
		returning `+userColumns+`
	`, uuid.New(), setup.Email, setup.PasswordHash, nullIfEmpty(setup.FullName)))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.User{}, auth.Tenant{}, fmt.Errorf("%w: email already registered", auth.ErrConflict)
		}
		return auth.User{}, auth.Tenant{}, err
	}

	tenant, err := scanTenant(tx.QueryRowContext(ctx, `
		insert into tenants (id, name, slug, status, trial_ends_at)
		values ($1, $2, $3, $4, now() + make_interval(days => $5))
		returning `+tenantColumns+`
	`, uuid.New(), setup.TenantName, setup.TenantSlug, auth.TenantTrial, trialDays))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return auth.User{}, auth.Tenant{}, fmt.Errorf("%w: tenant slug already taken", auth.ErrConflict)
		}
		return auth.User{}, auth.Tenant{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		insert into tenant_users (user_id, tenant_id)
		values ($1, $2)
	`, user.ID, tenant.ID); err != nil {
		return auth.User{}, auth.Tenant{}, err
	}

	ownerRoleID, err := seedDefaultRoles(ctx, tx, tenant.ID)
	if err != nil {
		return auth.User{}, auth.Tenant{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		insert into user_roles (user_id, role_id, tenant_id, store_id, assigned_by)
		values ($1, $2, $3, null, $1)
	`, user.ID, ownerRoleID, tenant.ID); err != nil {
		return auth.User{}, auth.Tenant{}, err
	}

	if err := tx.Commit(); err != nil {
		return auth.User{}, auth.Tenant{}, err
	}
	return user, tenant, nil
}

// seedDefaultRoles creates the system role set for a new tenant and returns
// the Owner role id.
func seedDefaultRoles(ctx context.Context, tx *sql.Tx, tenantID uuid.UUID) (uuid.UUID, error) {
	var ownerID uuid.UUID
	for _, def := range auth.DefaultRoles() {
		roleID := uuid.New()
		if _, err := tx.ExecContext(ctx, `
			insert into roles (id, tenant_id, name, description, is_system_role)
			values ($1, $2, $3, $4, $5)
		`, roleID, tenantID, def.Name, nullIfEmpty(def.Description), def.System); err != nil {
			return uuid.Nil, fmt.Errorf("seed role %s: %w", def.Name, err)
		}
		for _, perm := range def.Permissions {
			if _, err := tx.ExecContext(ctx, `
				insert into role_permissions (role_id, permission_id)
				select $1, id from permissions where name = $2
			`, roleID, perm); err != nil {
				return uuid.Nil, fmt.Errorf("grant %s to %s: %w", perm, def.Name, err)
			}
		}
		if def.Name == "Owner" {
			ownerID = roleID
		}
	}
	if ownerID == uuid.Nil {
		return uuid.Nil, errors.New("default role set has no Owner")
	}
	return ownerID, nil
}

func (s *Store) UpdateTenant(ctx context.Context, id uuid.UUID, upd auth.TenantUpdate) (auth.Tenant, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Status != nil {
		sets = append(sets, fmt.Sprintf("status = $%d", idx))
		args = append(args, *upd.Status)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update tenants set %s where id = $%d and deleted_at is null`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return auth.Tenant{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return auth.Tenant{}, err
		}
		if aff == 0 {
			return auth.Tenant{}, auth.ErrNotFound
		}
	}
	return s.TenantByID(ctx, id)
}

// SoftDeleteTenant marks the tenant deleted and forces status to canceled
// in the same statement so the two can never disagree.
func (s *Store) SoftDeleteTenant(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		update tenants
		set deleted_at = now(), status = $2, updated_at = now()
		where id = $1 and deleted_at is null
	`, id, auth.TenantCanceled)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *Store) CreateStore(ctx context.Context, tenantID uuid.UUID, name string) (auth.Store, error) {
	store, err := scanStore(s.db.QueryRowContext(ctx, `
		insert into stores (id, tenant_id, name, is_active)
		values ($1, $2, $3, true)
		returning `+storeColumns+`
	`, uuid.New(), tenantID, name))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.Store{}, auth.ErrConflict
			case pgErrForeignKeyViolation:
				return auth.Store{}, auth.ErrNotFound
			}
		}
		return auth.Store{}, err
	}
	return store, nil
}

func (s *Store) ListStores(ctx context.Context, tenantID uuid.UUID) ([]auth.Store, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+storeColumns+`
		from stores
		where tenant_id = $1 and deleted_at is null
		order by name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stores []auth.Store
	for rows.Next() {
		store, err := scanStore(rows)
		if err != nil {
			return nil, err
		}
		stores = append(stores, store)
	}
	return stores, rows.Err()
}

func (s *Store) UpdateStore(ctx context.Context, tenantID, storeID uuid.UUID, upd auth.StoreUpdate) (auth.Store, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.IsActive != nil {
		sets = append(sets, fmt.Sprintf("is_active = $%d", idx))
		args = append(args, *upd.IsActive)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update stores set %s where id = $%d and tenant_id = $%d and deleted_at is null`,
			strings.Join(sets, ", "), idx, idx+1)
		args = append(args, storeID, tenantID)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return auth.Store{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return auth.Store{}, err
		}
		if aff == 0 {
			return auth.Store{}, auth.ErrNotFound
		}
	}
	return s.StoreByID(ctx, tenantID, storeID)
}

func (s *Store) SoftDeleteStore(ctx context.Context, tenantID, storeID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		update stores
		set deleted_at = now(), is_active = false, updated_at = now()
		where id = $1 and tenant_id = $2 and deleted_at is null
	`, storeID, tenantID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *Store) AssignUserToStore(ctx context.Context, tenantID, storeID, userID uuid.UUID) (auth.StoreAssignment, error) {
	var a auth.StoreAssignment
	err := s.db.QueryRowContext(ctx, `
		insert into store_users (user_id, store_id, tenant_id)
		values ($1, $2, $3)
		returning user_id, store_id, tenant_id, created_at
	`, userID, storeID, tenantID).Scan(&a.UserID, &a.StoreID, &a.TenantID, &a.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.StoreAssignment{}, auth.ErrConflict
			case pgErrForeignKeyViolation:
				return auth.StoreAssignment{}, auth.ErrNotFound
			}
		}
		return auth.StoreAssignment{}, err
	}
	return a, nil
}

func (s *Store) RemoveUserFromStore(ctx context.Context, tenantID, storeID, userID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `
		delete from store_users
		where user_id = $1 and store_id = $2 and tenant_id = $3
	`, userID, storeID, tenantID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return auth.ErrNotFound
	}
	return nil
}

func (s *Store) ListTenantUsers(ctx context.Context, tenantID uuid.UUID) ([]auth.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		select u.id, u.email, u.password_hash, u.full_name, u.is_active, u.email_verified, u.email_verified_at, u.created_at, u.updated_at
		from users u
		join tenant_users tu on tu.user_id = u.id
		where tu.tenant_id = $1
		order by u.email
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"storegrid.io/internal/auth"
	"storegrid.io/internal/rbac"
)

var (
	_ auth.GrantStore = (*Store)(nil)
	_ rbac.Store      = (*Store)(nil)
)

// AssignedRoleIDs returns the role ids granted to the user in the tenant.
// Tenant-wide rows (store_id is null) always apply; rows scoped to a store
// apply only when that exact store is selected.
func (s *Store) AssignedRoleIDs(ctx context.Context, userID, tenantID uuid.UUID, storeID *uuid.UUID) ([]uuid.UUID, error) {
	query := `
		select distinct role_id
		from user_roles
		where user_id = $1 and tenant_id = $2 and store_id is null
	`
	args := []any{userID, tenantID}
	if storeID != nil {
		query = `
			select distinct role_id
			from user_roles
			where user_id = $1 and tenant_id = $2
			  and (store_id is null or store_id = $3)
		`
		args = append(args, *storeID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) RolePermissionNames(ctx context.Context, roleIDs []uuid.UUID) ([]string, error) {
	if len(roleIDs) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(roleIDs))
	args := make([]any, len(roleIDs))
	for i, id := range roleIDs {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := fmt.Sprintf(`
		select distinct p.name
		from role_permissions rp
		join permissions p on p.id = rp.permission_id
		where rp.role_id in (%s)
	`, strings.Join(placeholders, ", "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

const roleColumns = `id, tenant_id, name, description, is_system_role, created_at, updated_at`

func scanRole(row rowScanner) (auth.Role, error) {
	var (
		role auth.Role
		desc sql.NullString
	)
	err := row.Scan(&role.ID, &role.TenantID, &role.Name, &desc, &role.IsSystemRole, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return auth.Role{}, err
	}
	if desc.Valid {
		role.Description = desc.String
	}
	return role, nil
}

func (s *Store) CreateRole(ctx context.Context, tenantID uuid.UUID, name, description string, system bool) (auth.Role, error) {
	role, err := scanRole(s.db.QueryRowContext(ctx, `
		insert into roles (id, tenant_id, name, description, is_system_role)
		values ($1, $2, $3, $4, $5)
		returning `+roleColumns+`
	`, uuid.New(), tenantID, name, nullIfEmpty(description), system))
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.Role{}, auth.ErrConflict
			case pgErrForeignKeyViolation:
				return auth.Role{}, auth.ErrNotFound
			}
		}
		return auth.Role{}, err
	}
	return role, nil
}

func (s *Store) ListRoles(ctx context.Context, tenantID uuid.UUID) ([]auth.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		select `+roleColumns+`
		from roles
		where tenant_id = $1
		order by name
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []auth.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (s *Store) GetRole(ctx context.Context, tenantID, roleID uuid.UUID) (auth.Role, error) {
	role, err := scanRole(s.db.QueryRowContext(ctx, `
		select `+roleColumns+`
		from roles
		where id = $1 and tenant_id = $2
	`, roleID, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, auth.ErrNotFound
	}
	return role, err
}

func (s *Store) UpdateRole(ctx context.Context, roleID uuid.UUID, upd auth.RoleUpdate) (auth.Role, error) {
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
	if upd.Description != nil {
		if *upd.Description == "" {
			sets = append(sets, "description = null")
		} else {
			sets = append(sets, fmt.Sprintf("description = $%d", idx))
			args = append(args, *upd.Description)
			idx++
		}
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update roles set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, roleID)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return auth.Role{}, auth.ErrConflict
			}
			return auth.Role{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return auth.Role{}, err
		}
		if aff == 0 {
			return auth.Role{}, auth.ErrNotFound
		}
	}
	return s.roleByID(ctx, roleID)
}

func (s *Store) roleByID(ctx context.Context, roleID uuid.UUID) (auth.Role, error) {
	role, err := scanRole(s.db.QueryRowContext(ctx, `
		select `+roleColumns+`
		from roles
		where id = $1
	`, roleID))
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Role{}, auth.ErrNotFound
	}
	return role, err
}

func (s *Store) DeleteRole(ctx context.Context, roleID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `delete from roles where id = $1`, roleID)
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

// SetRolePermissions replaces the role's grants inside one transaction.
func (s *Store) SetRolePermissions(ctx context.Context, roleID uuid.UUID, names []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `select 1 from roles where id = $1`, roleID).Scan(&exists); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.ErrNotFound
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, `delete from role_permissions where role_id = $1`, roleID); err != nil {
		return err
	}
	for _, name := range names {
		var permID uuid.UUID
		err := tx.QueryRowContext(ctx, `select id from permissions where name = $1`, name).Scan(&permID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: permission %s not found", auth.ErrNotFound, name)
			}
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			insert into role_permissions (role_id, permission_id)
			values ($1, $2)
		`, roleID, permID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) RolePermissions(ctx context.Context, roleID uuid.UUID) ([]string, error) {
	return s.RolePermissionNames(ctx, []uuid.UUID{roleID})
}

func (s *Store) ListPermissions(ctx context.Context) ([]auth.Permission, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, resource, action, description
		from permissions
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perms []auth.Permission
	for rows.Next() {
		var (
			p    auth.Permission
			desc sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Resource, &p.Action, &desc); err != nil {
			return nil, err
		}
		if desc.Valid {
			p.Description = desc.String
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

func (s *Store) CreateAssignment(ctx context.Context, a auth.RoleAssignment) (auth.RoleAssignment, error) {
	var (
		out     auth.RoleAssignment
		storeID uuid.NullUUID
		by      uuid.NullUUID
	)
	if a.StoreID != nil {
		storeID = uuid.NullUUID{UUID: *a.StoreID, Valid: true}
	}
	if a.AssignedBy != nil {
		by = uuid.NullUUID{UUID: *a.AssignedBy, Valid: true}
	}
	err := s.db.QueryRowContext(ctx, `
		insert into user_roles (user_id, role_id, tenant_id, store_id, assigned_by)
		values ($1, $2, $3, $4, $5)
		returning user_id, role_id, tenant_id, store_id, assigned_at, assigned_by
	`, a.UserID, a.RoleID, a.TenantID, storeID, by).
		Scan(&out.UserID, &out.RoleID, &out.TenantID, &storeID, &out.AssignedAt, &by)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok {
			switch pgErr.Code {
			case pgErrUniqueViolation:
				return auth.RoleAssignment{}, auth.ErrConflict
			case pgErrForeignKeyViolation:
				return auth.RoleAssignment{}, auth.ErrNotFound
			}
		}
		return auth.RoleAssignment{}, err
	}
	if storeID.Valid {
		v := storeID.UUID
		out.StoreID = &v
	}
	if by.Valid {
		v := by.UUID
		out.AssignedBy = &v
	}
	return out, nil
}

func (s *Store) DeleteAssignment(ctx context.Context, userID, roleID uuid.UUID, storeID *uuid.UUID) error {
	query := `
		delete from user_roles
		where user_id = $1 and role_id = $2 and store_id is null
	`
	args := []any{userID, roleID}
	if storeID != nil {
		query = `
			delete from user_roles
			where user_id = $1 and role_id = $2 and store_id = $3
		`
		args = append(args, *storeID)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
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

func (s *Store) ListAssignments(ctx context.Context, tenantID, userID uuid.UUID) ([]auth.RoleAssignment, error) {
	rows, err := s.db.QueryContext(ctx, `
		select user_id, role_id, tenant_id, store_id, assigned_at, assigned_by
		from user_roles
		where tenant_id = $1 and user_id = $2
		order by assigned_at
	`, tenantID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []auth.RoleAssignment
	for rows.Next() {
		var (
			a       auth.RoleAssignment
			storeID uuid.NullUUID
			by      uuid.NullUUID
		)
		if err := rows.Scan(&a.UserID, &a.RoleID, &a.TenantID, &storeID, &a.AssignedAt, &by); err != nil {
			return nil, err
		}
		if storeID.Valid {
			v := storeID.UUID
			a.StoreID = &v
		}
		if by.Valid {
			v := by.UUID
			a.AssignedBy = &v
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

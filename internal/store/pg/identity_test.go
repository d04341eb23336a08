package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"storegrid.io/internal/auth"
)

func userRow(id uuid.UUID, email string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "email", "password_hash", "full_name", "is_active",
		"email_verified", "email_verified_at", "created_at", "updated_at",
	}).AddRow(id.String(), email, "$2a$10$hash", nil, true, false, nil, now, now)
}

func tenantRow(id uuid.UUID, slug string, status auth.TenantStatus, deleted *time.Time) *sqlmock.Rows {
	now := time.Now()
	var deletedAt any
	if deleted != nil {
		deletedAt = *deleted
	}
	return sqlmock.NewRows([]string{
		"id", "name", "slug", "status", "trial_ends_at", "deleted_at", "created_at", "updated_at",
	}).AddRow(id.String(), "Acme", slug, string(status), now.Add(14*24*time.Hour), deletedAt, now, now)
}

func TestUserByEmail(t *testing.T) {
	store, mock := newMockStore(t)
	userID := uuid.New()

	mock.ExpectQuery(`from users\s+where email = \$1`).
		WithArgs("owner@acme.test").
		WillReturnRows(userRow(userID, "owner@acme.test"))

	user, err := store.UserByEmail(context.Background(), "owner@acme.test")
	if err != nil {
		t.Fatalf("UserByEmail: %v", err)
	}
	if user.ID != userID || user.FullName != "" {
		t.Fatalf("user = %+v", user)
	}

	mock.ExpectQuery(`from users\s+where email = \$1`).
		WithArgs("nobody@acme.test").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	if _, err := store.UserByEmail(context.Background(), "nobody@acme.test"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("miss err = %v, want ErrNotFound", err)
	}
}

func TestUserByIDNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	userID := uuid.New()

	mock.ExpectQuery(`from users\s+where id = \$1`).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := store.UserByID(context.Background(), userID); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestTenantByIDCarriesDeletedAt(t *testing.T) {
	store, mock := newMockStore(t)
	tenantID := uuid.New()
	deleted := time.Now().UTC()

	mock.ExpectQuery(`from tenants\s+where id = \$1`).
		WithArgs(tenantID).
		WillReturnRows(tenantRow(tenantID, "acme", auth.TenantCanceled, &deleted))

	tenant, err := store.TenantByID(context.Background(), tenantID)
	if err != nil {
		t.Fatalf("TenantByID: %v", err)
	}
	if !tenant.Deleted() {
		t.Fatal("deleted_at must survive the scan")
	}
	if tenant.Status != auth.TenantCanceled {
		t.Fatalf("status = %q, want canceled", tenant.Status)
	}
}

func TestStoreByIDExcludesDeleted(t *testing.T) {
	store, mock := newMockStore(t)
	tenantID, storeID := uuid.New(), uuid.New()

	// The query itself filters deleted and foreign-tenant rows.
	mock.ExpectQuery(`where id = \$1 and tenant_id = \$2 and deleted_at is null`).
		WithArgs(storeID, tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := store.StoreByID(context.Background(), tenantID, storeID); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSoftDeleteTenantForcesCanceled(t *testing.T) {
	store, mock := newMockStore(t)
	tenantID := uuid.New()

	mock.ExpectExec(`set deleted_at = now\(\), status = \$2`).
		WithArgs(tenantID, string(auth.TenantCanceled)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.SoftDeleteTenant(context.Background(), tenantID); err != nil {
		t.Fatalf("SoftDeleteTenant: %v", err)
	}

	// Deleting twice hits no rows: the guard keeps the call from resurrecting
	// or re-stamping anything.
	mock.ExpectExec(`set deleted_at = now\(\), status = \$2`).
		WithArgs(tenantID, string(auth.TenantCanceled)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.SoftDeleteTenant(context.Background(), tenantID); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestCreateStoreMapsViolations(t *testing.T) {
	store, mock := newMockStore(t)
	tenantID := uuid.New()

	mock.ExpectQuery("insert into stores").
		WillReturnError(&pgconn.PgError{Code: pgErrForeignKeyViolation})
	if _, err := store.CreateStore(context.Background(), tenantID, "Main"); !errors.Is(err, auth.ErrNotFound) {
		t.Fatalf("fk err = %v, want ErrNotFound", err)
	}
}

func TestAssignUserToStoreConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into store_users").
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})
	_, err := store.AssignUserToStore(context.Background(), uuid.New(), uuid.New(), uuid.New())
	if !errors.Is(err, auth.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestCountUsers(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`select count\(\*\) from users`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(7)))

	count, err := store.CountUsers(context.Background())
	if err != nil {
		t.Fatalf("CountUsers: %v", err)
	}
	if count != 7 {
		t.Fatalf("count = %d, want 7", count)
	}
}

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	customErrors "github.com/Miraines/yuzedo/client-service/internal/domain/client/errors"
	"github.com/Miraines/yuzedo/client-service/internal/domain/client/model"
	"github.com/Miraines/yuzedo/client-service/internal/domain/client/repo"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&model.Account{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func newAccount(username, email, inn string) model.Account {
	return model.Account{
		Username:     username,
		Email:        email,
		PasswordHash: "h",
		INN:          inn,
		LegalAddress: "Moscow",
		Phone:        "+7999",
		ClientType:   model.ClientTypeIndividual,
		IsActive:     true,
	}
}

func TestPostgresAccountRepo_CRUD(t *testing.T) {
	r := NewPostgresAccountRepo(setupDB(t))
	ctx := context.Background()

	id, err := r.CreateAccount(ctx, newAccount("u", "u@e.com", "1234567890"))
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, id)

	got, err := r.GetAccountByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "u", got.Username)
	require.Equal(t, model.StatusPending, got.Status)
	require.True(t, got.IsActive)
	require.False(t, got.IsStaff)
	require.False(t, got.RegistrationDate.IsZero())

	got2, err := r.GetAccountByUsername(ctx, "u")
	require.NoError(t, err)
	require.Equal(t, id, got2.ID)

	got.FirstName = "Ivan"
	got.Status = model.StatusActive
	require.NoError(t, r.UpdateAccount(ctx, got))

	got3, err := r.GetAccountByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "Ivan", got3.FirstName)
	require.True(t, got3.IsVerified())

	_, err = r.GetAccountByID(ctx, uuid.New())
	require.True(t, customErrors.IsNotFound(err))
	_, err = r.GetAccountByUsername(ctx, "nobody")
	require.True(t, customErrors.IsNotFound(err))
}

func TestPostgresAccountRepo_CreateNormalizes(t *testing.T) {
	r := NewPostgresAccountRepo(setupDB(t))
	ctx := context.Background()

	a := newAccount("", "mail@e.com", "1234567890")
	kpp := "123456789"
	a.KPP = &kpp
	id, err := r.CreateAccount(ctx, a)
	require.NoError(t, err)

	got, err := r.GetAccountByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "mail@e.com", got.Username)
	require.Nil(t, got.KPP, "kpp is only kept for organizations")
}

func TestPostgresAccountRepo_Duplicates(t *testing.T) {
	r := NewPostgresAccountRepo(setupDB(t))
	ctx := context.Background()

	_, err := r.CreateAccount(ctx, newAccount("u", "u@e.com", "1234567890"))
	require.NoError(t, err)

	cases := []struct {
		acc   model.Account
		field string
	}{
		{newAccount("u", "other@e.com", "0000000000"), "username"},
		{newAccount("v", "u@e.com", "0000000000"), "email"},
		{newAccount("v", "v@e.com", "1234567890"), "inn"},
	}
	for _, c := range cases {
		_, err := r.CreateAccount(ctx, c.acc)
		require.True(t, customErrors.IsAlreadyExists(err), "field %s", c.field)
		var dk *customErrors.DuplicateKeyError
		require.True(t, errors.As(err, &dk))
		require.Equal(t, c.field, dk.Field)
	}
}

func TestPostgresAccountRepo_Exists(t *testing.T) {
	r := NewPostgresAccountRepo(setupDB(t))
	ctx := context.Background()
	_, err := r.CreateAccount(ctx, newAccount("u", "u@e.com", "1234567890"))
	require.NoError(t, err)

	ok, err := r.Exists(ctx, repo.FieldINN, "1234567890")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = r.Exists(ctx, repo.FieldEmail, "x@e.com")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = r.Exists(ctx, "password_hash", "h")
	require.True(t, customErrors.IsInvalidArgument(err))
}

func TestPostgresAccountRepo_Touch(t *testing.T) {
	r := NewPostgresAccountRepo(setupDB(t))
	ctx := context.Background()
	id, err := r.CreateAccount(ctx, newAccount("u", "u@e.com", "1234567890"))
	require.NoError(t, err)

	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, r.TouchLastLogin(ctx, id, at))

	got, err := r.GetAccountByID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.LastLogin)
	require.True(t, got.LastLogin.Equal(at))
	require.True(t, got.LastActivity.Equal(at))

	later := at.Add(time.Hour)
	require.NoError(t, r.TouchLastActivity(ctx, id, later))
	got, err = r.GetAccountByID(ctx, id)
	require.NoError(t, err)
	require.True(t, got.LastActivity.Equal(later))
	require.True(t, got.LastLogin.Equal(at))

	require.True(t, customErrors.IsNotFound(r.TouchLastActivity(ctx, uuid.New(), later)))
}

func TestPostgresAccountRepo_UpdateMissing(t *testing.T) {
	r := NewPostgresAccountRepo(setupDB(t))
	a := newAccount("u", "u@e.com", "1234567890")
	a.ID = uuid.New()
	require.True(t, customErrors.IsNotFound(r.UpdateAccount(context.Background(), a)))
}

func TestPostgresAccountRepo_ListAndStats(t *testing.T) {
	r := NewPostgresAccountRepo(setupDB(t))
	ctx := context.Background()

	org := newAccount("org", "org@e.com", "1111111111")
	org.ClientType = model.ClientTypeOrganization
	org.Status = model.StatusActive
	_, err := r.CreateAccount(ctx, org)
	require.NoError(t, err)

	ind := newAccount("ind", "ind@e.com", "2222222222")
	ind.IsActive = false
	_, err = r.CreateAccount(ctx, ind)
	require.NoError(t, err)

	list, err := r.ListAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	s, err := r.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, model.Stats{
		TotalUsers:      2,
		ActiveUsers:     1,
		PendingUsers:    1,
		ActiveCompanies: 1,
		Individuals:     1,
		Organizations:   1,
	}, s)

	require.NoError(t, r.Ping(ctx))
}

func TestDuplicateField(t *testing.T) {
	field, ok := duplicateField(&pgconn.PgError{Code: "23505", ConstraintName: "idx_clients_inn"})
	require.True(t, ok)
	require.Equal(t, "inn", field)

	_, ok = duplicateField(&pgconn.PgError{Code: "23503"})
	require.False(t, ok)

	field, ok = duplicateField(fmt.Errorf("wrap: %w", gorm.ErrDuplicatedKey))
	require.True(t, ok)
	require.Empty(t, field)

	_, ok = duplicateField(errors.New("connection refused"))
	require.False(t, ok)
}

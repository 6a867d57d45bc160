package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	customErrors "github.com/Miraines/yuzedo/client-service/internal/domain/client/errors"
	"github.com/Miraines/yuzedo/client-service/internal/domain/client/model"
	"github.com/Miraines/yuzedo/client-service/internal/domain/client/repo"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	uniqueViolation  = "23505"
	indexPrefix      = "idx_clients_"
	sqliteUniqueText = "UNIQUE constraint failed: clients."
)

var lookupColumns = map[string]struct{}{
	repo.FieldUsername: {},
	repo.FieldEmail:    {},
	repo.FieldINN:      {},
}

type PostgresAccountRepo struct {
	db *gorm.DB
}

func NewPostgresAccountRepo(db *gorm.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

func (p *PostgresAccountRepo) CreateAccount(ctx context.Context, a model.Account) (uuid.UUID, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Normalize()

	if err := p.db.WithContext(ctx).Create(&a).Error; err != nil {
		if field, ok := duplicateField(err); ok {
			return uuid.Nil, &customErrors.DuplicateKeyError{Field: field}
		}
		return uuid.Nil, customErrors.WrapInternal(err, "CreateAccount")
	}
	return a.ID, nil
}

func (p *PostgresAccountRepo) GetAccountByID(ctx context.Context, id uuid.UUID) (model.Account, error) {
	return p.first(ctx, "GetAccountByID", "id = ?", id)
}

func (p *PostgresAccountRepo) GetAccountByUsername(ctx context.Context, username string) (model.Account, error) {
	return p.first(ctx, "GetAccountByUsername", "username = ?", username)
}

func (p *PostgresAccountRepo) first(ctx context.Context, op, query string, arg any) (model.Account, error) {
	var a model.Account
	res := p.db.WithContext(ctx).Where(query, arg).First(&a)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.Account{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.Account{}, customErrors.WrapInternal(err, op)
	}

	return a, nil
}

// Exists checks one of the unique columns. Other columns are rejected.
func (p *PostgresAccountRepo) Exists(ctx context.Context, field, value string) (bool, error) {
	if _, ok := lookupColumns[field]; !ok {
		return false, customErrors.NewInvalidArgument("unknown lookup field " + field)
	}

	var n int64
	err := p.db.WithContext(ctx).
		Model(&model.Account{}).
		Where(fmt.Sprintf("%s = ?", field), value).
		Count(&n).Error
	if err != nil {
		return false, customErrors.WrapInternal(err, "Exists")
	}
	return n > 0, nil
}

// UpdateAccount overwrites every mutable column of a. Registration date and id
// never change.
func (p *PostgresAccountRepo) UpdateAccount(ctx context.Context, a model.Account) error {
	a.Normalize()

	res := p.db.WithContext(ctx).
		Model(&a).
		Select("*").
		Omit("ID", "RegistrationDate").
		Updates(&a)
	if err := res.Error; err != nil {
		if field, ok := duplicateField(err); ok {
			return &customErrors.DuplicateKeyError{Field: field}
		}
		return customErrors.WrapInternal(err, "UpdateAccount")
	}
	if res.RowsAffected == 0 {
		return customErrors.ErrNotFound
	}

	return nil
}

func (p *PostgresAccountRepo) TouchLastActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	return p.touch(ctx, id, map[string]any{"last_activity": at})
}

func (p *PostgresAccountRepo) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return p.touch(ctx, id, map[string]any{"last_login": at, "last_activity": at})
}

func (p *PostgresAccountRepo) touch(ctx context.Context, id uuid.UUID, cols map[string]any) error {
	res := p.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		UpdateColumns(cols)
	if err := res.Error; err != nil {
		return customErrors.WrapInternal(err, "touch")
	}
	if res.RowsAffected == 0 {
		return customErrors.ErrNotFound
	}
	return nil
}

// ListAccounts returns every account, newest registration first.
func (p *PostgresAccountRepo) ListAccounts(ctx context.Context) ([]model.Account, error) {
	var out []model.Account
	if err := p.db.WithContext(ctx).Order("registration_date DESC").Find(&out).Error; err != nil {
		return nil, customErrors.WrapInternal(err, "ListAccounts")
	}
	return out, nil
}

func (p *PostgresAccountRepo) Stats(ctx context.Context) (model.Stats, error) {
	var s model.Stats
	counts := []struct {
		dst  *int64
		cond map[string]any
	}{
		{&s.TotalUsers, nil},
		{&s.ActiveUsers, map[string]any{"is_active": true}},
		{&s.PendingUsers, map[string]any{"status": model.StatusPending}},
		{&s.ActiveCompanies, map[string]any{"status": model.StatusActive, "client_type": model.ClientTypeOrganization}},
		{&s.Individuals, map[string]any{"client_type": model.ClientTypeIndividual}},
		{&s.Organizations, map[string]any{"client_type": model.ClientTypeOrganization}},
	}
	for _, c := range counts {
		q := p.db.WithContext(ctx).Model(&model.Account{})
		if c.cond != nil {
			q = q.Where(c.cond)
		}
		if err := q.Count(c.dst).Error; err != nil {
			return model.Stats{}, customErrors.WrapInternal(err, "Stats")
		}
	}
	return s, nil
}

// Ping runs SELECT 1 against the database.
func (p *PostgresAccountRepo) Ping(ctx context.Context) error {
	var one int
	if err := p.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
		return err
	}
	if one != 1 {
		return fmt.Errorf("unexpected SELECT 1 result %d", one)
	}
	return nil
}

// duplicateField reports whether err is a unique violation and, when the
// driver exposes it, which column caused it.
func duplicateField(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return strings.TrimPrefix(pgErr.ConstraintName, indexPrefix), true
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", true
	}
	msg := err.Error()
	if i := strings.Index(msg, sqliteUniqueText); i >= 0 {
		field := msg[i+len(sqliteUniqueText):]
		if j := strings.IndexAny(field, ", "); j >= 0 {
			field = field[:j]
		}
		return field, true
	}
	return "", false
}

package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	redisrepo "github.com/Miraines/yuzedo/client-service/internal/adapters/db/redis"
	"github.com/Miraines/yuzedo/client-service/internal/adapters/transport/http/dto"
	"github.com/Miraines/yuzedo/client-service/internal/app/client/credential"
	"github.com/Miraines/yuzedo/client-service/internal/app/client/hasher"
	"github.com/Miraines/yuzedo/client-service/internal/app/client/jwt"
	appsvc "github.com/Miraines/yuzedo/client-service/internal/app/client/service"
	"github.com/Miraines/yuzedo/client-service/internal/app/client/token"
	authErrors "github.com/Miraines/yuzedo/client-service/internal/domain/client/errors"
	"github.com/Miraines/yuzedo/client-service/internal/domain/client/model"
	"github.com/Miraines/yuzedo/client-service/internal/infra/config"
	"github.com/alexedwards/argon2id"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

/* ──────────────────────────────── stubs ──────────────────────────────── */

type accountRepoStub struct {
	mu       sync.Mutex
	accounts map[uuid.UUID]model.Account
	// raceField makes CreateAccount fail as if a concurrent insert won.
	raceField string
	touches   int
}

func newAccountRepoStub() *accountRepoStub {
	return &accountRepoStub{accounts: make(map[uuid.UUID]model.Account)}
}

func (r *accountRepoStub) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

func (r *accountRepoStub) CreateAccount(_ context.Context, a model.Account) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.raceField != "" {
		return uuid.Nil, &authErrors.DuplicateKeyError{Field: r.raceField}
	}
	a.Normalize()
	r.accounts[a.ID] = a
	return a.ID, nil
}
func (r *accountRepoStub) GetAccountByID(_ context.Context, id uuid.UUID) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return model.Account{}, authErrors.ErrNotFound
	}
	return a, nil
}
func (r *accountRepoStub) GetAccountByUsername(_ context.Context, username string) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Username == username {
			return a, nil
		}
	}
	return model.Account{}, authErrors.ErrNotFound
}
func (r *accountRepoStub) Exists(_ context.Context, field, value string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		switch {
		case field == "username" && a.Username == value,
			field == "email" && a.Email == value,
			field == "inn" && a.INN == value:
			return true, nil
		}
	}
	return false, nil
}
func (r *accountRepoStub) UpdateAccount(_ context.Context, a model.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[a.ID]; !ok {
		return authErrors.ErrNotFound
	}
	a.Normalize()
	r.accounts[a.ID] = a
	return nil
}
func (r *accountRepoStub) TouchLastActivity(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return authErrors.ErrNotFound
	}
	a.LastActivity = at
	r.accounts[id] = a
	r.touches++
	return nil
}
func (r *accountRepoStub) TouchLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return authErrors.ErrNotFound
	}
	a.LastLogin = &at
	a.LastActivity = at
	r.accounts[id] = a
	r.touches++
	return nil
}
func (r *accountRepoStub) ListAccounts(context.Context) ([]model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	return out, nil
}
func (r *accountRepoStub) Stats(context.Context) (model.Stats, error) { return model.Stats{}, nil }

func (r *accountRepoStub) get(id uuid.UUID) model.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[id]
}

/* ───────────────────────────── helpers ───────────────────────────── */

var fastParams = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

func newSvc(t *testing.T) (appsvc.Service, *accountRepoStub) {
	t.Helper()

	util, err := jwt.NewJWTUtil(&config.Config{
		JWTPrivateKeyPath: "../jwt/testdata/priv.pem",
		JWTPublicKeyPath:  "../jwt/testdata/pub.pem",
		AccessTokenTTL:    time.Minute,
		RefreshTokenTTL:   time.Hour,
		Issuer:            "test",
		Audience:          "test",
	})
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ar := newAccountRepoStub()
	issuer := token.NewIssuer(util, redisrepo.NewRedisTokenRepo(client), ar)
	v := credential.New(credential.NewValidate(), ar)

	return appsvc.New(ar, issuer, v, hasher.New("pepper", fastParams)), ar
}

func registration() dto.RegisterDTO {
	return dto.RegisterDTO{
		Username:     "acme",
		Email:        "acme@example.com",
		Password:     "p1",
		Password2:    "p1",
		INN:          "1234567890",
		LegalAddress: "Moscow",
		Phone:        "+79990000000",
		ClientType:   "individual",
	}
}

func registerAndLogin(t *testing.T, svc appsvc.Service) model.Session {
	t.Helper()
	ctx := context.Background()
	_, err := svc.Register(ctx, registration())
	require.NoError(t, err)
	sess, err := svc.Login(ctx, dto.LoginDTO{Username: "acme", Password: "p1"})
	require.NoError(t, err)
	return sess
}

/* ───────────────────────────── tests ───────────────────────────── */

func TestClientService_Register(t *testing.T) {
	svc, ar := newSvc(t)

	sess, err := svc.Register(context.Background(), registration())
	require.NoError(t, err)
	require.Equal(t, model.StatusPending, sess.Account.Status)
	require.True(t, sess.Account.IsActive)
	require.False(t, sess.Account.IsStaff)
	require.NotEmpty(t, sess.Tokens.AccessToken)
	require.NotEmpty(t, sess.Tokens.RefreshToken)
	require.Equal(t, sess.Account.ID, sess.Tokens.UserId)

	stored := ar.get(sess.Account.ID)
	require.NotEqual(t, "p1", stored.PasswordHash)
	require.False(t, stored.LastActivity.IsZero())
	require.Nil(t, stored.LastLogin)
}

func TestClientService_RegisterValidation(t *testing.T) {
	svc, ar := newSvc(t)
	in := registration()
	in.Password2 = "p2"
	in.Phone = "8999"

	_, err := svc.Register(context.Background(), in)
	require.True(t, authErrors.IsInvalidArgument(err))
	fields := authErrors.FieldErrors(err)
	require.Equal(t, credential.MsgPasswordMismatch, fields["password"])
	require.Equal(t, credential.MsgPhone, fields["phone"])
	require.Zero(t, ar.count(), "rejected registration must not persist an account")
}

func TestClientService_RegisterDuplicateINN(t *testing.T) {
	svc, ar := newSvc(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, registration())
	require.NoError(t, err)

	again := registration()
	again.Username = "other"
	again.Email = "other@example.com"
	_, err = svc.Register(ctx, again)
	require.True(t, authErrors.IsAlreadyExists(err))
	require.Equal(t, credential.MsgINNTaken, authErrors.FieldErrors(err)["inn"])
	require.Equal(t, 1, ar.count())
}

func TestClientService_RegisterLosesRace(t *testing.T) {
	svc, ar := newSvc(t)
	ar.raceField = "email"

	_, err := svc.Register(context.Background(), registration())
	require.True(t, authErrors.IsAlreadyExists(err))
	require.True(t, authErrors.IsInvalidArgument(err))
	require.Equal(t, credential.MsgEmailTaken, authErrors.FieldErrors(err)["email"])
	require.Zero(t, ar.count())
}

func TestClientService_Login(t *testing.T) {
	svc, ar := newSvc(t)
	sess := registerAndLogin(t, svc)

	require.NotEmpty(t, sess.Tokens.RefreshToken)
	require.NotNil(t, sess.Account.LastLogin)
	stored := ar.get(sess.Account.ID)
	require.NotNil(t, stored.LastLogin)
}

func TestClientService_LoginFailures(t *testing.T) {
	svc, ar := newSvc(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, registration())
	require.NoError(t, err)
	before := ar.get(reg.Account.ID).LastActivity
	touches := ar.touches

	_, err = svc.Login(ctx, dto.LoginDTO{Username: "acme", Password: "wrong"})
	require.True(t, authErrors.IsInvalidCredentials(err))

	_, err = svc.Login(ctx, dto.LoginDTO{Username: "nobody", Password: "p1"})
	require.True(t, authErrors.IsInvalidCredentials(err))

	_, err = svc.Login(ctx, dto.LoginDTO{Username: "acme"})
	require.ErrorIs(t, err, appsvc.ErrCredentialsRequired)

	require.Equal(t, touches, ar.touches, "failed logins must not record activity")
	require.True(t, before.Equal(ar.get(reg.Account.ID).LastActivity))

	disabled := ar.get(reg.Account.ID)
	disabled.IsActive = false
	require.NoError(t, ar.UpdateAccount(ctx, disabled))
	_, err = svc.Login(ctx, dto.LoginDTO{Username: "acme", Password: "p1"})
	require.ErrorIs(t, err, appsvc.ErrAccountDisabled)
}

func TestClientService_LogoutThenRefresh(t *testing.T) {
	svc, _ := newSvc(t)
	ctx := context.Background()
	sess := registerAndLogin(t, svc)

	access, err := svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: sess.Tokens.RefreshToken})
	require.NoError(t, err)
	require.NotEmpty(t, access)

	require.NoError(t, svc.Logout(ctx, dto.LogoutDTO{RefreshToken: sess.Tokens.RefreshToken}))

	_, err = svc.Refresh(ctx, dto.RefreshDTO{RefreshToken: sess.Tokens.RefreshToken})
	require.True(t, authErrors.IsInvalidToken(err))

	err = svc.Logout(ctx, dto.LogoutDTO{RefreshToken: sess.Tokens.RefreshToken})
	require.True(t, authErrors.IsInvalidToken(err))

	err = svc.Logout(ctx, dto.LogoutDTO{})
	require.True(t, authErrors.IsInvalidArgument(err))
}

func TestClientService_Authenticate(t *testing.T) {
	svc, ar := newSvc(t)
	ctx := context.Background()
	sess := registerAndLogin(t, svc)

	acc, err := svc.Authenticate(ctx, sess.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, "acme", acc.Username)
	require.Equal(t, "1234567890", acc.INN)

	_, err = svc.Authenticate(ctx, sess.Tokens.RefreshToken)
	require.True(t, authErrors.IsInvalidToken(err), "refresh token is not a bearer credential")

	disabled := ar.get(acc.ID)
	disabled.IsActive = false
	require.NoError(t, ar.UpdateAccount(ctx, disabled))
	_, err = svc.Authenticate(ctx, sess.Tokens.AccessToken)
	require.True(t, authErrors.IsInvalidToken(err))
}

func TestClientService_UpdateProfile(t *testing.T) {
	svc, ar := newSvc(t)
	ctx := context.Background()
	sess := registerAndLogin(t, svc)

	org := "organization"
	kpp := "123456789"
	company := "Acme LLC"
	pwd := "new-pass"
	updated, err := svc.UpdateProfile(ctx, sess.Account, dto.UpdateProfileDTO{
		ClientType:  &org,
		KPP:         &kpp,
		CompanyName: &company,
		Password:    &pwd,
	})
	require.NoError(t, err)
	require.Equal(t, model.ClientTypeOrganization, updated.ClientType)
	require.Equal(t, "123456789", *updated.KPP)
	require.Equal(t, "Acme LLC", *ar.get(sess.Account.ID).CompanyName)

	_, err = svc.Login(ctx, dto.LoginDTO{Username: "acme", Password: "p1"})
	require.True(t, authErrors.IsInvalidCredentials(err), "old password must stop working")
	_, err = svc.Login(ctx, dto.LoginDTO{Username: "acme", Password: "new-pass"})
	require.NoError(t, err)

	bad := "8999"
	_, err = svc.UpdateProfile(ctx, updated, dto.UpdateProfileDTO{Phone: &bad})
	require.True(t, authErrors.IsInvalidArgument(err))
	require.Equal(t, credential.MsgPhone, authErrors.FieldErrors(err)["phone"])

	ind := "individual"
	updated, err = svc.UpdateProfile(ctx, updated, dto.UpdateProfileDTO{ClientType: &ind})
	require.NoError(t, err)
	require.Nil(t, updated.KPP, "kpp is cleared when leaving organization")
}

func TestClientService_ListAccounts(t *testing.T) {
	svc, _ := newSvc(t)
	ctx := context.Background()
	sess := registerAndLogin(t, svc)

	_, err := svc.ListAccounts(ctx, sess.Account)
	require.True(t, authErrors.IsPermissionDenied(err))

	staff := sess.Account
	staff.IsStaff = true
	list, err := svc.ListAccounts(ctx, staff)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestClientService_HashFailure(t *testing.T) {
	_, ar := newSvc(t)
	util, err := jwt.NewJWTUtil(&config.Config{
		JWTPrivateKeyPath: "../jwt/testdata/priv.pem",
		JWTPublicKeyPath:  "../jwt/testdata/pub.pem",
		AccessTokenTTL:    time.Minute,
		RefreshTokenTTL:   time.Hour,
	})
	require.NoError(t, err)
	svc := appsvc.New(ar, token.NewIssuer(util, nil, ar),
		credential.New(credential.NewValidate(), ar), failingHasher{})

	_, err = svc.Register(context.Background(), registration())
	require.True(t, authErrors.IsInternal(err))
}

type failingHasher struct{}

func (failingHasher) Hash(string) (string, error)         { return "", errors.New("boom") }
func (failingHasher) Verify(string, string) (bool, error) { return false, errors.New("boom") }

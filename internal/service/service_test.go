package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/SecureVault/auth"
	"github.com/Hussein-Mazeh/SecureVault/internal/config"
	"github.com/Hussein-Mazeh/SecureVault/internal/db"
	"github.com/Hussein-Mazeh/SecureVault/internal/logging"
	"github.com/Hussein-Mazeh/SecureVault/internal/service"
	"github.com/Hussein-Mazeh/SecureVault/internal/vault"
	"github.com/Hussein-Mazeh/SecureVault/krypto"
	"github.com/Hussein-Mazeh/SecureVault/store"
)

const master = "Str0ng!Pass123"

func testConfig(t *testing.T) config.Config {
	t.Helper()
	c := config.Default()
	c.Dir = t.TempDir()
	return c
}

func openService(t *testing.T, c config.Config) *service.Service {
	t.Helper()
	svc, err := service.Open(context.Background(), c, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestEndToEndScenario(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)
	svc := openService(t, c)

	require.NoError(t, svc.Auth().Register(ctx, master))
	svc.Auth().Logout()

	res, err := svc.Auth().Login(ctx, master)
	require.NoError(t, err)
	require.True(t, res.OK)

	_, err = svc.Vault().Add(ctx, "example.com", "alice", "s3cret")
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	// A fresh process sees the same data after logging in again.
	again := openService(t, c)
	_, err = again.Vault().List(ctx)
	assert.ErrorIs(t, err, krypto.ErrEncryptionNotInitialized)

	res, err = again.Auth().Login(ctx, master)
	require.NoError(t, err)
	require.True(t, res.OK)

	list, err := again.Vault().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "example.com", list[0].Website)
	assert.Equal(t, "alice", list[0].Username)
	assert.Equal(t, "s3cret", list[0].Password)

	raw, err := os.ReadFile(again.Paths().DatabasePath())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "s3cret")
}

func TestChangePasswordReencryptsVault(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)
	c.KDF = krypto.KDFArgon2id
	svc := openService(t, c)

	require.NoError(t, svc.Auth().Register(ctx, master))
	_, err := svc.Vault().Add(ctx, "a.com", "u", "pw-a")
	require.NoError(t, err)
	_, err = svc.Vault().Add(ctx, "b.com", "u", "pw-b")
	require.NoError(t, err)

	const next = "N3w!Passphrase99"
	require.NoError(t, svc.Auth().ChangeMasterPassword(ctx, master, next))

	// Still logged in, now under the new key.
	list, err := svc.Vault().List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	svc.Auth().Logout()
	res, err := svc.Auth().Login(ctx, master)
	require.NoError(t, err)
	assert.False(t, res.OK)

	res, err = svc.Auth().Login(ctx, next)
	require.NoError(t, err)
	require.True(t, res.OK)

	list, err = svc.Vault().List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "pw-a", list[0].Password)
	assert.Equal(t, "pw-b", list[1].Password)
}

func TestChangePasswordCommitFailureKeepsAuthRecord(t *testing.T) {
	ctx := context.Background()
	paths := store.Paths{Dir: t.TempDir()}

	handle, mock, err := sqlmock.New()
	require.NoError(t, err)
	d := db.New(handle, paths.DatabasePath())
	defer db.Close(d)

	cipher := krypto.NewCipher(krypto.SuiteAESGCM)
	contents := vault.NewStore(d, cipher, logging.Nop())
	session := auth.NewSession(store.NewFileStore(paths),
		auth.WithCipher(cipher),
		auth.WithVaultContents(contents),
	)

	require.NoError(t, session.Register(ctx, master))
	enc, err := cipher.Encrypt([]byte("pw-a"))
	require.NoError(t, err)
	session.Logout()

	before, err := os.ReadFile(paths.AuthPath())
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id", "website", "username", "encrypted_password", "created_at", "updated_at"}).
		AddRow(int64(1), "a.com", "u", enc, "2026-01-02 03:04:05", "2026-01-02 03:04:05")
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, website, username, encrypted_password").WillReturnRows(rows)
	mock.ExpectExec("UPDATE credentials SET encrypted_password").
		WithArgs(sqlmock.AnyArg(), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("disk full"))

	err = session.ChangeMasterPassword(ctx, master, "N3w!Passphrase99")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrStorage)
	require.NoError(t, mock.ExpectationsWereMet())

	after, err := os.ReadFile(paths.AuthPath())
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	// The rows are still sealed under the old key, and the old password still opens them.
	res, err := session.Login(ctx, master)
	require.NoError(t, err)
	require.True(t, res.OK)
	pt, err := cipher.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "pw-a", string(pt))
}

func TestResetPurgesVault(t *testing.T) {
	ctx := context.Background()
	svc := openService(t, testConfig(t))

	require.NoError(t, svc.Auth().Register(ctx, master))
	_, err := svc.Vault().Add(ctx, "a.com", "u", "pw")
	require.NoError(t, err)
	svc.Auth().Logout()

	for i := 0; i < auth.DefaultMaxAttempts; i++ {
		_, err := svc.Auth().Login(ctx, "wrong")
		require.NoError(t, err)
	}
	_, err = svc.Auth().Login(ctx, master)
	require.ErrorIs(t, err, auth.ErrAccountLocked)

	require.NoError(t, svc.Auth().Reset(ctx, "R3set!Password77"))
	assert.True(t, svc.IsUnlocked())

	list, err := svc.Vault().List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)

	st, err := svc.Auth().Status(ctx)
	require.NoError(t, err)
	assert.False(t, st.Locked)
}

func TestDeleteMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc := openService(t, testConfig(t))
	require.NoError(t, svc.Auth().Register(ctx, master))

	assert.ErrorIs(t, svc.Vault().Delete(ctx, 7), vault.ErrNotFound)
}

func TestXChaChaSuite(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)
	c.Cipher = krypto.SuiteNameXChaCha20Poly1305
	svc := openService(t, c)
	require.NoError(t, svc.Auth().Register(ctx, master))

	added, err := svc.Vault().Add(ctx, "a.com", "u", "pw")
	require.NoError(t, err)

	handle, err := db.Open(svc.Paths().DatabasePath())
	require.NoError(t, err)
	defer db.Close(handle)
	row, err := db.GetEntry(ctx, handle, added.ID)
	require.NoError(t, err)
	assert.Equal(t, byte(krypto.SuiteXChaCha20Poly1305), row.EncryptedPassword[0])
}

func TestProvision(t *testing.T) {
	ctx := context.Background()
	c := testConfig(t)

	wrote, err := service.Provision(ctx, c, logging.Nop())
	require.NoError(t, err)
	assert.True(t, wrote)

	wrote, err = service.Provision(ctx, c, logging.Nop())
	require.NoError(t, err)
	assert.False(t, wrote)

	loaded, err := config.Load(nil, filepath.Join(c.Dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, c.KDF, loaded.KDF)
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	c := testConfig(t)
	c.MaxAttempts = 0

	_, err := service.Open(context.Background(), c, nil)
	assert.Error(t, err)
}

package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/roach88/tourdesk/internal/dataerr"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func testIssuer() *Issuer {
	iss := NewIssuer("test-secret")
	iss.Now = func() time.Time { return fixedNow }
	return iss
}

func TestIssueAndVerify(t *testing.T) {
	iss := testIssuer()
	u := User{ID: "u-1", Email: "ops@tourdesk.test", Role: "agent", Name: "Ops"}

	s, err := iss.Issue(u)
	require.NoError(t, err)

	assert.Equal(t, fixedNow.Add(DefaultTTL).Unix(), s.ExpiresAt)
	assert.NotEmpty(t, s.RefreshToken)
	got, err := iss.Verify(s.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u, got)
}

func TestVerifyRejectsExpiredAndForeignTokens(t *testing.T) {
	iss := testIssuer()
	s, err := iss.Issue(User{ID: "u-1", Email: "a@b.c", Role: "agent"})
	require.NoError(t, err)

	later := *iss
	later.Now = func() time.Time { return fixedNow.Add(2 * DefaultTTL) }
	_, err = later.Verify(s.AccessToken)
	require.Error(t, err)
	assert.Equal(t, dataerr.CodeAuth, dataerr.CodeOf(err))

	other := NewIssuer("other-secret")
	other.Now = iss.Now
	_, err = other.Verify(s.AccessToken)
	assert.Equal(t, dataerr.CodeAuth, dataerr.CodeOf(err))
}

func TestIssueRequiresSecret(t *testing.T) {
	_, err := (&Issuer{}).Issue(User{ID: "u"})
	assert.Error(t, err)
}

func TestSessionWireFormat(t *testing.T) {
	s := Session{
		AccessToken:  "a",
		RefreshToken: "r",
		ExpiresAt:    1700000000,
		User:         User{ID: "u-1", Email: "x@y.z", Role: "admin"},
	}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"access_token": "a",
		"refresh_token": "r",
		"expires_at": 1700000000,
		"user": {"id": "u-1", "email": "x@y.z", "role": "admin"}
	}`, string(data))
}

func TestPersisters(t *testing.T) {
	keyring.MockInit()

	kinds := []string{"keyring", "file", "none"}
	for _, kind := range kinds {
		t.Run(kind, func(t *testing.T) {
			p, err := NewPersister(kind, t.TempDir())
			require.NoError(t, err)

			got, err := p.Load()
			require.NoError(t, err)
			assert.Nil(t, got, "nothing stored yet")

			s := Session{AccessToken: "tok", ExpiresAt: fixedNow.Add(time.Hour).Unix(), User: User{ID: "u-1"}}
			require.NoError(t, p.Save(s))

			got, err = p.Load()
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, s, *got)

			require.NoError(t, p.Clear())
			require.NoError(t, p.Clear(), "clearing twice is harmless")
			got, err = p.Load()
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestFilePersisterPermissions(t *testing.T) {
	dir := t.TempDir()
	p := FilePersister{Path: filepath.Join(dir, "nested", FileName)}

	require.NoError(t, p.Save(Session{AccessToken: "tok"}))

	info, err := os.Stat(p.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestUnknownPersisterKind(t *testing.T) {
	_, err := NewPersister("cookie", t.TempDir())
	assert.ErrorContains(t, err, `unknown session store "cookie"`)
}

func TestCurrentTreatsExpiredAsSignedOut(t *testing.T) {
	p := &MemoryPersister{}
	require.NoError(t, p.Save(Session{AccessToken: "tok", ExpiresAt: fixedNow.Add(-time.Second).Unix()}))

	got, err := Current(p, fixedNow)
	require.NoError(t, err)
	assert.Nil(t, got)

	stored, err := p.Load()
	require.NoError(t, err)
	assert.Nil(t, stored, "expired session is cleared")

	require.NoError(t, p.Save(Session{AccessToken: "tok", ExpiresAt: fixedNow.Add(time.Minute).Unix()}))
	got, err = Current(p, fixedNow)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "tok", got.AccessToken)
}

func TestCorruptSessionFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := FilePersister{Path: path}.Load()
	assert.ErrorContains(t, err, "decode session")
}

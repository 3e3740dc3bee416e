package connection_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/playhead/playhead/internal/connection"
	"github.com/playhead/playhead/internal/domain"
	"github.com/playhead/playhead/internal/httpclient"
	"github.com/playhead/playhead/internal/optional"
	"github.com/playhead/playhead/internal/store"
	"github.com/playhead/playhead/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, servers ...store.ServerRecord) *store.CredentialStore {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "credentials.json"))
	require.NoError(t, err)
	if len(servers) > 0 {
		require.NoError(t, st.Set(store.Credentials{Servers: servers}))
	}

	return st
}

func newTestManager(t *testing.T, st *store.CredentialStore, discoverer connection.Discoverer) *connection.Manager {
	t.Helper()

	return connection.NewManager(connection.NewManagerParams{
		CredentialStore: st,
		HTTPClient:      httpclient.New(httpclient.NewParams{Logger: testhelpers.NewNopLogger()}),
		Discoverer:      discoverer,
		AddressStagger:  5 * time.Millisecond,
		Logger:          testhelpers.NewNopLogger(),
	})
}

// newInfoServer returns a test server which answers the public info probe
// after an optional delay.
func newInfoServer(t *testing.T, id, name, version string, delay time.Duration) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/system/info/public" {
			http.NotFound(w, r)
			return
		}
		time.Sleep(delay)
		fmt.Fprintf(w, `{"Id":%q,"ServerName":%q,"Version":%q}`, id, name, version)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestConnectToServerFirstSuccessWins(t *testing.T) {
	slowLocal := newInfoServer(t, "abc123", "den", "10.9.0", 300*time.Millisecond)
	fastManual := newInfoServer(t, "abc123", "den", "10.9.0", 0)

	st := newTestStore(t)
	mgr := newTestManager(t, st, nil)

	result, err := mgr.ConnectToServer(testhelpers.Context(t), store.ServerRecord{
		LocalAddress:  slowLocal.URL,
		ManualAddress: fastManual.URL,
	}, connection.ConnectOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.ConnectionStateServerSignIn, result.State)
	assert.Equal(t, domain.ConnectionModeManual, result.Mode)
	assert.Equal(t, "abc123", result.Server.ID)
	assert.Equal(t, "den", result.Server.Name)
	assert.Equal(t, domain.ConnectionModeManual, result.Server.LastConnectionMode)
	assert.False(t, result.Server.DateLastAccessed.IsZero())

	// the winning record is persisted
	creds := st.Get()
	require.Len(t, creds.Servers, 1)
	assert.Equal(t, "abc123", creds.Servers[0].ID)
}

func TestConnectToServerAllFail(t *testing.T) {
	st := newTestStore(t)
	mgr := newTestManager(t, st, nil)

	result, err := mgr.ConnectToServer(testhelpers.Context(t), store.ServerRecord{
		LocalAddress:  "http://127.0.0.1:1",
		ManualAddress: "http://127.0.0.1:2",
		RemoteAddress: "http://127.0.0.1:3",
	}, connection.ConnectOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.ConnectionStateUnavailable, result.State)
}

func TestConnectToServerNoAddresses(t *testing.T) {
	mgr := newTestManager(t, newTestStore(t), nil)

	result, err := mgr.ConnectToServer(testhelpers.Context(t), store.ServerRecord{}, connection.ConnectOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.ConnectionStateUnavailable, result.State)
}

func TestConnectToServerManualAddressOnly(t *testing.T) {
	var localCalls atomic.Int32
	local := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		localCalls.Add(1)
		fmt.Fprint(w, `{"Id":"abc123","ServerName":"den","Version":"10.9.0"}`)
	}))
	defer local.Close()
	manual := newInfoServer(t, "abc123", "den", "10.9.0", 0)

	mgr := newTestManager(t, newTestStore(t), nil)

	result, err := mgr.ConnectToServer(testhelpers.Context(t), store.ServerRecord{
		LocalAddress:      local.URL,
		ManualAddress:     manual.URL,
		ManualAddressOnly: true,
	}, connection.ConnectOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.ConnectionModeManual, result.Mode)
	assert.Zero(t, localCalls.Load())
}

func TestConnectToServerVersionGate(t *testing.T) {
	srv := newInfoServer(t, "abc123", "den", "10.2.9", 0)

	mgr := newTestManager(t, newTestStore(t), nil)

	result, err := mgr.ConnectToServer(testhelpers.Context(t), store.ServerRecord{
		ManualAddress: srv.URL,
	}, connection.ConnectOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.ConnectionStateServerUpdateNeeded, result.State)
}

func TestConnectToServerIdentityMismatch(t *testing.T) {
	srv := newInfoServer(t, "other456", "not-den", "10.9.0", 0)

	mgr := newTestManager(t, newTestStore(t), nil)

	result, err := mgr.ConnectToServer(testhelpers.Context(t), store.ServerRecord{
		ID:            "abc123",
		ManualAddress: srv.URL,
	}, connection.ConnectOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.ConnectionStateUnavailable, result.State)
}

func TestConnectToServerValidToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/system/info/public":
			fmt.Fprint(w, `{"Id":"abc123","ServerName":"den","Version":"10.9.0"}`)
		case "/system/info":
			if r.Header.Get(httpclient.HeaderAuthToken) != "tok" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			fmt.Fprint(w, `{"Id":"abc123","ServerName":"den","Version":"10.9.0"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	st := newTestStore(t)
	mgr := newTestManager(t, st, nil)

	result, err := mgr.ConnectToServer(testhelpers.Context(t), store.ServerRecord{
		ID:            "abc123",
		ManualAddress: srv.URL,
		AccessToken:   "tok",
		UserID:        "user1",
	}, connection.ConnectOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.ConnectionStateSignedIn, result.State)
	assert.Equal(t, "tok", result.Server.AccessToken)

	creds := st.Get()
	require.Len(t, creds.Servers, 1)
	assert.Equal(t, "tok", creds.Servers[0].AccessToken)
	assert.Equal(t, "user1", creds.Servers[0].UserID)
}

func TestConnectToServerExpiredTokenRetriesOnce(t *testing.T) {
	var infoCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/system/info/public":
			fmt.Fprint(w, `{"Id":"abc123","ServerName":"den","Version":"10.9.0"}`)
		case "/system/info":
			infoCalls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	st := newTestStore(t)
	mgr := newTestManager(t, st, nil)

	result, err := mgr.ConnectToServer(testhelpers.Context(t), store.ServerRecord{
		ID:            "abc123",
		ManualAddress: srv.URL,
		AccessToken:   "stale",
		UserID:        "user1",
	}, connection.ConnectOptions{})
	require.NoError(t, err)

	// auth expiry is silent: the flow retries once as a fresh sign-in
	assert.Equal(t, domain.ConnectionStateServerSignIn, result.State)
	assert.Empty(t, result.Server.AccessToken)
	assert.Empty(t, result.Server.UserID)
	assert.Equal(t, int32(1), infoCalls.Load())

	creds := st.Get()
	require.Len(t, creds.Servers, 1)
	assert.Empty(t, creds.Servers[0].AccessToken)
	assert.Empty(t, creds.Servers[0].UserID)
}

func TestConnectToServerAutoLoginDisabled(t *testing.T) {
	srv := newInfoServer(t, "abc123", "den", "10.9.0", 0)

	st := newTestStore(t)
	mgr := newTestManager(t, st, nil)

	result, err := mgr.ConnectToServer(testhelpers.Context(t), store.ServerRecord{
		ID:            "abc123",
		ManualAddress: srv.URL,
		AccessToken:   "tok",
		UserID:        "user1",
	}, connection.ConnectOptions{EnableAutoLogin: optional.New(false)})
	require.NoError(t, err)

	assert.Equal(t, domain.ConnectionStateServerSignIn, result.State)

	creds := st.Get()
	require.Len(t, creds.Servers, 1)
	assert.Empty(t, creds.Servers[0].AccessToken)
	assert.Empty(t, creds.Servers[0].UserID)
}

func TestConnectToAddress(t *testing.T) {
	srv := newInfoServer(t, "abc123", "den", "10.9.0", 0)

	st := newTestStore(t)
	mgr := newTestManager(t, st, nil)

	result, err := mgr.ConnectToAddress(testhelpers.Context(t), srv.URL+"/", connection.ConnectOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.ConnectionStateServerSignIn, result.State)
	assert.Equal(t, "abc123", result.Server.ID)
	assert.True(t, result.Server.ManualAddressOnly)
}

func TestConnectToAddressSchemeless(t *testing.T) {
	srv := newInfoServer(t, "abc123", "den", "10.9.0", 0)

	mgr := newTestManager(t, newTestStore(t), nil)

	// https:// is tried first and fails against the plain HTTP listener;
	// http:// then succeeds.
	address := srv.Listener.Addr().String()
	result, err := mgr.ConnectToAddress(testhelpers.Context(t), address, connection.ConnectOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.ConnectionStateServerSignIn, result.State)
	assert.Equal(t, "http://"+address, result.Server.ManualAddress)
}

func TestConnectToAddressUnreachable(t *testing.T) {
	mgr := newTestManager(t, newTestStore(t), nil)

	result, err := mgr.ConnectToAddress(testhelpers.Context(t), "http://127.0.0.1:1", connection.ConnectOptions{})
	require.NoError(t, err)

	assert.Equal(t, domain.ConnectionStateUnavailable, result.State)
}

func TestGetAvailableServers(t *testing.T) {
	now := time.Now()
	st := newTestStore(t,
		store.ServerRecord{ID: "old", Name: "attic", DateLastAccessed: now.Add(-time.Hour)},
		store.ServerRecord{ID: "recent", Name: "den", DateLastAccessed: now},
	)

	discoverer := func(_ context.Context, _ time.Duration) ([]connection.DiscoveredServer, error) {
		return []connection.DiscoveredServer{
			{ID: "recent", Name: "den", Address: "http://192.168.1.10:8096"},
			{ID: "fresh", Name: "kitchen", Address: "http://192.168.1.20:8096"},
		}, nil
	}

	mgr := newTestManager(t, st, discoverer)

	servers, err := mgr.GetAvailableServers(testhelpers.Context(t))
	require.NoError(t, err)

	// deduped by ID; sorted by last access descending, never-accessed last
	require.Len(t, servers, 3)
	assert.Equal(t, "recent", servers[0].ID)
	assert.Equal(t, "http://192.168.1.10:8096", servers[0].LocalAddress)
	assert.Equal(t, "old", servers[1].ID)
	assert.Equal(t, "fresh", servers[2].ID)

	// merged set is persisted
	assert.Len(t, st.Get().Servers, 3)
}

func TestLogout(t *testing.T) {
	var logoutCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/system/info/public":
			fmt.Fprint(w, `{"Id":"abc123","ServerName":"den","Version":"10.9.0"}`)
		case "/system/info":
			fmt.Fprint(w, `{"Id":"abc123","ServerName":"den","Version":"10.9.0"}`)
		case "/sessions/logout":
			logoutCalls.Add(1)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	st := newTestStore(t)
	mgr := newTestManager(t, st, nil)

	_, err := mgr.ConnectToServer(testhelpers.Context(t), store.ServerRecord{
		ID:            "abc123",
		ManualAddress: srv.URL,
		AccessToken:   "tok",
		UserID:        "user1",
	}, connection.ConnectOptions{})
	require.NoError(t, err)

	require.NoError(t, mgr.Logout(testhelpers.Context(t)))

	assert.Equal(t, int32(1), logoutCalls.Load())

	creds := st.Get()
	require.Len(t, creds.Servers, 1)
	assert.Empty(t, creds.Servers[0].AccessToken)
	assert.Empty(t, creds.Servers[0].UserID)
}

func TestDeleteServer(t *testing.T) {
	st := newTestStore(t, store.ServerRecord{ID: "abc123"})
	mgr := newTestManager(t, st, nil)

	require.ErrorIs(t, mgr.DeleteServer(""), connection.ErrEmptyServerID)
	require.NoError(t, mgr.DeleteServer("abc123"))
	require.ErrorIs(t, mgr.DeleteServer("abc123"), store.ErrServerNotFound)
}

func TestGetOrCreateAPIClient(t *testing.T) {
	st := newTestStore(t, store.ServerRecord{
		ID:                 "abc123",
		ManualAddress:      "http://media.example.com",
		LastConnectionMode: domain.ConnectionModeManual,
		AccessToken:        "tok",
	})
	mgr := newTestManager(t, st, nil)

	client, err := mgr.GetOrCreateAPIClient("abc123")
	require.NoError(t, err)
	assert.Equal(t, "http://media.example.com", client.Address())
	assert.Equal(t, "tok", client.AccessToken())

	_, err = mgr.GetOrCreateAPIClient("unknown")
	require.ErrorIs(t, err, connection.ErrAPIClientNotFound)

	_, err = mgr.GetOrCreateAPIClient("")
	require.ErrorIs(t, err, connection.ErrEmptyServerID)
}

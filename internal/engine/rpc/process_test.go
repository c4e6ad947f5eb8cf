package rpc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/curseddelta/curseddelta/internal/testutil"
)

func TestStartWithInstalledServer(t *testing.T) {
	path := testutil.SkipIfNoRPCServer(t)
	ctx := t.Context()

	client, err := Start(ctx, Options{Path: path, AccountsDir: filepath.Join(t.TempDir(), "accounts")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	acc, err := client.AddAccount(ctx)
	require.NoError(t, err)

	ids, err := client.GetAllAccountIDs(ctx)
	require.NoError(t, err)
	require.Contains(t, ids, acc)

	ok, err := client.IsConfigured(ctx, acc)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, client.SetConfig(ctx, acc, "displayname", "Tester"))
	name, err := client.GetConfig(ctx, acc, "displayname")
	require.NoError(t, err)
	require.Equal(t, "Tester", name)
}

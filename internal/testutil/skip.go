// Package testutil holds helpers shared by tests across packages.
package testutil

import (
	"os"
	"os/exec"
	"testing"
)

// RPCServerBinary is the engine binary integration tests look for in PATH.
const RPCServerBinary = "deltachat-rpc-server"

// SkipIfNoRPCServer skips the test unless deltachat-rpc-server is installed,
// and returns its path. Setting CURSEDDELTA_TEST_SKIP_RPC skips regardless,
// for sandboxes where the server cannot reach its data directory.
func SkipIfNoRPCServer(t *testing.T) string {
	t.Helper()
	if os.Getenv("CURSEDDELTA_TEST_SKIP_RPC") != "" {
		t.Skip("skipping rpc server test: CURSEDDELTA_TEST_SKIP_RPC is set")
	}
	path, err := exec.LookPath(RPCServerBinary)
	if err != nil {
		t.Skipf("skipping rpc server test: %s not found in PATH", RPCServerBinary)
	}
	return path
}

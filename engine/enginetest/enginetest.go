// Package enginetest holds the behaviour every engine implementation must
// share. Engine packages run it from their own tests.
package enginetest

import (
	"io"
	"testing"

	"github.com/quanghuy1258/wallet/engine"
	"github.com/stretchr/testify/require"
)

// DriverFactory returns a fresh driver for a single test.
type DriverFactory func(t *testing.T) engine.Driver

type testCase struct {
	name string
	test func(t *testing.T, drv engine.Driver, dir string)
}

var testCases = []testCase{
	{name: "put get delete", test: testPutGetDelete},
	{name: "no overwrite", test: testNoOverwrite},
	{name: "open missing file", test: testOpenMissing},
	{name: "double open", test: testDoubleOpen},
	{name: "txn commit", test: testTxnCommit},
	{name: "txn abort", test: testTxnAbort},
	{name: "txn reuse", test: testTxnReuse},
	{name: "read-only txn", test: testReadOnlyTxn},
	{name: "cursor order", test: testCursorOrder},
	{name: "cursor across writes", test: testCursorAcrossWrites},
	{name: "cursor after txn end", test: testCursorAfterTxnEnd},
	{name: "reopen keeps data", test: testReopen},
	{name: "closed env", test: testClosedEnv},
	{name: "verify", test: testVerify},
	{name: "checkpoint", test: testCheckpoint},
}

// Run runs the conformance tests against the drivers made by newDriver.
func Run(t *testing.T, newDriver DriverFactory) {
	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			tc.test(t, newDriver(t), t.TempDir())
		})
	}
}

func openEnv(t *testing.T, drv engine.Driver, dir string) engine.Env {
	t.Helper()

	env, err := drv.Open(dir, engine.DefaultConfig(""))
	require.NoError(t, err)

	return env
}

func openFile(t *testing.T, env engine.Env, name string) engine.File {
	t.Helper()

	f, err := env.OpenFile(name, true)
	require.NoError(t, err)

	return f
}

func testPutGetDelete(t *testing.T, drv engine.Driver, dir string) {
	env := openEnv(t, drv, dir)
	defer func() { require.NoError(t, env.Close()) }()

	f := openFile(t, env, "wallet.dat")
	defer func() { require.NoError(t, f.Close()) }()

	require.Equal(t, "wallet.dat", f.Name())

	_, err := f.Get(nil, []byte("k"))
	require.ErrorIs(t, err, engine.ErrNotFound)

	require.NoError(t, f.Put(nil, []byte("k"), []byte("v"), true))

	value, err := f.Get(nil, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)

	ok, err := f.Exists(nil, []byte("k"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, f.Delete(nil, []byte("k")))
	require.ErrorIs(t, f.Delete(nil, []byte("k")), engine.ErrNotFound)

	ok, err = f.Exists(nil, []byte("k"))
	require.NoError(t, err)
	require.False(t, ok)
}

func testNoOverwrite(t *testing.T, drv engine.Driver, dir string) {
	env := openEnv(t, drv, dir)
	defer func() { require.NoError(t, env.Close()) }()

	f := openFile(t, env, "wallet.dat")
	defer func() { require.NoError(t, f.Close()) }()

	require.NoError(t, f.Put(nil, []byte("k"), []byte("v1"), false))
	require.ErrorIs(
		t, f.Put(nil, []byte("k"), []byte("v2"), false),
		engine.ErrKeyExists,
	)

	value, err := f.Get(nil, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), value)

	require.NoError(t, f.Put(nil, []byte("k"), []byte("v2"), true))
	value, err = f.Get(nil, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v2"), value)
}

func testOpenMissing(t *testing.T, drv engine.Driver, dir string) {
	env := openEnv(t, drv, dir)
	defer func() { require.NoError(t, env.Close()) }()

	_, err := env.OpenFile("missing.dat", false)
	require.ErrorIs(t, err, engine.ErrFileNotFound)

	_, err = env.OpenFile("../escape.dat", true)
	require.ErrorIs(t, err, engine.ErrInvalidName)
}

func testDoubleOpen(t *testing.T, drv engine.Driver, dir string) {
	env := openEnv(t, drv, dir)
	defer func() { require.NoError(t, env.Close()) }()

	f := openFile(t, env, "wallet.dat")

	_, err := env.OpenFile("wallet.dat", true)
	require.ErrorIs(t, err, engine.ErrFileOpen)

	require.NoError(t, f.Close())

	f = openFile(t, env, "wallet.dat")
	require.NoError(t, f.Close())
}

func testTxnCommit(t *testing.T, drv engine.Driver, dir string) {
	env := openEnv(t, drv, dir)
	defer func() { require.NoError(t, env.Close()) }()

	f := openFile(t, env, "wallet.dat")
	defer func() { require.NoError(t, f.Close()) }()

	txn, err := env.BeginTxn(false)
	require.NoError(t, err)

	require.NoError(t, f.Put(txn, []byte("a"), []byte("1"), true))
	require.NoError(t, f.Put(txn, []byte("b"), []byte("2"), true))

	value, err := f.Get(txn, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)

	require.NoError(t, txn.Commit())

	value, err = f.Get(nil, []byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), value)
}

func testTxnAbort(t *testing.T, drv engine.Driver, dir string) {
	env := openEnv(t, drv, dir)
	defer func() { require.NoError(t, env.Close()) }()

	f := openFile(t, env, "wallet.dat")
	defer func() { require.NoError(t, f.Close()) }()

	require.NoError(t, f.Put(nil, []byte("keep"), []byte("1"), true))

	txn, err := env.BeginTxn(false)
	require.NoError(t, err)

	require.NoError(t, f.Put(txn, []byte("gone"), []byte("2"), true))
	require.NoError(t, f.Delete(txn, []byte("keep")))
	require.NoError(t, txn.Abort())

	_, err = f.Get(nil, []byte("gone"))
	require.ErrorIs(t, err, engine.ErrNotFound)

	ok, err := f.Exists(nil, []byte("keep"))
	require.NoError(t, err)
	require.True(t, ok)
}

func testTxnReuse(t *testing.T, drv engine.Driver, dir string) {
	env := openEnv(t, drv, dir)
	defer func() { require.NoError(t, env.Close()) }()

	f := openFile(t, env, "wallet.dat")
	defer func() { require.NoError(t, f.Close()) }()

	txn, err := env.BeginTxn(false)
	require.NoError(t, err)
	require.NoError(t, txn.Commit())

	require.ErrorIs(t, txn.Commit(), engine.ErrTxnDone)
	require.ErrorIs(t, txn.Abort(), engine.ErrTxnDone)
	require.ErrorIs(
		t, f.Put(txn, []byte("k"), []byte("v"), true), engine.ErrTxnDone,
	)
}

func testReadOnlyTxn(t *testing.T, drv engine.Driver, dir string) {
	env := openEnv(t, drv, dir)
	defer func() { require.NoError(t, env.Close()) }()

	f := openFile(t, env, "wallet.dat")
	defer func() { require.NoError(t, f.Close()) }()

	require.NoError(t, f.Put(nil, []byte("a"), []byte("1"), true))

	// Two readers on the same file do not wait for each other.
	first, err := env.BeginTxn(true)
	require.NoError(t, err)
	second, err := env.BeginTxn(true)
	require.NoError(t, err)

	for _, txn := range []engine.Txn{first, second} {
		value, err := f.Get(txn, []byte("a"))
		require.NoError(t, err)
		require.Equal(t, []byte("1"), value)
	}

	require.ErrorIs(
		t, f.Put(first, []byte("b"), []byte("2"), true),
		engine.ErrTxnReadOnly,
	)
	require.ErrorIs(t, f.Delete(second, []byte("a")), engine.ErrTxnReadOnly)

	// A writer is not blocked by the readers and they keep their view.
	require.NoError(t, f.Put(nil, []byte("a"), []byte("3"), true))

	value, err := f.Get(first, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), value)

	require.NoError(t, first.Commit())
	require.NoError(t, second.Abort())

	value, err = f.Get(nil, []byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("3"), value)
}

func testCursorOrder(t *testing.T, drv engine.Driver, dir string) {
	env := openEnv(t, drv, dir)
	defer func() { require.NoError(t, env.Close()) }()

	f := openFile(t, env, "wallet.dat")
	defer func() { require.NoError(t, f.Close()) }()

	for _, k := range []string{"c", "a", "b"} {
		require.NoError(t, f.Put(nil, []byte(k), []byte("v"+k), true))
	}

	cur, err := f.Cursor(nil)
	require.NoError(t, err)

	var keys []string
	for {
		k, v, err := cur.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.Equal(t, "v"+string(k), string(v))

		keys = append(keys, string(k))
	}
	require.NoError(t, cur.Close())
	require.Equal(t, []string{"a", "b", "c"}, keys)

	// An exhausted cursor stays exhausted.
	_, _, err = cur.Next()
	require.ErrorIs(t, err, io.EOF)
}

func testCursorAcrossWrites(t *testing.T, drv engine.Driver, dir string) {
	env := openEnv(t, drv, dir)
	defer func() { require.NoError(t, env.Close()) }()

	f := openFile(t, env, "wallet.dat")
	defer func() { require.NoError(t, f.Close()) }()

	require.NoError(t, f.Put(nil, []byte("a"), []byte("1"), true))
	require.NoError(t, f.Put(nil, []byte("c"), []byte("3"), true))

	cur, err := f.Cursor(nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, cur.Close()) }()

	k, _, err := cur.Next()
	require.NoError(t, err)
	require.Equal(t, []byte("a"), k)

	// A write large enough to grow the file must not wait for the cursor.
	big := make([]byte, 4<<20)
	require.NoError(t, f.Put(nil, []byte("a"), big, true))

	k, v, err := cur.Next()
	require.NoError(t, err)
	require.Equal(t, []byte("c"), k)
	require.Equal(t, []byte("3"), v)

	_, _, err = cur.Next()
	require.ErrorIs(t, err, io.EOF)
}

func testCursorAfterTxnEnd(t *testing.T, drv engine.Driver, dir string) {
	env := openEnv(t, drv, dir)
	defer func() { require.NoError(t, env.Close()) }()

	f := openFile(t, env, "wallet.dat")
	defer func() { require.NoError(t, f.Close()) }()

	require.NoError(t, f.Put(nil, []byte("a"), []byte("1"), true))
	require.NoError(t, f.Put(nil, []byte("b"), []byte("2"), true))

	ends := map[string]func(engine.Txn) error{
		"commit": engine.Txn.Commit,
		"abort":  engine.Txn.Abort,
	}
	for name, end := range ends {
		txn, err := env.BeginTxn(false)
		require.NoError(t, err)

		cur, err := f.Cursor(txn)
		require.NoError(t, err)

		_, _, err = cur.Next()
		require.NoError(t, err, name)
		require.NoError(t, end(txn), name)

		_, _, err = cur.Next()
		require.ErrorIs(t, err, engine.ErrTxnDone, name)
		require.NoError(t, cur.Close(), name)
	}
}

func testReopen(t *testing.T, drv engine.Driver, dir string) {
	env := openEnv(t, drv, dir)
	f := openFile(t, env, "wallet.dat")
	require.NoError(t, f.Put(nil, []byte("k"), []byte("v"), true))
	require.NoError(t, f.Close())
	require.NoError(t, env.Checkpoint(0, 0))
	require.NoError(t, env.Close())

	env = openEnv(t, drv, dir)
	defer func() { require.NoError(t, env.Close()) }()

	f, err := env.OpenFile("wallet.dat", false)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	value, err := f.Get(nil, []byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)
}

func testClosedEnv(t *testing.T, drv engine.Driver, dir string) {
	env := openEnv(t, drv, dir)
	require.NoError(t, env.Close())

	require.ErrorIs(t, env.Close(), engine.ErrEnvClosed)
	require.ErrorIs(t, env.Checkpoint(0, 0), engine.ErrEnvClosed)

	_, err := env.OpenFile("wallet.dat", true)
	require.ErrorIs(t, err, engine.ErrEnvClosed)

	_, err = env.BeginTxn(false)
	require.ErrorIs(t, err, engine.ErrEnvClosed)

	_, err = env.ArchivedLogFiles()
	require.ErrorIs(t, err, engine.ErrEnvClosed)
}

func testVerify(t *testing.T, drv engine.Driver, dir string) {
	env := openEnv(t, drv, dir)
	defer func() { require.NoError(t, env.Close()) }()

	require.ErrorIs(t, env.Verify("missing.dat"), engine.ErrFileNotFound)

	f := openFile(t, env, "wallet.dat")
	require.NoError(t, f.Put(nil, []byte("k"), []byte("v"), true))
	require.ErrorIs(t, env.Verify("wallet.dat"), engine.ErrFileOpen)

	require.NoError(t, f.Close())
	require.NoError(t, env.Verify("wallet.dat"))
}

func testCheckpoint(t *testing.T, drv engine.Driver, dir string) {
	env := openEnv(t, drv, dir)
	defer func() { require.NoError(t, env.Close()) }()

	f := openFile(t, env, "wallet.dat")
	defer func() { require.NoError(t, f.Close()) }()

	require.NoError(t, f.Put(nil, []byte("k"), []byte("v"), true))
	require.NoError(t, env.Checkpoint(0, 0))
	require.NoError(t, env.Checkpoint(1024, 60))

	_, err := env.ArchivedLogFiles()
	require.NoError(t, err)
}

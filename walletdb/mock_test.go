package walletdb

import (
	"github.com/quanghuy1258/wallet/engine"
	"github.com/stretchr/testify/mock"
)

type mockDriver struct {
	mock.Mock
}

func (m *mockDriver) Name() string {
	return "mock"
}

func (m *mockDriver) Open(dir string, cfg *engine.Config) (engine.Env, error) {
	args := m.Called(dir, cfg)
	env, _ := args.Get(0).(engine.Env)

	return env, args.Error(1)
}

type mockEnv struct {
	mock.Mock
}

func (m *mockEnv) Close() error {
	return m.Called().Error(0)
}

func (m *mockEnv) Checkpoint(sizeKB, minMinutes uint32) error {
	return m.Called(sizeKB, minMinutes).Error(0)
}

func (m *mockEnv) ArchivedLogFiles() ([]string, error) {
	args := m.Called()
	files, _ := args.Get(0).([]string)

	return files, args.Error(1)
}

func (m *mockEnv) OpenFile(name string, create bool) (engine.File, error) {
	args := m.Called(name, create)
	f, _ := args.Get(0).(engine.File)

	return f, args.Error(1)
}

func (m *mockEnv) BeginTxn(readOnly bool) (engine.Txn, error) {
	args := m.Called(readOnly)
	txn, _ := args.Get(0).(engine.Txn)

	return txn, args.Error(1)
}

func (m *mockEnv) Verify(name string) error {
	return m.Called(name).Error(0)
}

func (m *mockEnv) FilePath(name string) string {
	return m.Called(name).String(0)
}

type mockFile struct {
	mock.Mock
}

func (m *mockFile) Name() string {
	return m.Called().String(0)
}

func (m *mockFile) Close() error {
	return m.Called().Error(0)
}

func (m *mockFile) Get(txn engine.Txn, key []byte) ([]byte, error) {
	args := m.Called(txn, key)
	value, _ := args.Get(0).([]byte)

	return value, args.Error(1)
}

func (m *mockFile) Put(txn engine.Txn, key, value []byte,
	overwrite bool) error {

	return m.Called(txn, key, value, overwrite).Error(0)
}

func (m *mockFile) Delete(txn engine.Txn, key []byte) error {
	return m.Called(txn, key).Error(0)
}

func (m *mockFile) Exists(txn engine.Txn, key []byte) (bool, error) {
	args := m.Called(txn, key)

	return args.Bool(0), args.Error(1)
}

func (m *mockFile) Cursor(txn engine.Txn) (engine.Cursor, error) {
	args := m.Called(txn)
	c, _ := args.Get(0).(engine.Cursor)

	return c, args.Error(1)
}

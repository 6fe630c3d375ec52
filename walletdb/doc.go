// Package walletdb manages wallet database files inside a shared storage
// environment. An Environment owns the engine for one directory and the lock
// on it, Databases are the named files inside it, and Batches are the
// sessions that read and write a Database, optionally inside a transaction.
//
// Every Batch counts as a user of its file from creation until Close. Files
// in use are never closed: Environment.Close, Database.Close and
// Database.Release fail with ErrInUse, while Environment.Reload and
// Database.Backup wait for the users to go away.
package walletdb

// Package testutil provides shared test helpers for setting up stores.
package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/tormodh/perch/internal/kvstore"
	"github.com/tormodh/perch/internal/session"
)

// TestKV creates an in-memory Badger store that is automatically closed.
func TestKV(t *testing.T) *kvstore.Store {
	t.Helper()
	kv, err := kvstore.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

// TestSessions creates a temporary session database that is automatically
// cleaned up.
func TestSessions(t *testing.T, ttl time.Duration) *session.Store {
	t.Helper()
	dbFile, err := os.CreateTemp("", "perch-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	store, err := session.Open(dbFile.Name(), ttl)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

package memstore

import (
	gotesting "testing"

	"github.com/ValentinKolb/dREST/lib/store/testing"
)

func TestMemoryStore(t *gotesting.T) {
	testing.RunEntityStoreTests(t, "MemoryStore", NewMemoryStore)
}

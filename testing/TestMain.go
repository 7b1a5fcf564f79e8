package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

// collaborator URLs point at a closed port so a stray call fails fast.
func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("WAREHOUSE_TEST_MODE", "1")
		for _, key := range []string{"CATALOG_URL", "STORE_URL", "PARTNER_URL", "USER_URL"} {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, "http://127.0.0.1:0")
			}
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}

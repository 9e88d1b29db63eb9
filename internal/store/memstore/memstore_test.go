package memstore_test

import (
	"testing"
	"time"

	"github.com/jensholdgaard/zoo-auction/internal/clock"
	"github.com/jensholdgaard/zoo-auction/internal/store"
	"github.com/jensholdgaard/zoo-auction/internal/store/memstore"
	"github.com/jensholdgaard/zoo-auction/internal/store/storetest"
)

func TestMemstore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) *store.Repositories {
		return memstore.New(clock.NewMock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
	})
}

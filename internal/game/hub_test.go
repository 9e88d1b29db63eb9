package game_test

import (
	"testing"

	"github.com/peterldowns/testy/check"

	"github.com/jensholdgaard/zoo-auction/internal/game"
)

func TestHub_SubscribeReceivesLatest(t *testing.T) {
	h := game.NewHub()
	h.Publish(game.Snapshot{Seq: 1})
	h.Publish(game.Snapshot{Seq: 2})

	ch, cancel := h.Subscribe(4)
	defer cancel()

	check.Equal(t, 1, len(ch))
	check.Equal(t, uint64(2), (<-ch).Seq)
}

func TestHub_DropsOldestWhenFull(t *testing.T) {
	h := game.NewHub()
	ch, cancel := h.Subscribe(2)
	defer cancel()

	for seq := uint64(1); seq <= 5; seq++ {
		h.Publish(game.Snapshot{Seq: seq})
	}

	check.Equal(t, 2, len(ch))
	check.Equal(t, uint64(4), (<-ch).Seq)
	check.Equal(t, uint64(5), (<-ch).Seq)
}

func TestHub_Cancel(t *testing.T) {
	h := game.NewHub()
	ch, cancel := h.Subscribe(1)
	other, cancelOther := h.Subscribe(1)
	defer cancelOther()
	check.Equal(t, 2, h.Subscribers())

	cancel()
	cancel()
	check.Equal(t, 1, h.Subscribers())

	_, open := <-ch
	check.False(t, open)

	h.Publish(game.Snapshot{Seq: 7})
	check.Equal(t, uint64(7), (<-other).Seq)
}

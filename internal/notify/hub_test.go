package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TrinoEventPump/internal/models"
)

func TestHub_Delivers(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe(4)
	defer cancel()

	h.Publish(models.QueryView{QueryID: "q1"})

	select {
	case v := <-ch:
		assert.Equal(t, "q1", v.QueryID)
	case <-time.After(time.Second):
		t.Fatal("уведомление не доставлено")
	}
}

func TestHub_DropsInsteadOfBlocking(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			h.Publish(models.QueryView{QueryID: "q"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish заблокировался на полном подписчике")
	}
	assert.Len(t, ch, 1)
	assert.Equal(t, int64(99), h.Dropped())
}

func TestHub_Cancel(t *testing.T) {
	h := NewHub(nil)
	ch, cancel := h.Subscribe(1)
	require.Equal(t, 1, h.Subscribers())

	cancel()
	cancel()
	assert.Equal(t, 0, h.Subscribers())

	_, ok := <-ch
	assert.False(t, ok)

	// публикация без подписчиков ничего не делает
	h.Publish(models.QueryView{QueryID: "q"})
}

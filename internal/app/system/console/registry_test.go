package console_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/paydesk/internal/app/system/console"
	"github.com/dalemusser/paydesk/internal/app/system/dispatch"
	"github.com/dalemusser/paydesk/internal/domain/models"
)

type screenMap map[string]*models.Screen

func (m screenMap) Screen(name string) (*models.Screen, bool) {
	s, ok := m[name]
	return s, ok
}

func TestRegistry_GetAndEvict(t *testing.T) {
	be := &fakeBackend{records: deposits(2)}
	reg := console.NewRegistry(screenMap{"deposits": depositScreen()}, be, dispatch.New(be, dispatch.Options{}), nil)

	a, err := reg.Get("s1", "deposits")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	again, _ := reg.Get("s1", "deposits")
	if a != again {
		t.Error("same session and screen should return the same console")
	}
	b, _ := reg.Get("s2", "deposits")
	if a == b {
		t.Error("sessions must not share consoles")
	}
	if _, err := reg.Get("s1", "payroll"); !errors.Is(err, console.ErrUnknownScreen) {
		t.Errorf("unknown screen err = %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("len = %d, want 2", reg.Len())
	}

	if n := reg.EvictIdle(time.Now(), time.Hour); n != 0 {
		t.Errorf("evicted %d fresh consoles", n)
	}
	if n := reg.EvictIdle(time.Now().Add(2*time.Hour), time.Hour); n != 2 {
		t.Errorf("evicted %d, want 2", n)
	}
	if reg.Len() != 0 {
		t.Errorf("len after eviction = %d", reg.Len())
	}
}

func TestRegistry_EvictSkipsBusy(t *testing.T) {
	be := &fakeBackend{records: deposits(2), block: make(chan struct{})}
	reg := console.NewRegistry(screenMap{"deposits": depositScreen()}, be, dispatch.New(be, dispatch.Options{}), nil)
	c, _ := reg.Get("s1", "deposits")

	done := make(chan error, 1)
	go func() { done <- c.Refresh(context.Background(), nil) }()
	deadline := time.Now().Add(time.Second)
	for !c.Busy() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if n := reg.EvictIdle(time.Now().Add(24*time.Hour), time.Minute); n != 0 {
		t.Errorf("evicted a busy console")
	}
	close(be.block)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}

func TestRegistry_DropSession(t *testing.T) {
	be := &fakeBackend{}
	other := depositScreen()
	other.Name = "other"
	screens := screenMap{"deposits": depositScreen(), "other": other}
	reg := console.NewRegistry(screens, be, dispatch.New(be, dispatch.Options{}), nil)
	reg.Get("s1", "deposits")
	reg.Get("s1", "other")
	reg.Get("s2", "deposits")

	if n := reg.DropSession("s1"); n != 2 {
		t.Errorf("dropped %d, want 2", n)
	}
	if reg.Len() != 1 {
		t.Errorf("len = %d, want 1", reg.Len())
	}
}

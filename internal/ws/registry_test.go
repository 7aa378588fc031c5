package ws

import (
	"sync"
	"testing"

	"alumninet/internal/auth"
	"alumninet/internal/models"
)

func testClient(ep models.Endpoint) *Client {
	return newClient(nil, auth.Identity{Endpoint: ep}, 8)
}

func TestRegistry_RegisterLookup(t *testing.T) {
	r := NewRegistry()
	ep := models.StudentRef("s1")
	c := testClient(ep)

	if _, ok := r.Lookup(ep); ok {
		t.Fatal("Lookup() on empty registry found a client")
	}
	if displaced := r.Register(ep, c); displaced != nil {
		t.Errorf("Register() displaced = %p, want nil", displaced)
	}
	got, ok := r.Lookup(ep)
	if !ok || got != c {
		t.Errorf("Lookup() = %p, %v; want %p", got, ok, c)
	}
	// 同一 id 不同角色是不同的用户
	if r.Online(models.AlumnusRef("s1")) {
		t.Error("Online() matched across roles")
	}
}

func TestRegistry_LastWriterWins(t *testing.T) {
	r := NewRegistry()
	ep := models.AlumnusRef("a1")
	first, second := testClient(ep), testClient(ep)

	r.Register(ep, first)
	if displaced := r.Register(ep, second); displaced != first {
		t.Errorf("Register() displaced = %p, want %p", displaced, first)
	}
	if got, _ := r.Lookup(ep); got != second {
		t.Errorf("Lookup() = %p, want newest %p", got, second)
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}

	// 旧连接关闭时不能误删新连接
	if r.Release(ep, first) {
		t.Error("Release() of displaced client returned true")
	}
	if got, _ := r.Lookup(ep); got != second {
		t.Errorf("Lookup() after stale release = %p, want %p", got, second)
	}
	if !r.Release(ep, second) {
		t.Error("Release() of current client returned false")
	}
	if r.Online(ep) {
		t.Error("Online() after release = true")
	}
}

func TestRegistry_UnregisterIdempotent(t *testing.T) {
	r := NewRegistry()
	ep := models.StudentRef("s1")
	r.Register(ep, testClient(ep))

	r.Unregister(ep)
	r.Unregister(ep)
	if r.Online(ep) || r.Len() != 0 {
		t.Errorf("registry after double Unregister: online=%v len=%d", r.Online(ep), r.Len())
	}
}

func TestRegistry_Close(t *testing.T) {
	r := NewRegistry()
	a, b := testClient(models.StudentRef("s1")), testClient(models.AlumnusRef("a1"))
	r.Register(a.Endpoint(), a)
	r.Register(b.Endpoint(), b)

	r.Close()
	if r.Len() != 0 {
		t.Errorf("Len() after Close = %d, want 0", r.Len())
	}
	if a.Send([]byte("x")) || b.Send([]byte("x")) {
		t.Error("Send() succeeded on a closed client")
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ep := models.StudentRef(string(rune('a' + i%5)))
			c := testClient(ep)
			r.Register(ep, c)
			r.Lookup(ep)
			r.Release(ep, c)
		}(i)
	}
	wg.Wait()
	if r.Len() > 5 {
		t.Errorf("Len() = %d, want at most 5", r.Len())
	}
}

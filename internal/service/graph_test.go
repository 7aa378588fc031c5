package service

import (
	"context"
	"errors"
	"testing"

	"alumninet/internal/models"
)

func TestGraph_InviteThenAccept(t *testing.T) {
	gdb := newTestDB(t)
	g := NewGraph(gdb)
	ctx := context.Background()
	s := seedStudent(t, gdb, "s@uni.edu")
	a := seedAlumnus(t, gdb, "a@corp.com")

	if err := g.Invite(ctx, s.ID, a.ID); err != nil {
		t.Fatalf("Invite() error = %v", err)
	}
	if got := mustState(t, g, s.ID, a.ID); got != models.LinkPending {
		t.Fatalf("state after invite = %v, want pending", got)
	}
	sent, _ := g.Pending(ctx, s.Endpoint())
	inv, _ := g.Pending(ctx, a.Endpoint())
	if len(sent) != 1 || sent[0] != a.Endpoint() {
		t.Errorf("student sent requests = %v", sent)
	}
	if len(inv) != 1 || inv[0] != s.Endpoint() {
		t.Errorf("alumnus invitations = %v", inv)
	}

	if err := g.RespondToInvitation(ctx, a.ID, s.ID, ActionAccept); err != nil {
		t.Fatalf("RespondToInvitation() error = %v", err)
	}

	sc, _ := g.Connections(ctx, s.Endpoint())
	ac, _ := g.Connections(ctx, a.Endpoint())
	if len(sc) != 1 || sc[0] != a.Endpoint() {
		t.Errorf("student connections = %v, want [%v]", sc, a.Endpoint())
	}
	if len(ac) != 1 || ac[0] != s.Endpoint() {
		t.Errorf("alumnus connections = %v, want [%v]", ac, s.Endpoint())
	}
	sent, _ = g.Pending(ctx, s.Endpoint())
	inv, _ = g.Pending(ctx, a.Endpoint())
	if len(sent) != 0 || len(inv) != 0 {
		t.Errorf("pending edges remain after accept: sent=%v invitations=%v", sent, inv)
	}

	for _, pair := range [][2]models.Endpoint{{s.Endpoint(), a.Endpoint()}, {a.Endpoint(), s.Endpoint()}} {
		ok, err := g.IsConnected(ctx, pair[0], pair[1])
		if err != nil || !ok {
			t.Errorf("IsConnected(%v, %v) = %v, %v; want true", pair[0], pair[1], ok, err)
		}
	}
}

func TestGraph_Reject(t *testing.T) {
	gdb := newTestDB(t)
	g := NewGraph(gdb)
	ctx := context.Background()
	s := seedStudent(t, gdb, "s@uni.edu")
	a := seedAlumnus(t, gdb, "a@corp.com")

	_ = g.Invite(ctx, s.ID, a.ID)
	if err := g.RespondToInvitation(ctx, a.ID, s.ID, ActionReject); err != nil {
		t.Fatalf("RespondToInvitation() error = %v", err)
	}
	if got := mustState(t, g, s.ID, a.ID); got != models.LinkNone {
		t.Errorf("state after reject = %v, want none", got)
	}
	if ok, _ := g.IsConnected(ctx, s.Endpoint(), a.Endpoint()); ok {
		t.Error("rejected pair reported as connected")
	}
}

func TestGraph_RejectKeepsExistingConnection(t *testing.T) {
	gdb := newTestDB(t)
	g := NewGraph(gdb)
	ctx := context.Background()
	s := seedStudent(t, gdb, "s@uni.edu")
	a := seedAlumnus(t, gdb, "a@corp.com")

	_ = g.RespondToInvitation(ctx, a.ID, s.ID, ActionAccept)
	if err := g.RespondToInvitation(ctx, a.ID, s.ID, ActionReject); err != nil {
		t.Fatalf("RespondToInvitation() error = %v", err)
	}
	if got := mustState(t, g, s.ID, a.ID); got != models.LinkConnected {
		t.Errorf("state = %v, want connected", got)
	}
}

func TestGraph_RespondIsIdempotent(t *testing.T) {
	gdb := newTestDB(t)
	g := NewGraph(gdb)
	ctx := context.Background()
	s := seedStudent(t, gdb, "s@uni.edu")
	a := seedAlumnus(t, gdb, "a@corp.com")
	_ = g.Invite(ctx, s.ID, a.ID)

	for i := 0; i < 3; i++ {
		if err := g.RespondToInvitation(ctx, a.ID, s.ID, ActionAccept); err != nil {
			t.Fatalf("attempt %d: RespondToInvitation() error = %v", i, err)
		}
	}
	var n int64
	gdb.Model(&models.Link{}).Count(&n)
	if n != 1 {
		t.Errorf("links rows = %d, want 1", n)
	}
	if got := mustState(t, g, s.ID, a.ID); got != models.LinkConnected {
		t.Errorf("state = %v, want connected", got)
	}
}

func TestGraph_NotFoundDoesNotMutate(t *testing.T) {
	gdb := newTestDB(t)
	g := NewGraph(gdb)
	ctx := context.Background()
	s := seedStudent(t, gdb, "s@uni.edu")
	a := seedAlumnus(t, gdb, "a@corp.com")
	_ = g.Invite(ctx, s.ID, a.ID)

	tests := []struct {
		name      string
		alumnusID string
		studentID string
	}{
		{"missing alumnus", "no-such-alumnus", s.ID},
		{"missing student", a.ID, "no-such-student"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.RespondToInvitation(ctx, tt.alumnusID, tt.studentID, ActionAccept)
			if !errors.Is(err, ErrNotFound) {
				t.Fatalf("RespondToInvitation() error = %v, want ErrNotFound", err)
			}
			if got := mustState(t, g, s.ID, a.ID); got != models.LinkPending {
				t.Errorf("existing pending edge changed to %v", got)
			}
		})
	}

	if err := g.Invite(ctx, "ghost", a.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Invite() with missing student error = %v, want ErrNotFound", err)
	}
}

func TestGraph_InviteEdgeCases(t *testing.T) {
	gdb := newTestDB(t)
	g := NewGraph(gdb)
	ctx := context.Background()
	s := seedStudent(t, gdb, "s@uni.edu")
	a := seedAlumnus(t, gdb, "a@corp.com")

	if err := g.Invite(ctx, s.ID, a.ID); err != nil {
		t.Fatalf("Invite() error = %v", err)
	}
	if err := g.Invite(ctx, s.ID, a.ID); err != nil {
		t.Fatalf("duplicate Invite() error = %v, want nil", err)
	}
	_ = g.RespondToInvitation(ctx, a.ID, s.ID, ActionAccept)
	if err := g.Invite(ctx, s.ID, a.ID); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("Invite() after accept error = %v, want ErrAlreadyConnected", err)
	}
}

func TestGraph_InvalidAction(t *testing.T) {
	g := NewGraph(newTestDB(t))
	if err := g.RespondToInvitation(context.Background(), "a", "s", Action("maybe")); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("RespondToInvitation() error = %v, want ErrInvalidAction", err)
	}
	if _, err := ParseAction("ignore"); !errors.Is(err, ErrInvalidAction) {
		t.Errorf("ParseAction() error = %v, want ErrInvalidAction", err)
	}
}

func TestGraph_IsConnectedSameRoleOrUnknown(t *testing.T) {
	gdb := newTestDB(t)
	g := NewGraph(gdb)
	ctx := context.Background()
	s1 := seedStudent(t, gdb, "s1@uni.edu")
	s2 := seedStudent(t, gdb, "s2@uni.edu")
	a := seedAlumnus(t, gdb, "a@corp.com")
	_ = g.RespondToInvitation(ctx, a.ID, s1.ID, ActionAccept)

	tests := []struct {
		name string
		a, b models.Endpoint
	}{
		{"two students", s1.Endpoint(), s2.Endpoint()},
		{"unconnected student", s2.Endpoint(), a.Endpoint()},
		{"bad role tag", s1.Endpoint(), models.Endpoint{Role: "college", ID: a.ID}},
		{"wrong role tag on target", s1.Endpoint(), models.StudentRef(a.ID)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := g.IsConnected(ctx, tt.a, tt.b)
			if err != nil || ok {
				t.Errorf("IsConnected() = %v, %v; want false, nil", ok, err)
			}
		})
	}
}

// Any interleaving of invite/respond calls never leaves a pair both pending and connected,
// and the two projections always agree.
func TestGraph_InvariantUnderSequences(t *testing.T) {
	gdb := newTestDB(t)
	g := NewGraph(gdb)
	ctx := context.Background()
	s := seedStudent(t, gdb, "s@uni.edu")
	a := seedAlumnus(t, gdb, "a@corp.com")

	ops := []func(){
		func() { _ = g.Invite(ctx, s.ID, a.ID) },
		func() { _ = g.RespondToInvitation(ctx, a.ID, s.ID, ActionAccept) },
		func() { _ = g.RespondToInvitation(ctx, a.ID, s.ID, ActionReject) },
	}
	seq := []int{0, 0, 2, 1, 0, 2, 2, 0, 1, 1, 0, 2, 1}
	for step, op := range seq {
		ops[op]()

		pendingS, _ := g.Pending(ctx, s.Endpoint())
		pendingA, _ := g.Pending(ctx, a.Endpoint())
		connS, _ := g.Connections(ctx, s.Endpoint())
		connA, _ := g.Connections(ctx, a.Endpoint())

		if len(pendingS) != len(pendingA) || len(connS) != len(connA) {
			t.Fatalf("step %d: asymmetric views pending=%d/%d connected=%d/%d",
				step, len(pendingS), len(pendingA), len(connS), len(connA))
		}
		if len(pendingS) > 0 && len(connS) > 0 {
			t.Fatalf("step %d: pair is both pending and connected", step)
		}
	}
}

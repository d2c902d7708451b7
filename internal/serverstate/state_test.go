package serverstate

import "testing"

func TestTrackerMemory(t *testing.T) {
	tr := NewTracker(nil)

	if got := tr.Load().Status; got != StatusNotReady {
		t.Fatalf("initial status = %q; want %q", got, StatusNotReady)
	}
	if tr.IsDraining() {
		t.Fatalf("initial draining = true; want false")
	}

	st := tr.Update(func(s *State) {
		s.Port = 5454
		s.PeerConnected = true
	})
	if st.Status != StatusReady {
		t.Fatalf("status after connect = %q; want %q", st.Status, StatusReady)
	}
	if st.UpdatedAt.IsZero() {
		t.Fatalf("UpdatedAt not set")
	}

	tr.Update(func(s *State) { s.PeerConnected = false })
	if got := tr.Load().Status; got != StatusNotReady {
		t.Fatalf("status after disconnect = %q; want %q", got, StatusNotReady)
	}

	tr.StartDrain()
	if got := tr.Load().Status; got != StatusDraining {
		t.Fatalf("status after StartDrain = %q; want %q", got, StatusDraining)
	}
	if !tr.IsDraining() {
		t.Fatalf("IsDraining = false; want true")
	}
	if got := tr.Load().Port; got != 5454 {
		t.Fatalf("port = %d; want 5454", got)
	}
}

func TestTrackerUseStore(t *testing.T) {
	tr := NewTracker(nil)
	tr.Update(func(s *State) { s.Port = 5455 })

	next := NewMemoryStore()
	tr.UseStore(next)
	if got := next.Load().Port; got != 5455 {
		t.Fatalf("carried port = %d; want 5455", got)
	}
	tr.Update(func(s *State) { s.PeerConnected = true })
	if got := next.Load().Status; got != StatusReady {
		t.Fatalf("new store status = %q; want %q", got, StatusReady)
	}
}

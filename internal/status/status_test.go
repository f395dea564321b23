package status

import "testing"

func TestFullWalkReachesCompleted(t *testing.T) {
	visited := map[Status]bool{PendingPayment: true}
	s := PendingPayment
	steps := 0

	for {
		n, ok := Next(s)
		if !ok {
			break
		}
		if visited[n] {
			t.Fatalf("status %s visited twice", n)
		}
		visited[n] = true
		s = n
		steps++
	}

	if s != Completed {
		t.Fatalf("walk ended at %s, want %s", s, Completed)
	}
	if steps != 5 {
		t.Fatalf("walk took %d transitions, want 5", steps)
	}
}

func TestTerminalStatusesHaveNoSuccessor(t *testing.T) {
	for _, s := range []Status{Completed, Cancelled} {
		if n, ok := Next(s); ok {
			t.Errorf("Next(%s) = %s, want none", s, n)
		}
		if !IsTerminal(s) {
			t.Errorf("IsTerminal(%s) = false, want true", s)
		}
	}
}

func TestUnknownStatusHasNoSuccessor(t *testing.T) {
	if _, ok := Next(Status("shipped")); ok {
		t.Error("Next of unknown status should return ok=false")
	}
	if IsValid(Status("shipped")) {
		t.Error("unknown status should not be valid")
	}
}

func TestCancelReachableFromEveryNonTerminal(t *testing.T) {
	for _, s := range []Status{PendingPayment, Paid, Preparing, Ready, Delivering} {
		if !CanCancel(s) {
			t.Errorf("CanCancel(%s) = false, want true", s)
		}
	}
	for _, s := range []Status{Completed, Cancelled} {
		if CanCancel(s) {
			t.Errorf("CanCancel(%s) = true, want false", s)
		}
	}
	if CanCancel(Status("bogus")) {
		t.Error("unknown status must not be cancellable")
	}
}

func TestOpenAndActiveSets(t *testing.T) {
	open := Open()
	if len(open) != 2 || open[0] != PendingPayment || open[1] != Preparing {
		t.Fatalf("Open() = %v", open)
	}

	for _, s := range Active() {
		if IsTerminal(s) {
			t.Errorf("Active() contains terminal status %s", s)
		}
	}
	if len(Active()) != 5 {
		t.Fatalf("Active() has %d statuses, want 5", len(Active()))
	}
}

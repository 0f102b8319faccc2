package session

import "testing"

func TestSubscribeFiresImmediately(t *testing.T) {
	st := NewStore()
	st.Set(Session{UserID: "u1", Token: "tok"})

	var got Session
	cancel := st.Subscribe(func(s Session) { got = s })
	defer cancel()

	if got.UserID != "u1" {
		t.Fatalf("late subscriber must see the current session, got %+v", got)
	}
}

func TestSetNotifiesAndClearLogsOut(t *testing.T) {
	st := NewStore()
	var seen []Session
	cancel := st.Subscribe(func(s Session) { seen = append(seen, s) })
	defer cancel()

	st.Set(Session{UserID: "u1", Token: "tok"})
	st.Clear()

	if len(seen) != 3 {
		t.Fatalf("expected initial + set + clear notifications, got %d", len(seen))
	}
	if !seen[1].Valid() || seen[2].Valid() {
		t.Fatalf("unexpected sequence: %+v", seen)
	}
}

func TestCancelStopsNotifications(t *testing.T) {
	st := NewStore()
	calls := 0
	cancel := st.Subscribe(func(Session) { calls++ })
	cancel()
	st.Set(Session{UserID: "u1", Token: "tok"})
	if calls != 1 {
		t.Fatalf("cancelled subscriber must not hear updates, got %d calls", calls)
	}
}

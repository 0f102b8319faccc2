package session

import "sync"

// Session is the client's identity plus its bearer credential. The zero value
// is "logged out".
type Session struct {
	UserID string
	Token  string
}

func (s Session) Valid() bool { return s.UserID != "" && s.Token != "" }

// Store holds the current session and notifies subscribers on every change.
// Reconnection of the presence channel is driven entirely by these
// notifications, not by a retry loop.
type Store struct {
	mu      sync.Mutex
	current Session
	subs    map[int]func(Session)
	nextID  int
}

func NewStore() *Store {
	return &Store{subs: make(map[int]func(Session))}
}

func (st *Store) Get() Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.current
}

// Set replaces the session and notifies all subscribers. Setting the zero
// value models logout.
func (st *Store) Set(s Session) {
	st.mu.Lock()
	st.current = s
	subs := make([]func(Session), 0, len(st.subs))
	for _, fn := range st.subs {
		subs = append(subs, fn)
	}
	st.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

// Clear logs the session out.
func (st *Store) Clear() { st.Set(Session{}) }

// Subscribe registers a change callback and returns a cancel func. The
// callback fires immediately with the current session so late subscribers
// converge.
func (st *Store) Subscribe(fn func(Session)) func() {
	st.mu.Lock()
	id := st.nextID
	st.nextID++
	st.subs[id] = fn
	current := st.current
	st.mu.Unlock()

	fn(current)

	return func() {
		st.mu.Lock()
		delete(st.subs, id)
		st.mu.Unlock()
	}
}

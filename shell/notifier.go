package shell

// Notifier pushes session events to whoever is watching. Calls happen while
// the session is locked and must not block.
type Notifier interface {
	Status(sessionID string, msg Message)
	StateChanged(sessionID string, state, step State)
}

type nopNotifier struct{}

func (nopNotifier) Status(string, Message)            {}
func (nopNotifier) StateChanged(string, State, State) {}

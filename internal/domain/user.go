package domain

import "time"

// Sender pushes one message to a connected client. Sends are fire-and-forget
// and ordered per connection; implementations must not block on network I/O.
type Sender interface {
	Send(msg any) error
}

// User is a connected, authenticated session: identity plus the owned
// connection handle. Destroyed when the connection closes, cascading removal
// of the user's subscriptions.
type User struct {
	ID        string
	Name      string
	Conn      Sender
	CreatedAt time.Time
}

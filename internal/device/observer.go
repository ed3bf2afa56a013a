package device

import "github.com/skobkin/joylink/internal/connectors"

// Observer receives link activity. Implementations must not block.
type Observer interface {
	LineReceived(n int)
	ReadingDecoded()
	MalformedLine()
	RecordIgnored()
	CommandSent()
	SendFailed()
	ConnectionState(state connectors.ConnectionState)
}

type nopObserver struct{}

func (nopObserver) LineReceived(int)                           {}
func (nopObserver) ReadingDecoded()                            {}
func (nopObserver) MalformedLine()                             {}
func (nopObserver) RecordIgnored()                             {}
func (nopObserver) CommandSent()                               {}
func (nopObserver) SendFailed()                                {}
func (nopObserver) ConnectionState(connectors.ConnectionState) {}

// Package event defines the wire vocabulary between client and server:
// the ClientCommand and ServerEvent tagged unions. Both unions are closed
// and are the single source of truth for the generated client bindings,
// so every variant carries an explicit wire tag.
package event

import (
	"encoding/json"
	"fmt"
)

// WelcomeText is the greeting delivered in response to a connect command.
const WelcomeText = "Hello from Rust"

// KeepAliveText is the marker carried by heartbeat frames on otherwise
// idle streams. It is transport chrome, not a ServerEvent.
const KeepAliveText = "keep-alive-text"

// ServerEvent is an event deliverable to a client over its stream.
// The set of implementations is closed; switches over ServerEvent
// should enumerate every variant.
type ServerEvent interface {
	serverEvent()
}

// Welcome greets a freshly connected client.
type Welcome struct {
	Text string
}

// SessionExpired tells a client its session is unknown to the server
// and the stream will yield nothing further.
type SessionExpired struct{}

func (Welcome) serverEvent()        {}
func (SessionExpired) serverEvent() {}

// ClientCommand is a command a client may submit for its session.
// Closed union; unknown wire tags decode to Unknown.
type ClientCommand interface {
	clientCommand()
}

// Connect asks the server to greet the session's stream.
type Connect struct{}

// Unknown preserves the wire tag of a command variant this build does
// not recognize. The dispatcher treats it as a no-op.
type Unknown struct {
	Type string
}

func (Connect) clientCommand() {}
func (Unknown) clientCommand() {}

const (
	tagWelcome        = "welcome"
	tagSessionExpired = "sessionExpired"
	tagConnect        = "connect"
)

type envelope struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// MarshalServerEvent encodes ev as its JSON wire form.
func MarshalServerEvent(ev ServerEvent) ([]byte, error) {
	switch e := ev.(type) {
	case Welcome:
		return json.Marshal(envelope{Type: tagWelcome, Text: e.Text})
	case SessionExpired:
		return json.Marshal(envelope{Type: tagSessionExpired})
	default:
		return nil, fmt.Errorf("unencodable server event %T", ev)
	}
}

// UnmarshalServerEvent decodes the JSON wire form of a ServerEvent.
func UnmarshalServerEvent(data []byte) (ServerEvent, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	switch env.Type {
	case tagWelcome:
		return Welcome{Text: env.Text}, nil
	case tagSessionExpired:
		return SessionExpired{}, nil
	default:
		return nil, fmt.Errorf("unknown server event type %q", env.Type)
	}
}

// MarshalClientCommand encodes cmd as its JSON wire form.
func MarshalClientCommand(cmd ClientCommand) ([]byte, error) {
	switch c := cmd.(type) {
	case Connect:
		return json.Marshal(envelope{Type: tagConnect})
	case Unknown:
		return json.Marshal(envelope{Type: c.Type})
	default:
		return nil, fmt.Errorf("unencodable client command %T", cmd)
	}
}

// UnmarshalClientCommand decodes the JSON wire form of a ClientCommand.
// A syntactically valid envelope with an unrecognized tag yields Unknown
// rather than an error so old servers tolerate new clients.
func UnmarshalClientCommand(data []byte) (ClientCommand, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Type == "" {
		return nil, fmt.Errorf("client command missing type tag")
	}
	switch env.Type {
	case tagConnect:
		return Connect{}, nil
	default:
		return Unknown{Type: env.Type}, nil
	}
}

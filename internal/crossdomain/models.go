package crossdomain

import (
	"time"

	id "trustgate/pkg/domain"
)

// AuthorityKey is the public key (or key fingerprint) a remote ledger signs
// its sync traffic with. Matching it against the configured TrustedRemote is
// the sole admission gate on inbound messages.
type AuthorityKey string

// MsgTypeSync is the only message type this version understands. Unknown
// types are ignored so newer remotes can extend the protocol.
const MsgTypeSync = "SYNC"

// SyncMessage is the wire payload exchanged between domains.
type SyncMessage struct {
	MsgType   string        `json:"msg_type"`
	Subject   id.SubjectKey `json:"subject"`
	Score     int           `json:"score"`
	Timestamp time.Time     `json:"timestamp"`
}

// RemoteEntry is the last accepted opinion of one remote domain about one
// subject. Overwritten on every accepted message: last write wins by arrival,
// the claimed timestamp is kept for observability only.
type RemoteEntry struct {
	Subject    id.SubjectKey `json:"subject"`
	Domain     id.DomainID   `json:"domain"`
	Score      int           `json:"score"`
	ObservedAt time.Time     `json:"observed_at"`
	ReceivedAt time.Time     `json:"received_at"`
}

// MessageHandle is the transport-assigned identifier for an outbound
// delivery, opaque to this service.
type MessageHandle string

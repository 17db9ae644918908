package agent

import (
	"github.com/google/uuid"

	"github.com/hlindberg/agentmq/internal/auth"
)

// CommandType identifies the variant carried by a Command. The zero value,
// CommandNone, is reserved for the "no command" case used when recv times out.
type CommandType int

// The command-variant enum. Values are stable and must not be reordered.
const (
	CommandNone CommandType = iota
	CommandProcessLoop
	CommandPublish
	CommandSubscribe
	CommandUnsubscribe
	CommandPing
	CommandConnect
	CommandDisconnect
	CommandTerminate
)

func (t CommandType) String() string {
	switch t {
	case CommandNone:
		return "None"
	case CommandProcessLoop:
		return "ProcessLoop"
	case CommandPublish:
		return "Publish"
	case CommandSubscribe:
		return "Subscribe"
	case CommandUnsubscribe:
		return "Unsubscribe"
	case CommandPing:
		return "Ping"
	case CommandConnect:
		return "Connect"
	case CommandDisconnect:
		return "Disconnect"
	case CommandTerminate:
		return "Terminate"
	default:
		return "Unknown"
	}
}

// CompletionResult is handed to a Command's completion callback exactly once, when the
// command reaches a terminal outcome.
type CompletionResult struct {
	Status Status
	Err    error
	// SubAckCodes holds the per-filter return codes from a SUBACK, only set when the
	// originating command was a Subscribe that completed successfully.
	SubAckCodes []byte
}

// CompletionFunc is the user function invoked once a Command reaches a terminal state.
// It runs on the agent thread and must not block; if it enqueues
// further commands it must do so with block_ms = 0.
type CompletionFunc func(completionContext interface{}, result CompletionResult)

// TopicFilter is a single subscription filter plus requested QoS, used for Subscribe.
// Unsubscribe only inspects the Topic field.
type TopicFilter struct {
	Topic string
	QoS   int
}

// PublishInfo carries a Publish command's arguments. Message is a borrowed reference:
// the agent never copies it and the producer must keep it alive until completion fires
//.
type PublishInfo struct {
	Topic       string
	Message     []byte
	QoS         int
	Retain      bool
	IsDuplicate bool
	PacketID    int // assigned by the dispatch handler when QoS > 0
}

// SubscribeArgs carries a Subscribe or Unsubscribe command's arguments.
type SubscribeArgs struct {
	Filters  []TopicFilter
	PacketID int // assigned by the dispatch handler
}

// ConnectArgs carries a Connect command's arguments, including the out-parameter
// SessionPresent the handler fills in once CONNACK arrives.
type ConnectArgs struct {
	ClientID         string
	CleanSession     bool
	KeepAliveSeconds int
	TimeoutMs        int
	WillTopic        string
	WillMessage      []byte
	WillQoS          int
	WillRetain       bool
	UserName         string
	Password         []byte
	// AuthClaims, if set, is signed into a JWT that is sent as the password instead of
	// Password; UserName is sent as given, or AuthClaims.Subject when UserName is empty.
	AuthClaims *auth.Claims

	// SessionPresent is filled in by the Connect handler once CONNACK is received.
	SessionPresent bool
}

// Command is one queued work item: a tagged variant plus an optional completion
//. Argument buffers are borrowed from the producer, never copied.
type Command struct {
	ID         uuid.UUID
	Type       CommandType
	Publish    *PublishInfo
	Subscribe  *SubscribeArgs
	Connect    *ConnectArgs
	Completion CompletionFunc
	// CompletionContext is passed back to Completion verbatim; the agent never
	// inspects it.
	CompletionContext interface{}
}

// ReturnFlags is the value a dispatch handler returns to the agent loop, directing
// what the loop should do after the handler ran.
type ReturnFlags struct {
	PacketID         int
	AddToPendingAcks bool
	RunProcessLoop   bool
	EndLoop          bool
}

func newCommand(cmdType CommandType) *Command {
	return &Command{ID: uuid.New(), Type: cmdType}
}

// completeCommand invokes cmd's completion, if any, exactly once. It is the only place
// in the package that calls a Completion func, so every terminal path (dispatch with no
// ack expected, inbound ack, ResumeSession, Terminate) goes through here.
func completeCommand(cmd *Command, result CompletionResult) {
	if cmd == nil || cmd.Completion == nil {
		return
	}
	cmd.Completion(cmd.CompletionContext, result)
}

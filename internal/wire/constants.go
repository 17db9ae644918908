package wire

const (
	// Reserved is all zero bits
	Reserved = 0

	// CONTROL MESSAGE TYPES
	// ---------------------

	// ConnectType control message type
	ConnectType = 1

	// ConnAckType control message type
	ConnAckType = 2

	// PublishType control message type
	PublishType = 3

	// PublishAckType control message type (PUBACK, QoS 1)
	PublishAckType = 4

	// PublishReceivedType control message type (PUBREC, QoS 2 step 1)
	PublishReceivedType = 5

	// PublishReleaseType control message type (PUBREL, QoS 2 step 2)
	PublishReleaseType = 6

	// PublishReleaseReserved is the fixed lower nibble required on PUBREL
	PublishReleaseReserved = 2

	// PublishCompleteType control message type (PUBCOMP, QoS 2 step 3)
	PublishCompleteType = 7

	// SubscribeType control message type
	SubscribeType = 8

	// SubscribeReserved is the fixed lower nibble required on SUBSCRIBE
	SubscribeReserved = 2

	// SubAckType control message type
	SubAckType = 9

	// UnsubscribeType control message type
	UnsubscribeType = 10

	// UnsubscribeReserved is the fixed lower nibble required on UNSUBSCRIBE
	UnsubscribeReserved = 2

	// UnsubAckType control message type
	UnsubAckType = 11

	// PingReqType control message type
	PingReqType = 12

	// PingRespType control message type
	PingRespType = 13

	// DisconnectType control message type
	DisconnectType = 14

	// CONNECTION PORTS
	// ----------------

	// UnencryptedPortTCP is the standard MQTT port over TCP for unencrypted content
	UnencryptedPortTCP = "1883"

	// Connect bits

	// UserNameFlag is a bit that signals that UserName is in the payload
	UserNameFlag = 1 << 7

	// PasswordFlag is a bit that signals that Password is in the payload
	PasswordFlag = 1 << 6

	// WillRetainFlag is a bit that signals that Will Retention is in the payload
	WillRetainFlag = 1 << 5

	// WillQoSZero sets the Will QoS to 0 (since this is 0 it isn't really needed)
	WillQoSZero = 0

	// WillQoSOne sets the Will QoS to 1 (the Will QoS occupies bits 3 and 4)
	WillQoSOne = 1 << 3

	// WillQoSTwo sets the Will QoS to 2 (the Will QoS occupies bits 3 and 4)
	WillQoSTwo = 2 << 3

	// WillFlag is a bit that signals that Will is in the payload
	WillFlag = 1 << 2

	// CleanSessionFlag is a bit that signals that a clean session is wanted
	CleanSessionFlag = 1 << 1

	// Connack results

	// ConnectionAccepted means it is ok to use connection
	ConnectionAccepted = 0

	// ConnectionRefusedRejectedVersion Protocol version is not accepted
	ConnectionRefusedRejectedVersion = 1

	// ConnectionRefusedRejectedIdentifier Client Identifier is not accepted
	ConnectionRefusedRejectedIdentifier = 2

	// ConnectionRefusedServerUnavailable server is not available
	ConnectionRefusedServerUnavailable = 3

	// ConnectionRefusedBadUserPassword User name or Password is bad
	ConnectionRefusedBadUserPassword = 4

	// ConnectionRefusedNotAuthorized the presented credentials resulted in not being authorized
	ConnectionRefusedNotAuthorized = 5

	// Publish Bits
	// ------

	// QoSZero sets the QoS to 0 (since this is 0 it isn't really needed)
	QoSZero = 0

	// QoSOne sets the QoS to 1 (the QoS occupies bits 1 and 2)
	QoSOne = 1 << 1

	// QoSTwo sets the QoS to 2 (the QoS occupies bits 1 and 2)
	QoSTwo = 2 << 1

	// NoDupBit sets the DUP bit to 0 (since it is 0 it isn't really needed)
	NoDupBit = 0

	// DupBit sets the DUP bit (bit 3) to 1
	DupBit = 1 << 3

	// NoRetainBit sets the RETAIN bit to 0 (since it is 0 it isn't really needed)
	NoRetainBit = 0

	// RetainBit sets the RETAIN bit (bit 0) to 1
	RetainBit = 1

	// SubAck return codes
	// -------------------

	// SubAckMaximumQoS0 grants QoS 0 for the subscription
	SubAckMaximumQoS0 = 0x00

	// SubAckMaximumQoS1 grants QoS 1 for the subscription
	SubAckMaximumQoS1 = 0x01

	// SubAckMaximumQoS2 grants QoS 2 for the subscription
	SubAckMaximumQoS2 = 0x02

	// SubAckFailure indicates the broker refused the subscription
	SubAckFailure = 0x80
)

package wire

// NewPingReqMessage returns the fixed PINGREQ message (no variable header, no payload)
func NewPingReqMessage() *GenericMessage {
	return &GenericMessage{fixedHeader: PingReqType << 4, body: []byte{}}
}

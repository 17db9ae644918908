package wire

import (
	"bytes"
	"fmt"
)

// UnsubscribeRequest describes a MQTT UNSUBSCRIBE
type UnsubscribeRequest struct {
	options UnsubscribeOptions
}

// UnsubscribeOptions contains options for an UnsubscribeRequest
type UnsubscribeOptions struct {
	PacketID int
	Topics   []string
}

// UnsubscribeOption is an Options-modifying-function
type UnsubscribeOption func(*UnsubscribeOptions) error

// DefaultUnsubscribeOptions returns the default options for an UNSUBSCRIBE
func DefaultUnsubscribeOptions() UnsubscribeOptions {
	return UnsubscribeOptions{}
}

// Topics returns an UnsubscribeOption for the given topic filters
func Topics(topics ...string) UnsubscribeOption {
	return func(o *UnsubscribeOptions) error {
		o.Topics = topics
		return nil
	}
}

// UnsubscribePacketID returns an UnsubscribeOption for the given packet ID
func UnsubscribePacketID(id int) UnsubscribeOption {
	if id < 1 || id > 0xffff {
		panic(fmt.Sprintf("PacketID must be in range 1 - 0xffff, got %x", id))
	}
	return func(o *UnsubscribeOptions) error {
		o.PacketID = id
		return nil
	}
}

// NewUnsubscribeRequest creates an instance from default unsubscribe options plus given options.
func NewUnsubscribeRequest(options ...UnsubscribeOption) *UnsubscribeRequest {
	opts := DefaultUnsubscribeOptions()
	for _, fOpt := range options {
		if err := fOpt(&opts); err != nil {
			panic(fmt.Sprintf("Unsubscribe option apply failure: %s", err))
		}
	}
	return &UnsubscribeRequest{options: opts}
}

func (r *UnsubscribeRequest) remainingLength() int {
	result := 2 // packet ID
	for _, t := range r.options.Topics {
		result += 2 + len(t)
	}
	return result
}

// MakeMessage builds the GenericMessage for this UnsubscribeRequest
func (r *UnsubscribeRequest) MakeMessage() *GenericMessage {
	var data bytes.Buffer
	data.Grow(r.remainingLength())

	Encode16BitIntTo(r.options.PacketID, &data)
	for _, t := range r.options.Topics {
		EncodeStringTo(t, &data)
	}
	return &GenericMessage{fixedHeader: UnsubscribeType<<4 | UnsubscribeReserved, body: data.Bytes()}
}

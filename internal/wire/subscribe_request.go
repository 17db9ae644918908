package wire

import (
	"bytes"
	"fmt"
)

// SubscribeRequest describes a MQTT SUBSCRIBE
type SubscribeRequest struct {
	options SubscribeOptions
}

// SubscribeOptions contains options for a SubscribeRequest
type SubscribeOptions struct {
	PacketID int
	Filters  []TopicFilter
}

// TopicFilter is a single topic filter plus the QoS requested for it
type TopicFilter struct {
	Topic string
	QoS   int
}

// SubscribeOption is an Options-modifying-function
type SubscribeOption func(*SubscribeOptions) error

// DefaultSubscribeOptions returns the default options for a SUBSCRIBE
func DefaultSubscribeOptions() SubscribeOptions {
	return SubscribeOptions{}
}

// Filters returns a SubscribeOption for the given topic filters
func Filters(filters ...TopicFilter) SubscribeOption {
	return func(o *SubscribeOptions) error {
		o.Filters = filters
		return nil
	}
}

// SubscribePacketID returns a SubscribeOption for the given packet ID
func SubscribePacketID(id int) SubscribeOption {
	if id < 1 || id > 0xffff {
		panic(fmt.Sprintf("PacketID must be in range 1 - 0xffff, got %x", id))
	}
	return func(o *SubscribeOptions) error {
		o.PacketID = id
		return nil
	}
}

// NewSubscribeRequest creates an instance from default subscribe options plus given options.
func NewSubscribeRequest(options ...SubscribeOption) *SubscribeRequest {
	opts := DefaultSubscribeOptions()
	for _, fOpt := range options {
		if err := fOpt(&opts); err != nil {
			panic(fmt.Sprintf("Subscribe option apply failure: %s", err))
		}
	}
	return &SubscribeRequest{options: opts}
}

func (r *SubscribeRequest) remainingLength() int {
	result := 2 // packet ID
	for _, f := range r.options.Filters {
		result += 2 + len(f.Topic) + 1 // length-prefixed topic + requested QoS byte
	}
	return result
}

func (r *SubscribeRequest) makeMessage() *GenericMessage {
	var data bytes.Buffer
	data.Grow(r.remainingLength())

	Encode16BitIntTo(r.options.PacketID, &data)
	for _, f := range r.options.Filters {
		EncodeStringTo(f.Topic, &data)
		data.WriteByte(byte(f.QoS))
	}
	return &GenericMessage{fixedHeader: SubscribeType<<4 | SubscribeReserved, body: data.Bytes()}
}

// MakeMessage builds the GenericMessage for this SubscribeRequest
func (r *SubscribeRequest) MakeMessage() *GenericMessage {
	return r.makeMessage()
}

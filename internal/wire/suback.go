package wire

import "fmt"

// DecodeSubAck extracts the packet ID and the per-filter return codes from a SUBACK's
// remaining data. The packet ID occupies the first two bytes of the variable header;
// the return codes begin immediately after (§4.4: "two bytes after the start of the
// variable header").
func DecodeSubAck(body []byte) (packetID int, returnCodes []byte, err error) {
	if len(body) < 3 {
		return 0, nil, fmt.Errorf("SUBACK body too short: expected at least 3 bytes, got %d", len(body))
	}
	packetID = int(body[0])<<8 | int(body[1])
	returnCodes = body[2:]
	return packetID, returnCodes, nil
}

// DecodeUnsubAck extracts the packet ID from an UNSUBACK's remaining data.
func DecodeUnsubAck(body []byte) (packetID int, err error) {
	if len(body) != 2 {
		return 0, fmt.Errorf("UNSUBACK expects a 2 byte packet ID body, got %d", len(body))
	}
	return int(body[0])<<8 | int(body[1]), nil
}

// DecodePacketIDBody extracts a packet ID from a 2-byte PUBACK/PUBREC/PUBCOMP body.
func DecodePacketIDBody(body []byte) (packetID int, err error) {
	if len(body) != 2 {
		return 0, fmt.Errorf("expected a 2 byte packet ID body, got %d", len(body))
	}
	return int(body[0])<<8 | int(body[1]), nil
}

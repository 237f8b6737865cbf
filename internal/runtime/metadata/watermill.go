package metadata

import "github.com/ThreeDotsLabs/watermill/message"

// FromWatermill copies the headers of a Watermill message.
func FromWatermill(md message.Metadata) Metadata {
	return Metadata(md).Clone()
}

// ToWatermill returns a copy of md suitable for an outgoing message.
func ToWatermill(md Metadata) message.Metadata {
	return message.Metadata(md.Clone())
}

// Package extradata inspects and rewrites codec initialization data and
// the NAL unit streams it describes.
package extradata

import (
	"fmt"

	"github.com/xaionaro-go/avtransformer/codec"
)

// Raw is the initialization data of a single track.
type Raw []byte

// Parsed is a decoded initialization data record.
type Parsed interface {
	fmt.Stringer
}

// Parse decodes the initialization data according to the mime type of
// the track. Unrecognized data is returned as Unknown.
func (b Raw) Parse(mimeType string) Parsed {
	if len(b) == 0 {
		return nil
	}
	switch mimeType {
	case codec.MimeTypeVideoH264:
		if avcc, err := ParseH264AVCC(b); err == nil {
			return avcc
		}
		if seq, err := ParseH264AnnexB(b); err == nil {
			return seq
		}
	case codec.MimeTypeVideoH265:
		if seq, err := ParseH265AnnexB(b); err == nil {
			return seq
		}
	case codec.MimeTypeAudioAAC:
		if asc, err := ParseAACASC(b); err == nil {
			return asc
		}
	}
	return Unknown(b)
}

// Describe returns a human-readable dump of the initialization data.
func (b Raw) Describe(mimeType string) string {
	parsed := b.Parse(mimeType)
	if parsed == nil {
		return "<empty>"
	}
	return parsed.String()
}

type Unknown []byte

func (b Unknown) String() string {
	return fmt.Sprintf("<unknown: %d bytes>", len(b))
}

// preview returns at most the first 16 bytes of a NAL unit.
func preview(b []byte) []byte {
	if len(b) > 16 {
		return b[:16]
	}
	return b
}

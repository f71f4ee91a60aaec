package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/unclepete-20/chatbot-test/config"
	"github.com/unclepete-20/chatbot-test/domain"
)

// ReplyEncoder turns a Reply into the payload of one text frame.
type ReplyEncoder interface {
	Encode(reply domain.Reply) ([]byte, error)
}

func NewReplyEncoder(format string) (ReplyEncoder, error) {
	switch format {
	case config.FormatEnvelope, "":
		return envelopeEncoder{}, nil
	case config.FormatText:
		return textEncoder{}, nil
	}
	return nil, fmt.Errorf("unsupported reply format %q", format)
}

// envelopeEncoder tags every frame with its kind.
type envelopeEncoder struct{}

func (envelopeEncoder) Encode(reply domain.Reply) ([]byte, error) {
	return json.Marshal(reply)
}

// textEncoder sends raw text; errors are only recognisable by their prefix.
type textEncoder struct{}

func (textEncoder) Encode(reply domain.Reply) ([]byte, error) {
	if reply.Kind != domain.ReplyKindError {
		return []byte(reply.Text), nil
	}
	if reply.Welcome {
		return []byte("Error en el mensaje de bienvenida: " + reply.Text), nil
	}
	return []byte("Error: " + reply.Text), nil
}

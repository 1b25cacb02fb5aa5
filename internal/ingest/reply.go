package ingest

import (
	"encoding/xml"
	"strconv"
)

// PrologFreq is the resubmission interval, in hours, advertised to agents
// in the handshake reply.
const PrologFreq = 24

// Reply is the <REPLY> document OCS agents expect back.
type Reply struct {
	XMLName    xml.Name `xml:"REPLY"`
	Response   string   `xml:"RESPONSE"`
	PrologFreq string   `xml:"PROLOG_FREQ,omitempty"`
	Error      string   `xml:"ERROR,omitempty"`
}

const (
	ResponseSend            = "SEND"
	ResponseNoAccountUpdate = "NO_ACCOUNT_UPDATE"
	ResponseError           = "ERROR"
)

// HandshakeReply asks the agent to send its inventory and check back in
// PrologFreq hours.
func HandshakeReply() []byte {
	return render(Reply{Response: ResponseSend, PrologFreq: strconv.Itoa(PrologFreq)})
}

// AcceptedReply acknowledges a stored inventory.
func AcceptedReply() []byte {
	return render(Reply{Response: ResponseNoAccountUpdate})
}

// ErrorReply carries a human-readable failure message.
func ErrorReply(message string) []byte {
	return render(Reply{Response: ResponseError, Error: message})
}

func render(r Reply) []byte {
	out, err := xml.MarshalIndent(r, "", "    ")
	if err != nil {
		// Reply has only string fields; marshalling cannot fail.
		panic(err)
	}
	return append([]byte(xml.Header), append(out, '\n')...)
}

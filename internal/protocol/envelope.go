package protocol

import (
	"bytes"
	"fmt"
)

// HeaderPair is one header line of an HTTP envelope. Envelopes use an
// ordered list rather than a map (unlike Request/Response.Headers)
// because the bridge must preserve both header order and duplicates
// bit-for-bit across the tunnel.
type HeaderPair struct {
	Name  string
	Value string
}

// HTTPRequestEnvelope is the binary-framed representation of an HTTP/1.1
// request tunneled through the RPC fabric. Extensions is carried as an
// opaque byte bag: the field is idiosyncratic to the HTTP client library
// the original implementation embedded, so this port neither interprets
// nor drops it, just round-trips whatever bytes a caller supplies.
type HTTPRequestEnvelope struct {
	Method     string
	URL        string
	Headers    []HeaderPair
	Body       []byte
	Extensions []byte
}

// HTTPResponseEnvelope is the binary-framed representation of the HTTP/1.1
// response returned by the bridge's upstream call.
type HTTPResponseEnvelope struct {
	StatusCode int
	Reason     string
	Headers    []HeaderPair
	Body       []byte
}

const (
	fieldEnvReqMethod Field = iota + 1
	fieldEnvReqURL
	fieldEnvReqHeader // repeated
	fieldEnvReqBody
	fieldEnvReqExtensions
)

const (
	fieldEnvRespStatus Field = iota + 1
	fieldEnvRespReason
	fieldEnvRespHeader // repeated
	fieldEnvRespBody
)

func (w *fieldWriter) writeHeaderPairs(id Field, pairs []HeaderPair) {
	for _, p := range pairs {
		var entry bytes.Buffer
		writeLenPrefixed(&entry, []byte(p.Name))
		writeLenPrefixed(&entry, []byte(p.Value))
		w.writeBytes(id, entry.Bytes())
	}
}

// EncodeHTTPRequest renders e as the envelope binary format.
func EncodeHTTPRequest(e HTTPRequestEnvelope) []byte {
	var w fieldWriter
	w.buf.WriteByte(wireVersion)
	w.writeString(fieldEnvReqMethod, e.Method)
	w.writeString(fieldEnvReqURL, e.URL)
	w.writeHeaderPairs(fieldEnvReqHeader, e.Headers)
	w.writeBytes(fieldEnvReqBody, e.Body)
	w.writeBytes(fieldEnvReqExtensions, e.Extensions)
	return w.buf.Bytes()
}

// DecodeHTTPRequest parses an HTTP request envelope.
func DecodeHTTPRequest(data []byte) (HTTPRequestEnvelope, error) {
	if len(data) < 1 {
		return HTTPRequestEnvelope{}, &DecodeError{Err: fmt.Errorf("empty envelope")}
	}
	fields, err := readFields(data[1:])
	if err != nil {
		return HTTPRequestEnvelope{}, &DecodeError{Err: err}
	}
	var e HTTPRequestEnvelope
	for _, f := range fields {
		switch f.id {
		case fieldEnvReqMethod:
			e.Method = string(f.payload)
		case fieldEnvReqURL:
			e.URL = string(f.payload)
		case fieldEnvReqHeader:
			name, value, herr := decodeHeaderEntry(f.payload)
			if herr != nil {
				return HTTPRequestEnvelope{}, &DecodeError{Err: herr}
			}
			e.Headers = append(e.Headers, HeaderPair{Name: name, Value: value})
		case fieldEnvReqBody:
			e.Body = f.payload
		case fieldEnvReqExtensions:
			e.Extensions = f.payload
		default:
		}
	}
	return e, nil
}

// EncodeHTTPResponse renders e as the envelope binary format.
func EncodeHTTPResponse(e HTTPResponseEnvelope) []byte {
	var w fieldWriter
	w.buf.WriteByte(wireVersion)
	w.writeInt64(fieldEnvRespStatus, int64(e.StatusCode))
	w.writeString(fieldEnvRespReason, e.Reason)
	w.writeHeaderPairs(fieldEnvRespHeader, e.Headers)
	w.writeBytes(fieldEnvRespBody, e.Body)
	return w.buf.Bytes()
}

// DecodeHTTPResponse parses an HTTP response envelope.
func DecodeHTTPResponse(data []byte) (HTTPResponseEnvelope, error) {
	if len(data) < 1 {
		return HTTPResponseEnvelope{}, &DecodeError{Err: fmt.Errorf("empty envelope")}
	}
	fields, err := readFields(data[1:])
	if err != nil {
		return HTTPResponseEnvelope{}, &DecodeError{Err: err}
	}
	var e HTTPResponseEnvelope
	for _, f := range fields {
		switch f.id {
		case fieldEnvRespStatus:
			v, ierr := int64FromField(f.payload)
			if ierr != nil {
				return HTTPResponseEnvelope{}, &DecodeError{Err: ierr}
			}
			e.StatusCode = int(v)
		case fieldEnvRespReason:
			e.Reason = string(f.payload)
		case fieldEnvRespHeader:
			name, value, herr := decodeHeaderEntry(f.payload)
			if herr != nil {
				return HTTPResponseEnvelope{}, &DecodeError{Err: herr}
			}
			e.Headers = append(e.Headers, HeaderPair{Name: name, Value: value})
		case fieldEnvRespBody:
			e.Body = f.payload
		default:
		}
	}
	return e, nil
}

package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DecodeError wraps a failure to parse a request or response record.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("protocol: decode error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// wireVersion is the only version this codec emits. Decode accepts any
// version byte and relies on field ids rather than the version number for
// forward/backward compatibility: a future writer can add new field ids
// and an old reader skips them; an old writer's fields are a subset a new
// reader already understands.
const wireVersion = 1

// Request record field ids, in the fixed order they are written.
const (
	fieldReqID Field = iota + 1
	fieldReqSender
	fieldReqURL
	fieldReqMethod
	fieldReqHeader // repeated
	fieldReqBody
	fieldReqCreated
	fieldReqExpires
)

// Response record field ids.
const (
	fieldRespID Field = iota + 1
	fieldRespSender
	fieldRespURL
	fieldRespStatus
	fieldRespHeader // repeated
	fieldRespBody
	fieldRespCreated
	fieldRespExpires
)

// Field is a field identifier tag written ahead of every length-prefixed
// value, letting a reader skip fields it doesn't recognize.
type Field uint16

type fieldWriter struct {
	buf bytes.Buffer
}

func (w *fieldWriter) writeBytes(id Field, b []byte) {
	var hdr [6]byte
	binary.BigEndian.PutUint16(hdr[0:2], uint16(id))
	binary.BigEndian.PutUint32(hdr[2:6], uint32(len(b)))
	w.buf.Write(hdr[:])
	w.buf.Write(b)
}

func (w *fieldWriter) writeString(id Field, s string) {
	w.writeBytes(id, []byte(s))
}

func (w *fieldWriter) writeInt64(id Field, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	w.writeBytes(id, b[:])
}

func (w *fieldWriter) writeHeaders(id Field, h http.Header) {
	for name, values := range h {
		for _, v := range values {
			var entry bytes.Buffer
			writeLenPrefixed(&entry, []byte(name))
			writeLenPrefixed(&entry, []byte(v))
			w.writeBytes(id, entry.Bytes())
		}
	}
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	var l [4]byte
	binary.BigEndian.PutUint32(l[:], uint32(len(b)))
	buf.Write(l[:])
	buf.Write(b)
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var l [4]byte
	if _, err := io.ReadFull(r, l[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(l[:])
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// rawField is one decoded (id, payload) pair read off the wire before
// being interpreted by the caller.
type rawField struct {
	id      Field
	payload []byte
}

func readFields(data []byte) ([]rawField, error) {
	r := bytes.NewReader(data)
	var fields []rawField
	for r.Len() > 0 {
		var hdr [6]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, err
		}
		id := Field(binary.BigEndian.Uint16(hdr[0:2]))
		n := binary.BigEndian.Uint32(hdr[2:6])
		payload := make([]byte, n)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
		fields = append(fields, rawField{id: id, payload: payload})
	}
	return fields, nil
}

func decodeHeaderEntry(payload []byte) (name, value string, err error) {
	r := bytes.NewReader(payload)
	n, err := readLenPrefixed(r)
	if err != nil {
		return "", "", err
	}
	v, err := readLenPrefixed(r)
	if err != nil {
		return "", "", err
	}
	return string(n), string(v), nil
}

func int64FromField(payload []byte) (int64, error) {
	if len(payload) != 8 {
		return 0, fmt.Errorf("expected 8-byte integer field, got %d bytes", len(payload))
	}
	return int64(binary.BigEndian.Uint64(payload)), nil
}

// EncodeRequest renders r as the stable binary record format.
func EncodeRequest(r Request) []byte {
	var w fieldWriter
	w.buf.WriteByte(wireVersion)
	w.writeString(fieldReqID, r.ID)
	w.writeString(fieldReqSender, r.Sender)
	w.writeString(fieldReqURL, r.URL)
	w.writeString(fieldReqMethod, string(r.Method))
	w.writeHeaders(fieldReqHeader, r.Headers)
	w.writeBytes(fieldReqBody, r.Body)
	w.writeInt64(fieldReqCreated, r.Created.UnixMilli())
	w.writeInt64(fieldReqExpires, r.Expires.UnixMilli())
	return w.buf.Bytes()
}

// DecodeRequest parses a request record, skipping any trailing field ids
// it does not recognize.
func DecodeRequest(data []byte) (Request, error) {
	if len(data) < 1 {
		return Request{}, &DecodeError{Err: fmt.Errorf("empty record")}
	}
	fields, err := readFields(data[1:])
	if err != nil {
		return Request{}, &DecodeError{Err: err}
	}

	req := Request{Headers: make(http.Header)}
	for _, f := range fields {
		switch f.id {
		case fieldReqID:
			req.ID = string(f.payload)
		case fieldReqSender:
			req.Sender = string(f.payload)
		case fieldReqURL:
			req.URL = string(f.payload)
		case fieldReqMethod:
			req.Method = Method(f.payload)
		case fieldReqHeader:
			name, value, herr := decodeHeaderEntry(f.payload)
			if herr != nil {
				return Request{}, &DecodeError{Err: herr}
			}
			req.Headers.Add(name, value)
		case fieldReqBody:
			req.Body = f.payload
		case fieldReqCreated:
			ms, ierr := int64FromField(f.payload)
			if ierr != nil {
				return Request{}, &DecodeError{Err: ierr}
			}
			req.Created = time.UnixMilli(ms).UTC()
		case fieldReqExpires:
			ms, ierr := int64FromField(f.payload)
			if ierr != nil {
				return Request{}, &DecodeError{Err: ierr}
			}
			req.Expires = time.UnixMilli(ms).UTC()
		default:
			// Unknown field from a newer writer: skip.
		}
	}
	return req, nil
}

// EncodeResponse renders r as the stable binary record format.
func EncodeResponse(r Response) []byte {
	var w fieldWriter
	w.buf.WriteByte(wireVersion)
	w.writeString(fieldRespID, r.ID)
	w.writeString(fieldRespSender, r.Sender)
	w.writeString(fieldRespURL, r.URL)
	w.writeInt64(fieldRespStatus, int64(r.Status))
	w.writeHeaders(fieldRespHeader, r.Headers)
	w.writeBytes(fieldRespBody, r.Body)
	w.writeInt64(fieldRespCreated, r.Created.UnixMilli())
	w.writeInt64(fieldRespExpires, r.Expires.UnixMilli())
	return w.buf.Bytes()
}

// DecodeResponse parses a response record, skipping unknown trailing
// fields.
func DecodeResponse(data []byte) (Response, error) {
	if len(data) < 1 {
		return Response{}, &DecodeError{Err: fmt.Errorf("empty record")}
	}
	fields, err := readFields(data[1:])
	if err != nil {
		return Response{}, &DecodeError{Err: err}
	}

	resp := Response{Headers: make(http.Header)}
	for _, f := range fields {
		switch f.id {
		case fieldRespID:
			resp.ID = string(f.payload)
		case fieldRespSender:
			resp.Sender = string(f.payload)
		case fieldRespURL:
			resp.URL = string(f.payload)
		case fieldRespStatus:
			v, ierr := int64FromField(f.payload)
			if ierr != nil {
				return Response{}, &DecodeError{Err: ierr}
			}
			resp.Status = StatusCode(v)
		case fieldRespHeader:
			name, value, herr := decodeHeaderEntry(f.payload)
			if herr != nil {
				return Response{}, &DecodeError{Err: herr}
			}
			resp.Headers.Add(name, value)
		case fieldRespBody:
			resp.Body = f.payload
		case fieldRespCreated:
			ms, ierr := int64FromField(f.payload)
			if ierr != nil {
				return Response{}, &DecodeError{Err: ierr}
			}
			resp.Created = time.UnixMilli(ms).UTC()
		case fieldRespExpires:
			ms, ierr := int64FromField(f.payload)
			if ierr != nil {
				return Response{}, &DecodeError{Err: ierr}
			}
			resp.Expires = time.UnixMilli(ms).UTC()
		default:
			// Unknown field from a newer writer: skip.
		}
	}
	return resp, nil
}

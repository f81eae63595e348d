package protocol

import "testing"

func TestHTTPRequestEnvelopeRoundTrip(t *testing.T) {
	e := HTTPRequestEnvelope{
		Method: "GET",
		URL:    "https://api.example.com/status?x=1",
		Headers: []HeaderPair{
			{Name: "Accept", Value: "application/json"},
			{Name: "Accept", Value: "text/plain"},
			{Name: "Authorization", Value: "Bearer t"},
		},
		Body:       []byte("payload"),
		Extensions: []byte{0x01, 0x02},
	}
	decoded, err := DecodeHTTPRequest(EncodeHTTPRequest(e))
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Method != e.Method || decoded.URL != e.URL {
		t.Errorf("got %+v", decoded)
	}
	if len(decoded.Headers) != len(e.Headers) {
		t.Fatalf("header count mismatch: got %d want %d", len(decoded.Headers), len(e.Headers))
	}
	for i := range e.Headers {
		if decoded.Headers[i] != e.Headers[i] {
			t.Errorf("header order/dup not preserved at %d: got %+v want %+v", i, decoded.Headers[i], e.Headers[i])
		}
	}
	if string(decoded.Body) != string(e.Body) {
		t.Errorf("body mismatch")
	}
	if string(decoded.Extensions) != string(e.Extensions) {
		t.Errorf("extensions not round-tripped: got %v want %v", decoded.Extensions, e.Extensions)
	}
}

func TestHTTPResponseEnvelopeRoundTrip(t *testing.T) {
	e := HTTPResponseEnvelope{
		StatusCode: 200,
		Reason:     "OK",
		Headers:    []HeaderPair{{Name: "Content-Type", Value: "text/plain"}},
		Body:       []byte("ok"),
	}
	decoded, err := DecodeHTTPResponse(EncodeHTTPResponse(e))
	if err != nil {
		t.Fatal(err)
	}
	if decoded.StatusCode != 200 || decoded.Reason != "OK" {
		t.Errorf("got %+v", decoded)
	}
	if string(decoded.Body) != "ok" {
		t.Errorf("body mismatch: got %q", decoded.Body)
	}
}

package httpbridge

import (
	stdhttp "net/http"

	"github.com/OpenMined/syft-extras/internal/protocol"
)

func pairsFromHeader(h stdhttp.Header) []protocol.HeaderPair {
	pairs := make([]protocol.HeaderPair, 0, len(h))
	for name, values := range h {
		for _, v := range values {
			pairs = append(pairs, protocol.HeaderPair{Name: name, Value: v})
		}
	}
	return pairs
}

func headerFromPairs(pairs []protocol.HeaderPair) stdhttp.Header {
	h := make(stdhttp.Header, len(pairs))
	for _, p := range pairs {
		h.Add(p.Name, p.Value)
	}
	return h
}

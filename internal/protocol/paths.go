package protocol

import "github.com/OpenMined/syft-extras/internal/syftpath"

const (
	RequestSuffix   = ".request"
	ResponseSuffix  = ".response"
	RejectionSuffix = ".syftrejected.request"
)

// RecordDir returns the directory holding every record exchanged for one
// (endpoint, sender) pair: <rpc-dir>/<endpoint>/<sender>/. The per-sender
// subdirectory is required, not cosmetic — permission grants on a request
// directory are often broad, and segregating by sender bounds the blast
// radius of a misbehaving peer.
func RecordDir(rpcDir syftpath.Abs, endpoint, sender string) syftpath.Abs {
	segments := append(splitEndpoint(endpoint), sender)
	return rpcDir.Join(segments...)
}

// RequestPath returns the path of the .request file for id.
func RequestPath(rpcDir syftpath.Abs, endpoint, sender, id string) syftpath.Abs {
	return RecordDir(rpcDir, endpoint, sender).Join(id + RequestSuffix)
}

// ResponsePath returns the path of the .response file for id, which lives
// alongside the request it answers.
func ResponsePath(rpcDir syftpath.Abs, endpoint, sender, id string) syftpath.Abs {
	return RecordDir(rpcDir, endpoint, sender).Join(id + ResponseSuffix)
}

// RejectionPath returns the path of the rejection-marker sentinel for id.
func RejectionPath(rpcDir syftpath.Abs, endpoint, sender, id string) syftpath.Abs {
	return RecordDir(rpcDir, endpoint, sender).Join(id + RejectionSuffix)
}

func splitEndpoint(endpoint string) []string {
	if endpoint == "" {
		return nil
	}
	var segs []string
	start := 0
	for i := 0; i < len(endpoint); i++ {
		if endpoint[i] == '/' {
			if i > start {
				segs = append(segs, endpoint[start:i])
			}
			start = i + 1
		}
	}
	if start < len(endpoint) {
		segs = append(segs, endpoint[start:])
	}
	return segs
}

package eventserver

import (
	"encoding/json"
)

// routeSchema is one entry in the published rpc.schema.json document.
type routeSchema struct {
	Endpoint string `json:"endpoint"`
	Request  string `json:"request_type"`
	Response string `json:"response_type"`
}

const schemaFileName = "rpc.schema.json"

// marshalSchema renders the router's registered routes as the
// machine-readable document startup publishes into the RPC tree.
func marshalSchema(routes []*Route) ([]byte, error) {
	schema := make([]routeSchema, 0, len(routes))
	for _, r := range routes {
		schema = append(schema, routeSchema{
			Endpoint: r.Pattern,
			Request:  "protocol.Request",
			Response: "protocol.Response",
		})
	}
	return json.MarshalIndent(schema, "", "  ")
}

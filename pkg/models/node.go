package models

// NodeKind identifies the closed set of node types a trigger can execute.
type NodeKind string

const (
	NodeKindHTTPRequest  NodeKind = "HTTP_REQUEST"
	NodeKindQuery        NodeKind = "QUERY"
	NodeKindTransform    NodeKind = "TRANSFORM"
	NodeKindIterator     NodeKind = "ITERATOR"
	NodeKindSendEmail    NodeKind = "SEND_EMAIL"
	NodeKindSendWhatsApp NodeKind = "SEND_WHATSAPP"
	NodeKindAction       NodeKind = "ACTION"
)

// NodeConfig is one step of a trigger's node sequence. Config carries the
// kind-specific configuration shape, parsed by the matching executor factory.
type NodeConfig struct {
	ID       string         `json:"id"       validate:"required"`
	Name     string         `json:"name"`
	Kind     NodeKind       `json:"kind"     validate:"required"`
	Config   map[string]any `json:"config"`
	Required bool           `json:"required"` // A failing required node aborts the run
	Enabled  bool           `json:"enabled"`
}

func (k NodeKind) Valid() bool {
	switch k {
	case NodeKindHTTPRequest, NodeKindQuery, NodeKindTransform,
		NodeKindIterator, NodeKindSendEmail, NodeKindSendWhatsApp,
		NodeKindAction:
		return true
	}

	return false
}

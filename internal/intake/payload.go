package intake

// Payload maps field names to the values typed so far.
// It is sent as-is under "forms", so the wire shape stays a flat string map.
type Payload map[string]string

// NewPayload returns an empty payload
func NewPayload() Payload {
	return Payload{}
}

// Set records the latest value of a field. Empty values are kept so a cleared
// field is sent as "" rather than silently dropped.
func (p Payload) Set(name, value string) {
	p[name] = value
}

// Forms returns a copy suitable for sending
func (p Payload) Forms() map[string]string {
	out := make(map[string]string, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

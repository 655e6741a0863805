package provider

// Registry maps provider IDs to gateways. Routing decides which provider
// serves each corridor leg; the registry only resolves IDs.
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry creates a registry over the given gateways.
func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways))}
	for _, g := range gateways {
		r.gateways[g.ID()] = g
	}
	return r
}

// Get returns the gateway for a provider ID.
func (r *Registry) Get(providerID string) (Gateway, error) {
	g, ok := r.gateways[providerID]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return g, nil
}

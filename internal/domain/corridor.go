package domain

// Corridor is an ordered pair of origin and destination currencies for
// which collection and payout providers are configured.
type Corridor struct {
	SourceCurrency string
	DestCurrency   string
}

// FeeSchedule is the per-corridor fee configuration used to compute the
// immutable fee breakdown at rate-lock time.
type FeeSchedule struct {
	PlatformPct float64
	ProviderPct float64
	NetworkFlat float64
	MinimumFee  float64
}

// Route names the providers serving each leg of one corridor.
type Route struct {
	Corridor           Corridor
	CollectionProvider string
	PayoutProvider     string
	Fees               FeeSchedule
}

// RoutingTable is a read-only snapshot of corridor routes, resolved once
// per order. Orchestration never consults mutable global routing state.
type RoutingTable struct {
	routes map[Corridor]Route
}

// NewRoutingTable builds a routing table from the given routes.
func NewRoutingTable(routes []Route) *RoutingTable {
	table := &RoutingTable{routes: make(map[Corridor]Route, len(routes))}
	for _, r := range routes {
		table.routes[r.Corridor] = r
	}
	return table
}

// Lookup returns the route for a corridor.
// The second return value is false when the corridor is not configured.
func (t *RoutingTable) Lookup(source, dest string) (Route, bool) {
	route, ok := t.routes[Corridor{SourceCurrency: source, DestCurrency: dest}]
	return route, ok
}

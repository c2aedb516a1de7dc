package dispatch

import (
	"github.com/shineum/anymail-lite/internal/provider"
	"github.com/shineum/anymail-lite/internal/provider/graph"
	"github.com/shineum/anymail-lite/internal/provider/sendgrid"
	"github.com/shineum/anymail-lite/internal/provider/ses"
)

// DefaultRegistry returns a registry holding every built-in backend.
func DefaultRegistry() *provider.Registry {
	r := provider.NewRegistry()
	r.Register(sendgrid.Name, sendgrid.New)
	r.Register(ses.Name, ses.New, "amazon_ses")
	r.Register(graph.Name, graph.New, "msgraph", "microsoft_graph")
	return r
}

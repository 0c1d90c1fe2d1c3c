package main

import (
	"github.com/dusk-indust/jitcap/internal/capability"
	"github.com/dusk-indust/jitcap/internal/registry"
	"github.com/dusk-indust/jitcap/internal/resolver"
	"github.com/dusk-indust/jitcap/internal/transport"
)

// demoServer is one in-process origin of the demo catalog.
type demoServer struct {
	origin string
	tools  []capability.Schema
}

var demoServers = []demoServer{
	{
		origin: "mcp+stdio://echo/mock-finance-server",
		tools: []capability.Schema{
			{
				Name:        "finance_tool",
				Description: "Access real-time stock prices and financial metrics",
				InputSchema: []byte(`{"type":"object","properties":{"ticker":{"type":"string"},"metric":{"type":"string"}},"required":["ticker"]}`),
			},
			{
				Name:        "finance_history",
				Description: "Historical daily stock prices for a ticker",
				InputSchema: []byte(`{"type":"object","properties":{"ticker":{"type":"string"},"days":{"type":"integer"}},"required":["ticker"]}`),
			},
		},
	},
	{
		origin: "mcp://echo/calendar-server",
		tools: []capability.Schema{{
			Name:        "google_calendar",
			Description: "Manage calendar events and schedules",
			InputSchema: []byte(`{"type":"object","properties":{"title":{"type":"string"},"when":{"type":"string"}}}`),
		}},
	},
	{
		origin: "mcp://echo/file-server",
		tools: []capability.Schema{{
			Name:        "csv_writer",
			Description: "Export data to CSV files",
			InputSchema: []byte(`{"type":"object","properties":{"path":{"type":"string"},"rows":{"type":"array"}},"required":["path"]}`),
		}},
	},
}

var demoCategories = map[string]string{
	"finance_tool":    "Financial",
	"finance_history": "Financial",
	"google_calendar": "Admin",
	"csv_writer":      "FileOps",
}

// demoCatalog registers every demo tool under its origin.
func demoCatalog() *registry.Catalog {
	c := &registry.Catalog{}
	for _, srv := range demoServers {
		for _, t := range srv.tools {
			c.Capabilities = append(c.Capabilities, capability.Metadata{
				Name:        t.Name,
				Description: t.Description,
				Origin:      srv.origin,
				Category:    demoCategories[t.Name],
			})
		}
	}
	return c
}

// demoTransport serves the demo origins in process with echo handlers.
func demoTransport() *transport.StaticTransport {
	st := transport.NewStaticTransport()
	for _, srv := range demoServers {
		d, err := resolver.Resolve(srv.origin)
		if err != nil {
			panic(err)
		}
		tools := make([]transport.Tool, len(srv.tools))
		for i, s := range srv.tools {
			tools[i] = transport.Tool{Schema: s, Handler: transport.EchoHandler(s.Name)}
		}
		st.Serve(d, transport.Endpoint{Tools: tools})
	}
	return st
}

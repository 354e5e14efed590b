package feedgate

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/quotelab/feedgate/component"
)

// writeSummary prints the post-startup tree view: infrastructure with
// live status, the registered HTTP routes, and a health pass over every
// component.
func writeSummary(w io.Writer, name, version string, startupDuration time.Duration, components *component.Registry) {
	fmt.Fprintf(w, "\n🚀 %s v%s started in %.2fs\n\n", name, version, startupDuration.Seconds())

	ctx := context.Background()

	type infraLine struct {
		desc   component.Description
		health component.Health
	}
	var infra []infraLine
	var routes []component.Route
	for _, c := range components.All() {
		if d, ok := c.(component.Describable); ok {
			infra = append(infra, infraLine{desc: d.Describe(), health: c.Health(ctx)})
		}
		if rp, ok := c.(component.RouteProvider); ok {
			routes = append(routes, rp.Routes()...)
		}
	}

	if len(infra) > 0 {
		fmt.Fprintf(w, "📊 Infrastructure\n")
		for i, line := range infra {
			details := line.desc.Details
			if line.desc.Port > 0 {
				details = fmt.Sprintf("%s (:%d)", details, line.desc.Port)
			}
			fmt.Fprintf(w, "   %s %s %s: %s\n",
				branch(i == len(infra)-1), healthIcon(line.health.Status), line.desc.Name, details)
		}
		fmt.Fprintf(w, "\n")
	}

	if len(routes) > 0 {
		fmt.Fprintf(w, "🌐 Routes (%d)\n", len(routes))
		for i, r := range routes {
			fmt.Fprintf(w, "   %s %-7s %s → %s\n", branch(i == len(routes)-1), r.Method, r.Path, r.Handler)
		}
		fmt.Fprintf(w, "\n")
	}

	results := components.HealthAll(ctx)
	if len(results) > 0 {
		fmt.Fprintf(w, "🏥 Health Check\n")
		for i, h := range results {
			msg := ""
			if h.Message != "" {
				msg = fmt.Sprintf(" — %s", h.Message)
			}
			fmt.Fprintf(w, "   %s %s %s: %s%s\n",
				branch(i == len(results)-1), healthIcon(h.Status), h.Name, strings.ToLower(string(h.Status)), msg)
		}
	}

	fmt.Fprintf(w, "\n")
}

func branch(last bool) string {
	if last {
		return "└──"
	}
	return "├──"
}

func healthIcon(status component.HealthStatus) string {
	switch status {
	case component.StatusHealthy:
		return "✅"
	case component.StatusDegraded:
		return "⚠️"
	case component.StatusUnhealthy:
		return "❌"
	default:
		return "❓"
	}
}

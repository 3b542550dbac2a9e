// ABOUTME: Graphviz rendering of the lead pipeline
// ABOUTME: One node per status, one edge per allowed transition, weighted by history
package viz

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"github.com/harperreed/taxdesk/billing"
	"github.com/harperreed/taxdesk/models"
)

type transition struct{ from, to string }

// GeneratePipelineGraph returns DOT source for the lead pipeline. Edges that
// leads have actually taken are solid and labelled with their count.
func GeneratePipelineGraph(ctx context.Context, leads []*models.Lead, currency string) (string, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create graphviz instance: %w", err)
	}
	defer func() { _ = gv.Close() }()

	graph, err := gv.Graph()
	if err != nil {
		return "", fmt.Errorf("failed to create graph: %w", err)
	}
	defer func() { _ = graph.Close() }()

	graph.SetRankDir(cgraph.LRRank)

	stats := models.ComputeLeadStats(leads)
	value := map[string]int64{}
	for _, l := range leads {
		value[l.Status] += l.EstimatedValue
	}

	nodes := make(map[string]*cgraph.Node, len(models.LeadStatuses))
	for _, status := range models.LeadStatuses {
		n, err := graph.CreateNodeByName(status)
		if err != nil {
			return "", fmt.Errorf("failed to create node %s: %w", status, err)
		}
		n.SetShape(cgraph.BoxShape)
		n.SetLabel(fmt.Sprintf("%s\n%d leads\n%s", status, stats.ByStatus[status], billing.FormatMoney(value[status], currency)))
		nodes[status] = n
	}

	taken := countTransitions(leads)
	for _, from := range models.LeadStatuses {
		for _, to := range models.NextLeadStatuses(from) {
			e, err := graph.CreateEdgeByName(from+"->"+to, nodes[from], nodes[to])
			if err != nil {
				return "", fmt.Errorf("failed to create edge %s->%s: %w", from, to, err)
			}
			if n := taken[transition{from, to}]; n > 0 {
				e.SetLabel(fmt.Sprintf("%d", n))
			} else {
				e.SetStyle(cgraph.DashedEdgeStyle)
			}
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.XDOT, &buf); err != nil {
		return "", fmt.Errorf("failed to render graph: %w", err)
	}
	return buf.String(), nil
}

// countTransitions reads status-change activities back into transitions.
func countTransitions(leads []*models.Lead) map[transition]int {
	counts := map[transition]int{}
	for _, l := range leads {
		for _, a := range l.Activities {
			if a.Type != models.ActivityStatusChange {
				continue
			}
			var t transition
			if _, err := fmt.Sscanf(a.Description, "Status changed from %q to %q", &t.from, &t.to); err == nil {
				counts[t]++
			}
		}
	}
	return counts
}

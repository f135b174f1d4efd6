package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"solidcore/internal/core"
	"solidcore/pkg/model"
	"solidcore/plugins/sketch"
)

func newDemoCmd(a *app) *cobra.Command {
	var name, exportKey string
	var metrics bool
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted sketch session, save it and print its history",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&name, "name", "demo", "archive name to save the session under")
	cmd.Flags().StringVar(&exportKey, "export", "", "also export the archive to this blob key")
	cmd.Flags().BoolVar(&metrics, "metrics", false, "print operation counters after the session")
	cmd.RunE = a.runE(func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := runDemo(cmd, a); err != nil {
			return err
		}
		fmt.Fprintln(a.out, a.style.title.Render("history"))
		printHistory(a.out, a.svc.History())
		printLive(a.out, a.svc.Stream().Entities())
		meta, err := a.svc.Save(ctx, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "saved %s: %d entities, %s, %d bytes\n", meta.Name, meta.Entities, meta.Encoding, meta.Size)
		if exportKey != "" {
			info, err := a.svc.Export(ctx, name, exportKey, true)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "exported %s to %s (%d bytes)\n", name, info.Key, info.Size)
		}
		if metrics {
			return printMetrics(a)
		}
		return nil
	})
	return cmd
}

// runDemo draws two loops sharing a profile, then splits, widens, moves,
// copies and merges, undoing the final merge.
func runDemo(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	svc := a.svc
	prof := &sketch.Profile{Width: 2, Material: "aluminium"}
	var plate, rib *sketch.Loop
	steps := []struct {
		name string
		fn   func(tx *core.Tx) error
	}{
		{"draw plate", func(tx *core.Tx) error {
			var err error
			if plate, err = sketch.Polygon(tx.Stream(), [][2]float64{{0, 0}, {4, 0}, {4, 3}, {0, 3}}, prof); err != nil {
				return err
			}
			if _, err := sketch.AddLabel(plate, "plate"); err != nil {
				return err
			}
			_, err = sketch.AddColor(plate.Segments()[0], [4]uint8{200, 40, 40, 255})
			return err
		}},
		{"draw rib", func(tx *core.Tx) error {
			var err error
			rib, err = sketch.Polygon(tx.Stream(), [][2]float64{{1, 1}, {3, 1}, {2, 2}}, prof)
			return err
		}},
		{"split edge", func(*core.Tx) error {
			tail, err := plate.SplitSegment(0, 0.5)
			if err != nil {
				return err
			}
			_, err = sketch.AddDebugMark(tail, "inserted by split")
			return err
		}},
		{"widen rib", func(*core.Tx) error { return rib.SetWidth(3) }},
		{"move rib", func(*core.Tx) error { return sketch.Translate([]model.Entity{rib}, 10, 0) }},
		{"copy plate", func(tx *core.Tx) error {
			return tx.Nested("copy loop", func(inner *core.Tx) error {
				_, err := sketch.CopyLoop(inner.Stream(), plate)
				return err
			})
		}},
		{"merge edge", func(*core.Tx) error { return plate.MergeSegments(0) }},
	}
	for _, st := range steps {
		out, err := svc.Run(ctx, st.name, st.fn)
		if err != nil {
			return err
		}
		for _, v := range out.Result.Violations {
			fmt.Fprintln(a.out, a.style.violation(st.name, v))
		}
	}
	_, err := svc.Undo(ctx)
	return err
}

func printHistory(w io.Writer, hist []core.HistoryEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATE\tNAME\tBULLETINS\tAPPLIED")
	for _, h := range hist {
		mark := ""
		if h.Current {
			mark = " *"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%t%s\n", h.ID, h.Name, h.Bulletins, h.Applied, mark)
	}
	_ = tw.Flush()
}

func printLive(w io.Writer, entities []model.Entity) {
	counts := kindCounts(entities)
	fmt.Fprintf(w, "live entities: %s\n", formatCounts(counts))
}

func kindCounts(entities []model.Entity) map[string]int {
	counts := make(map[string]int)
	for _, e := range entities {
		kind, _ := model.Identity(e)
		counts[kind]++
	}
	return counts
}

func formatCounts(counts map[string]int) string {
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}

func printMetrics(a *app) error {
	families, err := a.metrics.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			c := m.GetCounter()
			if c == nil {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			fmt.Fprintf(a.out, "%s{%s} %g\n", mf.GetName(), strings.Join(labels, ","), c.GetValue())
		}
	}
	return nil
}

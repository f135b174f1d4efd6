package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"solidcore/plugins/sketch"
)

func newListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored archives",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.runE(func(cmd *cobra.Command, _ []string) error {
		metas, err := a.svc.Archives(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tENTITIES\tENCODING\tSIZE\tSAVED")
		for _, m := range metas {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\n", m.Name, m.Entities, m.Encoding, m.Size, m.SavedAt.UTC().Format(time.RFC3339))
		}
		return tw.Flush()
	})
	return cmd
}

func newInspectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <name>",
		Short: "Load an archive and summarise its contents",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = a.runE(func(cmd *cobra.Command, args []string) error {
		entities, out, err := a.svc.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, a.style.title.Render("archive "+args[0]))
		fmt.Fprintf(a.out, "entities: %d\n", len(entities))
		fmt.Fprintf(a.out, "kinds: %s\n", formatCounts(kindCounts(entities)))
		for _, v := range out.Result.Violations {
			fmt.Fprintln(a.out, a.style.violation("", v))
		}
		tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LOOP\tSEGMENTS\tWIDTH\tMATERIAL\tLABEL")
		for _, e := range entities {
			l, ok := e.(*sketch.Loop)
			if !ok {
				continue
			}
			width, material := 0.0, ""
			if p := l.Profile(); p != nil {
				width, material = p.Width, p.Material
			}
			label := ""
			if lb, ok := l.FindAttribute(sketch.LabelKind).(*sketch.Label); ok {
				label = lb.Text
			}
			fmt.Fprintf(tw, "%s\t%d\t%g\t%s\t%s\n", l.Handle(), len(l.Segments()), width, material, label)
		}
		return tw.Flush()
	})
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "export <name> <key>",
		Short: "Copy a stored archive to the blob store",
		Args:  cobra.ExactArgs(2),
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing blob")
	cmd.RunE = a.runE(func(cmd *cobra.Command, args []string) error {
		info, err := a.svc.Export(cmd.Context(), args[0], args[1], overwrite)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "exported %s to %s (%d bytes, %s)\n", args[0], info.Key, info.Size, info.ContentType)
		return nil
	})
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored archive",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = a.runE(func(cmd *cobra.Command, args []string) error {
		ok, err := a.svc.DeleteArchive(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("archive %s not found", args[0])
		}
		fmt.Fprintf(a.out, "deleted %s\n", args[0])
		return nil
	})
	return cmd
}

package main

import (
	"github.com/spf13/cobra"

	"solidcore/pkg/model"
	"solidcore/pkg/model/policy"
)

func newPolicyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Print the effective migration policy of every attribute kind as YAML",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = a.runE(func(*cobra.Command, []string) error {
		reg := a.svc.Document().Registry()
		eff := &policy.Policy{Name: "effective"}
		for _, k := range reg.Kinds() {
			if k.IsAttribute() && k != model.AttribKind {
				eff.Set(k.Name(), reg.Effective(k))
			}
		}
		out, err := eff.Marshal()
		if err != nil {
			return err
		}
		_, err = a.out.Write(out)
		return err
	})
	return cmd
}

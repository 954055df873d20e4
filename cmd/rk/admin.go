package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/model"
	"github.com/pashurakshak/rakshak/internal/service"
)

func cmdAdminDashboard(ctx context.Context, a *app, _ []string) error {
	d, err := a.admin.Dashboard(ctx)
	if err != nil {
		return err
	}
	printJSON(a.out, struct {
		Stats   service.AdminStats `json:"stats"`
		Pending []ngoRow           `json:"pendingNgos,omitempty"`
	}{
		Stats:   d.Stats,
		Pending: ngoRows(pendingOf(d.NGOs)),
	})
	return nil
}

func pendingOf(ns []model.NGO) []model.NGO {
	var out []model.NGO
	for _, n := range ns {
		if n.Verification == model.VerificationPending {
			out = append(out, n)
		}
	}
	return out
}

func cmdAdminUsers(ctx context.Context, a *app, args []string) error {
	fs := a.flags("admin users")
	roleName := fs.String("role", "", "only users holding this role")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var role model.Role
	if *roleName != "" {
		r, err := model.ParseRole(*roleName)
		if err != nil {
			return errs.Field("role", err.Error())
		}
		role = r
	}
	us, err := a.admin.Users(ctx, role)
	if err != nil {
		return err
	}
	printJSON(a.out, profileRows(us))
	return nil
}

func cmdAdminToggle(ctx context.Context, a *app, args []string) error {
	id, err := idArg(args, "userId")
	if err != nil {
		return err
	}
	if err := a.admin.ToggleUserStatus(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "user %d toggled\n", id)
	return nil
}

func cmdAdminDeleteUser(ctx context.Context, a *app, args []string) error {
	fs := a.flags("admin delete-user")
	yes := fs.BoolP("yes", "y", false, "do not ask")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := idArg(fs.Args(), "userId")
	if err != nil {
		return err
	}
	if !*yes {
		ans, err := a.prompt(fmt.Sprintf("Delete user %d? This cannot be undone. [y/N] ", id))
		if err != nil {
			return err
		}
		if ans != "y" && ans != "yes" {
			return service.ErrDeclined
		}
	}
	if err := a.admin.DeleteUser(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "user %d deleted\n", id)
	return nil
}

// cmdAdminRole: admin role add|remove <id> <ROLE>
func cmdAdminRole(ctx context.Context, a *app, args []string) error {
	if len(args) != 3 || (args[0] != "add" && args[0] != "remove") {
		return errs.Field("role", "usage: admin role add|remove <userId> <ROLE>")
	}
	id, err := idArg(args[1:2], "userId")
	if err != nil {
		return err
	}
	role, err := model.ParseRole(args[2])
	if err != nil {
		return errs.Field("role", err.Error())
	}
	if args[0] == "add" {
		err = a.admin.AddRole(ctx, id, role)
	} else {
		err = a.admin.RemoveRole(ctx, id, role)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "user %d: %s %s\n", id, args[0], role)
	return nil
}

func cmdAdminNGOs(ctx context.Context, a *app, _ []string) error {
	ns, err := a.admin.NGOs(ctx)
	if err != nil {
		return err
	}
	printJSON(a.out, ngoRows(ns))
	return nil
}

func cmdAdminPending(ctx context.Context, a *app, _ []string) error {
	ns, err := a.admin.PendingNGOs(ctx)
	if err != nil {
		return err
	}
	printJSON(a.out, ngoRows(ns))
	return nil
}

func cmdAdminApprove(ctx context.Context, a *app, args []string) error {
	id, err := idArg(args, "ngoId")
	if err != nil {
		return err
	}
	n, err := a.admin.ApproveNGO(ctx, id)
	if err != nil {
		return err
	}
	printJSON(a.out, ngoRows([]model.NGO{n})[0])
	return nil
}

func cmdAdminReject(ctx context.Context, a *app, args []string) error {
	fs := a.flags("admin reject")
	reason := fs.String("reason", "", "why the registration is rejected")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := idArg(fs.Args(), "ngoId")
	if err != nil {
		return err
	}
	n, err := a.admin.RejectNGO(ctx, id, *reason)
	if err != nil {
		return err
	}
	printJSON(a.out, ngoRows([]model.NGO{n})[0])
	return nil
}

func cmdAdminDeactivate(ctx context.Context, a *app, args []string) error {
	id, err := idArg(args, "ngoId")
	if err != nil {
		return err
	}
	if err := a.admin.DeactivateNGO(ctx, id); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "ngo %d deactivated\n", id)
	return nil
}

func cmdAdminExport(ctx context.Context, a *app, args []string) error {
	fs := a.flags("admin export")
	ds := fs.String("dataset", string(service.DatasetReports), "reports, users or ngos")
	format := fs.String("format", string(service.FormatCSV), "csv or xlsx")
	path := fs.StringP("output", "o", "-", "file to write, - for stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var w io.Writer = a.out
	if *path != "-" {
		f, err := os.Create(*path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	n, err := a.export.Export(ctx, service.Dataset(*ds), service.Format(*format), w)
	if err != nil {
		if *path != "-" {
			_ = os.Remove(*path)
		}
		return err
	}
	a.log.Info("exported", zap.String("dataset", *ds), zap.String("format", *format), zap.Int("rows", n))
	if *path != "-" {
		fmt.Fprintf(a.out, "%d %s written to %s\n", n, *ds, *path)
	}
	return nil
}

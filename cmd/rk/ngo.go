package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/geo"
	"github.com/pashurakshak/rakshak/internal/model"
	"github.com/pashurakshak/rakshak/internal/service"
)

func cmdNGODashboard(ctx context.Context, a *app, _ []string) error {
	d, err := a.ngo.Load(ctx)
	if err != nil {
		return err
	}
	printJSON(a.out, struct {
		NGO       ngoRow           `json:"ngo"`
		Stats     service.NGOStats `json:"stats"`
		Available []reportRow      `json:"available"`
		Assigned  []reportRow      `json:"assigned"`
	}{
		NGO:       ngoRows([]model.NGO{d.NGO})[0],
		Stats:     d.Stats,
		Available: reportRows(d.Available),
		Assigned:  reportRows(d.Assigned),
	})
	return nil
}

func cmdNGOAvailable(ctx context.Context, a *app, _ []string) error {
	rs, err := a.cases.Available(ctx)
	if err != nil {
		return err
	}
	printJSON(a.out, reportRows(rs))
	return nil
}

func cmdNGOCases(ctx context.Context, a *app, _ []string) error {
	rs, err := a.cases.ForNGO(ctx)
	if err != nil {
		return err
	}
	printJSON(a.out, reportRows(rs))
	return nil
}

func cmdNGOAccept(ctx context.Context, a *app, args []string) error {
	id, err := oneArg(args, "trackingId")
	if err != nil {
		return err
	}
	r, err := a.cases.Accept(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "accepted %s (status %s)\n", r.TrackingID, r.Status.Label())
	return nil
}

// cmdAdvance serves both the NGO and the worker views; the service checks the role.
func cmdAdvance(ctx context.Context, a *app, args []string) error {
	fs := a.flags("advance")
	to := fs.String("to", "", "expected next status; the only allowed one is used when empty")
	yes := fs.BoolP("yes", "y", false, "do not ask before resolving")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := oneArg(fs.Args(), "trackingId")
	if err != nil {
		return err
	}
	var want model.Status
	if *to != "" {
		if want, err = model.ParseStatus(*to); err != nil {
			return errs.Field("status", err.Error())
		}
	}
	r, err := a.cases.Advance(ctx, id, want, a.confirmer(*yes))
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s is now %s\n", r.TrackingID, r.Status.Label())
	return nil
}

func cmdNGOAssign(ctx context.Context, a *app, args []string) error {
	fs := a.flags("ngo assign")
	worker := fs.Int64("worker", 0, "worker id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := oneArg(fs.Args(), "trackingId")
	if err != nil {
		return err
	}
	if *worker <= 0 {
		return errs.Field("worker", "is required")
	}
	r, err := a.cases.Assign(ctx, id, *worker)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s assigned to %s\n", r.TrackingID, r.AssignedWorkerName)
	return nil
}

func cmdNGOWorkers(ctx context.Context, a *app, _ []string) error {
	ws, err := a.cases.Workers(ctx)
	if err != nil {
		return err
	}
	printJSON(a.out, profileRows(ws))
	return nil
}

func cmdNGOAddWorker(ctx context.Context, a *app, args []string) error {
	fs := a.flags("ngo add-worker")
	var w service.NewWorker
	fs.StringVar(&w.Username, "username", "", "login name")
	fs.StringVar(&w.Name, "name", "", "full name")
	fs.StringVar(&w.Email, "email", "", "email")
	fs.StringVar(&w.Phone, "phone", "", "phone")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := a.cases.AddWorker(ctx, w)
	if err != nil {
		return err
	}
	printJSON(a.out, profileRows([]model.Profile{p})[0])
	return nil
}

func cmdNGONearby(ctx context.Context, a *app, args []string) error {
	fs := a.flags("ngo nearby")
	at := fs.String("at", "", "your location lat,lon (gpsd when empty)")
	radius := fs.Float64("radius", 0, "search radius in km, server default when 0")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var (
		pos model.Position
		err error
	)
	if *at != "" {
		pos, err = geo.ParsePosition(*at)
	} else {
		pos, err = a.locate(ctx)
	}
	if err != nil {
		return err
	}

	ns, err := a.ngo.Nearby(ctx, pos.Latitude, pos.Longitude, *radius)
	if err != nil {
		return err
	}
	rows := ngoRows(ns)
	for i, n := range ns {
		if n.Latitude != 0 || n.Longitude != 0 {
			rows[i].Distance = geo.Distance(pos, model.Position{Latitude: n.Latitude, Longitude: n.Longitude})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Distance < rows[j].Distance })
	printJSON(a.out, rows)
	return nil
}

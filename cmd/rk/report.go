package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/geo"
	"github.com/pashurakshak/rakshak/internal/model"
	"github.com/pashurakshak/rakshak/internal/relay"
	"github.com/pashurakshak/rakshak/internal/submission"
	"github.com/pashurakshak/rakshak/internal/wizard"
)

// locate takes one fix from gpsd and names the place.
func (a *app) locate(ctx context.Context) (model.Position, error) {
	fix, err := geo.Current(ctx, geo.Gpsd{Addr: a.cfg.GpsdAddr}, geo.DefaultTimeout)
	if err != nil {
		return model.Position{}, err
	}
	p := fix.Position
	p.Address = geo.NewGeocoder(a.cfg.GeocoderURL, geo.DefaultUserAgent, a.log).Reverse(ctx, p.Latitude, p.Longitude)
	return p, nil
}

// reporter pre-fills contact details from the flags, then from the session.
func (a *app) reporter(name, phone, email string) model.Reporter {
	r := model.Reporter{Name: strings.TrimSpace(name), Phone: strings.TrimSpace(phone), Email: strings.TrimSpace(email)}
	if id, ok := a.sess.Identity(); ok {
		if r.Name == "" {
			r.Name = id.FullName
		}
		if r.Email == "" {
			r.Email = id.Email
		}
	}
	return r
}

func (a *app) workflow(quick bool) wizard.SubmitFunc {
	wf := submission.NewWorkflow(a.client, a.client, a.log)
	if quick {
		return wf.SubmitQuick
	}
	return wf.Submit
}

func (a *app) receipt(r model.Report) {
	fmt.Fprintf(a.out, "Report filed. Tracking ID: %s\nStatus: %s\nFollow it with: rk track %s\n",
		r.TrackingID, r.Status.Label(), r.TrackingID)
}

func cmdReportNew(ctx context.Context, a *app, args []string) error {
	fs := a.flags("report new")
	name := fs.String("name", "", "your name")
	phone := fs.String("phone", "", "your 10-digit phone")
	email := fs.String("email", "", "your email")
	quick := fs.Bool("quick", false, "skip contact details")
	images := fs.StringArray("image", nil, "photo to attach (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d := &submission.Draft{Reporter: a.reporter(*name, *phone, *email)}
	if !*quick {
		// the wizard has no contact page
		if err := d.CheckReporter(); err != nil {
			return err
		}
	}
	for _, p := range *images {
		if err := d.AddImage(p); err != nil {
			return err
		}
	}

	r, err := wizard.Run(ctx, d, a.workflow(*quick), a.locate)
	if err != nil {
		return err
	}
	a.receipt(r)
	return nil
}

func cmdReportSubmit(ctx context.Context, a *app, args []string) error {
	fs := a.flags("report submit")
	animal := fs.String("animal", "", "DOG, CAT, COW, BUFFALO, HORSE, BIRD or OTHER")
	cond := fs.String("condition", "", "INJURED, SICK, TRAPPED, ABANDONED, AGGRESSIVE or OTHER")
	desc := fs.String("description", "", "what you see")
	injury := fs.String("injury", "", "injury details")
	notes := fs.String("notes", "", "anything else")
	images := fs.StringArray("image", nil, "photo to attach (repeatable)")
	urls := fs.StringArray("image-url", nil, "already hosted photo (repeatable)")
	at := fs.String("at", "", "location lat,lon")
	address := fs.String("address", "", "human readable location")
	locate := fs.Bool("locate", false, "take the location from gpsd")
	name := fs.String("name", "", "your name")
	phone := fs.String("phone", "", "your 10-digit phone")
	email := fs.String("email", "", "your email")
	quick := fs.Bool("quick", false, "skip contact details")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d := &submission.Draft{
		Description:       *desc,
		InjuryDescription: *injury,
		AdditionalNotes:   *notes,
		Reporter:          a.reporter(*name, *phone, *email),
	}
	if *animal != "" {
		t, err := model.ParseAnimalType(*animal)
		if err != nil {
			return errs.Field("animalType", err.Error())
		}
		d.AnimalType = t
	}
	if *cond != "" {
		c, err := model.ParseCondition(*cond)
		if err != nil {
			return errs.Field("condition", err.Error())
		}
		d.Condition = c
	}
	for _, p := range *images {
		if err := d.AddImage(p); err != nil {
			return err
		}
	}
	for _, u := range *urls {
		if err := d.AddImageURL(u); err != nil {
			return err
		}
	}
	switch {
	case *at != "":
		pos, err := geo.ParsePosition(*at)
		if err != nil {
			return err
		}
		pos.Address = strings.TrimSpace(*address)
		d.SetPosition(pos)
	case *locate:
		pos, err := a.locate(ctx)
		if err != nil {
			return err
		}
		d.SetPosition(pos)
	}

	r, err := a.workflow(*quick)(ctx, d)
	if err != nil {
		return err
	}
	a.receipt(r)
	return nil
}

func cmdTrack(ctx context.Context, a *app, args []string) error {
	fs := a.flags("track")
	follow := fs.Bool("follow", false, "stream the rescuer's position until interrupted")
	if err := fs.Parse(args); err != nil {
		return err
	}
	id, err := oneArg(fs.Args(), "trackingId")
	if err != nil {
		return err
	}
	r, err := a.cases.Track(ctx, id)
	if err != nil {
		return err
	}
	printJSON(a.out, detail(r))
	if !*follow {
		return nil
	}
	if r.Status.IsTerminal() {
		fmt.Fprintln(a.out, "case is resolved; nothing to follow")
		return nil
	}

	conn := a.relayConn(nil)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return conn.Run(gctx) })
	g.Go(func() error {
		fmt.Fprintln(a.out, "waiting for the rescue team's position (Ctrl-C to stop)")
		for u := range relay.Follow(gctx, conn, r.TrackingID, a.log) {
			at := model.Position{Latitude: u.Latitude, Longitude: u.Longitude}
			line := fmt.Sprintf("worker %d at %s", u.WorkerID, geo.FormatCoordinates(u.Latitude, u.Longitude))
			if !r.Position.IsZero() {
				line += fmt.Sprintf(", %.2f km away", geo.Distance(at, r.Position))
			}
			fmt.Fprintln(a.out, line)
		}
		return nil
	})
	err = g.Wait()
	a.log.Debug("follow stopped", zap.Error(err))
	return err
}

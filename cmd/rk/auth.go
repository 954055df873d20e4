package main

import (
	"context"
	"fmt"

	"github.com/pashurakshak/rakshak/internal/errs"
	"github.com/pashurakshak/rakshak/internal/geo"
	"github.com/pashurakshak/rakshak/internal/model"
	"github.com/pashurakshak/rakshak/internal/service"
)

func cmdSignup(ctx context.Context, a *app, args []string) error {
	fs := a.flags("signup")
	var in service.SignUp
	var at string
	fs.StringVarP(&in.Username, "username", "u", "", "username")
	fs.StringVar(&in.Email, "email", "", "email")
	fs.StringVarP(&in.Password, "password", "p", "", "password (prompted when empty)")
	fs.StringVar(&in.ConfirmPassword, "confirm", "", "repeat password (defaults to --password)")
	fs.StringVar(&in.FullName, "name", "", "full name")
	fs.StringVar(&in.Phone, "phone", "", "phone")
	fs.BoolVar(&in.AsNGO, "ngo", false, "register an NGO")
	fs.StringVar(&in.NgoName, "ngo-name", "", "NGO name")
	fs.StringVar(&in.Address, "address", "", "NGO address")
	fs.StringVar(&at, "at", "", "NGO location lat,lon")
	fs.StringVar(&in.Description, "description", "", "what the NGO does")
	fs.StringVar(&in.DocumentURL, "document", "", "registration document URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if in.Password == "" {
		p, err := a.prompt("Password: ")
		if err != nil {
			return err
		}
		in.Password = p
	}
	if in.ConfirmPassword == "" {
		in.ConfirmPassword = in.Password
	}
	if at != "" {
		pos, err := geo.ParsePosition(at)
		if err != nil {
			return err
		}
		in.Latitude, in.Longitude = pos.Latitude, pos.Longitude
	}

	msg, err := a.auth.SignUp(ctx, in)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "registered"
	}
	fmt.Fprintln(a.out, msg)
	if in.AsNGO {
		fmt.Fprintln(a.out, "the NGO can sign in once an administrator approves it")
	}
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := a.flags("login")
	user := fs.StringP("username", "u", "", "username")
	pass := fs.StringP("password", "p", "", "password (prompted when empty)")
	from := fs.String("from", "", "view to return to after sign-in")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pass == "" && *user != "" {
		p, err := a.prompt("Password: ")
		if err != nil {
			return err
		}
		*pass = p
	}

	id, target, err := a.auth.SignIn(ctx, *user, *pass, *from)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "signed in as %s (%s)\n→ %s\n", id.Username, model.PrimaryRole(id.Roles), target)
	return nil
}

func cmdLogout(_ context.Context, a *app, _ []string) error {
	if err := a.auth.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "signed out")
	return nil
}

func cmdWhoami(_ context.Context, a *app, _ []string) error {
	id, ok := a.sess.Identity()
	if !ok {
		return errs.ErrNotAuthenticated
	}
	printJSON(a.out, profileRows([]model.Profile{{Identity: id, Enabled: true}})[0])
	return nil
}

func cmdProfileShow(ctx context.Context, a *app, _ []string) error {
	p, err := a.profile.Get(ctx)
	if err != nil {
		return err
	}
	printJSON(a.out, profileRows([]model.Profile{p})[0])
	return nil
}

func cmdProfileUpdate(ctx context.Context, a *app, args []string) error {
	fs := a.flags("profile update")
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email")
	phone := fs.String("phone", "", "phone")
	if err := fs.Parse(args); err != nil {
		return err
	}
	var in service.ProfileUpdate
	if fs.Changed("name") {
		in.FullName = name
	}
	if fs.Changed("email") {
		in.Email = email
	}
	if fs.Changed("phone") {
		in.Phone = phone
	}
	if in == (service.ProfileUpdate{}) {
		return errs.Field("profile", "nothing to change; pass --name, --email or --phone")
	}

	p, err := a.profile.Update(ctx, in)
	if err != nil {
		return err
	}
	printJSON(a.out, profileRows([]model.Profile{p})[0])
	return nil
}

func cmdProfilePassword(ctx context.Context, a *app, args []string) error {
	fs := a.flags("profile password")
	cur := fs.String("current", "", "current password")
	next := fs.String("new", "", "new password")
	confirm := fs.String("confirm", "", "repeat new password (defaults to --new)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *confirm == "" {
		*confirm = *next
	}
	if err := a.profile.ChangePassword(ctx, *cur, *next, *confirm); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "password changed")
	return nil
}

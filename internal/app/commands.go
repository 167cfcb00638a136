package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/tartampluch/go-contacts/internal/config"
	"github.com/tartampluch/go-contacts/internal/contact"
	"github.com/tartampluch/go-contacts/internal/gateway"
	"github.com/tartampluch/go-contacts/internal/query"
	"github.com/tartampluch/go-contacts/internal/session"
	"github.com/tartampluch/go-contacts/internal/store"
)

type command struct {
	// auth requires a verified session before run is called.
	auth bool
	run  func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	config.CmdLogin:          {run: (*App).cmdLogin},
	config.CmdLogout:         {run: (*App).cmdLogout},
	config.CmdRegister:       {run: (*App).cmdRegister},
	config.CmdWhoAmI:         {auth: true, run: (*App).cmdWhoAmI},
	config.CmdProfile:        {auth: true, run: (*App).cmdProfile},
	config.CmdDeleteAccount:  {auth: true, run: (*App).cmdDeleteAccount},
	config.CmdForgotPassword: {run: (*App).cmdForgotPassword},
	config.CmdResetPassword:  {run: (*App).cmdResetPassword},
	config.CmdVerifyEmail:    {run: (*App).cmdVerifyEmail},
	config.CmdList:           {auth: true, run: (*App).cmdList},
	config.CmdSearch:         {auth: true, run: (*App).cmdSearch},
	config.CmdAdd:            {auth: true, run: (*App).cmdAdd},
	config.CmdEdit:           {auth: true, run: (*App).cmdEdit},
	config.CmdRemove:         {auth: true, run: (*App).cmdRemove},
	config.CmdSuggest:        {auth: true, run: (*App).cmdSuggest},
	config.CmdCEP:            {auth: true, run: (*App).cmdCEP},
	config.CmdExport:         {auth: true, run: (*App).cmdExport},
	config.CmdImport:         {auth: true, run: (*App).cmdImport},
	config.CmdServe:          {auth: true, run: (*App).cmdServe},
	config.CmdTheme:          {run: (*App).cmdTheme},
}

// Commands lists the available command names, sorted.
func Commands() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Usage returns the one-screen help text.
func Usage() string {
	return fmt.Sprintf(config.MsgUsage, strings.Join(Commands(), ", "))
}

// Run restores the session and executes the command named by args[0].
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: %s", ErrUsage, config.ErrMissingArgument)
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return fmt.Errorf("%w: %s %q", ErrUsage, config.ErrUnknownCommand, args[0])
	}
	a.log.Debug(config.MsgCommand, config.LogKeyCommand, args[0])

	if err := a.guard.Init(ctx); err != nil {
		return err
	}
	if cmd.auth && !a.guard.Authenticated() {
		if a.guard.State() == session.Expired {
			a.say(config.TKeySessionExpired, nil)
		} else {
			a.say(config.TKeyNotAuthenticated, nil)
		}
		return session.ErrNotAuthenticated
	}
	return cmd.run(a, ctx, args[1:])
}

func (a *App) say(key string, data map[string]any) {
	_, _ = fmt.Fprintln(a.out, a.msg.Msg(key, data))
}

func (a *App) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", ErrUsage, err)
	}
	return nil
}

func missing(what string) error {
	return fmt.Errorf("%w: %s: %s", ErrUsage, config.ErrMissingArgument, what)
}

// leadingArg splits "<arg> [flags]" so flags may follow a positional value.
func leadingArg(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

// -----------------------------------------------------------------------------
// Account
// -----------------------------------------------------------------------------

func (a *App) cmdLogin(ctx context.Context, args []string) error {
	fs := a.flags(config.CmdLogin)
	email := fs.String(config.FieldEmail, "", "")
	password := fs.String(config.FieldPassword, "", "")
	if err := parse(fs, args); err != nil {
		return err
	}

	s, err := a.guard.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	a.say(config.TKeyLoginSuccess, map[string]any{"Name": s.User.Name})
	return nil
}

func (a *App) cmdLogout(ctx context.Context, _ []string) error {
	a.guard.Logout(ctx)
	a.say(config.TKeyLogoutSuccess, nil)
	return nil
}

func (a *App) cmdRegister(ctx context.Context, args []string) error {
	fs := a.flags(config.CmdRegister)
	var r gateway.RegisterRequest
	fs.StringVar(&r.Name, config.FieldName, "", "")
	fs.StringVar(&r.Email, config.FieldEmail, "", "")
	fs.StringVar(&r.Password, config.FieldPassword, "", "")
	fs.StringVar(&r.Confirmation, config.FlagConfirm, "", "")
	if err := parse(fs, args); err != nil {
		return err
	}

	res, err := a.guard.Register(ctx, r)
	if err != nil {
		return err
	}
	a.say(config.TKeyRegisterSuccess, nil)
	if res.Message != "" {
		_, _ = fmt.Fprintln(a.out, res.Message)
	}
	return nil
}

func (a *App) cmdWhoAmI(_ context.Context, _ []string) error {
	s, _ := a.guard.Session()
	a.say(config.TKeyWhoAmI, map[string]any{"Name": s.User.Name, "Email": s.User.Email})
	return nil
}

func (a *App) cmdProfile(ctx context.Context, args []string) error {
	fs := a.flags(config.CmdProfile)
	name := fs.String(config.FieldName, "", "")
	if err := parse(fs, args); err != nil {
		return err
	}

	user, err := a.guard.UpdateProfile(ctx, gateway.ProfilePatch{Name: name})
	if err != nil {
		a.say(config.TKeyProfileError, map[string]any{"Reason": err.Error()})
		return err
	}
	a.say(config.TKeyProfileUpdated, map[string]any{"Name": user.Name})
	return nil
}

func (a *App) cmdDeleteAccount(ctx context.Context, args []string) error {
	fs := a.flags(config.CmdDeleteAccount)
	password := fs.String(config.FieldPassword, "", "")
	if err := parse(fs, args); err != nil {
		return err
	}

	if err := a.guard.DeleteAccount(ctx, *password); err != nil {
		a.say(config.TKeyAccountError, map[string]any{"Reason": err.Error()})
		return err
	}
	a.say(config.TKeyAccountDeleted, nil)
	return nil
}

func (a *App) cmdForgotPassword(ctx context.Context, args []string) error {
	fs := a.flags(config.CmdForgotPassword)
	email := fs.String(config.FieldEmail, "", "")
	if err := parse(fs, args); err != nil {
		return err
	}

	if err := a.guard.RequestPasswordReset(ctx, *email); err != nil {
		return err
	}
	a.say(config.TKeyResetRequested, nil)
	return nil
}

func (a *App) cmdResetPassword(ctx context.Context, args []string) error {
	fs := a.flags(config.CmdResetPassword)
	var r gateway.ResetRequest
	fs.StringVar(&r.Token, config.FieldToken, "", "")
	fs.StringVar(&r.Email, config.FieldEmail, "", "")
	fs.StringVar(&r.Password, config.FieldPassword, "", "")
	fs.StringVar(&r.Confirmation, config.FlagConfirm, "", "")
	if err := parse(fs, args); err != nil {
		return err
	}

	if err := a.guard.ResetPassword(ctx, r); err != nil {
		return err
	}
	a.say(config.TKeyResetDone, nil)
	return nil
}

func (a *App) cmdVerifyEmail(ctx context.Context, args []string) error {
	fs := a.flags(config.CmdVerifyEmail)
	var v gateway.EmailVerification
	fs.StringVar(&v.ID, config.FieldID, "", "")
	fs.StringVar(&v.Hash, config.FlagHash, "", "")
	fs.StringVar(&v.Expires, config.FlagExpires, "", "")
	fs.StringVar(&v.Signature, config.FlagSignature, "", "")
	if err := parse(fs, args); err != nil {
		return err
	}

	ok, err := a.guard.VerifyEmail(ctx, v)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(config.ErrVerifyEmail)
	}
	a.say(config.TKeyEmailVerified, nil)
	return nil
}

// -----------------------------------------------------------------------------
// Contacts
// -----------------------------------------------------------------------------

func (a *App) cmdList(_ context.Context, _ []string) error {
	list := contact.SortedByName(a.contacts.Contacts())
	if len(list) == 0 {
		a.say(config.TKeyContactsEmpty, nil)
		return nil
	}
	for _, c := range list {
		a.printContact(c)
	}
	a.say(config.TKeyContactsCount, map[string]any{"Count": len(list)})
	return nil
}

func (a *App) printContact(c contact.Contact) {
	line := fmt.Sprintf(config.FormatContactLine,
		c.ID, c.Name, contact.MaskPhone(c.Phone), c.Email, c.City)
	if st := a.contacts.Status(c.ID); st != store.Synced {
		line = fmt.Sprintf(config.FormatStatusLine, line, st)
	}
	_, _ = fmt.Fprintln(a.out, line)
}

func (a *App) cmdSearch(ctx context.Context, args []string) error {
	if err := a.search.Set(query.Params{Query: strings.Join(args, " ")}); err != nil {
		return err
	}
	st, err := query.Settle(ctx, a.search)
	if err != nil {
		return err
	}
	if st.Err != nil {
		return st.Err
	}
	if len(st.Results) == 0 {
		a.say(config.TKeyNoResults, nil)
		return nil
	}
	for _, c := range st.Results {
		a.printContact(c)
	}
	return nil
}

// contactFlags binds one flag per editable field. Only the flags given on
// the command line end up in the returned patch.
func (a *App) contactFlags(name string) (*flag.FlagSet, func() contact.Patch) {
	fs := a.flags(name)
	strs := map[string]*string{}
	for _, f := range []string{
		config.FieldName, config.FieldCPF, config.FieldPhone, config.FieldEmail,
		config.FieldCEP, config.FieldState, config.FieldCity, config.FieldNeighborhood,
		config.FieldAddress, config.FieldNumber, config.FieldComplement,
	} {
		strs[f] = fs.String(f, "", "")
	}
	lat := fs.Float64(config.FieldLat, 0, "")
	lng := fs.Float64(config.FieldLng, 0, "")

	return fs, func() contact.Patch {
		var p contact.Patch
		fs.Visit(func(f *flag.Flag) {
			v := strs[f.Name]
			switch f.Name {
			case config.FieldName:
				p.Name = v
			case config.FieldCPF:
				p.CPF = v
			case config.FieldPhone:
				p.Phone = contact.String(contact.Digits(*v))
			case config.FieldEmail:
				p.Email = v
			case config.FieldCEP:
				p.ZipCode = contact.String(contact.MaskCEP(contact.Digits(*v)))
			case config.FieldState:
				p.State = v
			case config.FieldCity:
				p.City = v
			case config.FieldNeighborhood:
				p.Neighborhood = v
			case config.FieldAddress:
				p.Address = v
			case config.FieldNumber:
				p.Number = v
			case config.FieldComplement:
				p.Complement = v
			case config.FieldLat:
				p.Lat = contact.Float(*lat)
			case config.FieldLng:
				p.Lng = contact.Float(*lng)
			}
		})
		return p
	}
}

func (a *App) cmdAdd(ctx context.Context, args []string) error {
	fs, patch := a.contactFlags(config.CmdAdd)
	if err := parse(fs, args); err != nil {
		return err
	}
	c := patch().Apply(contact.Contact{})

	// A CEP fills the address fields the user left out.
	if query.IsPostalCode(c.ZipCode) && (c.City == "" || c.Address == "") {
		if err := a.suggest.Set(query.Params{Query: c.ZipCode}); err != nil {
			return err
		}
		if st, err := query.Settle(ctx, a.suggest); err == nil && len(st.Results) > 0 {
			c = contact.Merge(st.Results[0].ApplyTo(contact.Contact{}), c)
		}
	}

	if err := contact.Validate(c); err != nil {
		if errors.Is(err, contact.ErrInvalidCPF) {
			a.say(config.TKeyInvalidCPF, nil)
		}
		return err
	}

	created, err := a.contacts.Create(c).Wait(ctx)
	return a.report(config.TKeyContactCreated, created, err)
}

func (a *App) cmdEdit(ctx context.Context, args []string) error {
	id, rest := leadingArg(args)
	fs, patch := a.contactFlags(config.CmdEdit)
	if err := parse(fs, rest); err != nil {
		return err
	}
	if id == "" {
		id = fs.Arg(0)
	}
	if id == "" {
		return missing(config.FieldID)
	}
	p := patch()
	if p.IsEmpty() {
		return fmt.Errorf("%w: %s", ErrUsage, config.ErrNothingToUpdate)
	}
	if p.CPF != nil && *p.CPF != "" && !contact.IsValidCPF(*p.CPF) {
		a.say(config.TKeyInvalidCPF, nil)
		return contact.ErrInvalidCPF
	}

	updated, err := a.contacts.Update(id, p).Wait(ctx)
	if errors.Is(err, store.ErrContactNotFound) || errors.Is(err, store.ErrCreatePending) {
		return err
	}
	return a.report(config.TKeyContactUpdated, updated, err)
}

func (a *App) cmdRemove(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return missing(config.FieldID)
	}
	_, err := a.contacts.Remove(args[0]).Wait(ctx)
	if errors.Is(err, store.ErrContactNotFound) || errors.Is(err, store.ErrCreatePending) {
		return err
	}
	return a.report(config.TKeyContactRemoved, contact.Contact{}, err)
}

// report prints the outcome of an optimistic mutation. The change stays in
// the local list whatever the server answered.
func (a *App) report(key string, c contact.Contact, err error) error {
	switch {
	case err == nil:
		a.say(key, map[string]any{"Name": c.Name})
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		a.say(config.TKeySyncPending, nil)
		return err
	default:
		a.say(config.TKeySyncFailed, map[string]any{"Reason": err.Error()})
		return err
	}
}

// -----------------------------------------------------------------------------
// Addresses
// -----------------------------------------------------------------------------

func (a *App) cmdSuggest(ctx context.Context, args []string) error {
	text, rest := leadingArg(args)
	fs := a.flags(config.CmdSuggest)
	state := fs.String(config.FieldState, "", "")
	city := fs.String(config.FieldCity, "", "")
	if err := parse(fs, rest); err != nil {
		return err
	}
	if text == "" {
		text = strings.Join(fs.Args(), " ")
	}

	p := query.ParseParams(map[string]string{
		config.FieldQuery: text,
		config.FieldState: *state,
		config.FieldCity:  *city,
	})
	return a.lookupAddresses(ctx, p)
}

func (a *App) cmdCEP(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return missing(config.FieldCEP)
	}
	if !query.IsPostalCode(args[0]) {
		return fmt.Errorf("%w: %s", session.ErrValidation, config.FieldCEP)
	}
	return a.lookupAddresses(ctx, query.Params{Query: args[0]})
}

func (a *App) lookupAddresses(ctx context.Context, p query.Params) error {
	if err := a.suggest.Set(p); err != nil {
		return err
	}
	st, err := query.Settle(ctx, a.suggest)
	if err != nil {
		return err
	}
	if st.Err != nil {
		return st.Err
	}
	if len(st.Results) == 0 {
		a.say(config.TKeyNoResults, nil)
		return nil
	}
	for _, addr := range st.Results {
		label := addr.Description
		if label == "" {
			label = strings.Join(nonEmpty(addr.Address, addr.Neighborhood, addr.City, addr.State), ", ")
		}
		_, _ = fmt.Fprintf(a.out, config.FormatAddressLine+"\n", contact.MaskCEP(addr.ZipCode), label)
	}
	return nil
}

func nonEmpty(vs ...string) []string {
	out := vs[:0]
	for _, v := range vs {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Interchange
// -----------------------------------------------------------------------------

func (a *App) cmdExport(_ context.Context, args []string) error {
	fs := a.flags(config.CmdExport)
	path := fs.String(config.FlagOutput, "", "")
	if err := parse(fs, args); err != nil {
		return err
	}
	list := contact.SortedByName(a.contacts.Contacts())

	if *path == "" {
		return contact.EncodeVCards(a.out, list)
	}
	f, err := os.OpenFile(*path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, config.FilePermUserRW)
	if err != nil {
		return err
	}
	if err := contact.EncodeVCards(f, list); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.say(config.TKeyExported, map[string]any{"Count": len(list)})
	return nil
}

func (a *App) cmdImport(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return missing(config.ExtVCF)
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	cards, err := contact.DecodeVCards(f)
	if err != nil {
		return err
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		imported int
		errs     []error
	)
	for _, c := range cards {
		if contact.Validate(c) != nil {
			continue
		}
		p := a.contacts.Create(c)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Wait(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			imported++
		}()
	}
	wg.Wait()

	a.say(config.TKeyImported, map[string]any{"Count": imported})
	return errors.Join(errs...)
}

// -----------------------------------------------------------------------------
// Feed & Preferences
// -----------------------------------------------------------------------------

// cmdServe publishes the contact list on localhost until ctx is cancelled,
// reloading it from the backend periodically.
func (a *App) cmdServe(ctx context.Context, args []string) error {
	fs := a.flags(config.CmdServe)
	every := fs.Duration(config.FlagRefresh, config.FeedRefreshInterval, "")
	if err := parse(fs, args); err != nil {
		return err
	}

	if err := a.feed.Update(a.contacts.Contacts()); err != nil {
		return err
	}
	a.say(config.TKeyFeedListening, map[string]any{"URL": a.feed.URL()})

	if *every > 0 {
		go a.refreshLoop(ctx, *every)
	}
	return a.feed.Start(ctx)
}

func (a *App) refreshLoop(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !a.guard.Authenticated() {
				continue
			}
			if err := a.contacts.Refresh(ctx); err != nil {
				a.log.Warn(config.MsgRefreshFailed, config.LogKeyError, err)
			}
		}
	}
}

func (a *App) cmdTheme(ctx context.Context, args []string) error {
	theme := session.Theme(ctx, a.storage)
	if len(args) > 0 {
		var err error
		if args[0] == config.ThemeToggle {
			theme, err = session.ToggleTheme(ctx, a.storage)
		} else {
			theme, err = args[0], session.SetTheme(ctx, a.storage, args[0])
		}
		if err != nil {
			return err
		}
	}
	a.say(config.TKeyThemeCurrent, map[string]any{"Theme": theme})
	return nil
}

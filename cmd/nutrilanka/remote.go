package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"

	"nutrilanka/internal/api"
	"nutrilanka/internal/app"
	"nutrilanka/internal/body"
	"nutrilanka/internal/config"
	"nutrilanka/internal/mealplan"
	"nutrilanka/internal/shopping"
	"nutrilanka/internal/storage"
)

var errSignedOut = errors.New("not signed in, run `nutrilanka login` first")

// session is the signed-in state of the CLI against the remote service.
type session struct {
	client *api.Client
	store  *storage.LocalStore
	days   int
}

func runRemote(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	store, err := storage.NewLocalStore(cfg.LocalStorePath)
	if err != nil {
		return err
	}
	s := &session{store: store, days: cfg.PlanDays}
	if cfg.RequireAPI() == nil {
		s.client = api.NewClient(cfg.APIURL, store)
	}

	// swap and shopping work on the saved plan and need no service; show
	// only asks the service when nothing is saved.
	switch cmd {
	case "show":
		err = s.show(ctx, args)
	case "swap":
		return s.swap(args)
	case "shopping":
		return s.shopping()
	case "logout":
		return s.logout()
	default:
		err = s.runService(ctx, cfg, cmd, args)
	}
	// A rejected login is a wrong password, not an expired session.
	if cmd != "login" && cmd != "register" && api.IsUnauthorized(err) {
		_ = store.Clear()
		return errSignedOut
	}
	return err
}

func (s *session) runService(ctx context.Context, cfg *config.Config, cmd string, args []string) error {
	if err := cfg.RequireAPI(); err != nil {
		return err
	}
	switch cmd {
	case "login":
		return s.login(ctx, args)
	case "register":
		return s.register(ctx, args)
	}
	if err := s.requireToken(); err != nil {
		return err
	}

	switch cmd {
	case "analyze":
		return s.analyze(ctx, args)
	case "generate":
		return s.generate(ctx, args)
	case "measurements":
		return s.measurements(ctx)
	case "profile":
		return s.account(ctx, args)
	case "chat":
		return s.chat(ctx, args)
	case "history":
		return s.history(ctx)
	case "tips":
		return s.tips(ctx)
	}
	return fmt.Errorf("unknown command %q", cmd)
}

func (s *session) logout() error {
	email, err := s.store.UserEmail()
	if err != nil {
		return err
	}
	if err := s.store.Clear(); err != nil {
		return err
	}
	if email != "" {
		fmt.Printf("Signed out %s.\n", email)
		return nil
	}
	fmt.Println("Signed out.")
	return nil
}

// requireToken fails when there is no token or it has expired. An expired
// token is dropped so the next login starts clean.
func (s *session) requireToken() error {
	token, err := s.store.AuthToken()
	if err != nil {
		return err
	}
	if token == "" {
		return errSignedOut
	}
	expired, err := api.TokenExpired(token, time.Now())
	if err != nil || expired {
		_ = s.store.Clear()
		return errSignedOut
	}
	return nil
}

func (s *session) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Account email")
	password := fs.String("password", "", "Account password")
	fs.Parse(args)
	if *email == "" || *password == "" {
		return fmt.Errorf("-email and -password are required")
	}
	return s.signIn(ctx, *email, *password)
}

func (s *session) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	var r api.RegisterRequest
	fs.StringVar(&r.Email, "email", "", "Account email")
	fs.StringVar(&r.Password, "password", "", "Account password")
	fs.StringVar(&r.FullName, "name", "", "Full name")
	fs.IntVar(&r.Age, "age", 0, "Age in years")
	fs.StringVar(&r.Gender, "gender", "", "male or female")
	fs.StringVar(&r.Lifestyle, "lifestyle", "", "e.g. sedentary, active")
	fs.StringVar(&r.FitnessLevel, "fitness", "", "e.g. beginner, intermediate")
	fs.StringVar(&r.Goal, "goal", "", "One of: "+strings.Join(api.Goals, ", "))
	fs.Parse(args)
	if r.Email == "" || r.Password == "" {
		return fmt.Errorf("-email and -password are required")
	}

	if err := s.client.Register(ctx, r); err != nil {
		return err
	}
	fmt.Printf("Account created for %s.\n", r.Email)
	return s.signIn(ctx, r.Email, r.Password)
}

// signIn stores the token and account of a successful login.
func (s *session) signIn(ctx context.Context, email, password string) error {
	tok, err := s.client.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := s.store.SaveAuthToken(tok.AccessToken); err != nil {
		return err
	}
	if err := s.store.SaveUserEmail(email); err != nil {
		return err
	}

	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		return err
	}
	if err := s.store.SaveUserData(toMap(user)); err != nil {
		return err
	}
	fmt.Printf("Signed in as %s.\n", user.Email)

	done, err := s.store.OnboardingComplete()
	if err != nil {
		return err
	}
	if !done {
		fmt.Println("Next: run `nutrilanka analyze` to set up your body profile.")
	}
	return nil
}

func (s *session) analyze(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	var m body.Measurements
	fs.StringVar(&m.Gender, "gender", "", "male or female")
	fs.Float64Var(&m.WeightKg, "weight", 0, "Weight in kg")
	fs.Float64Var(&m.HeightCm, "height", 0, "Height in cm")
	fs.Float64Var(&m.WaistCm, "waist", 0, "Waist in cm")
	fs.Float64Var(&m.HipCm, "hip", 0, "Hip in cm")
	fs.Float64Var(&m.ChestCm, "chest", 0, "Chest in cm")
	fs.Float64Var(&m.ShoulderBreadth, "shoulder", 0, "Shoulder breadth in cm")
	fs.Float64Var(&m.WristCm, "wrist", 0, "Wrist in cm")
	fs.Parse(args)

	res, err := s.client.PredictBodyType(ctx, m)
	if err != nil {
		return err
	}
	onboarded, err := s.store.OnboardingComplete()
	if err != nil {
		return err
	}
	if err := s.store.SaveProfileData(toMap(api.ProfileFromResult(m, res))); err != nil {
		return err
	}
	if err := s.store.SetOnboardingComplete(true); err != nil {
		return err
	}

	fmt.Printf("Body type: %s\nBMI: %.2f (%s)\n", res.Somatotype, res.BMI, res.BMICategory)
	if !onboarded {
		fmt.Println("\nProfile ready. Run `nutrilanka generate` for your first plan.")
	}
	return nil
}

func (s *session) generate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	goal := fs.String("goal", api.DefaultGoal, "One of: "+strings.Join(api.Goals, ", "))
	days := fs.Int("days", s.days, "Number of days")
	fs.Parse(args)

	profile, err := s.savedProfile()
	if err != nil {
		return err
	}
	plan, err := s.client.GenerateMealPlan(ctx, profile, *days, *goal)
	if err != nil {
		return err
	}
	if err := s.store.SaveMealPlan(plan); err != nil {
		return err
	}
	fmt.Printf("New %d-day plan saved (%s).\n\n", plan.MealPlan.Days(), plan.Source)
	return s.printDay(plan, 1)
}

// savedProfile reads the profile saved by analyze.
func (s *session) savedProfile() (api.Profile, error) {
	var p api.Profile
	data, err := s.store.ProfileData()
	if err != nil {
		return p, err
	}
	if len(data) == 0 {
		return p, fmt.Errorf("no profile yet, run `nutrilanka analyze` first")
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return p, fmt.Errorf("failed to marshal profile: %w", err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("failed to decode profile: %w", err)
	}
	return p, nil
}

func (s *session) show(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	day := fs.Int("day", 1, "Day of the plan")
	fs.Parse(args)

	plan, err := s.store.MealPlan()
	if err != nil {
		return err
	}
	if plan == nil {
		if plan, err = s.fetchCurrentPlan(ctx); err != nil {
			return err
		}
	}
	return s.printDay(plan, *day)
}

// fetchCurrentPlan downloads the account's active plan and keeps it as the
// saved plan. Without a service or a session there is nothing to fetch.
func (s *session) fetchCurrentPlan(ctx context.Context) (*mealplan.Generated, error) {
	errNoPlan := fmt.Errorf("no saved plan, run `nutrilanka generate` first")
	if s.client == nil {
		return nil, errNoPlan
	}
	if err := s.requireToken(); err != nil {
		return nil, errNoPlan
	}
	plan, err := s.client.CurrentMealPlan(ctx)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, errNoPlan
	}
	if err := s.store.SaveMealPlan(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *session) swap(args []string) error {
	fs := flag.NewFlagSet("swap", flag.ExitOnError)
	day := fs.Int("day", 1, "Day of the plan")
	slotName := fs.String("slot", "", "breakfast, lunch, dinner or snacks")
	fs.Parse(args)

	slot, ok := mealplan.ParseSlot(*slotName)
	if !ok {
		return fmt.Errorf("unknown slot %q", *slotName)
	}
	plan, err := s.store.MealPlan()
	if err != nil {
		return err
	}
	if plan == nil {
		return fmt.Errorf("no saved plan, run `nutrilanka generate` first")
	}
	state, err := s.store.Selections()
	if err != nil {
		return err
	}
	if _, err := mealplan.Resolve(plan.MealPlan, state, *day, slot); err != nil {
		return err
	}

	dayPlan, _ := plan.MealPlan.Day(*day)
	if !mealplan.HasAlternative(dayPlan[slot]) {
		fmt.Printf("%s on day %d has no alternative.\n", app.SlotLabel(slot), *day)
		return nil
	}
	state = mealplan.Toggle(state, *day, slot)
	if err := s.store.SaveSelections(state); err != nil {
		return err
	}
	return s.printDay(plan, *day)
}

func (s *session) shopping() error {
	plan, err := s.store.MealPlan()
	if err != nil {
		return err
	}
	if plan == nil {
		return fmt.Errorf("no saved plan, run `nutrilanka generate` first")
	}
	state, err := s.store.Selections()
	if err != nil {
		return err
	}
	fmt.Print(formatShopping(shopping.Build(plan.MealPlan, state)))
	return nil
}

func formatShopping(items []shopping.Item) string {
	var sb strings.Builder
	sb.WriteString("Shopping list\n")
	for _, it := range items {
		fmt.Fprintf(&sb, "  - %s", it.Name)
		if len(it.Portions) > 0 {
			fmt.Fprintf(&sb, " (%s)", strings.Join(it.Portions, ", "))
		}
		fmt.Fprintf(&sb, " x%d\n", it.Count())
	}
	return sb.String()
}

func (s *session) printDay(plan *mealplan.Generated, day int) error {
	state, err := s.store.Selections()
	if err != nil {
		return err
	}
	view, err := app.BuildDayView("", plan, state, day, time.Now())
	if err != nil {
		return err
	}
	fmt.Print(formatDay(view))
	return nil
}

func formatDay(view *app.DayView) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Day %d of %d (%s)\n", view.Day, view.Days, view.Label)
	for _, meal := range view.Meals {
		fmt.Fprintf(&sb, "\n%s", meal.Label)
		if meal.Swappable {
			fmt.Fprintf(&sb, " [%s, swappable]", meal.Selected)
		}
		sb.WriteString("\n")
		for _, item := range meal.Items {
			fmt.Fprintf(&sb, "  - %s", item.Name)
			if item.HasPortion() {
				fmt.Fprintf(&sb, " (%s)", item.Portion)
			}
			sb.WriteString("\n")
		}
	}
	if len(view.Advice) > 0 {
		sb.WriteString("\nAdvice\n")
		for _, a := range view.Advice {
			fmt.Fprintf(&sb, "  - %s\n", a)
		}
	}
	return sb.String()
}

func (s *session) measurements(ctx context.Context) error {
	records, err := s.client.MeasurementHistory(ctx)
	if err != nil {
		return err
	}
	fmt.Print(formatMeasurements(records))
	return nil
}

func formatMeasurements(records []api.MeasurementRecord) string {
	if len(records) == 0 {
		return "No measurements yet, run `nutrilanka analyze`.\n"
	}
	var sb strings.Builder
	for _, r := range records {
		date := "unknown date"
		if !r.Date.IsZero() {
			date = r.Date.Format(time.DateOnly)
		}
		fmt.Fprintf(&sb, "%s  %.1f kg  %.0f cm", date, r.WeightKg, r.HeightCm)
		if r.WaistCm > 0 {
			fmt.Fprintf(&sb, "  waist %.0f cm", r.WaistCm)
		}
		if r.BMI > 0 {
			fmt.Fprintf(&sb, "  BMI %.2f (%s)", r.BMI, r.BMICategory)
		}
		if r.Somatotype != "" {
			fmt.Fprintf(&sb, "  %s", r.Somatotype)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// account shows the account profile and updates the fields given as flags.
func (s *session) account(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("profile", flag.ExitOnError)
	name := fs.String("name", "", "Full name")
	age := fs.Int("age", 0, "Age in years")
	gender := fs.String("gender", "", "male or female")
	lifestyle := fs.String("lifestyle", "", "e.g. sedentary, active")
	fitness := fs.String("fitness", "", "e.g. beginner, intermediate")
	goal := fs.String("goal", "", "One of: "+strings.Join(api.Goals, ", "))
	fs.Parse(args)

	user, err := s.client.CurrentUser(ctx)
	if err != nil {
		return err
	}

	changed := false
	fs.Visit(func(f *flag.Flag) {
		changed = true
		switch f.Name {
		case "name":
			user.FullName = *name
		case "age":
			user.Age = *age
		case "gender":
			user.Gender = strings.ToLower(*gender)
		case "lifestyle":
			user.Lifestyle = *lifestyle
		case "fitness":
			user.FitnessLevel = *fitness
		case "goal":
			user.Goal = *goal
		}
	})
	if changed {
		if err := s.client.UpdateProfile(ctx, *user); err != nil {
			return err
		}
		fmt.Println("Profile updated.")
	}
	if err := s.store.SaveUserData(toMap(user)); err != nil {
		return err
	}

	email, err := s.store.UserEmail()
	if err != nil {
		return err
	}
	if email == "" {
		email = user.Email
	}
	fmt.Print(formatAccount(email, user))
	return nil
}

func formatAccount(email string, u *api.User) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Account: %s\n", email)
	rows := []struct{ label, value string }{
		{"Name", u.FullName},
		{"Gender", u.Gender},
		{"Lifestyle", u.Lifestyle},
		{"Fitness", u.FitnessLevel},
		{"Goal", u.Goal},
	}
	if u.Age > 0 {
		rows = append(rows, struct{ label, value string }{"Age", fmt.Sprint(u.Age)})
	}
	for _, r := range rows {
		if r.value != "" {
			fmt.Fprintf(&sb, "  %s: %s\n", r.label, r.value)
		}
	}
	return sb.String()
}

func (s *session) chat(ctx context.Context, args []string) error {
	reply, err := s.client.SendChat(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

func (s *session) history(ctx context.Context) error {
	messages, err := s.client.ChatHistory(ctx)
	if err != nil {
		return err
	}
	for _, m := range messages {
		who := "Assistant"
		if m.IsUser {
			who = "You"
		}
		fmt.Printf("%s: %s\n", who, m.Text)
	}
	return nil
}

// tips serves today's cached tips before asking the service.
func (s *session) tips(ctx context.Context) error {
	list, ok, err := s.store.DailyTips()
	if err != nil {
		return err
	}
	if !ok {
		if list, err = s.client.DailyTips(ctx); err != nil {
			return err
		}
		if err := s.store.SaveDailyTips(list); err != nil {
			return err
		}
	}
	for i, t := range list {
		fmt.Printf("%d. %s\n", i+1, t)
	}
	return nil
}

func toMap(v any) map[string]any {
	raw, _ := json.Marshal(v)
	m := map[string]any{}
	_ = json.Unmarshal(raw, &m)
	return m
}

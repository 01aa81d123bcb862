package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/noah-isme/quizzy-go-api/internal/client"
	"github.com/noah-isme/quizzy-go-api/internal/config"
	"github.com/noah-isme/quizzy-go-api/internal/logger"
	"github.com/noah-isme/quizzy-go-api/internal/models"
	"github.com/noah-isme/quizzy-go-api/pkg/dashboardapi"
	"github.com/noah-isme/quizzy-go-api/pkg/identity"
)

type options struct {
	schoolID  string
	studentID string
	signOut   bool
}

func main() {
	flags := pflag.NewFlagSet("quizzy", pflag.ExitOnError)
	var opts options
	flags.StringVar(&opts.schoolID, "school-id", "", "school id used to sign in")
	flags.StringVar(&opts.studentID, "student-id", "", "student id used to sign in")
	flags.BoolVar(&opts.signOut, "sign-out", false, "sign out after showing the dashboard")
	flags.String("dashboard.base_url", "", "dashboard document base url")
	flags.String("dashboard.token", "", "dashboard document access token")
	flags.String("identity.base_url", "", "identity service base url")
	flags.String("identity.timeout", "", "identity request timeout")
	flags.String("log.level", "", "log level")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithWriter(os.Stderr, cfg.LogLevel, "console")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts, os.Stdout, log); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, opts options, out io.Writer, log zerolog.Logger) error {
	identityClient, err := identity.New(identity.Config{
		BaseURL: cfg.IdentityBaseURL,
		Timeout: cfg.IdentityTimeout,
		Logger:  log,
	})
	if err != nil {
		return err
	}

	dashboardClient, err := dashboardapi.New(dashboardapi.Config{
		BaseURL:    cfg.DashboardBaseURL,
		Document:   cfg.DashboardDocument,
		Token:      cfg.DashboardToken,
		Timeout:    cfg.DashboardTimeout,
		MaxRetries: cfg.DashboardMaxRetries,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	authRepo := client.NewAuthRepository(identityClient, cfg.AuthDemoPassphrase, log)
	login := client.NewLoginViewModel(authRepo, log)
	defer login.Close()

	nav := client.NewNavigator(authRepo.IsAuthenticated())
	defer nav.Close()

	sessionCtx, endSession := context.WithCancel(ctx)
	defer endSession()
	go nav.Follow(sessionCtx, authRepo.SessionChanges(sessionCtx))
	go login.Follow(sessionCtx, authRepo.SessionChanges(sessionCtx))

	if nav.Current() == client.RouteLogin {
		login.SetSchoolID(opts.schoolID)
		login.SetStudentID(opts.studentID)
		if state := login.SignIn(ctx); state.Kind != client.AuthAuthenticated {
			return errors.New(state.Message)
		}
		nav.LoginSucceeded()
	}

	go func() {
		if err := identityClient.Watch(sessionCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Debug().Err(err).Msg("session watch ended")
		}
	}()

	home := client.NewHomeViewModel(client.NewDashboardRepository(dashboardClient), authRepo, log)
	defer home.Close()

	state := home.Load(ctx)
	if state.Kind == client.ViewFailed {
		return fmt.Errorf("dashboard: %s", state.Message)
	}
	printDashboard(out, state.Snapshot)

	if !opts.signOut {
		return nil
	}

	if err := home.SignOut(ctx); err != nil {
		log.Warn().Err(err).Msg("server session revoke failed")
	}
	waitForRoute(nav, client.RouteLogin, 2*time.Second)
	fmt.Fprintf(out, "\nsigned out, route: %s\n", nav.Current())
	return nil
}

func printDashboard(out io.Writer, snapshot models.DashboardSnapshot) {
	fmt.Fprintf(out, "%s (%s) - %s\n", snapshot.StudentName(), snapshot.StudentClass(), snapshot.Availability())
	fmt.Fprintf(out, "Quiz attempts: %d  Accuracy: %s\n", snapshot.QuizAttempts(), snapshot.Accuracy())
	fmt.Fprintf(out, "Focus: %s\n", snapshot.FocusStatus())
	if video := snapshot.VideoRecommendation(); video.Title != "" {
		fmt.Fprintf(out, "Recommended: %s\n", video.Title)
	}

	days := snapshot.QuizStreak()
	completion := models.StreakCompletion(days)
	marks := make([]string, len(days))
	for i, day := range days {
		mark := "-"
		if completion[i] {
			mark = "x"
		}
		marks[i] = fmt.Sprintf("%s[%s]", day.Day, mark)
	}
	fmt.Fprintf(out, "Streak: %s\n", strings.Join(marks, " "))
	fmt.Fprintf(out, "Weekly accuracy: %d%% %s\n", snapshot.WeeklyAccuracy(), snapshot.WeeklyOverview.OverallAccuracy.Label)

	for _, topic := range snapshot.PerformanceByTopic() {
		fmt.Fprintf(out, "  %-12s %-5s %s %d\n", topic.Topic, models.ParseTrend(topic.Trend), topic.Color(), topic.Score())
	}
}

func waitForRoute(nav *client.Navigator, route client.Route, timeout time.Duration) {
	routes, cancel := nav.Subscribe()
	defer cancel()

	deadline := time.After(timeout)
	for {
		select {
		case current, ok := <-routes:
			if !ok || current == route {
				return
			}
		case <-deadline:
			return
		}
	}
}

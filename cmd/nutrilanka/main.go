package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nutrilanka/internal/app"
	"nutrilanka/internal/config"
	"nutrilanka/internal/knowledge"
	"nutrilanka/internal/web"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "register", "login", "logout", "analyze", "profile", "measurements", "generate", "show", "swap", "shopping", "chat", "history", "tips":
		if err := runRemote(ctx, cfg, os.Args[1], args); err != nil {
			log.Fatalf("%s failed: %v", os.Args[1], err)
		}
	case "serve":
		serve(ctx, cfg)
	case "metrics":
		metricsCmd := flag.NewFlagSet("metrics", flag.ExitOnError)
		days := metricsCmd.Int("days", 7, "Report on the last N days")
		metricsCmd.Parse(args)

		application, cleanup, err := app.Setup(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer cleanup()

		report, err := application.MetricsReport(ctx, *days)
		if err != nil {
			log.Fatalf("Failed to build report: %v", err)
		}
		fmt.Print(report)
	case "metrics-cleanup":
		cleanupCmd := flag.NewFlagSet("metrics-cleanup", flag.ExitOnError)
		days := cleanupCmd.Int("days", 30, "Keep records for the last N days")
		cleanupCmd.Parse(args)

		application, cleanup, err := app.Setup(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to initialize: %v", err)
		}
		defer cleanup()

		affected, err := application.CleanupMetrics(ctx, *days)
		if err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		fmt.Printf("Successfully removed %d old metric records.\n", affected)
	case "kb-annotate":
		annotateCmd := flag.NewFlagSet("kb-annotate", flag.ExitOnError)
		in := annotateCmd.String("in", cfg.KnowledgeBasePath, "Knowledge base to read")
		out := annotateCmd.String("out", "", "Where to write the result (defaults to -in)")
		annotateCmd.Parse(args)
		if *out == "" {
			*out = *in
		}

		kb, err := knowledge.Load(*in)
		if err != nil {
			log.Fatalf("Failed to load knowledge base: %v", err)
		}
		n := kb.Annotate()
		if err := kb.Save(*out); err != nil {
			log.Fatalf("Failed to save knowledge base: %v", err)
		}
		fmt.Printf("Annotated %d entries, saved to %s.\n", n, *out)
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// serve runs the companion web page until SIGINT/SIGTERM.
func serve(ctx context.Context, cfg *config.Config) {
	application, cleanup, err := app.Setup(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: web.NewServer(application, cfg.WebUserID).Router(),
	}

	go func() {
		log.Printf("Web page listening on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}
	log.Println("Server exiting")
}

func printUsage() {
	fmt.Println("Usage: nutrilanka <command> [arguments]")
	fmt.Println("\nAccount commands (remote service, NUTRILANKA_API_URL):")
	fmt.Println("  register -email E -password P [-name N -age A -goal G ...]")
	fmt.Println("                               Create an account and sign in")
	fmt.Println("  login -email E -password P   Sign in and keep the token locally")
	fmt.Println("  logout                       Forget the local session")
	fmt.Println("  analyze -gender G -weight W -height H -waist ... ")
	fmt.Println("                               Classify body type and save the profile")
	fmt.Println("  profile [-age A -goal G ...] Show or update the account profile")
	fmt.Println("  measurements                 List past body measurements")
	fmt.Println("  generate [-goal G] [-days N] Request a new meal plan")
	fmt.Println("  show [-day N]                Show one day of the saved or current plan")
	fmt.Println("  swap -day N -slot S          Toggle main/alternative for a meal")
	fmt.Println("  shopping                     List what the saved plan needs")
	fmt.Println("  chat <question>              Ask the nutrition assistant")
	fmt.Println("  history                      Show the chat history")
	fmt.Println("  tips                         Show today's tips")
	fmt.Println("\nServer commands (local database):")
	fmt.Println("  serve                        Run the companion web page")
	fmt.Println("  metrics [-days N]            Print token usage and health")
	fmt.Println("  metrics-cleanup [-days N]    Remove old metric records")
	fmt.Println("  kb-annotate [-in F] [-out F] Add portion estimates to meal options")
}

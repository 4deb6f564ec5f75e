package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"coinpulse/internal/app"
	"coinpulse/internal/config"
	"coinpulse/internal/logger"
	"coinpulse/internal/metrics"
	"coinpulse/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to YAML config")
	once := flag.Bool("once", false, "run one digest pass and exit")
	symbol := flag.String("symbol", "", "run an on-demand query for one ticker and exit")
	flag.Parse()

	logger.Init()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer a.Close()

	if os.Getenv("ENABLE_HTTP_MONITORING") == "true" {
		go startMonitoringServer()
	}

	switch {
	case *symbol != "":
		a.RunQuery(ctx, *symbol)
	case *once:
		a.RunDigest(ctx)
	default:
		sched := scheduler.New()
		if err := sched.RegisterDigest(cfg.Schedule.DigestCron, func() {
			a.RunDigest(ctx)
		}); err != nil {
			log.Fatalf("scheduler: %v", err)
		}
		sched.Start()
		defer sched.Stop()
		<-ctx.Done()
	}
}

func startMonitoringServer() {
	port := os.Getenv("MONITORING_PORT")
	if port == "" {
		port = "8080"
	}

	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/metrics", metricsHandler)

	log.Printf("Starting monitoring server on port %s", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Printf("Monitoring server error: %v", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()

	status := "ok"
	if !stats["is_healthy"].(bool) {
		status = "error"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	response := map[string]interface{}{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func metricsHandler(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

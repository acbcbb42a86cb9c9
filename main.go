package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"

	"billing-gateway-core/config"
	"billing-gateway-core/database"
	"billing-gateway-core/gateway"
	"billing-gateway-core/handlers"
	"billing-gateway-core/middleware"
	"billing-gateway-core/queue"
	"billing-gateway-core/services/gateway/fastcharge"
	"billing-gateway-core/services/gateway/redirectpay"
	"billing-gateway-core/worker"
)

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		// Only slow requests and errors are worth a log line.
		elapsed := time.Since(start)
		if elapsed > 500*time.Millisecond || wrapper.status >= 400 {
			log.Printf(
				"%s %s %s %d %v",
				r.Method,
				r.RequestURI,
				r.RemoteAddr,
				wrapper.status,
				elapsed,
			)
		}
	})
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile | log.Lmicroseconds | log.LUTC)

	numCPU := runtime.NumCPU()
	runtime.GOMAXPROCS(numCPU)
	log.Printf("Server starting with %d CPUs available", numCPU)

	cfg := config.Load()
	log.Printf("Configuration loaded successfully")

	var db *database.Connection
	var err error
	for retries := 0; retries < 5; retries++ {
		db, err = database.NewConnection(cfg.Database)
		if err == nil {
			break
		}
		retryDelay := time.Duration(retries+1) * time.Second
		log.Printf("Failed to connect to database (attempt %d/5): %v. Retrying in %v...",
			retries+1, err, retryDelay)
		time.Sleep(retryDelay)
	}

	if err != nil {
		log.Fatalf("Failed to connect to database after retries: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := db.GetDB().PingContext(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("Successfully connected to database")

	notificationQueue, err := queue.NewQueue(cfg.Redis.URL, "gateway_notifications")
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer notificationQueue.Close()
	log.Println("Successfully connected to Redis")

	pendingStore := queue.NewPendingStore(notificationQueue.Client(), 2*time.Hour)

	// Registering verifies every declared capability, so a broken adapter
	// fails here instead of mid-transaction.
	registry := gateway.NewRegistry()
	for _, reg := range []gateway.Registration{
		fastcharge.Registration(),
		redirectpay.Registration(),
	} {
		if err := registry.Register(reg); err != nil {
			log.Fatalf("Failed to register gateway: %v", err)
		}
	}
	log.Printf("Registered gateways: %v", registry.Names())

	workerConcurrency := cfg.Redis.WorkerConcurrency
	if workerConcurrency < 2 {
		workerConcurrency = 2
	} else if workerConcurrency > 8 {
		workerConcurrency = 8
	}

	notificationWorker := worker.NewWorker(notificationQueue, db)
	notificationWorker.Start(workerConcurrency)
	defer notificationWorker.Stop()

	logStore := database.NewGatewayLogStore(db)

	paymentHandler := handlers.NewPaymentHandler(db, registry, logStore, cfg.GatewayMeta)
	callbackHandler := handlers.NewCallbackHandler(registry, logStore, cfg.GatewayMeta,
		notificationQueue, pendingStore, cfg.Session.Secret)

	rateLimiter, err := middleware.NewRateLimiter(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("Failed to initialize rate limiter: %v", err)
	}
	defer rateLimiter.Close()

	router := mux.NewRouter()
	router.Use(corsMiddleware)
	router.Use(loggingMiddleware)
	router.Use(middleware.SecurityHeadersMiddleware)
	router.Use(rateLimiter.RateLimitMiddleware())

	api := router.PathPrefix("/api").Subrouter()

	// Merchant processing endpoints
	api.HandleFunc("/payments", paymentHandler.ProcessPayment).Methods("POST", "OPTIONS")
	api.HandleFunc("/payments/refund", paymentHandler.RefundPayment).Methods("POST", "OPTIONS")
	api.HandleFunc("/payments/void", paymentHandler.VoidPayment).Methods("POST", "OPTIONS")
	api.HandleFunc("/payment-accounts", paymentHandler.StoreCard).Methods("POST", "OPTIONS")
	api.HandleFunc("/payment-accounts/remove", paymentHandler.RemoveCard).Methods("POST", "OPTIONS")
	api.HandleFunc("/payment-accounts/verify", paymentHandler.VerifyBankAccount).Methods("POST", "OPTIONS")
	api.HandleFunc("/gateway-logs/{group}", paymentHandler.GetLogGroup).Methods("GET")

	// Redirect gateway endpoints
	api.HandleFunc("/checkout/{gateway}", callbackHandler.StartCheckout).Methods("POST", "OPTIONS")
	api.HandleFunc("/gateway/{gateway}/webhook", callbackHandler.Webhook).Methods("POST")
	api.HandleFunc("/gateway/{gateway}/return", callbackHandler.Return).Methods("GET", "POST")

	startTime := time.Now()

	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		health := struct {
			Status    string   `json:"status"`
			Time      string   `json:"time"`
			Database  string   `json:"database"`
			Redis     string   `json:"redis"`
			Gateways  []string `json:"gateways"`
			Uptime    string   `json:"uptime"`
			GoVersion string   `json:"go_version"`
		}{
			Status:    "ok",
			Time:      time.Now().Format(time.RFC3339),
			Database:  "connected",
			Redis:     "connected",
			Gateways:  registry.Names(),
			Uptime:    fmt.Sprintf("%v", time.Since(startTime)),
			GoVersion: runtime.Version(),
		}

		dbCtx, dbCancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer dbCancel()

		if err := db.GetDB().PingContext(dbCtx); err != nil {
			health.Status = "degraded"
			health.Database = "error"
		}

		redisCtx, redisCancel := context.WithTimeout(ctx, 500*time.Millisecond)
		defer redisCancel()

		if err := notificationQueue.Client().Ping(redisCtx).Err(); err != nil {
			health.Status = "degraded"
			health.Redis = "error"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	}).Methods("GET")

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   60 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	<-stop
	log.Println("Shutdown signal received, gracefully shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	log.Println("Shutting down HTTP server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Stopping notification worker...")
	notificationWorker.Stop()

	time.Sleep(2 * time.Second)

	log.Println("Closing database connections...")
	db.Close()

	log.Println("Closing Redis connections...")
	notificationQueue.Close()

	log.Println("Server exited properly")
}

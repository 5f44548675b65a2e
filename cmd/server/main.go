package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tyrowin/nexus-relay/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fmt.Println("Starting Nexus Relay Server...")

	config := server.NewConfigFromEnv()
	server.SetConfig(config)

	server.StartHub()

	mux := server.SetupRoutes()
	httpServer := server.CreateServer(config.Port, mux)

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-quit
		if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}
		if err := server.GetHub().Shutdown(shutdownTimeout); err != nil {
			log.Printf("Hub shutdown: %v", err)
		}
	}()

	if err := server.StartServer(httpServer); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
	<-shutdownDone
}

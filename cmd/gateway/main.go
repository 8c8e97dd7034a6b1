package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/nsharda/edge-gateway/internal/config"
	"github.com/nsharda/edge-gateway/internal/server"
)

func main() {
	// Load env if it exists
	godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.json"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	srv, err := server.New(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build server")
	}

	registerApp(srv.App())

	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("forced shutdown")
	}

	log.Info("exited")
}

// registerApp mounts the application endpoints behind the pipeline. The
// gateway is in-process: these stand in for the real application routes.
func registerApp(app *gin.RouterGroup) {
	app.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message":  "pong",
			"clientId": c.GetString("client_id"),
			"tier":     c.GetString("tier"),
		})
	})

	app.GET("/api/time", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"now": time.Now().UTC()})
	})
}

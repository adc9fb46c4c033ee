package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"clipvault/config"
	"clipvault/signaling"
)

// test_signal listens on the configured serial port and prints every motion
// transition, for wiring checks before pointing the sensor at a real camera.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	cfg := config.LoadConfig()
	if cfg.SerialPort == "" {
		log.Fatal("SERIAL_PORT not configured")
	}

	source := signaling.NewSerialMotionSource(cfg.SerialPort, cfg.SerialBaud, func(camera string, active bool) error {
		log.Printf("Motion transition: camera=%s active=%v", camera, active)
		return nil
	})
	defer source.Close()

	if err := source.Connect(); err != nil {
		log.Fatalf("Failed to connect to motion sensor: %v", err)
	}

	log.Printf("Connected to motion sensor on %s at %d baud. Waiting for transitions...",
		cfg.SerialPort, cfg.SerialBaud)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
}

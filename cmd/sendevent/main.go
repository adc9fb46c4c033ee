package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// sendevent pushes synthetic detection batches at a running instance, useful
// for exercising the trigger pipeline without a vision model attached.
func main() {
	server := flag.String("server", "http://localhost:8080", "Base URL of the running service")
	camera := flag.String("camera", "", "Camera name to send events for")
	class := flag.String("class", "person", "Detection class name")
	score := flag.Float64("score", 0.9, "Detection confidence score")
	count := flag.Int("count", 1, "Detections per batch")
	repeat := flag.Int("repeat", 1, "Number of batches to send")
	interval := flag.Duration("interval", time.Second, "Delay between batches")
	moving := flag.Bool("moving", true, "Mark detections as moving")
	motion := flag.Bool("motion", false, "Send a motion pulse instead of detections")
	flag.Parse()

	if *camera == "" {
		log.Fatal("Provide a camera name with -camera")
	}

	base := strings.TrimRight(*server, "/")
	client := &http.Client{Timeout: 10 * time.Second}

	for i := 0; i < *repeat; i++ {
		if i > 0 {
			time.Sleep(*interval)
		}

		var url string
		var payload interface{}
		if *motion {
			url = fmt.Sprintf("%s/api/motion/%s", base, *camera)
			payload = map[string]bool{"active": true}
		} else {
			url = fmt.Sprintf("%s/api/events/%s", base, *camera)
			detections := make([]map[string]interface{}, 0, *count)
			for j := 0; j < *count; j++ {
				detections = append(detections, map[string]interface{}{
					"className":      *class,
					"score":          *score,
					"hasBoundingBox": true,
					"isMoving":       *moving,
				})
			}
			payload = map[string]interface{}{"detections": detections}
		}

		body, err := json.Marshal(payload)
		if err != nil {
			log.Fatalf("Failed to encode payload: %v", err)
		}

		resp, err := client.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			log.Fatalf("Request failed: %v", err)
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		log.Printf("Batch %d/%d -> %s: %s", i+1, *repeat, resp.Status, strings.TrimSpace(string(respBody)))
		if resp.StatusCode >= 400 {
			log.Fatalf("Server rejected the batch")
		}
	}
}

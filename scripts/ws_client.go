// Package main runs a demo WebSocket client for solver run events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

const demoInstance = `{
	"name": "ws-demo",
	"depots": [
		{"id": "d1", "x": 0, "y": 0, "openingCost": 100, "capacity": 40},
		{"id": "d2", "x": 10, "y": 0, "openingCost": 80, "capacity": 40}
	],
	"customers": [
		{"id": "c1", "x": 1, "y": 1, "demand": 4},
		{"id": "c2", "x": 2, "y": 3, "demand": 3},
		{"id": "c3", "x": 9, "y": 1, "demand": 6},
		{"id": "c4", "x": 8, "y": 3, "demand": 5}
	],
	"fleet": {"secondary": {"capacity": 10, "fixedCost": 5, "costPerDist": 1}}
}`

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Create a demo instance
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/instances", bytes.NewReader([]byte(demoInstance)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	var inst struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&inst); err != nil {
		log.Fatal(err)
	}
	_ = resp.Body.Close()
	log.Printf("Instance ID: %s", inst.ID)

	// Start an async SA run with frequent progress samples
	body, _ := json.Marshal(map[string]any{
		"instanceId":    inst.ID,
		"algorithm":     "sa",
		"seed":          7,
		"maxIterations": 50000,
	})
	req, _ = http.NewRequest(http.MethodPost, base+"/v1/solve", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	var run struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
		log.Fatal(err)
	}
	_ = resp.Body.Close()
	log.Printf("Run ID: %s", run.ID)

	// Stream the run's events over WebSocket
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/" + run.ID + "/events/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var evt struct {
				Type string         `json:"type"`
				Data map[string]any `json:"data"`
			}
			if err := c.ReadJSON(&evt); err != nil {
				return
			}
			b, _ := json.Marshal(evt.Data)
			log.Printf("WS <- %s: %s", evt.Type, string(b))
			if evt.Type == "run.completed" || evt.Type == "run.failed" {
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Print("timed out waiting for the run to finish")
	}
}

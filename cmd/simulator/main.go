package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

type Config struct {
	BaseURL   string
	Latitude  float64
	Longitude float64
	Steps     int
	StepM     float64
	Interval  time.Duration
}

type client struct {
	baseURL string
	http    *http.Client
}

type user struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type reportResponse struct {
	Status string            `json:"status"`
	Queued bool              `json:"queued"`
	Opened []json.RawMessage `json:"opened"`
	Closed []json.RawMessage `json:"closed"`
}

const metersPerDegreeLat = 111320.0

func main() {
	config := parseFlags()
	log.Printf("Starting simulator with config: %+v", config)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	c := &client{baseURL: config.BaseURL, http: &http.Client{Timeout: 10 * time.Second}}

	alice := c.register()
	bob := c.register()
	log.Printf("Registered %s (%s) and %s (%s)", alice.Username, alice.ID, bob.Username, bob.ID)

	c.post(alice.ID, "/api/v1/friends/add", map[string]string{"friend_id": bob.ID}, nil)
	c.post(bob.ID, "/api/v1/friends/accept", map[string]string{"friend_id": alice.ID}, nil)

	lat, lon := config.Latitude, config.Longitude
	for i := 0; i < config.Steps; i++ {
		select {
		case <-sigChan:
			log.Println("\nReceived interrupt signal, shutting down...")
			return
		default:
		}
		// Идут вместе в 10 м друг от друга
		c.report(alice.ID, lat, lon)
		c.report(bob.ID, lat+10/metersPerDegreeLat, lon)
		lat += config.StepM / metersPerDegreeLat
		time.Sleep(config.Interval)
	}

	// Боб уходит на 200 м на восток
	eastDeg := 200 / (metersPerDegreeLat * math.Cos(lat*math.Pi/180))
	c.report(bob.ID, lat, lon+eastDeg)
	c.report(alice.ID, lat, lon)

	printStats(c, alice)
}

func parseFlags() Config {
	config := Config{}

	flag.StringVar(&config.BaseURL, "url", "http://localhost:8080", "Service URL")
	flag.Float64Var(&config.Latitude, "lat", 48.8566, "Starting latitude")
	flag.Float64Var(&config.Longitude, "lon", 2.3522, "Starting longitude")
	flag.IntVar(&config.Steps, "steps", 10, "Number of steps walked together")
	flag.Float64Var(&config.StepM, "step", 6, "Step length in meters (>= 5 to pass rate limiting)")
	flag.DurationVar(&config.Interval, "interval", 3*time.Second, "Pause between steps")

	flag.Parse()
	return config
}

func (c *client) register() user {
	var u user
	name := gofakeit.Regex("^[a-z][a-z0-9_]{5,12}$")
	c.post("", "/api/v1/users/register", map[string]string{"username": name}, &u)
	return u
}

func (c *client) report(userID string, lat, lon float64) {
	var resp reportResponse
	c.post(userID, "/api/v1/location/report", map[string]float64{
		"latitude":  lat,
		"longitude": lon,
		"accuracy":  10,
	}, &resp)
	log.Printf("user=%s status=%s queued=%v opened=%d closed=%d",
		userID, resp.Status, resp.Queued, len(resp.Opened), len(resp.Closed))
}

func (c *client) post(userID, path string, body interface{}, out interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Fatalf("Failed to marshal request: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewBuffer(data))
	if err != nil {
		log.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.do(req, userID, out)
}

func (c *client) get(userID, path string, out interface{}) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		log.Fatalf("Failed to create request: %v", err)
	}
	c.do(req, userID, out)
}

func (c *client) do(req *http.Request, userID string, out interface{}) {
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		log.Fatalf("Request %s %s failed: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		log.Fatalf("Request %s %s returned %d: %s", req.Method, req.URL.Path, resp.StatusCode, body)
	}
	if out != nil {
		if err := json.Unmarshal(body, out); err != nil {
			log.Fatalf("Failed to decode response: %v", err)
		}
	}
}

func printStats(c *client, u user) {
	var stats json.RawMessage
	c.get(u.ID, "/api/v1/stats/friends", &stats)

	var pretty bytes.Buffer
	_ = json.Indent(&pretty, stats, "", "  ")
	fmt.Println("\n=== Time together ===")
	fmt.Printf("User: %s\n", u.Username)
	fmt.Println(pretty.String())
}

// Package main tails a user's live activity stream from a running server.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

type event struct {
	Type    string `json:"type"`
	Payload struct {
		LogName     string    `json:"log_name"`
		Description string    `json:"description"`
		SubjectType *string   `json:"subject_type"`
		SubjectID   *uint     `json:"subject_id"`
		CreatedAt   time.Time `json:"created_at"`
	} `json:"payload"`
}

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	email := flag.String("email", "", "Account email")
	password := flag.String("password", "password123", "Account password")
	token := flag.String("token", "", "Existing bearer token (skips login)")
	flag.Parse()

	if *token == "" {
		if *email == "" {
			log.Fatal("either -token or -email is required")
		}
		t, err := login(*host, *email, *password)
		if err != nil {
			log.Fatalf("❌ Login failed: %v", err)
		}
		*token = t
		log.Printf("✅ Logged in as %s", *email)
	}

	u := url.URL{Scheme: "ws", Host: *host, Path: "/api/ws/activity", RawQuery: "token=" + url.QueryEscape(*token)}
	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("❌ Dial failed: %v", err)
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = c.Close() }()
	log.Printf("📡 Watching activity on %s", u.Host)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("read: %v", err)
				}
				return
			}
			var ev event
			if err := json.Unmarshal(raw, &ev); err != nil || ev.Type != "activity" {
				log.Printf("? %s", raw)
				continue
			}
			subject := "-"
			if ev.Payload.SubjectType != nil && ev.Payload.SubjectID != nil {
				subject = fmt.Sprintf("%s:%d", *ev.Payload.SubjectType, *ev.Payload.SubjectID)
			}
			fmt.Printf("%s  %-8s %-32s %s\n",
				ev.Payload.CreatedAt.Local().Format(time.TimeOnly), ev.Payload.LogName, ev.Payload.Description, subject)
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		log.Println("🛑 Interrupted by user")
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func login(host, email, password string) (string, error) {
	loginURL := fmt.Sprintf("http://%s/api/login", host)
	body, _ := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Post(loginURL, "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	var result struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Token, nil
}

// Package main is a small client for poking the realtime channel: it logs in
// (optionally), connects to /ws, sends chat-message frames and prints what comes back.
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

func main() {
	host := flag.String("host", "localhost:3001", "API server host")
	email := flag.String("email", "", "Log in as this user (anonymous when empty)")
	password := flag.String("password", "", "Password for -email")
	text := flag.String("text", "hello from chatprobe", "Message text")
	count := flag.Int("count", 3, "Number of chat-message frames to send")
	interval := flag.Duration("interval", time.Second, "Delay between frames")
	flag.Parse()

	query := url.Values{}
	if *email != "" {
		token, err := login(*host, *email, *password)
		if err != nil {
			log.Fatalf("Login failed: %v", err)
		}
		query.Set("token", token)
		log.Printf("Logged in as %s", *email)
	}

	u := url.URL{Scheme: "ws", Host: *host, Path: "/ws", RawQuery: query.Encode()}
	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		if resp != nil {
			log.Fatalf("Dial failed with status %d: %v", resp.StatusCode, err)
		}
		log.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = c.Close() }()
	log.Printf("Connected to ws://%s%s", u.Host, u.Path)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			log.Printf("<- %s", msg)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for sent := 0; sent < *count; {
		select {
		case <-interrupt:
			closeConn(c)
			return
		case <-done:
			log.Println("Server closed the connection")
			return
		case <-ticker.C:
			frame, _ := json.Marshal(map[string]interface{}{
				"event": "chat-message",
				"data": map[string]interface{}{
					"text": fmt.Sprintf("%s #%d", *text, sent+1),
					"sent": time.Now().UTC().Format(time.RFC3339),
				},
			})
			if err := c.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Fatalf("Write failed: %v", err)
			}
			log.Printf("-> %s", frame)
			sent++
		}
	}

	closeConn(c)
	select {
	case <-done:
	case <-time.After(time.Second):
	}
}

func closeConn(c *websocket.Conn) {
	_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func login(host, email, password string) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})

	resp, err := http.Post(fmt.Sprintf("http://%s/login", host), "application/json", bytes.NewBuffer(body))
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

package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// webhookgenerator replays signed sample billing events against a running
// server so the webhook pipeline can be exercised without a Stripe account.

type config struct {
	BaseURL      string `mapstructure:"base_url"`
	Secret       string `mapstructure:"secret"`
	Customer     string `mapstructure:"customer"`
	Subscription string `mapstructure:"subscription"`
	Interval     string `mapstructure:"interval"`
}

var eventTypes = []string{
	"invoice.payment_succeeded",
	"invoice.payment_failed",
	"customer.subscription.deleted",
}

func main() {
	configPath := flag.String("config", "", "path to YAML config")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	interval, err := time.ParseDuration(cfg.Interval)
	if err != nil || interval <= 0 {
		fmt.Fprintln(os.Stderr, "interval must be a positive duration")
		os.Exit(1)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	client := &http.Client{Timeout: 10 * time.Second}
	for i := 0; ; i++ {
		eventType := eventTypes[i%len(eventTypes)]
		if err := sendEvent(client, cfg, eventType, i); err != nil {
			fmt.Fprintln(os.Stderr, "webhook error:", err)
		}
		<-ticker.C
	}
}

func loadConfig(path string) (config, error) {
	if strings.TrimSpace(path) == "" {
		return config{}, fmt.Errorf("config path is required")
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return config{}, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return config{}, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	cfg.Secret = strings.TrimSpace(cfg.Secret)
	cfg.Customer = strings.TrimSpace(cfg.Customer)
	cfg.Subscription = strings.TrimSpace(cfg.Subscription)
	cfg.Interval = strings.TrimSpace(cfg.Interval)

	if cfg.BaseURL == "" || cfg.Secret == "" || cfg.Customer == "" || cfg.Subscription == "" {
		return config{}, fmt.Errorf("config must include base_url, secret, customer, subscription")
	}
	if cfg.Interval == "" {
		cfg.Interval = "10s"
	}
	return cfg, nil
}

func sendEvent(client *http.Client, cfg config, eventType string, seq int) error {
	body, err := buildEvent(cfg, eventType, seq)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	request, err := http.NewRequestWithContext(context.Background(), http.MethodPost,
		strings.TrimRight(cfg.BaseURL, "/")+"/webhooks/stripe", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	request.Header.Set("Stripe-Signature", sign(body, cfg.Secret, time.Now()))
	request.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("webhook failed: %s", strings.TrimSpace(string(payload)))
	}

	fmt.Printf("Webhook status: %s (%s)\n", resp.Status, eventType)
	return nil
}

func buildEvent(cfg config, eventType string, seq int) ([]byte, error) {
	var object map[string]any
	switch eventType {
	case "customer.subscription.deleted":
		object = map[string]any{
			"id":       cfg.Subscription,
			"object":   "subscription",
			"customer": cfg.Customer,
		}
	default:
		object = map[string]any{
			"id":           fmt.Sprintf("in_%06d", seq),
			"object":       "invoice",
			"customer":     cfg.Customer,
			"subscription": cfg.Subscription,
		}
	}

	return json.Marshal(map[string]any{
		"id":   fmt.Sprintf("evt_%06d", seq),
		"type": eventType,
		"data": map[string]any{"object": object},
	})
}

// sign produces a Stripe-Signature header value for the payload.
func sign(body []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", at.Unix())
	mac.Write(body)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

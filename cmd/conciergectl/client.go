package main

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

func newClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)
}

func runLogin(baseURL, phone string, out io.Writer) error {
	var result struct {
		Token string `json:"token"`
		User  struct {
			UserID string `json:"id"`
			Name   string `json:"name"`
		} `json:"user"`
	}
	resp, err := newClient(baseURL).R().
		SetBody(map[string]string{"phone": phone}).
		SetResult(&result).
		Post("/login")
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("login failed: %s", resp.Status())
	}
	fmt.Fprintf(out, "Logged in as %s (user %s)\ntoken: %s\n", result.User.Name, result.User.UserID, result.Token)
	return nil
}

func runChat(baseURL, token string, args []string, out io.Writer) error {
	message := strings.Join(args, " ")
	var result struct {
		OK     bool   `json:"ok"`
		Reply  string `json:"reply"`
		Reason string `json:"reason"`
	}
	resp, err := newClient(baseURL).R().
		SetBody(map[string]string{"token": token, "message": message}).
		SetResult(&result).
		Post("/agent/chat")
	if err != nil {
		return fmt.Errorf("chat request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("chat failed: %s", resp.Status())
	}
	if result.Reply == "" && result.Reason != "" {
		return fmt.Errorf("chat rejected: %s", result.Reason)
	}
	fmt.Fprintln(out, result.Reply)
	return nil
}

func runBalance(baseURL, token, userID string, out io.Writer) error {
	var result struct {
		Balance string `json:"balance"`
	}
	resp, err := newClient(baseURL).R().
		SetAuthToken(token).
		SetResult(&result).
		Get("/balances/" + userID)
	if err != nil {
		return fmt.Errorf("balance request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("balance failed: %s", resp.Status())
	}
	fmt.Fprintf(out, "$%s\n", result.Balance)
	return nil
}

func runProducts(baseURL string, out io.Writer) error {
	var result []struct {
		Title     string `json:"title"`
		Price     string `json:"price"`
		Rating    float64 `json:"rating"`
		BrandName string `json:"brand_name"`
	}
	resp, err := newClient(baseURL).R().
		SetResult(&result).
		Get("/products")
	if err != nil {
		return fmt.Errorf("products request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("products failed: %s", resp.Status())
	}
	for _, p := range result {
		fmt.Fprintf(out, "%-30s $%-10s %.1f  %s\n", p.Title, p.Price, p.Rating, p.BrandName)
	}
	return nil
}

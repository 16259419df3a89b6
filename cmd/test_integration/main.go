package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

func main() {
	baseURL := os.Getenv("PADI_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	client := &http.Client{Timeout: 60 * time.Second}

	fmt.Println("Starting Integration Test...")
	if !waitReady(client, baseURL, 30*time.Second) {
		fmt.Println("FAILED: server not ready")
		os.Exit(1)
	}

	fmt.Println("1. Listing symptoms...")
	var symptoms struct {
		Data []struct {
			ID   int64  `json:"id"`
			Code string `json:"code"`
		} `json:"data"`
	}
	if !send(client, http.MethodGet, baseURL+"/symptoms", nil, &symptoms) || len(symptoms.Data) == 0 {
		fmt.Println("FAILED: list symptoms")
		os.Exit(1)
	}
	fmt.Printf("PASSED: %d symptoms\n", len(symptoms.Data))

	fmt.Println("2. Diagnosing...")
	ids := []int64{}
	for _, s := range symptoms.Data[:min(3, len(symptoms.Data))] {
		ids = append(ids, s.ID)
	}
	var diagnosis struct {
		Success bool   `json:"success"`
		Status  string `json:"status"`
		Method  string `json:"method"`
		Data    struct {
			Confidence     float64 `json:"confidence"`
			CertaintyLevel string  `json:"certainty_level"`
			HistoryID      string  `json:"history_id"`
		} `json:"data"`
	}
	payload := map[string]any{"symptom_ids": ids}
	if !send(client, http.MethodPost, baseURL+"/diagnosis/start", payload, &diagnosis) || !diagnosis.Success {
		fmt.Println("FAILED: diagnosis")
		os.Exit(1)
	}
	fmt.Printf("PASSED: %s via %s (cf=%.4f, %s)\n", diagnosis.Status, diagnosis.Method, diagnosis.Data.Confidence, diagnosis.Data.CertaintyLevel)
}

func waitReady(client *http.Client, baseURL string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := client.Get(baseURL + "/ready")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return true
			}
		}
		time.Sleep(time.Second)
	}
	return false
}

func send(client *http.Client, method, url string, payload, out any) bool {
	var body io.Reader
	if payload != nil {
		jsonBytes, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		fmt.Printf("Error creating request: %v\n", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "integration")

	resp, err := client.Do(req)
	if err != nil {
		fmt.Printf("Error sending request: %v\n", err)
		return false
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		fmt.Printf("Request failed with status %d: %s\n", resp.StatusCode, string(data))
		return false
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			fmt.Printf("Error decoding response: %v\n", err)
			return false
		}
	}
	return true
}

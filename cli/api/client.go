package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 90 * time.Second, // vm creation is synchronous
		},
	}
}

type VM struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Provider         string `json:"provider"`
	Region           string `json:"region"`
	InstanceType     string `json:"instanceType"`
	ProviderNativeID string `json:"providerNativeId"`
	IPAddress        string `json:"ipAddress"`
	Status           string `json:"status"`
	CreatedAt        string `json:"createdAt"`
}

type Node struct {
	ID               string  `json:"id"`
	VMID             string  `json:"vmId"`
	Name             string  `json:"name"`
	Status           string  `json:"status"`
	UptimePercentage float64 `json:"uptimePercentage"`
	PocSuccessRate   float64 `json:"pocSuccessRate"`
	LastCheckedAt    string  `json:"lastCheckedAt"`
}

type Region struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

type FleetStats struct {
	TotalVMs         int     `json:"totalVms"`
	RunningVMs       int     `json:"runningVms"`
	TotalNodes       int     `json:"totalNodes"`
	RunningNodes     int     `json:"runningNodes"`
	UnreachableNodes int     `json:"unreachableNodes"`
	AvgUptime        float64 `json:"avgUptime"`
}

type HealthStatus struct {
	Status    string `json:"status"`
	Database  string `json:"database"`
	WSClients int    `json:"wsClients"`
}

type CreateVMRequest struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Region   string `json:"region"`
	Size     string `json:"size"`
}

func (c *Client) Health() (*HealthStatus, error) {
	var h HealthStatus
	if err := c.get("/api/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client) Stats() (*FleetStats, error) {
	var s FleetStats
	if err := c.get("/api/stats", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) ListProviders() ([]string, error) {
	var out struct {
		Providers []string `json:"providers"`
	}
	if err := c.get("/api/providers", &out); err != nil {
		return nil, err
	}
	return out.Providers, nil
}

func (c *Client) ListRegions(provider string) ([]Region, error) {
	var out struct {
		Regions []Region `json:"regions"`
	}
	if err := c.get("/api/providers/"+provider+"/regions", &out); err != nil {
		return nil, err
	}
	return out.Regions, nil
}

func (c *Client) ListVMs() ([]VM, error) {
	var vms []VM
	if err := c.get("/api/vms", &vms); err != nil {
		return nil, err
	}
	return vms, nil
}

func (c *Client) GetVM(id string) (*VM, error) {
	var vm VM
	if err := c.get("/api/vms/"+id+"/", &vm); err != nil {
		return nil, err
	}
	return &vm, nil
}

func (c *Client) CreateVM(req CreateVMRequest) (*VM, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var vm VM
	if err := c.post("/api/vms", string(body), &vm); err != nil {
		return nil, err
	}
	return &vm, nil
}

func (c *Client) StartVM(id string) (*VM, error) {
	var vm VM
	if err := c.post("/api/vms/"+id+"/start", "{}", &vm); err != nil {
		return nil, err
	}
	return &vm, nil
}

func (c *Client) StopVM(id string) (*VM, error) {
	var vm VM
	if err := c.post("/api/vms/"+id+"/stop", "{}", &vm); err != nil {
		return nil, err
	}
	return &vm, nil
}

func (c *Client) DeleteVM(id string) error {
	return c.delete("/api/vms/" + id + "/")
}

func (c *Client) ListVMNodes(id string) ([]Node, error) {
	var nodes []Node
	if err := c.get("/api/vms/"+id+"/nodes", &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (c *Client) ListNodes() ([]Node, error) {
	var nodes []Node
	if err := c.get("/api/nodes", &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (c *Client) do(method, path, body string, v any) error {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) get(path string, v any) error {
	return c.do(http.MethodGet, path, "", v)
}

func (c *Client) post(path, body string, v any) error {
	return c.do(http.MethodPost, path, body, v)
}

func (c *Client) delete(path string) error {
	return c.do(http.MethodDelete, path, "", nil)
}

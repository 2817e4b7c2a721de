package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rawsignal/RivianMate-sub001/internal/domain"
)

// HTTPClient talks to the hosted telemetry gateway over plain JSON.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type wireField struct {
	Value     any       `json:"value"`
	Timestamp time.Time `json:"timeStamp"`
}

type wireState struct {
	Fields  map[string]wireField `json:"fields"`
	Partial bool                 `json:"partial"`
}

type wireVehicle struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	ModelYear           int     `json:"modelYear"`
	BatteryPack         string  `json:"batteryPack"`
	OriginalCapacityKwh float64 `json:"originalCapacityKwh"`
}

func (c *HTTPClient) ListVehicles(ctx context.Context, account *domain.Account) ([]RemoteVehicle, error) {
	var payload struct {
		Vehicles []wireVehicle `json:"vehicles"`
	}
	url := fmt.Sprintf("%s/accounts/%s/vehicles", c.baseURL, account.RemoteAccountID)
	if err := c.get(ctx, account, url, &payload); err != nil {
		return nil, err
	}

	vehicles := make([]RemoteVehicle, 0, len(payload.Vehicles))
	for _, v := range payload.Vehicles {
		vehicles = append(vehicles, RemoteVehicle{
			RemoteID:            v.ID,
			Name:                v.Name,
			ModelYear:           v.ModelYear,
			BatteryPack:         v.BatteryPack,
			OriginalCapacityKwh: v.OriginalCapacityKwh,
		})
	}
	return vehicles, nil
}

func (c *HTTPClient) FetchState(ctx context.Context, account *domain.Account, remoteVehicleID string) (*domain.VehicleState, bool, error) {
	var payload wireState
	url := fmt.Sprintf("%s/vehicles/%s/state", c.baseURL, remoteVehicleID)
	if err := c.get(ctx, account, url, &payload); err != nil {
		return nil, false, err
	}

	fields := make(Payload, len(payload.Fields))
	for name, f := range payload.Fields {
		fields[name] = Field{Value: f.Value, Timestamp: f.Timestamp}
	}
	return Decode(remoteVehicleID, fields), payload.Partial, nil
}

func (c *HTTPClient) RefreshAuth(ctx context.Context, account *domain.Account) (bool, error) {
	body, _ := json.Marshal(map[string]string{"refreshToken": account.RefreshToken})
	url := fmt.Sprintf("%s/auth/refresh", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("refresh auth: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return false, fmt.Errorf("decode refresh response: %w", err)
	}
	account.AccessToken = tokens.AccessToken
	if tokens.RefreshToken != "" {
		account.RefreshToken = tokens.RefreshToken
	}
	return true, nil
}

func (c *HTTPClient) get(ctx context.Context, account *domain.Account, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+account.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retry := 15 * time.Minute
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := strconv.Atoi(v); err == nil {
				retry = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitError{RetryAfter: retry}
	case resp.StatusCode == http.StatusNotFound:
		return ErrAccountNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{StatusCode: resp.StatusCode, Message: string(msg)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}

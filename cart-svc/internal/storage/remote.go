package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"overcooked-storefront/cart-svc/internal/domain"
	"overcooked-storefront/cart-svc/internal/service"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// RemoteStore talks to the backend's per-user cart API. Every call forwards
// the owner's bearer token unchanged.
type RemoteStore struct {
	baseURL string
	client  HTTPClient
}

func NewRemoteStore(baseURL string, client HTTPClient) *RemoteStore {
	return &RemoteStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

var _ service.CartStore = (*RemoteStore)(nil)

type remoteCart struct {
	Dishes []domain.CartLine `json:"dishes"`
}

type remoteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type addRequest struct {
	UserID   string `json:"userId"`
	DishID   string `json:"dishId"`
	Quantity int    `json:"quantity"`
}

type updateRequest struct {
	CartItemID string           `json:"cartItemId"`
	Action     domain.Direction `json:"action"`
}

func (s *RemoteStore) Source() domain.CartSource {
	return domain.SourceRemote
}

func (s *RemoteStore) Load(ctx context.Context, owner domain.Owner) ([]domain.CartLine, error) {
	body, err := s.do(ctx, owner, http.MethodGet, "/cart/"+url.PathEscape(owner.ID), nil)
	if err != nil {
		return nil, err
	}

	var cart remoteCart
	if err := json.Unmarshal(body, &cart); err != nil {
		return nil, fmt.Errorf("%w: cart body: %v", service.ErrDecode, err)
	}
	return cart.Dishes, nil
}

func (s *RemoteStore) Add(ctx context.Context, owner domain.Owner, dish domain.Dish, quantity int) error {
	body, err := s.do(ctx, owner, http.MethodPost, "/cart", addRequest{
		UserID:   owner.ID,
		DishID:   dish.ID,
		Quantity: quantity,
	})
	if err != nil {
		return err
	}
	return checkResult(body)
}

func (s *RemoteStore) SetQuantity(ctx context.Context, owner domain.Owner, lineID string, direction domain.Direction) error {
	body, err := s.do(ctx, owner, http.MethodPut, "/cart/update", updateRequest{
		CartItemID: lineID,
		Action:     direction,
	})
	if err != nil {
		return err
	}
	return checkResult(body)
}

// Remove only looks at the status code; the backend sends no body contract
// for deletes.
func (s *RemoteStore) Remove(ctx context.Context, owner domain.Owner, lineID string) error {
	_, err := s.do(ctx, owner, http.MethodDelete, "/cart/remove/"+url.PathEscape(lineID), nil)
	return err
}

func (s *RemoteStore) do(ctx context.Context, owner domain.Owner, method, path string, payload interface{}) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+owner.Token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", service.ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %v", service.ErrNetwork, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s %s returned %d", service.ErrNetwork, method, path, resp.StatusCode)
	}

	return body, nil
}

func checkResult(body []byte) error {
	var result remoteResult
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("%w: result body: %v", service.ErrDecode, err)
	}
	if !result.Success {
		if result.Message == "" {
			return service.ErrRejected
		}
		return fmt.Errorf("%w: %s", service.ErrRejected, result.Message)
	}
	return nil
}

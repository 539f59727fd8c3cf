package payments

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/walletworks/concierge/internal/gateway"
	"github.com/walletworks/concierge/internal/model"
	"github.com/walletworks/concierge/internal/paycrypt"
)

// Gateway is the encrypted payment boundary as seen by the executor: an
// opaque encrypt capability plus a blocking submit round trip.
type Gateway interface {
	Encrypt(req model.PaymentRequest) (string, error)
	Submit(ctx context.Context, ciphertext string) (model.PaymentResult, error)
}

type encrypter struct{ pub *rsa.PublicKey }

func (e encrypter) Encrypt(req model.PaymentRequest) (string, error) {
	plaintext, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return paycrypt.Encrypt(e.pub, plaintext)
}

// InProcessGateway submits directly to a gateway service living in the same
// process. The payload is still encrypted: the boundary contract is
// identical to the remote one.
type InProcessGateway struct {
	encrypter
	svc *gateway.Service
}

func NewInProcessGateway(svc *gateway.Service) *InProcessGateway {
	return &InProcessGateway{encrypter: encrypter{pub: svc.PublicKey()}, svc: svc}
}

func (g *InProcessGateway) Submit(ctx context.Context, ciphertext string) (model.PaymentResult, error) {
	return g.svc.Pay(ctx, ciphertext), nil
}

// RemoteGateway posts ciphertext to a gateway's /gateway/pay endpoint.
type RemoteGateway struct {
	encrypter
	client *resty.Client
}

func NewRemoteGateway(baseURL string, pub *rsa.PublicKey, timeout time.Duration) *RemoteGateway {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	return &RemoteGateway{encrypter: encrypter{pub: pub}, client: c}
}

func (g *RemoteGateway) Submit(ctx context.Context, ciphertext string) (model.PaymentResult, error) {
	var result model.PaymentResult
	resp, err := g.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"payload": ciphertext}).
		SetResult(&result).
		Post("/gateway/pay")
	if err != nil {
		return model.PaymentResult{}, fmt.Errorf("gateway request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return model.PaymentResult{}, fmt.Errorf("gateway returned status %d", resp.StatusCode())
	}
	return result, nil
}

// Package gateway is the payment boundary: it is the only component allowed
// to mutate balances. Payloads arrive as RSA-OAEP ciphertext; the gateway
// decrypts with its private key and applies the transfer atomically.
package gateway

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/walletworks/concierge/internal/model"
	"github.com/walletworks/concierge/internal/paycrypt"
	"github.com/walletworks/concierge/internal/store"
)

// Service decrypts payment payloads and performs the ledger mutation.
type Service struct {
	store store.Store
	priv  *rsa.PrivateKey
	log   zerolog.Logger
}

func NewService(st store.Store, priv *rsa.PrivateKey, log zerolog.Logger) *Service {
	return &Service{store: st, priv: priv, log: log}
}

// PublicKey exposes the gateway's encryption key for payload senders.
func (s *Service) PublicKey() *rsa.PublicKey { return &s.priv.PublicKey }

// Pay decrypts the ciphertext and executes the transfer. Failures are
// reported in the result, never as an error: the gateway's verdict is a
// value, and the caller relays the reason verbatim.
func (s *Service) Pay(ctx context.Context, ciphertext string) model.PaymentResult {
	plaintext, err := paycrypt.Decrypt(s.priv, ciphertext)
	if err != nil {
		s.log.Warn().Err(err).Msg("payment payload decrypt failed")
		return model.PaymentResult{OK: false, Reason: "decrypt failed"}
	}
	var req model.PaymentRequest
	if err := json.Unmarshal(plaintext, &req); err != nil {
		return model.PaymentResult{OK: false, Reason: "malformed payment payload"}
	}

	tx, err := s.store.TransferFunds(ctx, req)
	if err != nil {
		reason := "transfer failed"
		switch {
		case errors.Is(err, model.ErrInsufficientFunds):
			reason = "insufficient funds"
		case errors.Is(err, model.ErrNotFound):
			reason = "account not found"
		case errors.Is(err, model.ErrValidation):
			reason = "invalid amount"
		default:
			s.log.Error().Err(err).Str("order_id", req.OrderID).Msg("ledger transfer failed")
		}
		return model.PaymentResult{OK: false, Reason: reason}
	}

	s.log.Info().
		Str("tx_id", tx.TxID).
		Str("from", req.FromID).
		Str("to", req.ToID).
		Str("amount", req.Amount.String()).
		Str("order_id", req.OrderID).
		Msg("payment settled")
	return model.PaymentResult{OK: true, PaymentID: tx.TxID}
}

// Package agent wires the intent extractor, product ranker, pending-action
// register and transfer executor into the per-message dialog flow. No intent
// other than an explicit confirmation ever reaches the executor.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/walletworks/concierge/internal/intent"
	"github.com/walletworks/concierge/internal/model"
	"github.com/walletworks/concierge/internal/payments"
	"github.com/walletworks/concierge/internal/pending"
	"github.com/walletworks/concierge/internal/ranker"
	"github.com/walletworks/concierge/internal/store"
)

const helpReply = "I can help you with:\n\n" +
	"1. Shopping:\n" +
	"   - 'buy me a mouse'\n" +
	"   - 'I want headphones under $100'\n" +
	"   - 'order a keyboard rated above 4'\n\n" +
	"2. Money Transfers:\n" +
	"   - 'send $50 to +10000000002'\n" +
	"   - 'transfer $30 to Bob'\n\n" +
	"3. Account:\n" +
	"   - 'check balance'\n" +
	"   - 'how much money do I have'"

// Response is the agent's reply to one message.
type Response struct {
	OK    bool   `json:"ok"`
	Reply string `json:"reply"`
}

// Agent orchestrates a single conversation turn per call.
type Agent struct {
	store    store.Store
	parser   *intent.Parser
	register *pending.Register
	exec     *payments.Executor
	log      zerolog.Logger
}

func New(st store.Store, parser *intent.Parser, register *pending.Register, exec *payments.Executor, log zerolog.Logger) *Agent {
	return &Agent{store: st, parser: parser, register: register, exec: exec, log: log}
}

// HandleMessage processes one message for an authenticated user. The user's
// serialization lock is held for the whole turn, including the gateway round
// trip, so a duplicate confirmation can never consume the same pending
// action twice.
func (a *Agent) HandleMessage(ctx context.Context, userID, message string) Response {
	a.register.LockUser(userID)
	defer a.register.UnlockUser(userID)

	a.log.Info().Str("user_id", userID).Str("message", message).Msg("message received")

	prefix := ""
	if a.register.Has(userID) {
		in := a.parser.Parse(ctx, message)
		if in.Kind == intent.KindConfirm {
			action, ok := a.register.GetAndClear(userID)
			if !ok {
				return Response{OK: false, Reply: "You have no pending action to confirm."}
			}
			return a.execute(ctx, userID, action)
		}
		// Anything that is not a confirmation cancels the pending action;
		// the message is then handled as a fresh intent.
		a.register.Clear(userID)
		prefix = "Previous action cancelled. "
	}

	in := a.parser.Parse(ctx, message)
	resp := a.dispatch(ctx, userID, in)
	resp.Reply = prefix + resp.Reply
	return resp
}

func (a *Agent) dispatch(ctx context.Context, userID string, in intent.Intent) Response {
	switch in.Kind {
	case intent.KindConfirm:
		return Response{OK: false, Reply: "You have no pending action to confirm."}
	case intent.KindBuy:
		return a.handleBuy(ctx, userID, in)
	case intent.KindTransfer:
		return a.handleTransfer(ctx, userID, in)
	case intent.KindBalance:
		return a.handleBalance(ctx, userID)
	default:
		return Response{OK: true, Reply: helpReply}
	}
}

func (a *Agent) handleBuy(ctx context.Context, userID string, in intent.Intent) Response {
	catalog, err := a.store.Products().List(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("catalog read failed")
		return Response{OK: false, Reply: "Sorry, the catalog is unavailable right now."}
	}

	matches := ranker.Rank(catalog, in.Item, in.MaxPrice, in.MinRating)
	if len(matches) == 0 {
		reply := fmt.Sprintf("Sorry, I couldn't find any products matching '%s'", in.Item)
		if in.MaxPrice != nil {
			reply += " within your price range"
		}
		if alts := a.alternatives(catalog, in.Item); len(alts) > 0 {
			reply += "\n\nMaybe you'd be interested in:\n" + strings.Join(alts, "\n")
		}
		return Response{OK: true, Reply: reply}
	}

	top := matches[0]
	a.register.Set(userID, model.PendingAction{
		Kind:     model.PendingBuy,
		Product:  top.Product,
		MaxPrice: in.MaxPrice,
	})

	var b strings.Builder
	fmt.Fprintf(&b, "I found %s for $%s", top.Product.Title, top.Product.Price.StringFixed(2))
	if others := matches[1:min(len(matches), 3)]; len(others) > 0 {
		b.WriteString("\n\nOther options:")
		for _, m := range others {
			fmt.Fprintf(&b, "\n- %s ($%s)", m.Product.Title, m.Product.Price.StringFixed(2))
		}
	}
	b.WriteString("\n\nWould you like me to proceed with the purchase? (say 'yes' to confirm)")
	return Response{OK: true, Reply: b.String()}
}

// alternatives ranks on the first meaningful query word, with no
// constraints, to suggest up to three near-misses.
func (a *Agent) alternatives(catalog []*model.Product, item string) []string {
	fields := strings.Fields(ranker.Normalize(item))
	if len(fields) == 0 {
		return nil
	}
	similar := ranker.Rank(catalog, fields[0], nil, nil)
	var out []string
	for _, m := range similar[:min(len(similar), 3)] {
		out = append(out, fmt.Sprintf("%s ($%s)", m.Product.Title, m.Product.Price.StringFixed(2)))
	}
	return out
}

func (a *Agent) handleTransfer(ctx context.Context, userID string, in intent.Intent) Response {
	recipient, err := a.store.Users().GetByPhone(ctx, in.ToPhone)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return Response{OK: false, Reply: fmt.Sprintf("I couldn't find a user with phone number %s", in.ToPhone)}
		}
		a.log.Error().Err(err).Msg("recipient lookup failed")
		return Response{OK: false, Reply: "Sorry, something went wrong looking up the recipient."}
	}

	// Balance is checked here for observability only; the proposal still
	// goes through and the executor re-verifies at confirmation time, when
	// the balance may have drifted either way.
	if sender, sErr := a.store.Users().Get(ctx, userID); sErr == nil && sender.Balance.LessThan(in.Amount) {
		a.log.Warn().
			Str("user_id", userID).
			Str("amount", in.Amount.StringFixed(2)).
			Str("balance", sender.Balance.StringFixed(2)).
			Msg("proposed transfer exceeds current balance")
	}

	a.register.Set(userID, model.PendingAction{
		Kind:    model.PendingTransfer,
		ToPhone: in.ToPhone,
		Amount:  in.Amount,
	})
	return Response{OK: true, Reply: fmt.Sprintf(
		"Would you like to transfer $%s to %s (%s)? (say 'yes' to confirm)",
		in.Amount.StringFixed(2), recipient.Name, recipient.Phone)}
}

func (a *Agent) handleBalance(ctx context.Context, userID string) Response {
	user, err := a.store.Users().Get(ctx, userID)
	if err != nil {
		a.log.Error().Err(err).Str("user_id", userID).Msg("balance read failed")
		return Response{OK: false, Reply: "Sorry, something went wrong."}
	}
	return Response{OK: true, Reply: fmt.Sprintf("Your current balance is $%s", user.Balance.StringFixed(2))}
}

// execute runs a confirmed action and phrases the outcome for the user.
func (a *Agent) execute(ctx context.Context, userID string, action model.PendingAction) Response {
	reply, err := a.exec.Execute(ctx, userID, action)
	if err == nil {
		return Response{OK: true, Reply: reply}
	}

	switch {
	case errors.Is(err, model.ErrRecipientNotFound):
		return Response{OK: false, Reply: fmt.Sprintf("I couldn't find a user with phone number %s", action.ToPhone)}
	case errors.Is(err, model.ErrInsufficientFunds):
		reply := "Sorry, you don't have enough balance for this transfer."
		if sender, sErr := a.store.Users().Get(ctx, userID); sErr == nil {
			reply += fmt.Sprintf(" Your current balance is $%s", sender.Balance.StringFixed(2))
		}
		return Response{OK: false, Reply: reply}
	case errors.Is(err, model.ErrPriceExceeded):
		reply := "The price exceeds your limit."
		if action.Product != nil && action.MaxPrice != nil {
			reply = fmt.Sprintf("Price $%s exceeds your limit of $%s",
				action.Product.Price.StringFixed(2), action.MaxPrice.StringFixed(2))
		}
		return Response{OK: false, Reply: reply}
	case errors.Is(err, model.ErrGateway):
		var gwErr *payments.GatewayError
		reason := err.Error()
		if errors.As(err, &gwErr) {
			reason = gwErr.Reason
		}
		return Response{OK: false, Reply: "Payment failed: " + reason}
	default:
		a.log.Error().Err(err).Str("user_id", userID).Msg("action execution failed")
		return Response{OK: false, Reply: "Sorry, something went wrong processing your request."}
	}
}

// Package intent turns free-text messages into typed intents using a bounded
// keyword/pattern grammar. Rules apply in a fixed priority order so ambiguous
// messages resolve deterministically: confirmation always wins, then buy,
// then transfer, then balance.
package intent

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/walletworks/concierge/internal/model"
)

// Kind identifies the intent variant.
type Kind string

const (
	KindConfirm  Kind = "confirm"
	KindBuy      Kind = "buy"
	KindTransfer Kind = "transfer"
	KindBalance  Kind = "balance"
	KindUnknown  Kind = "unknown"
)

// Intent is the structured action a message was classified into. Produced
// fresh per message, never persisted.
type Intent struct {
	Kind Kind

	// Buy
	Item      string
	MaxPrice  *decimal.Decimal
	MinRating *float64

	// Transfer
	Amount  decimal.Decimal
	ToPhone string
}

// Directory resolves a display-name prefix to a user, for "send $30 to bob"
// style transfers. First match in directory order wins.
type Directory interface {
	FindByNamePrefix(ctx context.Context, prefix string) (*model.User, error)
}

var (
	// Matched on word boundaries: "ok" must not fire inside "looking for".
	confirmRe = regexp.MustCompile(`\b(?:yes|confirm|ok|sure|proceed|go ahead|do it)\b`)

	buyKeywords      = []string{"buy", "purchase", "get", "order", "want", "need", "looking for", "search for", "find"}
	transferKeywords = []string{"send", "transfer", "pay", "give", "wire"}
	balanceKeywords  = []string{"balance", "money", "wallet", "account", "how much"}

	amountRe = regexp.MustCompile(`\$?\d+(?:\.\d{1,2})?`)
	phoneRe  = regexp.MustCompile(`\+\d{11}`)
	ratingRe = regexp.MustCompile(`(?:rating|rated|stars|score)\s*(?:is\s+)?(?:above|over|at\s+least|higher\s+than|greater\s+than|more\s+than|of|>=|>)?\s*(\d+(?:\.\d+)?)`)
	nameRe   = regexp.MustCompile(`(?:to|for)\s+(\S+)`)
	spacesRe = regexp.MustCompile(`\s+`)
	forRe    = regexp.MustCompile(`\s+for\s+`)
)

// Parser classifies messages. The directory is only consulted for
// transfer-by-name resolution.
type Parser struct {
	dir Directory
}

func NewParser(dir Directory) *Parser { return &Parser{dir: dir} }

// Parse classifies text into an Intent. It never fails: unparseable input is
// KindUnknown.
func (p *Parser) Parse(ctx context.Context, text string) Intent {
	msg := strings.ToLower(strings.TrimSpace(text))

	// Rule 1: a confirmation token anywhere wins outright.
	if confirmRe.MatchString(msg) {
		return Intent{Kind: KindConfirm}
	}

	// Rule 2: extract the optional phone, rating clause and amount. Phone
	// and rating substrings are blanked before the amount scan so their
	// digits are never mistaken for a money amount.
	work := msg
	phone := phoneRe.FindString(work)
	if phone != "" {
		work = strings.Replace(work, phone, " ", 1)
	}
	var minRating *float64
	var ratingClause string
	if m := ratingRe.FindStringSubmatch(work); m != nil {
		if v, err := decimal.NewFromString(m[1]); err == nil {
			f, _ := v.Float64()
			minRating = &f
			ratingClause = m[0]
			work = strings.Replace(work, ratingClause, " ", 1)
		}
	}
	var amount *decimal.Decimal
	amountToken := amountRe.FindString(work)
	if amountToken != "" {
		if v, err := decimal.NewFromString(strings.TrimPrefix(amountToken, "$")); err == nil {
			amount = &v
		}
	}

	// Rule 3: buy. Strip the grammar's own residue from the item text;
	// a buy with an empty item falls through to the later rules.
	if containsAny(msg, buyKeywords) {
		item := msg
		if ratingClause != "" {
			item = strings.Replace(item, ratingClause, " ", 1)
		}
		for _, kw := range keywordsLongestFirst(buyKeywords) {
			item = strings.ReplaceAll(item, kw, "")
		}
		if amountToken != "" {
			item = strings.Replace(item, amountToken, "", 1)
		}
		item = forRe.ReplaceAllString(item, " ")
		item = strings.TrimSpace(spacesRe.ReplaceAllString(item, " "))
		if item != "" {
			return Intent{Kind: KindBuy, Item: item, MaxPrice: amount, MinRating: minRating}
		}
	}

	// Rule 4: transfer, by phone or by name prefix.
	if containsAny(msg, transferKeywords) && amount != nil {
		if phone != "" {
			return Intent{Kind: KindTransfer, Amount: *amount, ToPhone: phone}
		}
		rest := strings.Replace(msg, amountToken, " ", 1)
		if m := nameRe.FindStringSubmatch(rest); m != nil && p.dir != nil {
			if u, err := p.dir.FindByNamePrefix(ctx, m[1]); err == nil {
				return Intent{Kind: KindTransfer, Amount: *amount, ToPhone: u.Phone}
			}
		}
	}

	// Rule 5: balance inquiry.
	if containsAny(msg, balanceKeywords) {
		return Intent{Kind: KindBalance}
	}

	return Intent{Kind: KindUnknown}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// keywordsLongestFirst orders keywords so multi-word forms ("looking for")
// are stripped before their substrings could be.
func keywordsLongestFirst(keywords []string) []string {
	out := make([]string, len(keywords))
	copy(out, keywords)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// Package payments creates deposit payment intents for confirmed
// appointments. With no Stripe key configured it hands out simulated
// intent ids so local flows keep working.
package payments

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/paymentintent"
)

type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret,omitempty"`
	AmountCents  int64  `json:"amountCents"`
	Currency     string `json:"currency"`
	Simulated    bool   `json:"simulated"`
}

type Provider struct {
	secretKey string
	currency  string
	logger    *slog.Logger
}

func NewProvider(secretKey, currency string, logger *slog.Logger) *Provider {
	if currency == "" {
		currency = "brl"
	}
	return &Provider{
		secretKey: strings.TrimSpace(secretKey),
		currency:  currency,
		logger:    logger,
	}
}

// CreateDepositIntent opens a payment intent for the service price.
// price is the decimal string stored on the service row.
func (p *Provider) CreateDepositIntent(appointmentID, price string) (Intent, error) {
	amount, err := priceToCents(price)
	if err != nil {
		return Intent{}, err
	}

	if p.secretKey == "" {
		p.logger.Info("simulated payment intent issued", "appointment_id", appointmentID, "amount_cents", amount)
		return Intent{
			ID:          "sim_" + uuid.NewString(),
			AmountCents: amount,
			Currency:    p.currency,
			Simulated:   true,
		}, nil
	}

	stripe.Key = p.secretKey
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(p.currency),
		Metadata: map[string]string{
			"appointment_id": appointmentID,
		},
	}
	params.IdempotencyKey = stripe.String("deposit-" + appointmentID)

	pi, err := paymentintent.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("create payment intent: %w", err)
	}
	return Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  amount,
		Currency:     p.currency,
	}, nil
}

// priceToCents parses a decimal price like "50.00" into cents without
// going through floats.
func priceToCents(price string) (int64, error) {
	price = strings.TrimSpace(price)
	whole, frac, _ := strings.Cut(price, ".")
	if whole == "" {
		whole = "0"
	}
	reais, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || reais < 0 {
		return 0, fmt.Errorf("invalid price %q", price)
	}
	var cents int64
	if frac != "" {
		if len(frac) > 2 {
			frac = frac[:2]
		}
		for len(frac) < 2 {
			frac += "0"
		}
		cents, err = strconv.ParseInt(frac, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid price %q", price)
		}
	}
	return reais*100 + cents, nil
}

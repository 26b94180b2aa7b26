package payment

import (
	"context"
	"errors"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// StripeGateway talks to Stripe's PaymentIntents and Refunds APIs.
type StripeGateway struct {
	sc *client.API
}

// NewStripeGateway builds a gateway authenticated with the secret key.
func NewStripeGateway(secretKey string) *StripeGateway {
	return &StripeGateway{sc: client.New(secretKey, nil)}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	pi, err := g.sc.PaymentIntents.New(params)
	if err != nil {
		return nil, err
	}
	return fromStripe(pi), nil
}

func (g *StripeGateway) GetIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge") // refunds are recorded on the charge
	pi, err := g.sc.PaymentIntents.Get(id, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == http.StatusNotFound {
			return nil, ErrIntentNotFound
		}
		return nil, err
	}
	return fromStripe(pi), nil
}

func (g *StripeGateway) Refund(ctx context.Context, intentID string) error {
	params := &stripe.RefundParams{PaymentIntent: stripe.String(intentID)}
	params.Context = ctx
	_, err := g.sc.Refunds.New(params)
	return err
}

func fromStripe(pi *stripe.PaymentIntent) *Intent {
	in := &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
		Status:       IntentStatus(pi.Status),
		Metadata:     pi.Metadata,
	}
	if pi.LatestCharge != nil {
		in.AmountRefunded = pi.LatestCharge.AmountRefunded
	}
	return in
}

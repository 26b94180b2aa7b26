package payment

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// FakeGateway is an in-process processor for local runs and tests.
// Intents start in StatusRequiresPaymentMethod; Succeed plays the role of
// the browser-side card confirmation.
type FakeGateway struct {
	mu      sync.Mutex
	intents map[string]*Intent
	refunds []string

	// AutoSucceed marks new intents succeeded immediately.
	AutoSucceed bool
	// Err, when set, is returned by every call.
	Err error
}

// NewFakeGateway returns an empty fake processor.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{intents: map[string]*Intent{}}
}

func (f *FakeGateway) CreateIntent(_ context.Context, req IntentRequest) (*Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	id := "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	in := &Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + uuid.NewString()[:8],
		Amount:       req.Amount,
		Currency:     req.Currency,
		Status:       StatusRequiresPaymentMethod,
		Metadata:     map[string]string{},
	}
	for k, v := range req.Metadata {
		in.Metadata[k] = v
	}
	if f.AutoSucceed {
		in.Status = StatusSucceeded
	}
	f.intents[id] = in
	cp := *in
	return &cp, nil
}

func (f *FakeGateway) GetIntent(_ context.Context, id string) (*Intent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	in, ok := f.intents[id]
	if !ok {
		return nil, ErrIntentNotFound
	}
	cp := *in
	return &cp, nil
}

func (f *FakeGateway) Refund(_ context.Context, intentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	in, ok := f.intents[intentID]
	if !ok {
		return ErrIntentNotFound
	}
	in.AmountRefunded = in.Amount
	f.refunds = append(f.refunds, intentID)
	return nil
}

// Succeed simulates the customer completing the card flow.
func (f *FakeGateway) Succeed(id string) bool {
	return f.setStatus(id, StatusSucceeded)
}

func (f *FakeGateway) setStatus(id string, st IntentStatus) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	in, ok := f.intents[id]
	if ok {
		in.Status = st
	}
	return ok
}

// Refunds lists refunded intent ids in call order.
func (f *FakeGateway) Refunds() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refunds...)
}

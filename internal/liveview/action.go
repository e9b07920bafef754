package liveview

import (
	"context"
	"fmt"
	"time"
)

// Action is a primitive driver action.
type Action func(ctx context.Context) error

// Settle runs action and then waits for settlement within timeout. It is the
// manual composition primitive; prefer the ...AndSettle helpers.
func (s *Session) Settle(ctx context.Context, action Action, timeout time.Duration) error {
	if err := action(ctx); err != nil {
		return err
	}
	return s.WaitForSettlementWithin(ctx, timeout)
}

// ClickAndSettle clicks selector and waits for settlement.
func (s *Session) ClickAndSettle(ctx context.Context, selector string) error {
	return s.ClickAndSettleWithin(ctx, selector, s.settings.SettleTimeout)
}

// ClickAndSettleWithin is ClickAndSettle with an explicit deadline.
func (s *Session) ClickAndSettleWithin(ctx context.Context, selector string, timeout time.Duration) error {
	return s.Settle(ctx, func(ctx context.Context) error {
		if err := s.page.Click(ctx, selector); err != nil {
			return fmt.Errorf("click %s: %w", selector, err)
		}
		return nil
	}, timeout)
}

// SubmitAndSettle clicks the submit button inside formSelector and waits for
// settlement. formSelector must be a single CSS selector, not a list.
func (s *Session) SubmitAndSettle(ctx context.Context, formSelector string) error {
	return s.SubmitAndSettleWithin(ctx, formSelector, s.settings.SettleTimeout)
}

// SubmitAndSettleWithin is SubmitAndSettle with an explicit deadline.
func (s *Session) SubmitAndSettleWithin(ctx context.Context, formSelector string, timeout time.Duration) error {
	button := formSelector + " " + s.settings.SubmitSelector
	return s.Settle(ctx, func(ctx context.Context) error {
		if err := s.page.Click(ctx, button); err != nil {
			return fmt.Errorf("submit %s: %w", formSelector, err)
		}
		return nil
	}, timeout)
}

// FillAndValidate fills selector, blurs it to trigger server side
// validation and then sleeps for the validation delay. This is weaker than
// settlement: nothing is observed, the delay is only tuned for a validation
// round trip.
func (s *Session) FillAndValidate(ctx context.Context, selector, value string) error {
	return s.FillAndValidateWithin(ctx, selector, value, s.settings.ValidationDelay)
}

// FillAndValidateWithin is FillAndValidate with an explicit delay.
func (s *Session) FillAndValidateWithin(ctx context.Context, selector, value string, delay time.Duration) error {
	if err := s.page.Fill(ctx, selector, value); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	if err := s.page.Blur(ctx, selector); err != nil {
		return fmt.Errorf("blur %s: %w", selector, err)
	}
	if delay <= 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NavigateAndConnect loads url, waits for the push connection and then for
// the first render to settle. The page driver must implement Navigator.
func (s *Session) NavigateAndConnect(ctx context.Context, url string) error {
	nav, ok := s.page.(Navigator)
	if !ok {
		return &MissingCapabilityError{Capability: "navigator"}
	}
	if err := nav.Goto(ctx, url); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	if err := s.WaitUntilConnected(ctx); err != nil {
		return err
	}
	return s.WaitForSettlement(ctx)
}

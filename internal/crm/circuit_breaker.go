// Siteplan - Installation Site-Plan Annotation for Field Technicians
// Copyright 2026 M. Kroh (mkroh)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mkroh/siteplan

package crm

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mkroh/siteplan/internal/logging"
	"github.com/mkroh/siteplan/internal/metrics"
)

// BreakerGateway wraps a Gateway with a circuit breaker so a dead or slow
// CRM fails fast instead of tying up request handlers.
//
// The breaker uses real time for its interval and timeout calculations;
// unit tests exercise the wrapped gateway directly.
type BreakerGateway struct {
	inner Gateway
	cb    *gobreaker.CircuitBreaker[any]
}

// NewBreakerGateway wraps the gateway with breaker settings tuned for an
// interactive flow: open after 60% failures over at least 5 requests,
// retry after 30 seconds.
func NewBreakerGateway(inner Gateway) *BreakerGateway {
	const name = "crm"
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= 0.6
		},

		// Not-found is a domain outcome, not an upstream failure; it must
		// never open the circuit.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logger := logging.WithComponent("crm")
			logger.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &BreakerGateway{inner: inner, cb: cb}
}

// FetchInstallation implements Gateway.
func (b *BreakerGateway) FetchInstallation(ctx context.Context, id string) (*Installation, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.inner.FetchInstallation(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return res.(*Installation), nil
}

// UploadImage implements Gateway.
func (b *BreakerGateway) UploadImage(ctx context.Context, id string, image []byte, filename string) (*UploadResult, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.inner.UploadImage(ctx, id, image, filename)
	})
	if err != nil {
		return nil, err
	}
	return res.(*UploadResult), nil
}

// AttachPlan implements Gateway.
func (b *BreakerGateway) AttachPlan(ctx context.Context, id, fileID string) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.inner.AttachPlan(ctx, id, fileID)
	})
	return err
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	default:
		return 2
	}
}

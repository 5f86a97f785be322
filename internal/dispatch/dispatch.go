// Package dispatch hands classified requests to whatever executes them on
// the device and reports back what the user should hear.
//
// A Result may ask for a permission or an explicit confirmation instead of
// reporting success or failure; the assistant treats those as gates before
// the action is considered done.
package dispatch

import (
	"context"

	"github.com/nadzzz/saathi/internal/entity"
	"github.com/nadzzz/saathi/internal/intent"
)

// Request is one action to execute.
type Request struct {
	Intent    intent.Intent   `json:"intent"`
	Entities  entity.Entities `json:"entities"`
	Confirmed bool            `json:"confirmed"` // the user already confirmed this action
}

// Result is the outcome of a dispatch.
type Result struct {
	Success              bool   `json:"success"`
	Message              string `json:"message,omitempty"`
	RequiresPermission   bool   `json:"requires_permission,omitempty"`
	RequiresConfirmation bool   `json:"requires_confirmation,omitempty"`
}

// Dispatcher executes requests. An error means the dispatcher could not
// produce a Result at all; an action that ran and failed is a Result with
// Success false.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (Result, error)
}

// Func adapts a function to a Dispatcher.
type Func func(ctx context.Context, req Request) (Result, error)

// Dispatch calls f.
func (f Func) Dispatch(ctx context.Context, req Request) (Result, error) { return f(ctx, req) }

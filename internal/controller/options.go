// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

package controller // import "github.com/evalprof/evalprof/internal/controller"

import "github.com/evalprof/evalprof/reporter"

type Option interface {
	applyOption(*Controller) *Controller
}
type controllerOptionFunc func(*Controller) *Controller

func (f controllerOptionFunc) applyOption(c *Controller) *Controller {
	return f(c)
}

// WithReporter sets a custom reporter that will be run for that controller.
// This defaults to [reporter.LogReporter]. A custom reporter is expected to
// pull snapshots from the sampler on its own schedule.
func WithReporter(rep reporter.Reporter) Option {
	return controllerOptionFunc(func(c *Controller) *Controller {
		c.reporter = rep
		return c
	})
}

// Copyright The Evalprof Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"

	//nolint:gosec
	_ "net/http/pprof"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/evalprof/evalprof/internal/controller"
	"github.com/evalprof/evalprof/vc"
)

// Short copyright / license text
var copyright = `Copyright The Evalprof Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
`

type exitCode int

const (
	exitSuccess exitCode = 0
	exitFailure exitCode = 1

	// Go 'flag' package calls os.Exit(2) on flag parse errors, if ExitOnError is set
	exitParseError exitCode = 2
)

func main() {
	os.Exit(int(mainWithExitCode()))
}

func mainWithExitCode() exitCode {
	args, err := parseArgs(os.Args[1:])
	if err != nil {
		return parseError("Failure to parse arguments: %v", err)
	}

	if args.Copyright {
		fmt.Print(copyright)
		return exitSuccess
	}

	if args.Version {
		fmt.Printf("%s\n", vc.Version())
		return exitSuccess
	}

	if args.VerboseMode {
		log.SetLevel(log.DebugLevel)
		// Dump the arguments in debug mode.
		args.Dump()
	}

	if err = args.Validate(); err != nil {
		return parseError("Invalid arguments: %v", err)
	}

	// Context to drive the main goroutine, the workload and the sampler.
	mainCtx, mainCancel := signal.NotifyContext(context.Background(),
		unix.SIGINT, unix.SIGTERM, unix.SIGABRT)
	defer mainCancel()

	if args.Duration > 0 {
		var durationCancel context.CancelFunc
		mainCtx, durationCancel = context.WithTimeout(mainCtx, args.Duration)
		defer durationCancel()
	}

	if args.PprofAddr != "" {
		go func() {
			//nolint:gosec
			if err = http.ListenAndServe(args.PprofAddr, nil); err != nil {
				log.Errorf("Serving pprof on %s failed: %s", args.PprofAddr, err)
			}
		}()
	}

	log.Infof("Starting evalprof %s (revision %s, build timestamp %s)",
		vc.Version(), vc.Revision(), vc.BuildTimestamp())

	ctlr := controller.New(args)

	if err = ctlr.Start(mainCtx); err != nil {
		return failure("Failed to start evalprof: %v", err)
	}

	g, groupCtx := errgroup.WithContext(mainCtx)
	g.Go(func() error {
		return ctlr.Workload().Run(groupCtx)
	})

	// Block waiting for a signal or the profiling deadline to indicate the
	// program should terminate.
	<-mainCtx.Done()

	if err = g.Wait(); err != nil {
		log.Errorf("Workload terminated with an error: %v", err)
	}

	ctlr.Shutdown()

	log.Info("Exiting ...")
	return exitSuccess
}

func parseError(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitParseError
}

func failure(msg string, args ...any) exitCode {
	log.Errorf(msg, args...)
	return exitFailure
}

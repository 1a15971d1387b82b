package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dealtimeline/internal/app"
	"dealtimeline/internal/config"
	"dealtimeline/internal/templates"
)

func main() {
	var (
		cfgPath      string
		once         bool
		template     string
		start        string
		jurisdiction string
		vdd          bool
		out          string
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config (yaml or json)")
	flag.BoolVar(&once, "once", false, "compute, render and persist one schedule, then exit")
	flag.StringVar(&template, "template", "", "write a project file from a template ("+strings.Join(templates.Names(), ", ")+") and exit")
	flag.StringVar(&start, "start", "", "project start date (YYYY-MM-DD) for -template")
	flag.StringVar(&jurisdiction, "jurisdiction", "", "holiday jurisdiction for -template, e.g. US")
	flag.BoolVar(&vdd, "vdd", false, "inject vendor due diligence tasks into -template")
	flag.StringVar(&out, "out", "./deal.yaml", "output path for -template (.yaml, .json or .hcl)")
	flag.Parse()

	if template != "" {
		if err := writeTemplate(template, start, jurisdiction, vdd, out); err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			os.Exit(1)
		}
		fmt.Println("wrote", out)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.NewApp(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}

	if once {
		o, err := a.RunOnce(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			os.Exit(1)
		}
		for _, f := range o.Files {
			fmt.Println("wrote", f)
		}
		if !o.Result.Complete() {
			fmt.Fprintln(os.Stderr, "unscheduled tasks:", strings.Join(o.Result.Unresolved, ", "))
			os.Exit(2)
		}
		return
	}

	if err := a.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal start:", err)
		os.Exit(1)
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		reason = app.StopFatalError
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)
	if err := a.Err(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func writeTemplate(name, start, jurisdiction string, vdd bool, out string) error {
	if strings.TrimSpace(start) == "" {
		return errors.New("-start is required with -template")
	}
	d, err := config.ParseDate(start)
	if err != nil {
		return err
	}
	p := templates.ByName(name, d, strings.TrimSpace(jurisdiction))
	if vdd {
		templates.InjectVendorDueDiligence(p)
	}
	return config.SaveProjectFile(out, config.NewProjectFile(p, nil))
}

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/mkarlsen/gatehouse/pkg/client"
)

type clientFlags struct {
	Name       string
	Wait       time.Duration
	APIUrl     string
	APITimeout time.Duration
}

func newClient(flags clientFlags) *client.Client {
	cfg := client.DefaultConfig()
	if flags.APIUrl != "" {
		cfg.BaseURL = flags.APIUrl
	}
	if flags.APITimeout > 0 {
		cfg.Timeout = flags.APITimeout
	}
	return client.New(cfg)
}

func runStatus(flags clientFlags) error {
	c := newClient(flags)
	ctx, cancel := context.WithTimeout(context.Background(), flags.APITimeout)
	defer cancel()

	var statuses []client.Status
	if flags.Name != "" {
		st, err := c.Status(ctx, flags.Name)
		if err != nil {
			return err
		}
		statuses = []client.Status{st}
	} else {
		all, err := c.Statuses(ctx)
		if err != nil {
			return err
		}
		statuses = all
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tSTATE\tPID\tRESTARTS\tSTARTED")
	for _, st := range statuses {
		started := "-"
		if !st.StartedAt.IsZero() {
			started = st.StartedAt.Local().Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
			st.Name, st.State, st.PID, st.Restarts, started)
	}
	return w.Flush()
}

func runStop(flags clientFlags) error {
	c := newClient(flags)
	ctx, cancel := context.WithTimeout(context.Background(), flags.APITimeout)
	defer cancel()

	res, err := c.Stop(ctx, flags.Name, flags.Wait)
	if err != nil {
		return err
	}
	fmt.Printf("stopped %s (%s)\n", flags.Name, res.Outcome)
	return nil
}

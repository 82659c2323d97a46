package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/gridship/gridship/internal/config"
	"github.com/gridship/gridship/internal/repository"
)

// Status handles the status command.
//
// It renders the persisted view of the cluster without touching the cloud,
// so it works even when the provider token is absent.
func Status(ctx context.Context, w io.Writer, configPath string) error {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return err
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}

	rec, err := store.Get(ctx, cfg.ClusterName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("cluster %s has not been started", cfg.ClusterName)
		}
		return fmt.Errorf("failed to load cluster state: %w", err)
	}

	renderStatus(w, rec)
	return nil
}

func renderStatus(w io.Writer, rec repository.ClusterRecord) {
	fmt.Fprintf(w, "Cluster: %s\n", rec.Name)
	if rec.FrontendKind != "" {
		fmt.Fprintf(w, "Frontend kind: %s\n", rec.FrontendKind)
	}
	fmt.Fprintln(w)

	kinds := make([]string, 0, len(rec.Groups))
	total := 0
	for kind, nodes := range rec.Groups {
		kinds = append(kinds, kind)
		total += len(nodes)
	}
	sort.Strings(kinds)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tKIND\tINSTANCE\tPREFERRED IP\tADDRESSES")
	for _, kind := range kinds {
		for _, node := range rec.Groups[kind] {
			instance := node.InstanceID
			if instance == "" {
				instance = "-"
			}
			preferred := node.PreferredIP
			if preferred == "" {
				preferred = "-"
			}
			addrs := "-"
			if len(node.IPs) > 0 {
				addrs = strings.Join(node.IPs, ",")
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", node.Name, kind, instance, preferred, addrs)
		}
	}
	tw.Flush()

	fmt.Fprintf(w, "\n%d node(s) in %d kind(s)\n", total, len(kinds))
}
